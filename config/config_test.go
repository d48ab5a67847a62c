package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"CONFIG_FILE", "INPUT_PATH", "OUTPUT_PATH", "VIDEO_BACKEND", "FOURCC", "FPS_DIVISOR",
	"FALLBACK_FPS", "DETECTOR_CMD", "DETECTOR_ARGS", "RUNS_DB", "CHART_PATH",
	"TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv обнуляет переменные, t.Setenv вернёт их после теста
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
	// .env ищется в рабочем каталоге
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, "MJPG", cfg.FourCC)
	require.Equal(t, 1, cfg.FPSDivisor)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "annotator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input_path: /videos/grid.mp4
output_path: /videos/out.avi
fps_divisor: 4
detector_cmd: python3
detector_args: [grid_worker.py, --debug]
telegram_chat_id: 12345
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("OUTPUT_PATH", "/tmp/override.avi")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/videos/grid.mp4", cfg.InputPath)
	require.Equal(t, "/tmp/override.avi", cfg.OutputPath)
	require.Equal(t, 4, cfg.FPSDivisor)
	require.Equal(t, []string{"grid_worker.py", "--debug"}, cfg.DetectorArgs)
	require.Equal(t, int64(12345), cfg.TelegramChatID)
	require.Equal(t, "debug", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("FPS_DIVISOR", "2")
	t.Setenv("FALLBACK_FPS", "12.5")
	t.Setenv("DETECTOR_ARGS", "worker.py  --model grid.onnx")
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2, cfg.FPSDivisor)
	require.Equal(t, 12.5, cfg.FallbackFPS)
	require.Equal(t, []string{"worker.py", "--model", "grid.onnx"}, cfg.DetectorArgs)
	require.Equal(t, int64(0), cfg.TelegramChatID)
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fps_divisor: [1, 2"), 0o644))
	t.Setenv("CONFIG_FILE", path)
	_, err = Load()
	require.ErrorContains(t, err, "parse config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.InputPath, c.OutputPath = "in.avi", "out.avi"
		return c
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"no input":        func(c *Config) { c.InputPath = "" },
		"no output":       func(c *Config) { c.OutputPath = "" },
		"backend":         func(c *Config) { c.VideoBackend = "ffmpeg" },
		"fourcc":          func(c *Config) { c.FourCC = "MJPEG" },
		"divisor":         func(c *Config) { c.FPSDivisor = 0 },
		"fallback fps":    func(c *Config) { c.FallbackFPS = 0 },
		"telegram chat":   func(c *Config) { c.TelegramToken = "token" },
		"log level":       func(c *Config) { c.LogLevel = "loud" },
		"log format":      func(c *Config) { c.LogFormat = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			require.Error(t, c.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	c := Default()
	c.LogLevel, c.LogFormat = "warn", "json"

	log, err := c.NewLogger()
	require.NoError(t, err)
	require.Equal(t, logrus.WarnLevel, log.GetLevel())
	require.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}
