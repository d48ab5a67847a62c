package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	BackendGoCV  = "gocv"
	BackendFiles = "files"
)

type Config struct {
	InputPath    string  `yaml:"input_path"`
	OutputPath   string  `yaml:"output_path"`
	VideoBackend string  `yaml:"video_backend"` // gocv или files
	FourCC       string  `yaml:"fourcc"`
	FPSDivisor   int     `yaml:"fps_divisor"`
	FallbackFPS  float64 `yaml:"fallback_fps"` // для источников без частоты кадров

	// Внешний воркер поиска сетки. Пустая команда — детекция выключена.
	DetectorCmd  string   `yaml:"detector_cmd"`
	DetectorArgs []string `yaml:"detector_args"`

	RunsDB    string `yaml:"runs_db"`    // пусто — история в памяти
	ChartPath string `yaml:"chart_path"` // пусто — без графика

	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text или json
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		VideoBackend: BackendGoCV,
		FourCC:       "MJPG",
		FPSDivisor:   1,
		FallbackFPS:  30,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load собирает конфигурацию: значения по умолчанию, затем YAML из CONFIG_FILE,
// затем переменные окружения (в том числе из .env).
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.InputPath = getEnv("INPUT_PATH", c.InputPath)
	c.OutputPath = getEnv("OUTPUT_PATH", c.OutputPath)
	c.VideoBackend = getEnv("VIDEO_BACKEND", c.VideoBackend)
	c.FourCC = getEnv("FOURCC", c.FourCC)
	c.FPSDivisor = getEnvAsInt("FPS_DIVISOR", c.FPSDivisor)
	c.FallbackFPS = getEnvAsFloat("FALLBACK_FPS", c.FallbackFPS)
	c.DetectorCmd = getEnv("DETECTOR_CMD", c.DetectorCmd)
	if args := os.Getenv("DETECTOR_ARGS"); args != "" {
		c.DetectorArgs = strings.Fields(args)
	}
	c.RunsDB = getEnv("RUNS_DB", c.RunsDB)
	c.ChartPath = getEnv("CHART_PATH", c.ChartPath)
	c.TelegramToken = getEnv("TELEGRAM_TOKEN", c.TelegramToken)
	c.TelegramChatID = getEnvAsInt64("TELEGRAM_CHAT_ID", c.TelegramChatID)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Validate проверяет значения конфигурации
func (c *Config) Validate() error {
	var errs []error
	if c.InputPath == "" {
		errs = append(errs, errors.New("INPUT_PATH is required"))
	}
	if c.OutputPath == "" {
		errs = append(errs, errors.New("OUTPUT_PATH is required"))
	}
	if c.VideoBackend != BackendGoCV && c.VideoBackend != BackendFiles {
		errs = append(errs, fmt.Errorf("VIDEO_BACKEND must be %q or %q, got %q", BackendGoCV, BackendFiles, c.VideoBackend))
	}
	if len(c.FourCC) != 4 {
		errs = append(errs, fmt.Errorf("FOURCC must be 4 characters, got %q", c.FourCC))
	}
	if c.FPSDivisor < 1 {
		errs = append(errs, fmt.Errorf("FPS_DIVISOR must be >= 1, got %d", c.FPSDivisor))
	}
	if c.FallbackFPS <= 0 {
		errs = append(errs, fmt.Errorf("FALLBACK_FPS must be > 0, got %g", c.FallbackFPS))
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		errs = append(errs, errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// NewLogger создаёт логгер по уровню и формату из конфигурации
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
