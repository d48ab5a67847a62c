package container

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"grid-annotator/config"
	telegram "grid-annotator/internal/api"
	app "grid-annotator/internal/application"
	"grid-annotator/internal/domain/port"
	"grid-annotator/internal/infrastructure/chart"
	"grid-annotator/internal/infrastructure/detector"
	"grid-annotator/internal/infrastructure/storage"
	"grid-annotator/internal/infrastructure/video"
	"grid-annotator/internal/infrastructure/vision"
)

type Container struct {
	RunService *app.RunService

	closers []io.Closer
}

// New собирает адаптеры по конфигурации и сервисы приложения
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Container, error) {
	c := &Container{}

	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}

	compositor, err := vision.NewCompositor()
	if err != nil {
		return nil, err
	}

	annotator := vision.NewAnnotator()
	annotator.Log = log

	det, err := c.newDetector(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	repo, err := c.newRepository(cfg)
	if err != nil {
		return nil, errors.Join(err, c.Close())
	}

	var notifier port.RunNotifier
	if cfg.TelegramToken != "" {
		n, err := telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID, log)
		if err != nil {
			// без уведомлений прогон всё равно полезен
			log.WithError(err).Warn("telegram notifier disabled")
		} else {
			notifier = n
		}
	}

	var latency port.LatencyChart
	if cfg.ChartPath != "" {
		latency = chart.NewLatencyChart()
	}

	deps := app.PipelineDeps{
		Backend:    backend,
		Segmenter:  newSegmenter(cfg, log),
		Detector:   det,
		Annotator:  annotator,
		Compositor: compositor,
	}
	opts := app.PipelineOptions{
		FourCC:      cfg.FourCC,
		FPSDivisor:  cfg.FPSDivisor,
		FallbackFPS: cfg.FallbackFPS,
	}

	c.RunService = app.NewRunService(deps, opts, repo, latency, notifier, log)
	c.RunService.ChartPath = cfg.ChartPath
	return c, nil
}

// NewHistory собирает контейнер только для чтения истории прогонов.
// Детектор, видео и Telegram не поднимаются, Execute вернёт ошибку.
func NewHistory(cfg *config.Config, log logrus.FieldLogger) (*Container, error) {
	c := &Container{}
	repo, err := c.newRepository(cfg)
	if err != nil {
		return nil, err
	}
	c.RunService = app.NewRunService(app.PipelineDeps{}, app.PipelineOptions{}, repo, nil, nil, log)
	return c, nil
}

// Close освобождает ресурсы в обратном порядке создания
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i].Close())
	}
	c.closers = nil
	return errors.Join(errs...)
}

func newBackend(cfg *config.Config) (port.VideoBackend, error) {
	switch cfg.VideoBackend {
	case config.BackendGoCV:
		return vision.NewGoCVBackend(), nil
	case config.BackendFiles:
		return video.NewFilesBackend(cfg.FallbackFPS), nil
	}
	return nil, fmt.Errorf("unknown video backend %q", cfg.VideoBackend)
}

// newSegmenter для видео через OpenCV переводит кадры в HSV тоже через OpenCV
func newSegmenter(cfg *config.Config, log logrus.FieldLogger) port.Segmenter {
	if cfg.VideoBackend != config.BackendGoCV {
		return vision.NewColorSegmenter()
	}
	s, err := vision.NewCVSegmenter()
	if err != nil {
		log.WithError(err).Warn("OpenCV color conversion unavailable, using pure Go")
		return vision.NewColorSegmenter()
	}
	return s
}

func (c *Container) newDetector(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (port.GeometryDetector, error) {
	if cfg.DetectorCmd == "" {
		log.Warn("DETECTOR_CMD is empty, geometry detection disabled")
		return detector.Disabled{}, nil
	}
	d, err := detector.StartSubprocess(ctx, cfg.DetectorCmd, cfg.DetectorArgs, log)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, d)
	return d, nil
}

func (c *Container) newRepository(cfg *config.Config) (port.RunRepository, error) {
	if cfg.RunsDB == "" {
		return storage.NewMemoryRunRepository(), nil
	}
	repo, err := storage.NewSQLiteRunRepository(cfg.RunsDB)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, repo)
	return repo, nil
}
