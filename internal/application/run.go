package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"grid-annotator/internal/domain/entity"
	"grid-annotator/internal/domain/port"
)

var errReadOnly = errors.New("run service has no video backend, only history is available")

// RunService запускает прогоны конвейера и публикует их результат.
type RunService struct {
	deps     PipelineDeps
	opts     PipelineOptions
	repo     port.RunRepository
	chart    port.LatencyChart
	notifier port.RunNotifier
	log      logrus.FieldLogger

	// ChartPath — куда сохранять график задержек. Пусто — не рисовать.
	ChartPath string
	// Report получает текстовый отчёт о пропускной способности.
	Report io.Writer

	newID func() string
}

// NewRunService создаёт сервис. chart и notifier могут быть nil.
func NewRunService(
	deps PipelineDeps,
	opts PipelineOptions,
	repo port.RunRepository,
	chart port.LatencyChart,
	notifier port.RunNotifier,
	log logrus.FieldLogger,
) *RunService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RunService{
		deps:     deps,
		opts:     opts,
		repo:     repo,
		chart:    chart,
		notifier: notifier,
		log:      log,
		newID:    uuid.NewString,
	}
}

// Execute обрабатывает одно видео. Ошибки сохранения, графика и уведомления
// только логируются и не меняют результат прогона.
func (s *RunService) Execute(ctx context.Context, input, output string) (*entity.RunSummary, error) {
	if s.deps.Backend == nil {
		return nil, errReadOnly
	}
	id := s.newID()
	log := s.log.WithField("run_id", id)

	pipeline := NewPipeline(s.deps, s.opts, log)
	var last *image.RGBA
	pipeline.OnComposite = func(_ int, composite *image.RGBA) {
		last = composite
	}

	log.WithFields(logrus.Fields{"input": input, "output": output}).Info("run started")
	started := time.Now()
	summary, err := pipeline.Run(ctx, input, output)
	if summary == nil {
		summary = &entity.RunSummary{
			Input:      input,
			Output:     output,
			StartedAt:  started,
			FinishedAt: time.Now(),
		}
		if err != nil {
			summary.Err = err.Error()
		}
	}
	summary.ID = id

	if err != nil {
		log.WithError(err).Error("run failed")
	} else {
		log.WithField("frames", summary.Frames).Info("run finished")
	}

	if s.Report != nil {
		if rerr := FormatReport(s.Report, summary); rerr != nil {
			log.WithError(rerr).Warn("failed to print report")
		}
	}

	// отмена прогона не должна мешать сохранить его итог
	post := context.WithoutCancel(ctx)
	s.save(post, log, summary)
	s.renderChart(log, pipeline.Timer())
	s.notify(post, log, summary, last)

	return summary, err
}

// Get возвращает сохранённый прогон.
func (s *RunService) Get(ctx context.Context, id string) (*entity.RunSummary, error) {
	return s.repo.Get(ctx, id)
}

// History возвращает последние прогоны, новые первыми.
func (s *RunService) History(ctx context.Context, limit int) ([]*entity.RunSummary, error) {
	return s.repo.List(ctx, limit)
}

func (s *RunService) save(ctx context.Context, log logrus.FieldLogger, summary *entity.RunSummary) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, summary); err != nil {
		log.WithError(err).Warn("failed to save run")
	}
}

func (s *RunService) renderChart(log logrus.FieldLogger, timer *StageTimer) {
	if s.chart == nil || s.ChartPath == "" || timer.Frames() == 0 {
		return
	}
	samples := make(map[entity.Stage][]time.Duration)
	for _, stage := range timer.Stages() {
		samples[stage] = timer.Samples(stage)
	}
	if err := s.chart.Render(s.ChartPath, samples); err != nil {
		log.WithError(err).Warn("failed to render latency chart")
		return
	}
	log.WithField("path", s.ChartPath).Info("latency chart saved")
}

func (s *RunService) notify(ctx context.Context, log logrus.FieldLogger, summary *entity.RunSummary, last *image.RGBA) {
	if s.notifier == nil {
		return
	}
	var preview []byte
	if last != nil {
		var err error
		if preview, err = encodePreview(last); err != nil {
			log.WithError(err).Warn("failed to encode preview")
		}
	}
	if err := s.notifier.Notify(ctx, summary, preview); err != nil {
		log.WithError(err).Warn("failed to send run notification")
	}
}

func encodePreview(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
