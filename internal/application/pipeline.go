package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"grid-annotator/internal/domain/entity"
	"grid-annotator/internal/domain/port"
)

// PipelineState — состояние конвейера. Переходы только вперёд.
type PipelineState int

const (
	PipelineIdle PipelineState = iota
	PipelineOpened
	PipelineRunning
	PipelineDraining
	PipelineClosed
)

func (s PipelineState) String() string {
	switch s {
	case PipelineIdle:
		return "idle"
	case PipelineOpened:
		return "opened"
	case PipelineRunning:
		return "running"
	case PipelineDraining:
		return "draining"
	case PipelineClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// PipelineOptions — параметры выходного потока.
type PipelineOptions struct {
	FourCC      string
	FPSDivisor  int     // частота выходного потока = частота источника / FPSDivisor
	FallbackFPS float64 // если источник не сообщает частоту
}

// PipelineDeps — зависимости конвейера.
type PipelineDeps struct {
	Backend    port.VideoBackend
	Segmenter  port.Segmenter
	Detector   port.GeometryDetector
	Annotator  port.Annotator
	Compositor port.Compositor
}

// Pipeline обрабатывает одно видео: сегментация, детекция, разметка, склейка и запись.
// Одноразовый: после Run переходит в PipelineClosed.
type Pipeline struct {
	deps PipelineDeps
	opts PipelineOptions
	log  logrus.FieldLogger

	// OnComposite вызывается для каждого записанного кадра.
	OnComposite func(counter int, composite *image.RGBA)

	timer *StageTimer

	mu    sync.Mutex
	state PipelineState
}

// NewPipeline создаёт конвейер в состоянии PipelineIdle.
func NewPipeline(deps PipelineDeps, opts PipelineOptions, log logrus.FieldLogger) *Pipeline {
	if opts.FPSDivisor < 1 {
		opts.FPSDivisor = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		deps:  deps,
		opts:  opts,
		log:   log,
		timer: NewStageTimer(entity.StageColorConversion, entity.StageMasking, entity.StageDetection),
	}
}

// State возвращает текущее состояние.
func (p *Pipeline) State() PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s PipelineState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Timer возвращает таймер этапов прогона.
func (p *Pipeline) Timer() *StageTimer {
	return p.timer
}

// SinkParams вычисляет параметры выходного потока по свойствам источника.
func (p *Pipeline) SinkParams(props entity.VideoProperties) entity.SinkParams {
	fps := props.FPS
	if fps <= 0 {
		fps = p.opts.FallbackFPS
	}
	return entity.SinkParams{
		Width:  2 * props.Width,
		Height: props.Height,
		FPS:    fps / float64(p.opts.FPSDivisor),
		FourCC: p.opts.FourCC,
	}
}

// Run обрабатывает input и пишет результат в output.
// Источник и приёмник закрываются всегда, ошибки закрытия добавляются к результату.
// Сводка возвращается и при ошибке, если источник удалось открыть.
func (p *Pipeline) Run(ctx context.Context, input, output string) (*entity.RunSummary, error) {
	p.mu.Lock()
	if p.state != PipelineIdle {
		p.mu.Unlock()
		return nil, entity.ErrPipelineClosed
	}
	p.state = PipelineOpened
	p.mu.Unlock()

	summary := &entity.RunSummary{
		Input:     input,
		Output:    output,
		StartedAt: time.Now(),
	}

	src, err := p.deps.Backend.OpenSource(input)
	if err != nil {
		p.setState(PipelineClosed)
		return nil, fmt.Errorf("open source %q: %w", input, err)
	}

	params := p.SinkParams(src.Properties())
	sink, err := p.deps.Backend.OpenSink(output, params)
	if err != nil {
		p.setState(PipelineClosed)
		return nil, errors.Join(
			fmt.Errorf("open sink %q: %w", output, err),
			closeErr("source", src.Close()),
		)
	}

	p.log.WithFields(logrus.Fields{
		"input":  input,
		"output": output,
		"width":  params.Width,
		"height": params.Height,
		"fps":    params.FPS,
		"fourcc": params.FourCC,
	}).Info("pipeline opened")

	p.setState(PipelineRunning)
	runErr := p.loop(ctx, src, sink, summary)

	p.setState(PipelineDraining)
	err = errors.Join(
		runErr,
		closeErr("source", src.Close()),
		closeErr("sink", sink.Close()),
	)
	p.setState(PipelineClosed)

	summary.FinishedAt = time.Now()
	summary.Stages = p.timer.Stats()
	if tp, tpErr := p.timer.CombinedThroughput(); tpErr == nil {
		summary.CombinedThroughput = tp
		summary.CombinedValid = true
	}
	if err != nil {
		summary.Err = err.Error()
	}

	p.log.WithFields(logrus.Fields{
		"frames":             summary.Frames,
		"annotated":          summary.AnnotatedFrames,
		"detection_failures": summary.DetectionFailures,
		"duration":           summary.Duration().String(),
	}).Info("pipeline closed")

	return summary, err
}

func (p *Pipeline) loop(ctx context.Context, src port.FrameSource, sink port.FrameSink, summary *entity.RunSummary) error {
	for counter := 1; ; counter++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("frame %d: %w", counter, err)
		}

		frame, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if !errors.Is(err, entity.ErrStreamIO) && !errors.Is(err, entity.ErrInvalidFrame) {
				err = fmt.Errorf("%w: %w", entity.ErrStreamIO, err)
			}
			return fmt.Errorf("read frame %d: %w", counter, err)
		}

		composite, drawn, err := p.process(ctx, frame, counter)
		if err != nil {
			return fmt.Errorf("frame %d: %w", counter, err)
		}
		if drawn < 0 {
			summary.DetectionFailures++
		} else if drawn > 0 {
			summary.AnnotatedFrames++
		}

		if err := sink.Write(ctx, composite); err != nil {
			return fmt.Errorf("write frame %d: %w", counter, err)
		}
		p.timer.FrameDone()
		summary.Frames++

		if p.OnComposite != nil {
			p.OnComposite(counter, composite)
		}
	}
}

// process прогоняет один кадр через все этапы. drawn < 0 означает сбой детекции:
// кадр всё равно склеивается и пишется, но без разметки.
func (p *Pipeline) process(ctx context.Context, frame *image.RGBA, counter int) (*image.RGBA, int, error) {
	hsv, err := Measure(p.timer, entity.StageColorConversion, func() (*entity.HSVImage, error) {
		return p.deps.Segmenter.ConvertHSV(frame)
	})
	if err != nil {
		return nil, 0, err
	}

	mask, _ := Measure(p.timer, entity.StageMasking, func() (*image.Gray, error) {
		return p.deps.Segmenter.Threshold(hsv), nil
	})

	drawn, err := p.annotate(ctx, frame, mask)
	if err != nil {
		p.log.WithFields(logrus.Fields{
			"frame": counter,
			"error": err.Error(),
		}).Warn("detection failed, frame written without overlay")
		drawn = -1
	}

	composite, err := p.deps.Compositor.Compose(frame, mask, counter)
	if err != nil {
		return nil, 0, err
	}
	return composite, drawn, nil
}

// annotate ищет геометрию и рисует её на кадре.
// Любая ошибка или паника детектора и аннотатора превращается в ErrDetectionFailure.
func (p *Pipeline) annotate(ctx context.Context, frame *image.RGBA, mask *image.Gray) (drawn int, err error) {
	defer func() {
		if r := recover(); r != nil {
			drawn, err = 0, fmt.Errorf("%w: panic: %v", entity.ErrDetectionFailure, r)
		}
	}()

	det, err := Measure(p.timer, entity.StageDetection, func() (entity.Detection, error) {
		return p.deps.Detector.Detect(ctx, mask)
	})
	if err != nil {
		return 0, asDetectionFailure(err)
	}

	drawn, err = p.deps.Annotator.Annotate(frame, det)
	if err != nil {
		return 0, asDetectionFailure(err)
	}
	return drawn, nil
}

func asDetectionFailure(err error) error {
	if errors.Is(err, entity.ErrDetectionFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", entity.ErrDetectionFailure, err)
}

func closeErr(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("close %s: %w", what, err)
}
