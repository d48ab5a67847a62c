package app

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"grid-annotator/internal/domain/entity"
)

// StageTimer накапливает длительность этапов за весь прогон.
// Создаётся один раз на прогон и никогда не сбрасывается.
type StageTimer struct {
	now     func() time.Time
	order   []entity.Stage
	totals  map[entity.Stage]time.Duration
	samples map[entity.Stage][]time.Duration
	frames  int
}

// NewStageTimer создаёт таймер с заранее известным порядком этапов.
func NewStageTimer(stages ...entity.Stage) *StageTimer {
	t := &StageTimer{
		now:     time.Now,
		totals:  make(map[entity.Stage]time.Duration),
		samples: make(map[entity.Stage][]time.Duration),
	}
	for _, s := range stages {
		t.register(s)
	}
	return t
}

func (t *StageTimer) register(stage entity.Stage) {
	if _, ok := t.totals[stage]; ok {
		return
	}
	t.order = append(t.order, stage)
	t.totals[stage] = 0
}

// Time измеряет время выполнения fn и добавляет его к итогу этапа.
// Время учитывается и при ошибке fn.
func (t *StageTimer) Time(stage entity.Stage, fn func() error) error {
	start := t.now()
	err := fn()
	t.Add(stage, t.now().Sub(start))
	return err
}

// Measure — вариант Time для функций, возвращающих значение.
func Measure[T any](t *StageTimer, stage entity.Stage, fn func() (T, error)) (T, error) {
	var out T
	err := t.Time(stage, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

// Add добавляет готовое измерение к этапу.
func (t *StageTimer) Add(stage entity.Stage, d time.Duration) {
	t.register(stage)
	t.totals[stage] += d
	t.samples[stage] = append(t.samples[stage], d)
}

// FrameDone отмечает полностью обработанный кадр.
func (t *StageTimer) FrameDone() {
	t.frames++
}

// Frames возвращает число обработанных кадров.
func (t *StageTimer) Frames() int {
	return t.frames
}

// Total возвращает накопленную длительность этапа.
func (t *StageTimer) Total(stage entity.Stage) time.Duration {
	return t.totals[stage]
}

// Samples возвращает копию покадровых измерений этапа.
func (t *StageTimer) Samples(stage entity.Stage) []time.Duration {
	return append([]time.Duration(nil), t.samples[stage]...)
}

// Stages возвращает этапы в порядке регистрации.
func (t *StageTimer) Stages() []entity.Stage {
	return append([]entity.Stage(nil), t.order...)
}

// Throughput = кадры / суммарная длительность этапа (кадров в секунду).
func (t *StageTimer) Throughput(stage entity.Stage) (float64, error) {
	return throughput(t.frames, t.totals[stage], string(stage))
}

// CombinedThroughput считает пропускную способность по сумме длительностей
// всех измеряемых этапов, а не по настенному времени прогона.
func (t *StageTimer) CombinedThroughput() (float64, error) {
	var sum time.Duration
	for _, s := range t.order {
		sum += t.totals[s]
	}
	return throughput(t.frames, sum, "combined")
}

func throughput(frames int, total time.Duration, name string) (float64, error) {
	if total <= 0 {
		return 0, fmt.Errorf("%s: %w", name, entity.ErrZeroDuration)
	}
	return float64(frames) / total.Seconds(), nil
}

// Stats собирает статистику по каждому этапу.
func (t *StageTimer) Stats() []entity.StageStats {
	out := make([]entity.StageStats, 0, len(t.order))
	for _, s := range t.order {
		st := entity.StageStats{
			Stage:  s,
			Frames: t.frames,
			Total:  t.totals[s],
		}
		if tp, err := t.Throughput(s); err == nil {
			st.Throughput = tp
			st.Valid = true
		}

		if samples := t.samples[s]; len(samples) > 0 {
			xs := make([]float64, len(samples))
			for i, d := range samples {
				xs[i] = float64(d)
			}
			sort.Float64s(xs)
			mean, std := stat.MeanStdDev(xs, nil)
			if len(xs) < 2 {
				std = 0
			}
			st.Mean = time.Duration(mean)
			st.StdDev = time.Duration(std)
			st.P50 = time.Duration(stat.Quantile(0.5, stat.Empirical, xs, nil))
			st.P95 = time.Duration(stat.Quantile(0.95, stat.Empirical, xs, nil))
		}
		out = append(out, st)
	}
	return out
}
