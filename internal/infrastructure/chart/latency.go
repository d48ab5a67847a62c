package chart

import (
	"errors"
	"fmt"
	"image/color"
	"slices"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"grid-annotator/internal/domain/entity"
	"grid-annotator/internal/domain/port"
)

var stageColors = map[entity.Stage]color.RGBA{
	entity.StageColorConversion: {R: 31, G: 119, B: 180, A: 255},
	entity.StageMasking:         {R: 255, G: 127, B: 14, A: 255},
	entity.StageDetection:       {R: 44, G: 160, B: 44, A: 255},
}

var fallbackColor = color.RGBA{R: 127, G: 127, B: 127, A: 255}

// LatencyChart рисует покадровую задержку этапов в миллисекундах.
// Формат файла определяется расширением пути (png, svg, pdf).
type LatencyChart struct {
	Width  vg.Length
	Height vg.Length
}

// NewLatencyChart создаёт график размером 10×4 дюйма.
func NewLatencyChart() *LatencyChart {
	return &LatencyChart{Width: 10 * vg.Inch, Height: 4 * vg.Inch}
}

// Render сохраняет график в path.
func (c *LatencyChart) Render(path string, samples map[entity.Stage][]time.Duration) error {
	stages := orderedStages(samples)
	if len(stages) == 0 {
		return errors.New("no latency samples")
	}

	p := plot.New()
	p.Title.Text = "Stage latency per frame"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Latency (ms)"

	for _, stage := range stages {
		pts := make(plotter.XYs, len(samples[stage]))
		for i, d := range samples[stage] {
			pts[i] = plotter.XY{X: float64(i + 1), Y: float64(d) / float64(time.Millisecond)}
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("stage %s: %w", stage, err)
		}
		line.Color = fallbackColor
		if col, ok := stageColors[stage]; ok {
			line.Color = col
		}
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(stage.Label(), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(c.Width, c.Height, path); err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	return nil
}

// orderedStages возвращает непустые этапы: сначала известные в порядке конвейера, затем прочие по имени.
func orderedStages(samples map[entity.Stage][]time.Duration) []entity.Stage {
	known := []entity.Stage{entity.StageColorConversion, entity.StageMasking, entity.StageDetection}
	var out, rest []entity.Stage
	for _, s := range known {
		if len(samples[s]) > 0 {
			out = append(out, s)
		}
	}
	for s, v := range samples {
		if len(v) > 0 && !slices.Contains(known, s) {
			rest = append(rest, s)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

var _ port.LatencyChart = (*LatencyChart)(nil)
