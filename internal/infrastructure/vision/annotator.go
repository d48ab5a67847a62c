package vision

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/sirupsen/logrus"

	"grid-annotator/internal/domain/entity"
)

// DefaultPalette — цвета слотов линий (RGB), индекс = номер слота.
var DefaultPalette = []color.RGBA{
	{R: 0, G: 80, B: 255, A: 255},
	{R: 0, G: 200, B: 255, A: 255},
	{R: 0, G: 255, B: 0, A: 255},
	{R: 255, G: 255, B: 0, A: 255},
	{R: 255, G: 150, B: 0, A: 255},
}

// Annotator рисует найденную геометрию поверх кадра.
type Annotator struct {
	Palette          []color.RGBA
	PointColor       color.RGBA
	ProjectionLength float64 // половина длины луча, px
	StrokeWidth      float64
	PointRadius      float64
	Log              logrus.FieldLogger
}

// NewAnnotator создаёт аннотатор с палитрой по умолчанию.
func NewAnnotator() *Annotator {
	return &Annotator{
		Palette:          DefaultPalette,
		PointColor:       color.RGBA{R: 255, A: 255},
		ProjectionLength: 410,
		StrokeWidth:      2,
		PointRadius:      3,
		Log:              logrus.StandardLogger(),
	}
}

// LineEndpoints возвращает концы луча: центр линии и точку на расстоянии
// 2·L вдоль направления линии.
func (a *Annotator) LineEndpoints(seg entity.LineSegment) (image.Point, image.Point) {
	length := 2 * a.ProjectionLength
	p2 := image.Pt(
		seg.Center.X+int(math.Round(length*math.Cos(seg.Angle))),
		seg.Center.Y+int(math.Round(length*math.Sin(seg.Angle))),
	)
	return seg.Center, p2
}

// Annotate рисует непустые слоты на кадре (кадр меняется на месте).
// Возвращает число нарисованных примитивов. Слоты за пределами палитры пропускаются.
func (a *Annotator) Annotate(frame *image.RGBA, det entity.Detection) (int, error) {
	if frame == nil {
		return 0, fmt.Errorf("annotate: %w: nil frame", entity.ErrInvalidFrame)
	}

	drawn := 0
	for i, line := range det.Lines {
		if line == nil {
			continue
		}
		if i >= len(a.Palette) {
			if a.Log != nil {
				a.Log.WithField("slot", i).Debug("line slot has no palette color, skipped")
			}
			continue
		}
		p1, p2 := a.LineEndpoints(*line)
		strokeLine(frame, p1, p2, a.StrokeWidth, a.Palette[i])
		drawn++
	}

	for _, p := range det.Points {
		if p == nil {
			continue
		}
		fillCircle(frame, p.Pixel(), a.PointRadius, a.PointColor)
		drawn++
	}
	return drawn, nil
}
