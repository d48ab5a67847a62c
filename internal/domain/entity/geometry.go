package entity

import (
	"image"
	"math"
)

// Point — найденная точка сетки (субпиксельные координаты).
type Point struct {
	X float64
	Y float64
}

// Pixel округляет координаты точки до ближайшего пикселя.
func (p Point) Pixel() image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// LineSegment — найденная линия сетки.
type LineSegment struct {
	Center image.Point // центр линии
	Angle  float64     // направление в радианах
	Width  float64     // ширина линии в пикселях
}

// Detection — результат детектора: фиксированные слоты линий и список точек.
// Пустой слот обозначается nil.
type Detection struct {
	Lines  []*LineSegment
	Points []*Point
}

// Empty сообщает, что ни один слот не заполнен.
func (d Detection) Empty() bool {
	return d.Drawn() == 0
}

// Drawn возвращает количество заполненных слотов (линий и точек).
func (d Detection) Drawn() int {
	n := 0
	for _, l := range d.Lines {
		if l != nil {
			n++
		}
	}
	for _, p := range d.Points {
		if p != nil {
			n++
		}
	}
	return n
}
