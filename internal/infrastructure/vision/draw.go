package vision

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

// fpoint — точка в координатах растеризатора (относительно Min кадра).
type fpoint struct {
	x, y float64
}

// strokeLine рисует сглаженный отрезок заданной толщины.
// Отрезок предварительно обрезается по границам кадра.
func strokeLine(dst *image.RGBA, p1, p2 image.Point, width float64, c color.RGBA) bool {
	b := dst.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	// центр пикселя (x, y) лежит в (x+0.5, y+0.5)
	a := fpoint{float64(p1.X-b.Min.X) + 0.5, float64(p1.Y-b.Min.Y) + 0.5}
	e := fpoint{float64(p2.X-b.Min.X) + 0.5, float64(p2.Y-b.Min.Y) + 0.5}

	a, e, ok := clipSegment(a, e, w, h)
	if !ok {
		return false
	}
	dx, dy := e.x-a.x, e.y-a.y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return false
	}
	nx, ny := -dy/length*width/2, dx/length*width/2

	fill(dst, []fpoint{
		{a.x + nx, a.y + ny},
		{e.x + nx, e.y + ny},
		{e.x - nx, e.y - ny},
		{a.x - nx, a.y - ny},
	}, c)
	return true
}

// fillCircle рисует сглаженный закрашенный круг.
func fillCircle(dst *image.RGBA, center image.Point, radius float64, c color.RGBA) bool {
	b := dst.Bounds()
	cx, cy := float64(center.X-b.Min.X)+0.5, float64(center.Y-b.Min.Y)+0.5
	if cx+radius < 0 || cy+radius < 0 || cx-radius > float64(b.Dx()) || cy-radius > float64(b.Dy()) {
		return false
	}

	const segments = 32
	poly := make([]fpoint, segments)
	for i := range poly {
		a := 2 * math.Pi * float64(i) / segments
		poly[i] = fpoint{cx + radius*math.Cos(a), cy + radius*math.Sin(a)}
	}
	fill(dst, poly, c)
	return true
}

// fill растеризует выпуклый многоугольник поверх dst.
// Растеризатор покрывает только рамку многоугольника, а не весь кадр.
func fill(dst *image.RGBA, poly []fpoint, c color.RGBA) {
	b := dst.Bounds()
	box := polyBounds(poly, b.Dx(), b.Dy())
	if box.Empty() {
		return
	}

	z := vector.NewRasterizer(box.Dx(), box.Dy())
	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	for i, p := range poly {
		x := float32(clamp(p.x, 0, float64(b.Dx())) - ox)
		y := float32(clamp(p.y, 0, float64(b.Dy())) - oy)
		if i == 0 {
			z.MoveTo(x, y)
			continue
		}
		z.LineTo(x, y)
	}
	z.ClosePath()
	z.Draw(dst, box.Add(b.Min), image.NewUniform(c), image.Point{})
}

// polyBounds возвращает целочисленную рамку многоугольника внутри [0,w]x[0,h].
func polyBounds(poly []fpoint, w, h int) image.Rectangle {
	if len(poly) == 0 {
		return image.Rectangle{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range poly {
		minX, maxX = math.Min(minX, p.x), math.Max(maxX, p.x)
		minY, maxY = math.Min(minY, p.y), math.Max(maxY, p.y)
	}
	return image.Rect(
		int(math.Floor(clamp(minX, 0, float64(w)))),
		int(math.Floor(clamp(minY, 0, float64(h)))),
		int(math.Ceil(clamp(maxX, 0, float64(w)))),
		int(math.Ceil(clamp(maxY, 0, float64(h)))),
	)
}

// clipSegment обрезает отрезок по прямоугольнику [0,w]x[0,h] (Лианг-Барски).
func clipSegment(a, b fpoint, w, h float64) (fpoint, fpoint, bool) {
	t0, t1 := 0.0, 1.0
	dx, dy := b.x-a.x, b.y-a.y

	edges := [4][2]float64{
		{-dx, a.x},
		{dx, w - a.x},
		{-dy, a.y},
		{dy, h - a.y},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return a, b, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return a, b, false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return a, b, false
			}
			if r < t1 {
				t1 = r
			}
		}
	}

	return fpoint{a.x + t0*dx, a.y + t0*dy}, fpoint{a.x + t1*dx, a.y + t1*dy}, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
