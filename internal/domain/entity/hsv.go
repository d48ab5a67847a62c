package entity

import "image"

// HSVImage хранит кадр в 8-битном HSV в кодировке OpenCV:
// H в диапазоне [0,180], S и V в [0,255]. Три байта на пиксель.
type HSVImage struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

// NewHSVImage создаёт пустое HSV-изображение.
func NewHSVImage(r image.Rectangle) *HSVImage {
	return &HSVImage{
		Pix:    make([]uint8, 3*r.Dx()*r.Dy()),
		Stride: 3 * r.Dx(),
		Rect:   r,
	}
}

// At возвращает компоненты H, S, V пикселя.
func (m *HSVImage) At(x, y int) (h, s, v uint8) {
	i := m.PixOffset(x, y)
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// Set записывает компоненты H, S, V пикселя.
func (m *HSVImage) Set(x, y int, h, s, v uint8) {
	i := m.PixOffset(x, y)
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = h, s, v
}

// PixOffset возвращает индекс первого байта пикселя (x, y) в Pix.
func (m *HSVImage) PixOffset(x, y int) int {
	return (y-m.Rect.Min.Y)*m.Stride + (x-m.Rect.Min.X)*3
}
