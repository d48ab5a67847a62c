package vision

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"grid-annotator/internal/domain/entity"
)

// Compositor склеивает размеченный кадр и визуализацию маски.
type Compositor struct {
	TextColor color.RGBA
	Margin    int // отступ номера кадра от левого и нижнего края
	face      font.Face
}

// NewCompositor создаёт компоновщик со шрифтом Go Regular.
func NewCompositor() (*Compositor, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    24,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}

	return &Compositor{
		TextColor: color.RGBA{R: 0, G: 100, B: 255, A: 255},
		Margin:    16,
		face:      face,
	}, nil
}

// Compose возвращает кадр шириной 2·W: слева размеченный кадр,
// справа маска с номером кадра.
func (c *Compositor) Compose(frame *image.RGBA, mask *image.Gray, counter int) (*image.RGBA, error) {
	if frame == nil || mask == nil {
		return nil, fmt.Errorf("compose: %w: nil input", entity.ErrInvalidFrame)
	}
	fb, mb := frame.Bounds(), mask.Bounds()
	if fb.Dx() != mb.Dx() || fb.Dy() != mb.Dy() {
		return nil, fmt.Errorf("compose: %w: frame %dx%d, mask %dx%d",
			entity.ErrDimensionMismatch, fb.Dx(), fb.Dy(), mb.Dx(), mb.Dy())
	}

	viz := MaskToRGBA(mask)
	c.stamp(viz, strconv.Itoa(counter))

	w, h := fb.Dx(), fb.Dy()
	out := image.NewRGBA(image.Rect(0, 0, 2*w, h))
	draw.Draw(out, image.Rect(0, 0, w, h), frame, fb.Min, draw.Src)
	draw.Draw(out, image.Rect(w, 0, 2*w, h), viz, image.Point{}, draw.Src)
	return out, nil
}

// stamp пишет текст у левого нижнего угла изображения.
func (c *Compositor) stamp(dst *image.RGBA, text string) {
	b := dst.Bounds()
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c.TextColor),
		Face: c.face,
		Dot:  fixed.P(b.Min.X+c.Margin, b.Max.Y-c.Margin),
	}
	d.DrawString(text)
}

// MaskToRGBA переводит одноканальную маску в трёхканальное изображение.
func MaskToRGBA(mask *image.Gray) *image.RGBA {
	b := mask.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := mask.PixOffset(b.Min.X, b.Min.Y+y)
		dst := out.PixOffset(0, y)
		for x := 0; x < b.Dx(); x++ {
			v := mask.Pix[src+x]
			out.Pix[dst], out.Pix[dst+1], out.Pix[dst+2], out.Pix[dst+3] = v, v, v, 255
			dst += 4
		}
	}
	return out
}
