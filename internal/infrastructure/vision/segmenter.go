package vision

import (
	"fmt"
	"image"

	"grid-annotator/internal/domain/entity"
)

// HueRange — включающий диапазон в пространстве HSV.
type HueRange struct {
	HueMin, HueMax uint8
	SatMin, SatMax uint8
	ValMin, ValMax uint8
}

func (r HueRange) contains(h, s, v uint8) bool {
	return h >= r.HueMin && h <= r.HueMax &&
		s >= r.SatMin && s <= r.SatMax &&
		v >= r.ValMin && v <= r.ValMax
}

// RedRanges — красный лежит на обоих концах круга оттенков,
// поэтому маска строится как объединение двух диапазонов.
var RedRanges = []HueRange{
	{HueMin: 0, HueMax: 10, SatMin: 30, SatMax: 255, ValMin: 0, ValMax: 255},
	{HueMin: 170, HueMax: 180, SatMin: 30, SatMax: 255, ValMin: 0, ValMax: 255},
}

// ColorSegmenter строит бинарную маску пикселей заданного оттенка.
type ColorSegmenter struct {
	Ranges []HueRange
}

// NewColorSegmenter создаёт сегментатор красного цвета.
func NewColorSegmenter() *ColorSegmenter {
	return &ColorSegmenter{Ranges: RedRanges}
}

// Segment переводит кадр в HSV и строит маску.
func (s *ColorSegmenter) Segment(frame *image.RGBA) (*image.Gray, error) {
	hsv, err := s.ConvertHSV(frame)
	if err != nil {
		return nil, err
	}
	return s.Threshold(hsv), nil
}

// ConvertHSV переводит RGB-кадр в HSV.
func (s *ColorSegmenter) ConvertHSV(frame *image.RGBA) (*entity.HSVImage, error) {
	if err := checkFrame(frame); err != nil {
		return nil, err
	}

	b := frame.Bounds()
	out := entity.NewHSVImage(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := frame.PixOffset(b.Min.X, y)
		dst := out.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			h, sat, v := rgbToHSV(frame.Pix[src], frame.Pix[src+1], frame.Pix[src+2])
			out.Pix[dst], out.Pix[dst+1], out.Pix[dst+2] = h, sat, v
			src += 4
			dst += 3
		}
	}
	return out, nil
}

func checkFrame(frame *image.RGBA) error {
	if frame == nil {
		return fmt.Errorf("convert hsv: %w: nil frame", entity.ErrInvalidFrame)
	}
	b := frame.Bounds()
	if b.Empty() || len(frame.Pix) < frame.PixOffset(b.Max.X-1, b.Max.Y-1)+4 {
		return fmt.Errorf("convert hsv: %w: bounds %v", entity.ErrInvalidFrame, b)
	}
	return nil
}

// Threshold отмечает (255) пиксели, попавшие хотя бы в один диапазон.
// Морфология и сглаживание не применяются.
func (s *ColorSegmenter) Threshold(hsv *entity.HSVImage) *image.Gray {
	mask := image.NewGray(hsv.Rect)
	for y := hsv.Rect.Min.Y; y < hsv.Rect.Max.Y; y++ {
		i := hsv.PixOffset(hsv.Rect.Min.X, y)
		j := mask.PixOffset(hsv.Rect.Min.X, y)
		for x := hsv.Rect.Min.X; x < hsv.Rect.Max.X; x++ {
			h, sat, v := hsv.Pix[i], hsv.Pix[i+1], hsv.Pix[i+2]
			for _, r := range s.Ranges {
				if r.contains(h, sat, v) {
					mask.Pix[j] = 255
					break
				}
			}
			i += 3
			j++
		}
	}
	return mask
}

// rgbToHSV повторяет 8-битное преобразование OpenCV (COLOR_RGB2HSV).
func rgbToHSV(r, g, b uint8) (h, s, v uint8) {
	hi, lo := r, r
	if g > hi {
		hi = g
	}
	if b > hi {
		hi = b
	}
	if g < lo {
		lo = g
	}
	if b < lo {
		lo = b
	}

	v = hi
	diff := float64(hi) - float64(lo)
	if hi == 0 || diff == 0 {
		return 0, 0, v
	}
	s = uint8(255*diff/float64(hi) + 0.5)

	var hue float64
	switch hi {
	case r:
		hue = 60 * (float64(g) - float64(b)) / diff
	case g:
		hue = 120 + 60*(float64(b)-float64(r))/diff
	default:
		hue = 240 + 60*(float64(r)-float64(g))/diff
	}
	if hue < 0 {
		hue += 360
	}
	return uint8(hue/2 + 0.5), s, v
}
