//go:build gocv
// +build gocv

package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"grid-annotator/internal/domain/entity"
)

// CVSegmenter переводит кадр в HSV через OpenCV. Порог тот же, что у ColorSegmenter.
type CVSegmenter struct {
	*ColorSegmenter
}

// NewCVSegmenter создаёт сегментатор красного цвета на OpenCV.
func NewCVSegmenter() (*CVSegmenter, error) {
	return &CVSegmenter{ColorSegmenter: NewColorSegmenter()}, nil
}

// ConvertHSV переводит кадр в HSV одним вызовом CvtColor и копирует байты матрицы.
func (s *CVSegmenter) ConvertHSV(frame *image.RGBA) (*entity.HSVImage, error) {
	if err := checkFrame(frame); err != nil {
		return nil, err
	}

	// ImageToMatRGB раскладывает каналы в порядке BGR
	bgr, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("convert hsv: %w: %v", entity.ErrInvalidFrame, err)
	}
	defer bgr.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	b := frame.Bounds()
	return &entity.HSVImage{
		Pix:    hsv.ToBytes(),
		Stride: 3 * b.Dx(),
		Rect:   b,
	}, nil
}

// Segment переводит кадр в HSV через OpenCV и строит маску.
func (s *CVSegmenter) Segment(frame *image.RGBA) (*image.Gray, error) {
	hsv, err := s.ConvertHSV(frame)
	if err != nil {
		return nil, err
	}
	return s.Threshold(hsv), nil
}
