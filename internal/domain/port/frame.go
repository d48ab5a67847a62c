package port

import (
	"image"

	"grid-annotator/internal/domain/entity"
)

// Segmenter строит бинарную маску красного цвета.
type Segmenter interface {
	ConvertHSV(frame *image.RGBA) (*entity.HSVImage, error)
	Threshold(hsv *entity.HSVImage) *image.Gray
}

// Annotator рисует геометрию на кадре и возвращает число примитивов.
type Annotator interface {
	Annotate(frame *image.RGBA, det entity.Detection) (int, error)
}

// Compositor собирает выходной кадр двойной ширины.
type Compositor interface {
	Compose(frame *image.RGBA, mask *image.Gray, counter int) (*image.RGBA, error)
}
