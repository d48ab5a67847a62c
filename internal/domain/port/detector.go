package port

import (
	"context"
	"image"

	"grid-annotator/internal/domain/entity"
)

// GeometryDetector интерфейс внешнего детектора сетки
type GeometryDetector interface {
	// Detect ищет линии и угловые точки на бинарной маске.
	// Ошибка означает «нет детекции для этого кадра».
	Detect(ctx context.Context, mask *image.Gray) (entity.Detection, error)
}
