package port

import (
	"context"
	"time"

	"grid-annotator/internal/domain/entity"
)

// RunRepository интерфейс хранилища истории прогонов
type RunRepository interface {
	// Save сохраняет итог прогона (перезаписывает по ID)
	Save(ctx context.Context, run *entity.RunSummary) error

	// Get возвращает прогон по ID
	Get(ctx context.Context, id string) (*entity.RunSummary, error)

	// List возвращает последние прогоны, новые первыми
	List(ctx context.Context, limit int) ([]*entity.RunSummary, error)
}

// RunNotifier отправляет отчёт о прогоне
type RunNotifier interface {
	Notify(ctx context.Context, run *entity.RunSummary, preview []byte) error
}

// LatencyChart рисует график задержек этапов по кадрам
type LatencyChart interface {
	Render(path string, samples map[entity.Stage][]time.Duration) error
}
