package storage

import (
	"context"
	"slices"
	"sync"

	"grid-annotator/internal/domain/entity"
	"grid-annotator/internal/domain/port"
)

// MemoryRunRepository in-memory хранилище истории прогонов
type MemoryRunRepository struct {
	mu    sync.RWMutex
	runs  map[string]*entity.RunSummary
	order []string // порядок первого сохранения
}

// NewMemoryRunRepository создаёт новое in-memory хранилище
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{
		runs: make(map[string]*entity.RunSummary),
	}
}

// Get возвращает копию прогона по ID
func (r *MemoryRunRepository) Get(ctx context.Context, id string) (*entity.RunSummary, error) {
	r.mu.RLock()
	run, exists := r.runs[id]
	r.mu.RUnlock()

	if !exists {
		return nil, entity.ErrRunNotFound
	}
	return cloneRun(run), nil
}

// Save сохраняет копию прогона, повторное сохранение перезаписывает
func (r *MemoryRunRepository) Save(ctx context.Context, run *entity.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; !exists {
		r.order = append(r.order, run.ID)
	}
	r.runs[run.ID] = cloneRun(run)
	return nil
}

// List возвращает последние limit прогонов, новые первыми. limit <= 0 — все.
func (r *MemoryRunRepository) List(ctx context.Context, limit int) ([]*entity.RunSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.RunSummary, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, cloneRun(r.runs[r.order[i]]))
	}
	return out, nil
}

func cloneRun(run *entity.RunSummary) *entity.RunSummary {
	c := *run
	c.Stages = slices.Clone(run.Stages)
	return &c
}

// Проверка реализации интерфейса
var _ port.RunRepository = (*MemoryRunRepository)(nil)
