package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grid-annotator/internal/domain/entity"
	"grid-annotator/internal/domain/port"
)

func sampleRun(id string, started time.Time) *entity.RunSummary {
	return &entity.RunSummary{
		ID:                id,
		Input:             "in.avi",
		Output:            "out.avi",
		StartedAt:         started,
		FinishedAt:        started.Add(3 * time.Second),
		Frames:            90,
		AnnotatedFrames:   80,
		DetectionFailures: 2,
		Stages: []entity.StageStats{
			{Stage: entity.StageColorConversion, Frames: 90, Total: 218 * time.Millisecond, Mean: 2 * time.Millisecond, P50: 2 * time.Millisecond, P95: 3 * time.Millisecond, Throughput: 412.8, Valid: true},
			{Stage: entity.StageDetection, Frames: 90},
		},
		CombinedThroughput: 37.2,
		CombinedValid:      true,
	}
}

func repositories(t *testing.T) map[string]port.RunRepository {
	t.Helper()
	sqlite, err := NewSQLiteRunRepository(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]port.RunRepository{
		"memory": NewMemoryRunRepository(),
		"sqlite": sqlite,
	}
}

func TestRunRepository_SaveAndGet(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			run := sampleRun("a", started)

			require.NoError(t, repo.Save(ctx, run))

			got, err := repo.Get(ctx, "a")
			require.NoError(t, err)
			require.Equal(t, run.Frames, got.Frames)
			require.Equal(t, run.AnnotatedFrames, got.AnnotatedFrames)
			require.Equal(t, run.DetectionFailures, got.DetectionFailures)
			require.True(t, run.StartedAt.Equal(got.StartedAt))
			require.Equal(t, 3*time.Second, got.Duration())
			require.Equal(t, run.Stages, got.Stages)
			require.InDelta(t, 37.2, got.CombinedThroughput, 1e-9)
			require.True(t, got.Succeeded())
		})
	}
}

func TestRunRepository_GetMissing(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Get(context.Background(), "missing")
			require.ErrorIs(t, err, entity.ErrRunNotFound)
		})
	}
}

func TestRunRepository_SaveOverwrites(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := sampleRun("a", time.Unix(100, 0))
			require.NoError(t, repo.Save(ctx, run))

			run.Err = "write frame 3: disk full"
			run.Stages = run.Stages[:1]
			require.NoError(t, repo.Save(ctx, run))

			got, err := repo.Get(ctx, "a")
			require.NoError(t, err)
			require.False(t, got.Succeeded())
			require.Len(t, got.Stages, 1)

			all, err := repo.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 1)
		})
	}
}

func TestRunRepository_ListNewestFirst(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, id := range []string{"first", "second", "third"} {
				require.NoError(t, repo.Save(ctx, sampleRun(id, time.Unix(int64(100+i), 0))))
			}

			got, err := repo.List(ctx, 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			require.Equal(t, "third", got[0].ID)
			require.Equal(t, "second", got[1].ID)

			all, err := repo.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
		})
	}
}

func TestMemoryRunRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRunRepository()
	ctx := context.Background()
	run := sampleRun("a", time.Unix(0, 0))
	require.NoError(t, repo.Save(ctx, run))

	run.Frames = 1
	run.Stages[0].Throughput = 0

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 90, got.Frames)
	require.InDelta(t, 412.8, got.Stages[0].Throughput, 1e-9)
}
