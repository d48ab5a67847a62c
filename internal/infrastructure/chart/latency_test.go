package chart

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grid-annotator/internal/domain/entity"
)

func TestLatencyChart_RenderPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latency.png")
	samples := map[entity.Stage][]time.Duration{
		entity.StageColorConversion: {2 * time.Millisecond, 3 * time.Millisecond, 2 * time.Millisecond},
		entity.StageMasking:         {time.Millisecond, time.Millisecond, time.Millisecond},
		entity.StageDetection:       {40 * time.Millisecond, 35 * time.Millisecond, 38 * time.Millisecond},
	}

	require.NoError(t, NewLatencyChart().Render(path, samples))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestLatencyChart_NoSamples(t *testing.T) {
	err := NewLatencyChart().Render(filepath.Join(t.TempDir(), "x.png"), map[entity.Stage][]time.Duration{
		entity.StageDetection: nil,
	})
	require.Error(t, err)
}

func TestOrderedStages(t *testing.T) {
	got := orderedStages(map[entity.Stage][]time.Duration{
		"zeta":                {1},
		entity.StageDetection: {1},
		"alpha":               {1},
		entity.StageMasking:   {1},
		"empty":               nil,
	})
	require.Equal(t, []entity.Stage{entity.StageMasking, entity.StageDetection, "alpha", "zeta"}, got)
}
