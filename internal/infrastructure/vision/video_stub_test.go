//go:build !gocv

package vision

import (
	"testing"

	"github.com/stretchr/testify/require"

	"grid-annotator/internal/domain/entity"
)

func TestGoCVBackendStub(t *testing.T) {
	b := NewGoCVBackend()

	_, err := b.OpenSource("in.mp4")
	require.ErrorIs(t, err, entity.ErrStreamIO)

	_, err = b.OpenSink("out.avi", entity.SinkParams{Width: 2, Height: 1, FPS: 30, FourCC: "MJPG"})
	require.ErrorIs(t, err, entity.ErrStreamIO)
}

func TestCVSegmenterStub(t *testing.T) {
	_, err := NewCVSegmenter()
	require.ErrorIs(t, err, errGoCVDisabled)
}
