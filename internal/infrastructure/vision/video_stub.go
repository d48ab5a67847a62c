//go:build !gocv
// +build !gocv

package vision

import (
	"errors"

	"grid-annotator/internal/domain/entity"
	"grid-annotator/internal/domain/port"
)

var errGoCVDisabled = errors.New("gocv build tag is not enabled")

// GoCVBackend заглушка видеобэкенда (сборка без OpenCV).
type GoCVBackend struct{}

// NewGoCVBackend создаёт бэкенд-заглушку.
func NewGoCVBackend() *GoCVBackend {
	return &GoCVBackend{}
}

// OpenSource возвращает ошибку, если сборка без тега gocv.
func (b *GoCVBackend) OpenSource(path string) (port.FrameSource, error) {
	_ = path
	return nil, errors.Join(entity.ErrStreamIO, errGoCVDisabled)
}

// OpenSink возвращает ошибку, если сборка без тега gocv.
func (b *GoCVBackend) OpenSink(path string, params entity.SinkParams) (port.FrameSink, error) {
	_ = path
	_ = params
	return nil, errors.Join(entity.ErrStreamIO, errGoCVDisabled)
}

var _ port.VideoBackend = (*GoCVBackend)(nil)
