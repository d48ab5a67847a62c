package port

import (
	"context"
	"image"

	"grid-annotator/internal/domain/entity"
)

// FrameSource последовательно отдаёт кадры исходного видео
type FrameSource interface {
	// Properties возвращает размеры и частоту кадров источника
	Properties() entity.VideoProperties

	// Read возвращает следующий кадр или io.EOF, когда поток исчерпан
	Read(ctx context.Context) (*image.RGBA, error)

	Close() error
}

// FrameSink дописывает кадры в выходное видео
type FrameSink interface {
	Write(ctx context.Context, frame *image.RGBA) error
	Close() error
}

// VideoBackend открывает источник и приёмник видео
type VideoBackend interface {
	OpenSource(path string) (FrameSource, error)
	OpenSink(path string, params entity.SinkParams) (FrameSink, error)
}
