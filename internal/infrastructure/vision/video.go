//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"

	"gocv.io/x/gocv"

	"grid-annotator/internal/domain/entity"
	"grid-annotator/internal/domain/port"
)

// GoCVBackend открывает видеофайлы через OpenCV.
type GoCVBackend struct{}

// NewGoCVBackend создаёт видеобэкенд на OpenCV.
func NewGoCVBackend() *GoCVBackend {
	return &GoCVBackend{}
}

// OpenSource открывает видеофайл для последовательного чтения.
func (b *GoCVBackend) OpenSource(path string) (port.FrameSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", entity.ErrStreamIO, path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: open %s: capture is not opened", entity.ErrStreamIO, path)
	}

	return &gocvSource{
		capture: capture,
		props: entity.VideoProperties{
			Width:  int(capture.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(capture.Get(gocv.VideoCaptureFrameHeight)),
			FPS:    capture.Get(gocv.VideoCaptureFPS),
		},
		mat: gocv.NewMat(),
	}, nil
}

// OpenSink открывает выходной видеофайл с фиксированными параметрами.
func (b *GoCVBackend) OpenSink(path string, params entity.SinkParams) (port.FrameSink, error) {
	writer, err := gocv.VideoWriterFile(path, params.FourCC, params.FPS, params.Width, params.Height, true)
	if err != nil {
		return nil, fmt.Errorf("%w: open writer %s: %v", entity.ErrStreamIO, path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("%w: open writer %s: writer is not opened", entity.ErrStreamIO, path)
	}
	return &gocvSink{writer: writer, params: params}, nil
}

type gocvSource struct {
	capture *gocv.VideoCapture
	props   entity.VideoProperties
	mat     gocv.Mat
}

func (s *gocvSource) Properties() entity.VideoProperties {
	return s.props
}

// Read читает следующий кадр. OpenCV отдаёт BGR, ToImage переводит его в RGBA.
func (s *gocvSource) Read(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, io.EOF
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: convert frame: %v", entity.ErrStreamIO, err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, nil
}

func (s *gocvSource) Close() error {
	err := s.mat.Close()
	return errors.Join(err, s.capture.Close())
}

type gocvSink struct {
	writer *gocv.VideoWriter
	params entity.SinkParams
}

// Write дописывает кадр. ImageToMatRGB возвращает Mat в порядке BGR.
func (s *gocvSink) Write(ctx context.Context, frame *image.RGBA) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := frame.Bounds()
	if b.Dx() != s.params.Width || b.Dy() != s.params.Height {
		return fmt.Errorf("%w: frame %dx%d, writer %dx%d",
			entity.ErrDimensionMismatch, b.Dx(), b.Dy(), s.params.Width, s.params.Height)
	}

	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return fmt.Errorf("%w: convert frame: %v", entity.ErrStreamIO, err)
	}
	defer mat.Close()

	if err := s.writer.Write(mat); err != nil {
		return fmt.Errorf("%w: write frame: %v", entity.ErrStreamIO, err)
	}
	return nil
}

func (s *gocvSink) Close() error {
	return s.writer.Close()
}

// Проверка реализации интерфейса
var _ port.VideoBackend = (*GoCVBackend)(nil)
