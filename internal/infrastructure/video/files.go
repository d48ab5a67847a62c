package video

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"grid-annotator/internal/domain/entity"
	"grid-annotator/internal/domain/port"
)

// FourCCMJPEG — единственный кодек, который умеет писать FilesBackend.
const FourCCMJPEG = "MJPG"

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// FilesBackend работает без OpenCV: читает каталог кадров,
// пишет поток MJPEG (склеенные JPEG-кадры).
type FilesBackend struct {
	FPS         float64 // частота кадров каталога
	JPEGQuality int
}

// NewFilesBackend создаёт файловый бэкенд.
func NewFilesBackend(fps float64) *FilesBackend {
	return &FilesBackend{FPS: fps, JPEGQuality: 90}
}

// OpenSource открывает каталог с кадрами (PNG/JPEG), упорядоченными по имени.
func (b *FilesBackend) OpenSource(path string) (port.FrameSource, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir %s: %v", entity.ErrStreamIO, path, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no frames in %s", entity.ErrStreamIO, path)
	}
	sort.Strings(files)

	first, err := decodeFile(files[0])
	if err != nil {
		return nil, err
	}
	return &dirSource{
		files: files,
		first: first,
		props: entity.VideoProperties{
			Width:  first.Bounds().Dx(),
			Height: first.Bounds().Dy(),
			FPS:    b.FPS,
		},
	}, nil
}

// OpenSink создаёт файл потока MJPEG.
func (b *FilesBackend) OpenSink(path string, params entity.SinkParams) (port.FrameSink, error) {
	if params.FourCC != FourCCMJPEG {
		return nil, fmt.Errorf("%w: unsupported codec %q", entity.ErrStreamIO, params.FourCC)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", entity.ErrStreamIO, path, err)
	}
	return NewMJPEGSink(f, params, b.JPEGQuality), nil
}

type dirSource struct {
	files []string
	next  int
	first *image.RGBA
	props entity.VideoProperties
}

func (s *dirSource) Properties() entity.VideoProperties {
	return s.props
}

func (s *dirSource) Read(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.files) {
		return nil, io.EOF
	}

	var (
		img *image.RGBA
		err error
	)
	if s.next == 0 && s.first != nil {
		img, s.first = s.first, nil
	} else {
		img, err = decodeFile(s.files[s.next])
		if err != nil {
			return nil, err
		}
	}
	s.next++

	if img.Bounds().Dx() != s.props.Width || img.Bounds().Dy() != s.props.Height {
		return nil, fmt.Errorf("%w: %s is %dx%d, stream is %dx%d", entity.ErrInvalidFrame,
			s.files[s.next-1], img.Bounds().Dx(), img.Bounds().Dy(), s.props.Width, s.props.Height)
	}
	return img, nil
}

func (s *dirSource) Close() error {
	s.first = nil
	s.next = len(s.files)
	return nil
}

func decodeFile(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", entity.ErrStreamIO, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", entity.ErrStreamIO, path, err)
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}

// MJPEGSink пишет кадры как последовательность JPEG в один поток.
type MJPEGSink struct {
	w       io.WriteCloser
	buf     *bufio.Writer
	params  entity.SinkParams
	quality int
}

// NewMJPEGSink оборачивает w в приёмник MJPEG.
func NewMJPEGSink(w io.WriteCloser, params entity.SinkParams, quality int) *MJPEGSink {
	return &MJPEGSink{
		w:       w,
		buf:     bufio.NewWriter(w),
		params:  params,
		quality: quality,
	}
}

func (s *MJPEGSink) Write(ctx context.Context, frame *image.RGBA) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := frame.Bounds()
	if b.Dx() != s.params.Width || b.Dy() != s.params.Height {
		return fmt.Errorf("%w: frame %dx%d, stream %dx%d",
			entity.ErrDimensionMismatch, b.Dx(), b.Dy(), s.params.Width, s.params.Height)
	}
	if err := jpeg.Encode(s.buf, frame, &jpeg.Options{Quality: s.quality}); err != nil {
		return fmt.Errorf("%w: encode frame: %v", entity.ErrStreamIO, err)
	}
	return nil
}

func (s *MJPEGSink) Close() error {
	return errors.Join(s.buf.Flush(), s.w.Close())
}

// Проверка реализации интерфейса
var _ port.VideoBackend = (*FilesBackend)(nil)
