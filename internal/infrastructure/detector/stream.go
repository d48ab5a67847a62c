package detector

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"

	"grid-annotator/internal/domain/entity"
	"grid-annotator/internal/domain/port"
)

// StreamDetector обменивается кадрами с воркером по паре потоков.
// Запросы строго последовательны: один запрос, один ответ.
type StreamDetector struct {
	mu     sync.Mutex
	w      io.Writer
	r      io.Reader
	seq    uint64
	broken error
}

// NewStreamDetector создаёт детектор поверх потоков воркера.
func NewStreamDetector(w io.Writer, r io.Reader) *StreamDetector {
	return &StreamDetector{w: w, r: r}
}

// Detect отправляет маску и ждёт ответ. Таймаута нет.
// После ошибки ввода-вывода или ответа с номером из будущего поток считается
// рассинхронизированным, и все следующие вызовы сразу возвращают ErrDetectionFailure.
func (d *StreamDetector) Detect(ctx context.Context, mask *image.Gray) (entity.Detection, error) {
	if mask == nil {
		return entity.Detection{}, fmt.Errorf("%w: %w: nil mask", entity.ErrDetectionFailure, entity.ErrInvalidFrame)
	}
	if err := ctx.Err(); err != nil {
		return entity.Detection{}, fmt.Errorf("%w: %w", entity.ErrDetectionFailure, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.broken != nil {
		return entity.Detection{}, fmt.Errorf("%w: worker stream broken: %w", entity.ErrDetectionFailure, d.broken)
	}

	d.seq++
	b := mask.Bounds()
	req := request{
		Seq:    d.seq,
		Width:  b.Dx(),
		Height: b.Dy(),
		Mask:   packMask(mask),
	}
	if err := writeMessage(d.w, req); err != nil {
		d.broken = err
		return entity.Detection{}, fmt.Errorf("%w: send frame %d: %w", entity.ErrDetectionFailure, req.Seq, err)
	}

	resp, err := d.receive(req.Seq)
	if err != nil {
		return entity.Detection{}, err
	}
	if resp.Error != "" {
		return entity.Detection{}, fmt.Errorf("%w: worker: %s", entity.ErrDetectionFailure, resp.Error)
	}
	return resp.detection(), nil
}

// receive читает ответ на запрос seq. Ответы на прошлые запросы
// (повторы или опоздавшие) пропускаются. Ответ из будущего означает,
// что поток рассинхронизирован, и детектор помечается сломанным.
func (d *StreamDetector) receive(seq uint64) (response, error) {
	for {
		var resp response
		streamErr, decodeErr := readMessage(d.r, &resp)
		if streamErr != nil {
			d.broken = streamErr
			return resp, fmt.Errorf("%w: %w", entity.ErrDetectionFailure, streamErr)
		}
		if decodeErr != nil {
			return resp, fmt.Errorf("%w: frame %d: %w", entity.ErrDetectionFailure, seq, decodeErr)
		}
		switch {
		case resp.Seq == seq:
			return resp, nil
		case resp.Seq > seq:
			d.broken = fmt.Errorf("sequence mismatch: sent %d, got %d", seq, resp.Seq)
			return resp, fmt.Errorf("%w: %w", entity.ErrDetectionFailure, d.broken)
		}
	}
}

func (r *response) detection() entity.Detection {
	det := entity.Detection{
		Lines:  make([]*entity.LineSegment, len(r.Lines)),
		Points: make([]*entity.Point, len(r.Points)),
	}
	for i, l := range r.Lines {
		if l == nil {
			continue
		}
		det.Lines[i] = &entity.LineSegment{Center: image.Pt(l.X, l.Y), Angle: l.Angle, Width: l.Width}
	}
	for i, p := range r.Points {
		if p == nil {
			continue
		}
		det.Points[i] = &entity.Point{X: p.X, Y: p.Y}
	}
	return det
}

// packMask возвращает пиксели маски без отступов строк.
func packMask(mask *image.Gray) []byte {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	if mask.Stride == w && b.Min == (image.Point{}) {
		return mask.Pix[:w*h]
	}
	out := make([]byte, 0, w*h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := mask.PixOffset(b.Min.X, y)
		out = append(out, mask.Pix[off:off+w]...)
	}
	return out
}

// Disabled — детектор без воркера: всегда пустая детекция.
type Disabled struct{}

// Detect возвращает пустую детекцию.
func (Disabled) Detect(context.Context, *image.Gray) (entity.Detection, error) {
	return entity.Detection{}, nil
}

var (
	_ port.GeometryDetector = (*StreamDetector)(nil)
	_ port.GeometryDetector = Disabled{}
)
