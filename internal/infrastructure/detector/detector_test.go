package detector

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"io"
	"os/exec"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"grid-annotator/internal/domain/entity"
)

// startWorker поднимает воркер в горутине. handle возвращает false, чтобы воркер завершился.
func startWorker(t *testing.T, handle func(req request) (response, bool)) *StreamDetector {
	t.Helper()
	return startReplyingWorker(t, func(req request) ([]response, bool) {
		resp, ok := handle(req)
		return []response{resp}, ok
	})
}

// startReplyingWorker позволяет воркеру отвечать на запрос несколькими сообщениями.
// Ответы пишет отдельная горутина, чтобы лишние сообщения не блокировали чтение запросов.
func startReplyingWorker(t *testing.T, handle func(req request) ([]response, bool)) *StreamDetector {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	replies := make(chan response, 16)

	go func() {
		defer respW.Close()
		for resp := range replies {
			if err := writeMessage(respW, resp); err != nil {
				return
			}
		}
	}()
	go func() {
		defer close(replies)
		for {
			var req request
			streamErr, decodeErr := readMessage(reqR, &req)
			if streamErr != nil || decodeErr != nil {
				return
			}
			resps, ok := handle(req)
			if !ok {
				return
			}
			for _, resp := range resps {
				replies <- resp
			}
		}
	}()
	t.Cleanup(func() { _ = reqW.Close() })

	return NewStreamDetector(reqW, respR)
}

func TestStreamDetector_RoundTrip(t *testing.T) {
	var seqs []uint64
	det := startWorker(t, func(req request) (response, bool) {
		seqs = append(seqs, req.Seq)
		if req.Width != 4 || req.Height != 3 || len(req.Mask) != 12 || req.Mask[5] != 255 {
			return response{Seq: req.Seq, Error: "unexpected request"}, true
		}
		return response{
			Seq:    req.Seq,
			Lines:  []*wireLine{{X: 10, Y: 20, Angle: 0.5, Width: 3}, nil},
			Points: []*wirePoint{nil, {X: 1.5, Y: 2.5}},
		}, true
	})

	mask := image.NewGray(image.Rect(0, 0, 4, 3))
	mask.Pix[5] = 255

	for i := 0; i < 2; i++ {
		got, err := det.Detect(context.Background(), mask)
		require.NoError(t, err)
		require.Len(t, got.Lines, 2)
		require.Equal(t, image.Pt(10, 20), got.Lines[0].Center)
		require.InDelta(t, 0.5, got.Lines[0].Angle, 1e-12)
		require.Nil(t, got.Lines[1])
		require.Nil(t, got.Points[0])
		require.Equal(t, entity.Point{X: 1.5, Y: 2.5}, *got.Points[1])
		require.Equal(t, 2, got.Drawn())
	}
	require.Equal(t, []uint64{1, 2}, seqs)
}

func TestStreamDetector_WorkerErrorIsFrameLocal(t *testing.T) {
	calls := 0
	det := startWorker(t, func(req request) (response, bool) {
		calls++
		if calls == 1 {
			return response{Seq: req.Seq, Error: "no grid found"}, true
		}
		return response{Seq: req.Seq}, true
	})
	mask := image.NewGray(image.Rect(0, 0, 2, 2))

	_, err := det.Detect(context.Background(), mask)
	require.ErrorIs(t, err, entity.ErrDetectionFailure)
	require.ErrorContains(t, err, "no grid found")

	got, err := det.Detect(context.Background(), mask)
	require.NoError(t, err)
	require.True(t, got.Empty())
}

func TestStreamDetector_SequenceAhead(t *testing.T) {
	det := startWorker(t, func(req request) (response, bool) {
		return response{Seq: req.Seq + 7}, true
	})
	mask := image.NewGray(image.Rect(0, 0, 2, 2))

	_, err := det.Detect(context.Background(), mask)
	require.ErrorIs(t, err, entity.ErrDetectionFailure)
	require.ErrorContains(t, err, "sequence mismatch")

	_, err = det.Detect(context.Background(), mask)
	require.ErrorIs(t, err, entity.ErrDetectionFailure)
	require.ErrorContains(t, err, "broken")
}

func TestStreamDetector_DuplicateReplySkipped(t *testing.T) {
	det := startReplyingWorker(t, func(req request) ([]response, bool) {
		resp := response{Seq: req.Seq, Points: []*wirePoint{{X: float64(req.Seq)}}}
		if req.Seq == 1 {
			return []response{resp, resp}, true
		}
		return []response{resp}, true
	})
	mask := image.NewGray(image.Rect(0, 0, 2, 2))

	for i := 1; i <= 5; i++ {
		got, err := det.Detect(context.Background(), mask)
		require.NoErrorf(t, err, "frame %d", i)
		require.Len(t, got.Points, 1)
		require.InDelta(t, float64(i), got.Points[0].X, 1e-12)
	}
}

func TestStreamDetector_WorkerExit(t *testing.T) {
	det := startWorker(t, func(request) (response, bool) {
		return response{}, false
	})
	mask := image.NewGray(image.Rect(0, 0, 2, 2))

	_, err := det.Detect(context.Background(), mask)
	require.ErrorIs(t, err, entity.ErrDetectionFailure)

	_, err = det.Detect(context.Background(), mask)
	require.ErrorIs(t, err, entity.ErrDetectionFailure)
	require.ErrorContains(t, err, "broken")
}

func TestStreamDetector_RejectsBeforeIO(t *testing.T) {
	det := NewStreamDetector(&bytes.Buffer{}, &bytes.Buffer{})

	_, err := det.Detect(context.Background(), nil)
	require.ErrorIs(t, err, entity.ErrDetectionFailure)
	require.ErrorIs(t, err, entity.ErrInvalidFrame)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = det.Detect(ctx, image.NewGray(image.Rect(0, 0, 1, 1)))
	require.ErrorIs(t, err, entity.ErrDetectionFailure)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPackMask_SubImage(t *testing.T) {
	full := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range full.Pix {
		full.Pix[i] = uint8(i)
	}
	sub := full.SubImage(image.Rect(1, 1, 3, 3)).(*image.Gray)
	require.Equal(t, []byte{5, 6, 9, 10}, packMask(sub))
	require.Len(t, packMask(full), 16)
}

func TestReadMessage_Errors(t *testing.T) {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], maxMessageSize+1)
	var resp response
	streamErr, _ := readMessage(bytes.NewReader(prefix[:]), &resp)
	require.ErrorContains(t, streamErr, "too large")

	binary.BigEndian.PutUint32(prefix[:], 1)
	streamErr, decodeErr := readMessage(bytes.NewReader(append(prefix[:], 0xc1)), &resp)
	require.NoError(t, streamErr)
	require.Error(t, decodeErr)

	streamErr, _ = readMessage(bytes.NewReader(prefix[:2]), &resp)
	require.Error(t, streamErr)
}

func TestDisabled(t *testing.T) {
	got, err := Disabled{}.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	require.True(t, got.Empty())
}

func TestSubprocessDetector_EchoWorker(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	logger, _ := test.NewNullLogger()

	// cat возвращает запрос как есть: seq совпадает, линий и ошибки нет
	det, err := StartSubprocess(context.Background(), "cat", nil, logger)
	require.NoError(t, err)

	got, err := det.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	require.True(t, got.Empty())

	require.NoError(t, det.Close())
	require.NoError(t, det.Close())
}

func TestSubprocessDetector_StderrLogged(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	det, err := StartSubprocess(context.Background(), "sh",
		[]string{"-c", `echo "[ERROR] model missing" >&2; cat`}, logger)
	require.NoError(t, err)
	require.NoError(t, det.Close())

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Data["log"] == "[ERROR] model missing" {
			found = true
		}
	}
	require.True(t, found)
}

func TestStartSubprocess_MissingCommand(t *testing.T) {
	_, err := StartSubprocess(context.Background(), "/nonexistent/grid-worker", nil, nil)
	require.Error(t, err)

	_, err = StartSubprocess(context.Background(), "", nil, nil)
	require.Error(t, err)
}
