package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"grid-annotator/internal/domain/entity"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, s.err
}

func sampleRun() *entity.RunSummary {
	return &entity.RunSummary{
		ID:                "run-1",
		Input:             "in.avi",
		Output:            "out.avi",
		Frames:            90,
		AnnotatedFrames:   80,
		DetectionFailures: 2,
		Stages: []entity.StageStats{
			{Stage: entity.StageColorConversion, Throughput: 412.4, Valid: true},
		},
		CombinedThroughput: 37.2,
		CombinedValid:      true,
	}
}

func TestNotifier_TextOnly(t *testing.T) {
	api := &fakeSender{}
	logger, _ := test.NewNullLogger()
	n := newNotifier(api, 42, logger)

	require.NoError(t, n.Notify(context.Background(), sampleRun(), nil))
	require.Len(t, api.sent, 1)

	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	require.Equal(t, int64(42), msg.ChatID)
	require.True(t, strings.HasPrefix(msg.Text, msgRunDone))
	require.Contains(t, msg.Text, "Frames: 90, annotated: 80, detection failures: 2")
	require.Contains(t, msg.Text, "Total:                  37 fps")
}

func TestNotifier_WithPreview(t *testing.T) {
	api := &fakeSender{}
	logger, _ := test.NewNullLogger()
	n := newNotifier(api, 42, logger)

	run := sampleRun()
	run.Err = "write frame 3: disk full"
	require.NoError(t, n.Notify(context.Background(), run, []byte{0xff, 0xd8, 0xff}))

	photo, ok := api.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(photo.Caption, msgRunFailed))
	require.Contains(t, photo.Caption, "disk full")
}

func TestNotifier_SendError(t *testing.T) {
	api := &fakeSender{err: errors.New("bad gateway")}
	logger, _ := test.NewNullLogger()
	n := newNotifier(api, 1, logger)

	err := n.Notify(context.Background(), sampleRun(), nil)
	require.ErrorContains(t, err, "bad gateway")
	require.ErrorContains(t, err, "run-1")
}

func TestNotifier_CancelledContext(t *testing.T) {
	api := &fakeSender{}
	n := newNotifier(api, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, n.Notify(ctx, sampleRun(), nil), context.Canceled)
	require.Empty(t, api.sent)
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 5))

	long := strings.Repeat("ж", 2000)
	got := truncate(long, captionLimit)
	require.Equal(t, captionLimit, utf8.RuneCountInString(got))
	require.True(t, strings.HasSuffix(got, "…"))
}
