package detector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// stopTimeout — сколько ждать выхода воркера после закрытия stdin.
const stopTimeout = 2 * time.Second

var errWorkerExited = errors.New("detector worker exited abnormally")

// SubprocessDetector запускает внешний воркер поиска сетки
// и общается с ним через stdin/stdout.
type SubprocessDetector struct {
	*StreamDetector

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	log    logrus.FieldLogger
	wg     sync.WaitGroup
	exited chan struct{}
	err    error // результат cmd.Wait, доступен после закрытия exited

	closeOnce sync.Once
	closeErr  error
}

// StartSubprocess запускает воркер name с аргументами args.
func StartSubprocess(ctx context.Context, name string, args []string, log logrus.FieldLogger) (*SubprocessDetector, error) {
	if name == "" {
		return nil, errors.New("detector command is empty")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "detector")

	cmd := exec.CommandContext(ctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start detector %q: %w", name, err)
	}

	d := &SubprocessDetector{
		StreamDetector: NewStreamDetector(stdin, bufio.NewReader(stdout)),
		cmd:            cmd,
		stdin:          stdin,
		log:            log,
		exited:         make(chan struct{}),
	}
	log.WithFields(logrus.Fields{"cmd": name, "pid": cmd.Process.Pid}).Info("detector process spawned")

	d.wg.Add(1)
	go d.logStderr(stderr)

	go d.waitProcess()
	return d, nil
}

// logStderr переносит stderr воркера в лог с учётом уровня строки.
func (d *SubprocessDetector) logStderr(stderr io.Reader) {
	defer d.wg.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		entry := d.log.WithField("log", line)
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"):
			entry.Error("detector worker error")
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			entry.Warn("detector worker warning")
		default:
			entry.Debug("detector worker log")
		}
	}
	if err := scanner.Err(); err != nil {
		d.log.WithError(err).Error("error reading detector stderr")
	}
}

// waitProcess ждёт выхода процесса, чтобы не оставлять зомби.
// cmd.Wait вызывается только после того, как stderr дочитан.
func (d *SubprocessDetector) waitProcess() {
	d.wg.Wait()
	d.err = d.cmd.Wait()
	close(d.exited)

	if d.err != nil {
		d.log.WithError(d.err).Warn("detector process exited with error")
		return
	}
	d.log.Debug("detector process exited")
}

// Close закрывает stdin воркера и ждёт его выхода; по таймауту процесс убивается.
func (d *SubprocessDetector) Close() error {
	d.closeOnce.Do(func() {
		_ = d.stdin.Close()

		select {
		case <-d.exited:
		case <-time.After(stopTimeout):
			d.log.Warn("detector stop timeout, killing process")
			if err := d.cmd.Process.Kill(); err != nil {
				d.closeErr = fmt.Errorf("kill detector: %w", err)
				return
			}
			<-d.exited
			d.closeErr = fmt.Errorf("%w: killed after %s", errWorkerExited, stopTimeout)
			return
		}
		var exitErr *exec.ExitError
		if errors.As(d.err, &exitErr) {
			d.closeErr = fmt.Errorf("%w: %w", errWorkerExited, d.err)
		}
	})
	return d.closeErr
}
