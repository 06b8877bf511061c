package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"clipwatch/internal/media"
)

// ErrEncoderBusy is returned by Start while a segment is being recorded.
var ErrEncoderBusy = errors.New("encoder already running")

// ErrEncoderIdle is returned by Stop when nothing is being recorded.
var ErrEncoderIdle = errors.New("encoder not running")

// Encoder records a capture into one file per Start/Stop pair.
type Encoder interface {
	Start(ctx context.Context, dst string) error
	// Stop finalizes the file passed to Start and returns once it is complete.
	Stop(ctx context.Context) error
	Active() bool
}

const defaultStopTimeout = 10 * time.Second

// FFmpegEncoder records with an ffmpeg child process. Stop asks ffmpeg to quit
// through stdin so it writes the container trailer, and kills it if it has not
// exited after StopTimeout.
type FFmpegEncoder struct {
	Binary      string
	Input       media.Input
	StopTimeout time.Duration

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan error
	tail  *tailBuffer
}

// Start launches ffmpeg writing to dst.
func (e *FFmpegEncoder) Start(ctx context.Context, dst string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil {
		return ErrEncoderBusy
	}
	binary := strings.TrimSpace(e.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	// The encoder outlives the request that started it; Stop ends it.
	cmd := exec.Command(binary, media.RecordArgs(e.Input, dst)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("encoder stdin: %w", err)
	}
	tail := &tailBuffer{limit: 4096}
	cmd.Stderr = tail
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start encoder: %w", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	e.cmd, e.stdin, e.done, e.tail = cmd, stdin, done, tail
	return nil
}

// Stop requests a graceful quit and waits for ffmpeg to exit.
func (e *FFmpegEncoder) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil {
		return ErrEncoderIdle
	}
	cmd, stdin, done, tail := e.cmd, e.stdin, e.done, e.tail
	e.cmd, e.stdin, e.done, e.tail = nil, nil, nil, nil

	_, _ = io.WriteString(stdin, "q")
	_ = stdin.Close()

	timeout := e.StopTimeout
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil && !isQuitExit(err) {
			return fmt.Errorf("encoder exited: %w: %s", err, tail.String())
		}
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}
	_ = cmd.Process.Kill()
	<-done
	return fmt.Errorf("encoder did not flush within %s, killed", timeout)
}

// Active reports whether a segment is being recorded.
func (e *FFmpegEncoder) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cmd != nil
}

// ffmpeg exits 255 when interrupted by "q" on some builds.
func isQuitExit(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == 255
}

type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
