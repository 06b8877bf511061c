package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestGrayFrameArgs(t *testing.T) {
	fileArgs := strings.Join(GrayFrameArgs(FileInput("/v/a.mp4"), 1500*time.Millisecond), " ")
	if !strings.Contains(fileArgs, "-ss 1.500 -i /v/a.mp4") {
		t.Fatalf("file grab should seek before input: %s", fileArgs)
	}
	if !strings.Contains(fileArgs, "scale=8:8:flags=area,format=gray") || !strings.HasSuffix(fileArgs, "-f rawvideo -") {
		t.Fatalf("unexpected filter chain: %s", fileArgs)
	}

	liveArgs := strings.Join(GrayFrameArgs(Input{Format: "x11grab", Source: ":0.0"}, 5*time.Second), " ")
	if strings.Contains(liveArgs, "-ss") {
		t.Fatalf("live grab must not seek: %s", liveArgs)
	}
	if !strings.Contains(liveArgs, "-f x11grab -i :0.0") {
		t.Fatalf("live grab missing device format: %s", liveArgs)
	}
}

func TestCutArgs(t *testing.T) {
	args := strings.Join(CutArgs("in.mp4", "out.mov", 2*time.Second, 7250*time.Millisecond), " ")
	for _, want := range []string{"-ss 2.000 -to 7.250", "-c:v libx264", "-crf 23", "-movflags +faststart", "out.mov"} {
		if !strings.Contains(args, want) {
			t.Fatalf("cut args missing %q: %s", want, args)
		}
	}
}

func TestGrabGrayReadsSixtyFourBytes(t *testing.T) {
	stub := writeStub(t, `printf '%080d' 0`)
	frame, err := FFmpeg{Binary: stub}.GrabGray(context.Background(), FileInput("in.mp4"), 0)
	if err != nil {
		t.Fatalf("GrabGray: %v", err)
	}
	if len(frame) != GrayFrameSize {
		t.Fatalf("expected %d bytes, got %d", GrayFrameSize, len(frame))
	}
}

func TestGrabGrayShortFrame(t *testing.T) {
	stub := writeStub(t, `printf 'abc'`)
	_, err := FFmpeg{Binary: stub}.GrabGray(context.Background(), FileInput("in.mp4"), 0)
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
}

func TestCutEmptyIntervalIsNoop(t *testing.T) {
	stub := writeStub(t, "exit 1")
	if err := (FFmpeg{Binary: stub}).Cut(context.Background(), "in.mp4", filepath.Join(t.TempDir(), "o.mov"), time.Second, time.Second); err != nil {
		t.Fatalf("empty interval should not run ffmpeg: %v", err)
	}
	if err := (FFmpeg{Binary: stub}).Cut(context.Background(), "in.mp4", filepath.Join(t.TempDir(), "o.mov"), 0, time.Second); err == nil {
		t.Fatal("expected failing ffmpeg to surface an error")
	}
}
