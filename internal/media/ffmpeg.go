package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// GrayFrameSize is the byte length of one 8x8 8-bit grayscale frame.
const GrayFrameSize = 64

// ErrShortFrame means ffmpeg produced fewer bytes than an 8x8 gray frame.
var ErrShortFrame = errors.New("ffmpeg returned a short frame")

// Input describes what ffmpeg reads from. An empty Format lets ffmpeg probe a
// file; a live capture sets it (x11grab, avfoundation, v4l2 and so on).
type Input struct {
	Format string
	Source string
}

// FileInput reads a file on disk.
func FileInput(path string) Input {
	return Input{Source: path}
}

// Live reports whether the input is a capture device rather than a file.
func (in Input) Live() bool {
	return strings.TrimSpace(in.Format) != ""
}

func (in Input) args() []string {
	var args []string
	if in.Live() {
		args = append(args, "-f", in.Format)
	}
	return append(args, "-i", in.Source)
}

// FFmpeg shells out to the configured ffmpeg binary.
type FFmpeg struct {
	Binary string
}

func (f FFmpeg) binary() string {
	if b := strings.TrimSpace(f.Binary); b != "" {
		return b
	}
	return "ffmpeg"
}

// GrayFrameArgs builds the argument list that renders one frame at offset as
// raw 8x8 grayscale on stdout. Offset is ignored for live inputs.
func GrayFrameArgs(in Input, offset time.Duration) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if !in.Live() && offset > 0 {
		args = append(args, "-ss", formatSeconds(offset))
	}
	args = append(args, in.args()...)
	return append(args,
		"-frames:v", "1",
		"-vf", "scale=8:8:flags=area,format=gray",
		"-f", "rawvideo", "-",
	)
}

// GrabGray returns the 64 luminance bytes of the frame at offset.
func (f FFmpeg) GrabGray(ctx context.Context, in Input, offset time.Duration) ([]byte, error) {
	cmd := exec.CommandContext(ctx, f.binary(), GrayFrameArgs(in, offset)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("grab frame from %s at %s: %w: %s", in.Source, offset, err, strings.TrimSpace(stderr.String()))
	}
	if len(out) < GrayFrameSize {
		return nil, fmt.Errorf("grab frame from %s at %s: %w (%d bytes)", in.Source, offset, ErrShortFrame, len(out))
	}
	return out[:GrayFrameSize], nil
}

// CutArgs builds the argument list that re-encodes [start, end) of src into dst.
func CutArgs(src, dst string, start, end time.Duration) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", src,
		"-ss", formatSeconds(start), "-to", formatSeconds(end),
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		dst,
	}
}

// Cut re-encodes [start, end) of src into dst. An empty interval is a no-op.
func (f FFmpeg) Cut(ctx context.Context, src, dst string, start, end time.Duration) error {
	if end <= start {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create clip dir: %w", err)
	}
	cmd := exec.CommandContext(ctx, f.binary(), CutArgs(src, dst, start, end)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("cut %s [%s, %s): %w: %s", src, start, end, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// RecordArgs builds the argument list for a segment encoder reading in and
// writing a WebM file to dst until it is asked to quit on stdin.
func RecordArgs(in Input, dst string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	args = append(args, in.args()...)
	return append(args,
		"-c:v", "libvpx-vp9", "-deadline", "realtime", "-cpu-used", "8", "-b:v", "2M",
		"-an",
		"-f", "webm",
		dst,
	)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
