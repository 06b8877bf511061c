package ffprobe

import (
	"testing"
	"time"
)

func TestParseAndHelpers(t *testing.T) {
	payload := []byte(`{
		"streams": [
			{"index": 0, "codec_type": "audio", "codec_name": "aac", "duration": "12.0"},
			{"index": 1, "codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "duration": "12.5"}
		],
		"format": {"filename": "clip.mp4", "duration": "12.500000", "size": "1000", "format_name": "mov,mp4"}
	}`)
	result, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	video, ok := result.VideoStream()
	if !ok || video.Width != 1280 || video.Height != 720 {
		t.Fatalf("unexpected video stream %+v ok=%v", video, ok)
	}
	if got := result.Duration(); got != 12500*time.Millisecond {
		t.Fatalf("unexpected duration %v", got)
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size %d", result.SizeBytes())
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "8.25"}, {CodecType: "audio", Duration: "bad"}},
		Format:  Format{Duration: "N/A", Size: "-1"},
	}
	if got := result.Duration(); got != 8250*time.Millisecond {
		t.Fatalf("unexpected fallback duration %v", got)
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if _, ok := (Result{}).VideoStream(); ok {
		t.Fatal("expected no video stream")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
