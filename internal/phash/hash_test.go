package phash

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipwatch/internal/media"
)

func gridFrom(fn func(i int) byte) []byte {
	grid := make([]byte, GridCells)
	for i := range grid {
		grid[i] = fn(i)
	}
	return grid
}

func TestAverageHashBitOrder(t *testing.T) {
	// Only cell 0 is bright: the most significant bit.
	h, err := AverageHash(gridFrom(func(i int) byte {
		if i == 0 {
			return 255
		}
		return 0
	}))
	if err != nil {
		t.Fatal(err)
	}
	if h != Hash(1<<63) {
		t.Fatalf("expected only MSB set, got %s", h)
	}

	// Only the last cell bright: the least significant bit.
	h, _ = AverageHash(gridFrom(func(i int) byte {
		if i == GridCells-1 {
			return 200
		}
		return 10
	}))
	if h != 1 {
		t.Fatalf("expected only LSB set, got %s", h)
	}
}

func TestAverageHashUniformFrameIsZero(t *testing.T) {
	h, err := AverageHash(gridFrom(func(int) byte { return 128 }))
	if err != nil {
		t.Fatal(err)
	}
	if h != 0 {
		t.Fatalf("cells equal to the mean must not set bits, got %s", h)
	}
}

func TestAverageHashRejectsWrongSize(t *testing.T) {
	if _, err := AverageHash(make([]byte, 63)); err == nil {
		t.Fatal("expected error for short grid")
	}
}

func TestHamming(t *testing.T) {
	if got := Hamming(0, 0); got != 0 {
		t.Fatalf("got %d", got)
	}
	if got := Hamming(0, ^Hash(0)); got != 64 {
		t.Fatalf("got %d", got)
	}
	if got := Hamming(0b1011, 0b0001); got != 2 {
		t.Fatalf("got %d", got)
	}
}

func TestMajorityVote(t *testing.T) {
	hashes := []Hash{0b1110, 0b1100, 0b1001, 0b0000}
	// bit3: 3 of 4, bit2: 2 of 4 (not > half), bit1: 1, bit0: 1
	if got := MajorityVote(hashes); got != 0b1000 {
		t.Fatalf("got %b", got)
	}
	if got := MajorityVote([]Hash{1 << 63}); got != 1<<63 {
		t.Fatalf("single hash should pass through, got %s", got)
	}
	if got := MajorityVote(nil); got != 0 {
		t.Fatalf("empty vote should be zero, got %s", got)
	}
}

func TestParseHashRoundTrip(t *testing.T) {
	h := Hash(0xdeadbeef00c0ffee)
	parsed, err := ParseHash(h.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != h {
		t.Fatalf("got %s, want %s", parsed, h)
	}
	if _, err := ParseHash("zz"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNearest(t *testing.T) {
	set := NewReferenceSet(
		Signature{Path: "a", Hash: 0},
		Signature{Path: "b", Hash: 0xff},
	)
	sig, d, ok := set.Nearest(0x0f)
	if !ok || sig.Path != "a" || d != 4 {
		t.Fatalf("unexpected nearest %v d=%d ok=%v", sig, d, ok)
	}
	sig, d, _ = set.Nearest(0xfe)
	if sig.Path != "b" || d != 1 {
		t.Fatalf("unexpected nearest %v d=%d", sig, d)
	}
	var empty *ReferenceSet
	if _, _, ok := empty.Nearest(0); ok {
		t.Fatal("empty set must not match")
	}
}

func TestSampleOffsets(t *testing.T) {
	got := SampleOffsets(8*time.Second, 4)
	want := []time.Duration{time.Second, 3 * time.Second, 5 * time.Second, 7 * time.Second}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("offset %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

type scriptedGrabber struct {
	frames map[time.Duration][]byte
}

func (g scriptedGrabber) GrabGray(_ context.Context, _ media.Input, offset time.Duration) ([]byte, error) {
	frame, ok := g.frames[offset]
	if !ok {
		return nil, errors.New("unreadable")
	}
	return frame, nil
}

func TestBuilderSkipsUnreadableFrames(t *testing.T) {
	bright := gridFrom(func(i int) byte {
		if i < 8 {
			return 255
		}
		return 0
	})
	grabber := scriptedGrabber{frames: map[time.Duration][]byte{
		time.Second:     bright,
		3 * time.Second: bright,
	}}
	builder := Builder{
		Grabber:  grabber,
		Duration: func(context.Context, string) (time.Duration, error) { return 8 * time.Second, nil },
	}
	sig, err := builder.Build(context.Background(), "/ref/cut.mov")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if sig.Samples != 2 {
		t.Fatalf("expected 2 readable samples, got %d", sig.Samples)
	}
	want, _ := AverageHash(bright)
	if sig.Hash != want {
		t.Fatalf("got %s, want %s", sig.Hash, want)
	}
}

func TestLoadReportsNoReferences(t *testing.T) {
	builder := Builder{
		Grabber:  scriptedGrabber{},
		Duration: func(context.Context, string) (time.Duration, error) { return time.Second, nil },
	}
	if _, err := builder.Load(context.Background(), []string{"/a.mov", "/b.mov"}); !errors.Is(err, ErrNoReferences) {
		t.Fatalf("expected ErrNoReferences, got %v", err)
	}
	if _, err := builder.Load(context.Background(), nil); !errors.Is(err, ErrNoReferences) {
		t.Fatalf("expected ErrNoReferences for empty input, got %v", err)
	}
}
