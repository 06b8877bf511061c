package phash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clipwatch/internal/logging"
	"clipwatch/internal/media"
)

// DefaultSamples is the number of offsets hashed per reference clip.
const DefaultSamples = 4

// ErrNoReferences means no reference clip produced a signature.
var ErrNoReferences = errors.New("no reference signatures loaded")

// Signature is the immutable fingerprint of one reference clip.
type Signature struct {
	Path    string
	Hash    Hash
	Samples int
}

// ReferenceSet is an immutable collection of signatures. The zero value and
// nil both hold no references.
type ReferenceSet struct {
	sigs []Signature
}

// NewReferenceSet copies sigs into a new set.
func NewReferenceSet(sigs ...Signature) *ReferenceSet {
	return &ReferenceSet{sigs: append([]Signature(nil), sigs...)}
}

// Len returns the number of signatures.
func (r *ReferenceSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.sigs)
}

// Signatures returns a copy of the stored signatures.
func (r *ReferenceSet) Signatures() []Signature {
	if r == nil {
		return nil
	}
	return append([]Signature(nil), r.sigs...)
}

// Nearest returns the signature with the smallest Hamming distance to h.
// ok is false when the set is empty.
func (r *ReferenceSet) Nearest(h Hash) (sig Signature, distance int, ok bool) {
	if r.Len() == 0 {
		return Signature{}, 0, false
	}
	distance = GridCells + 1
	for _, candidate := range r.sigs {
		if d := Hamming(h, candidate.Hash); d < distance {
			sig, distance = candidate, d
		}
	}
	return sig, distance, true
}

// FrameGrabber renders one 8x8 grayscale frame from an input.
type FrameGrabber interface {
	GrabGray(ctx context.Context, in media.Input, offset time.Duration) ([]byte, error)
}

// DurationFunc reports the length of a media file.
type DurationFunc func(ctx context.Context, path string) (time.Duration, error)

// Builder computes reference signatures from clips on disk.
type Builder struct {
	Grabber  FrameGrabber
	Duration DurationFunc
	Samples  int
	Logger   *slog.Logger
}

// SampleOffsets spreads n offsets evenly across d at the midpoints of n equal
// slices, so neither the first nor the final frame is sampled.
func SampleOffsets(d time.Duration, n int) []time.Duration {
	if n <= 0 {
		return nil
	}
	offsets := make([]time.Duration, n)
	for i := range offsets {
		offsets[i] = time.Duration(float64(d) * (float64(i) + 0.5) / float64(n))
	}
	return offsets
}

// Build hashes Samples evenly spaced frames of path and majority-votes them.
// Unreadable frames are skipped; at least one must succeed.
func (b Builder) Build(ctx context.Context, path string) (Signature, error) {
	if b.Grabber == nil || b.Duration == nil {
		return Signature{}, errors.New("reference builder: grabber and duration are required")
	}
	samples := b.Samples
	if samples <= 0 {
		samples = DefaultSamples
	}
	d, err := b.Duration(ctx, path)
	if err != nil {
		return Signature{}, fmt.Errorf("reference %s: %w", path, err)
	}

	hashes := make([]Hash, 0, samples)
	for _, offset := range SampleOffsets(d, samples) {
		frame, err := b.Grabber.GrabGray(ctx, media.FileInput(path), offset)
		if err != nil {
			if ctx.Err() != nil {
				return Signature{}, ctx.Err()
			}
			b.logger().Debug("reference frame unreadable",
				logging.String(logging.FieldSourcePath, path),
				logging.Duration("offset", offset),
				logging.Error(err),
			)
			continue
		}
		h, err := AverageHash(frame)
		if err != nil {
			continue
		}
		hashes = append(hashes, h)
	}
	if len(hashes) == 0 {
		return Signature{}, fmt.Errorf("reference %s: no readable frames", path)
	}
	return Signature{Path: path, Hash: MajorityVote(hashes), Samples: len(hashes)}, nil
}

// Load builds a ReferenceSet from paths. Clips that fail are logged and
// skipped; ErrNoReferences is returned when none succeed.
func (b Builder) Load(ctx context.Context, paths []string) (*ReferenceSet, error) {
	sigs := make([]Signature, 0, len(paths))
	for _, path := range paths {
		sig, err := b.Build(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.WarnWithContext(b.logger(), "reference clip skipped", "reference_load_failed",
				logging.String(logging.FieldSourcePath, path),
				logging.String(logging.FieldErrorHint, "check the clip decodes with ffmpeg"),
				logging.String(logging.FieldImpact, "clip will not trigger boundaries"),
				logging.Error(err),
			)
			continue
		}
		sigs = append(sigs, sig)
	}
	if len(sigs) == 0 {
		return nil, ErrNoReferences
	}
	return NewReferenceSet(sigs...), nil
}

// LoadDir builds a ReferenceSet from every video in dir.
func (b Builder) LoadDir(ctx context.Context, dir string) (*ReferenceSet, error) {
	videos, err := media.ListVideos(dir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(videos))
	for _, v := range videos {
		paths = append(paths, v.Path)
	}
	return b.Load(ctx, paths)
}

func (b Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return logging.NewNop()
}
