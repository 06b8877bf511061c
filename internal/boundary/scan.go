package boundary

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"clipwatch/internal/media"
	"clipwatch/internal/phash"
)

// Interval is a span of content between two reference appearances.
type Interval struct {
	Start time.Duration
	End   time.Duration
}

// Length returns End-Start.
func (i Interval) Length() time.Duration {
	return i.End - i.Start
}

// Scan replays det over a file of the given duration, grabbing a frame every
// step on a virtual clock. A content interval runs from just after the last
// matching tick of one reference run to the first matching tick of the next;
// content before the first or after the final reference run is not returned.
// Intervals shorter than minLength are dropped.
func Scan(ctx context.Context, det *Detector, grabber phash.FrameGrabber, path string, duration, step, minLength time.Duration) ([]Interval, error) {
	if !det.Enabled() || duration <= 0 {
		return nil, nil
	}
	if step <= 0 {
		step = DefaultInterval
	}
	det.Reset()
	var epoch time.Time
	var (
		intervals  []Interval
		pending    bool
		contentBeg time.Duration
	)
	for offset := time.Duration(0); offset <= duration; offset += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := grabber.GrabGray(ctx, media.FileInput(path), offset)
		if err != nil {
			continue
		}
		h, err := phash.AverageHash(frame)
		if err != nil {
			continue
		}
		obs := det.Observe(epoch.Add(offset), h)
		switch obs.Transition {
		case Entered:
			if pending {
				iv := Interval{Start: contentBeg, End: offset}
				if iv.Length() > 0 && iv.Length() >= minLength {
					intervals = append(intervals, iv)
				}
				pending = false
			}
		case Exited:
			contentBeg = obs.LastMatch.Sub(epoch) + step
			pending = true
		}
	}
	return intervals, nil
}

// FixedIntervals splits a file of the given duration into consecutive parts
// of segment length, the last one possibly shorter. A non-positive segment
// yields the whole file as one part. Each part is then trimmed by head and
// tail; parts left empty or shorter than minLength are dropped.
func FixedIntervals(duration, segment, head, tail, minLength time.Duration) []Interval {
	if duration <= 0 {
		return nil
	}
	if segment <= 0 {
		segment = duration
	}
	var intervals []Interval
	for start := time.Duration(0); start < duration; start += segment {
		end := min(start+segment, duration)
		iv := Interval{Start: start + max(head, 0), End: end - max(tail, 0)}
		if iv.Length() <= 0 || iv.Length() < minLength {
			continue
		}
		intervals = append(intervals, iv)
	}
	return intervals
}

// Cutter extracts a time range of a file into a new file.
type Cutter interface {
	Cut(ctx context.Context, src, dst string, start, end time.Duration) error
}

// ClipName names the index-th (1-based) clip cut from src.
func ClipName(src string, index int) string {
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return fmt.Sprintf("%s_%03d_.mov", stem, index)
}

// CutIntervals writes each interval of src into outDir and returns the paths.
// It stops at the first failing cut.
func CutIntervals(ctx context.Context, cutter Cutter, src, outDir string, intervals []Interval) ([]string, error) {
	created := make([]string, 0, len(intervals))
	for i, iv := range intervals {
		dst := filepath.Join(outDir, ClipName(src, i+1))
		if err := cutter.Cut(ctx, src, dst, iv.Start, iv.End); err != nil {
			return created, err
		}
		created = append(created, dst)
	}
	return created, nil
}
