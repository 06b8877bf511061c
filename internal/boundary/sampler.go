package boundary

import (
	"context"
	"log/slog"
	"time"

	"clipwatch/internal/logging"
	"clipwatch/internal/media"
	"clipwatch/internal/phash"
)

// FrameSource yields the current 8x8 grayscale frame of a live feed.
type FrameSource interface {
	Frame(ctx context.Context) ([]byte, error)
}

// LiveSource grabs frames from a capture device through ffmpeg.
type LiveSource struct {
	Grabber phash.FrameGrabber
	Input   media.Input
}

// Frame implements FrameSource.
func (s LiveSource) Frame(ctx context.Context) ([]byte, error) {
	return s.Grabber.GrabGray(ctx, s.Input, 0)
}

// Sampler drives a Detector from a FrameSource on a fixed interval and
// reports transitions.
type Sampler struct {
	Detector *Detector
	Source   FrameSource
	Interval time.Duration
	// OnTransition is called synchronously from the sampling goroutine.
	OnTransition func(ctx context.Context, obs Observation)
	Logger       *slog.Logger
	Now          func() time.Time
}

// Run samples until ctx is done. With no references it returns immediately.
func (s *Sampler) Run(ctx context.Context) error {
	if !s.Detector.Enabled() {
		return nil
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick samples one frame. ok is false when the frame could not be read or
// hashed, in which case the detector is not advanced.
func (s *Sampler) Tick(ctx context.Context) (Observation, bool) {
	logger := s.logger()
	frame, err := s.Source.Frame(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Debug("frame unreadable, tick skipped", logging.Error(err))
		}
		return Observation{}, false
	}
	h, err := phash.AverageHash(frame)
	if err != nil {
		logger.Debug("frame hash failed, tick skipped", logging.Error(err))
		return Observation{}, false
	}
	obs := s.Detector.Observe(s.now(), h)
	if obs.Transition != NoTransition {
		logger.Info("boundary transition",
			logging.String("transition", obs.Transition.String()),
			logging.String("reference", obs.Reference),
			logging.Int("distance", obs.Distance),
		)
		if s.OnTransition != nil {
			s.OnTransition(ctx, obs)
		}
	}
	return obs, true
}

func (s *Sampler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Sampler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logging.NewNop()
}
