package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clipwatch/internal/boundary"
	"clipwatch/internal/config"
	"clipwatch/internal/logging"
	"clipwatch/internal/media"
	"clipwatch/internal/media/ffprobe"
	"clipwatch/internal/phash"
)

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}

func ffmpegFor(cfg *config.Config) media.FFmpeg {
	return media.FFmpeg{Binary: cfg.Recorder.FFmpegBinary}
}

func probeDuration(cfg *config.Config) phash.DurationFunc {
	binary := cfg.Recorder.FFprobeBinary
	return func(ctx context.Context, path string) (time.Duration, error) {
		return ffprobe.Duration(ctx, binary, path)
	}
}

func referenceBuilder(cfg *config.Config, logger *slog.Logger) phash.Builder {
	return phash.Builder{
		Grabber:  ffmpegFor(cfg),
		Duration: probeDuration(cfg),
		Samples:  cfg.Detector.ReferenceSamples,
		Logger:   logger,
	}
}

func newDetector(cfg *config.Config, refs *phash.ReferenceSet) *boundary.Detector {
	return boundary.NewDetector(refs, boundary.Config{
		Threshold: cfg.Detector.ThresholdBits,
		MinGap:    seconds(cfg.Detector.MinGapSeconds),
	})
}

// loadReferences signs every clip in dir. Any failure other than
// cancellation yields an empty set, which disables boundary detection.
func loadReferences(ctx context.Context, cfg *config.Config, dir string, logger *slog.Logger) (*phash.ReferenceSet, error) {
	refs, err := referenceBuilder(cfg, logger).LoadDir(ctx, dir)
	switch {
	case err == nil:
		return refs, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case !errors.Is(err, phash.ErrNoReferences):
		logging.WarnWithContext(logger, "reference clips unavailable; boundary detection disabled", "reference_load_failed",
			logging.String("template_dir", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the template directory exists and is readable"),
			logging.String(logging.FieldImpact, "falling back to fixed-length segments"),
		)
	}
	return phash.NewReferenceSet(), nil
}
