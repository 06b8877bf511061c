package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateWatcher(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateRecorder(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case StoreDriverSQLite:
		return nil
	case StoreDriverMySQL:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required when store.driver is mysql (or set CLIPWATCH_STORE_DSN)")
		}
		return nil
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", StoreDriverSQLite, StoreDriverMySQL, c.Store.Driver)
	}
}

func (c *Config) validateEngine() error {
	if c.Engine.BaseURL == "" {
		return errors.New("engine.base_url must be set (or set CLIPWATCH_ENGINE_URL)")
	}
	if !strings.HasPrefix(c.Engine.BaseURL, "http://") && !strings.HasPrefix(c.Engine.BaseURL, "https://") {
		return fmt.Errorf("engine.base_url must be an http(s) URL, got %q", c.Engine.BaseURL)
	}
	return nil
}

func (c *Config) validateWatcher() error {
	if c.Watcher.PollIntervalSeconds <= 0 {
		return errors.New("watcher.poll_interval_seconds must be positive")
	}
	if c.Watcher.RetentionMax < 1 {
		return errors.New("watcher.retention_max must be at least 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if _, err := cron.ParseStandard(c.Workflow.ReapSchedule); err != nil {
		return fmt.Errorf("workflow.reap_schedule: %w", err)
	}
	return nil
}

func (c *Config) validateDetector() error {
	if c.Detector.ThresholdBits < 0 || c.Detector.ThresholdBits > 64 {
		return fmt.Errorf("detector.threshold_bits must be between 0 and 64, got %d", c.Detector.ThresholdBits)
	}
	if c.Detector.SampleIntervalSeconds <= 0 {
		return errors.New("detector.sample_interval_seconds must be positive")
	}
	if c.Detector.MinGapSeconds < 0 {
		return errors.New("detector.min_gap_seconds must not be negative")
	}
	if c.Detector.ReferenceSamples < 1 {
		return errors.New("detector.reference_samples must be at least 1")
	}
	return nil
}

func (c *Config) validateRecorder() error {
	switch c.Recorder.Mode {
	case RecorderModeFixed, RecorderModeBoundary:
	default:
		return fmt.Errorf("recorder.mode must be %q or %q, got %q", RecorderModeFixed, RecorderModeBoundary, c.Recorder.Mode)
	}
	if c.Recorder.SegmentSeconds < 1 || c.Recorder.SegmentSeconds > 60 {
		return fmt.Errorf("recorder.segment_seconds must be between 1 and 60, got %d", c.Recorder.SegmentSeconds)
	}
	switch c.Recorder.UploadRoute {
	case UploadRouteSaveVideo, UploadRouteSaveVideoAuto, UploadRouteSearch:
	default:
		return fmt.Errorf("recorder.upload_route must be one of save-video, save-video-auto, search; got %q", c.Recorder.UploadRoute)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.MinSimilarity < 0 || c.Notifications.MinSimilarity > 100 {
		return errors.New("notifications.min_similarity must be between 0 and 100")
	}
	return nil
}
