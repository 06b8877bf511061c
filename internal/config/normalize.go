package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeStore()
	c.normalizeEngine()
	c.normalizeWorkflow()
	c.normalizeRecorder()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		if value, ok := os.LookupEnv("CLIPWATCH_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
			c.Paths.DataDir = strings.TrimSpace(value)
		} else {
			c.Paths.DataDir = defaultDataDir
		}
	}
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}

	subdirs := []struct {
		field *string
		name  string
		def   string
	}{
		{&c.Paths.UploadDir, "paths.upload_dir", defaultUploadSubdir},
		{&c.Paths.WatchDir, "paths.watch_dir", defaultWatchSubdir},
		{&c.Paths.ClipDir, "paths.clip_dir", defaultClipSubdir},
		{&c.Paths.TemplateDir, "paths.template_dir", defaultTemplateSubdir},
		{&c.Paths.LogDir, "paths.log_dir", defaultLogSubdir},
	}
	for _, sub := range subdirs {
		if strings.TrimSpace(*sub.field) == "" {
			*sub.field = filepath.Join(c.Paths.DataDir, sub.def)
		}
		if *sub.field, err = expandPath(*sub.field); err != nil {
			return fmt.Errorf("%s: %w", sub.name, err)
		}
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv("CLIPWATCH_API_TOKEN"); ok {
			c.Server.APIToken = strings.TrimSpace(value)
		}
	}
	origins := c.Server.CORSOrigins[:0]
	for _, origin := range c.Server.CORSOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.Server.CORSOrigins = origins
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = defaultMaxUploadMB
	}
	if c.Server.MaxSegmentMB <= 0 {
		c.Server.MaxSegmentMB = defaultMaxSegmentMB
	}
}

func (c *Config) normalizeStore() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = defaultStoreDriver
	}
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	if c.Store.DSN == "" {
		if value, ok := os.LookupEnv("CLIPWATCH_STORE_DSN"); ok {
			c.Store.DSN = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeEngine() {
	c.Engine.BaseURL = strings.TrimSpace(c.Engine.BaseURL)
	if value, ok := os.LookupEnv("CLIPWATCH_ENGINE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Engine.BaseURL = strings.TrimSpace(value)
	}
	c.Engine.BaseURL = strings.TrimRight(c.Engine.BaseURL, "/")
	if c.Engine.TimeoutSeconds <= 0 {
		c.Engine.TimeoutSeconds = defaultEngineTimeoutSeconds
	}
	if c.Engine.VerifyTimeoutSeconds <= 0 {
		c.Engine.VerifyTimeoutSeconds = defaultVerifyTimeoutSeconds
	}
	if c.Engine.ExtractTimeoutSeconds <= 0 {
		c.Engine.ExtractTimeoutSeconds = defaultExtractTimeoutSeconds
	}
	if c.Engine.MaxResults <= 0 {
		c.Engine.MaxResults = defaultEngineMaxResults
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.StaleAfterSeconds <= 0 {
		c.Workflow.StaleAfterSeconds = c.Engine.TimeoutSeconds + defaultStaleGraceSeconds
	}
	c.Workflow.ReapSchedule = strings.TrimSpace(c.Workflow.ReapSchedule)
	if c.Workflow.ReapSchedule == "" {
		c.Workflow.ReapSchedule = defaultReapSchedule
	}
	if c.Workflow.VerifyTTLSeconds <= 0 {
		c.Workflow.VerifyTTLSeconds = defaultVerifyTTLSeconds
	}
}

func (c *Config) normalizeRecorder() {
	c.Recorder.Mode = strings.ToLower(strings.TrimSpace(c.Recorder.Mode))
	if c.Recorder.Mode == "" {
		c.Recorder.Mode = defaultRecorderMode
	}
	c.Recorder.FFmpegBinary = strings.TrimSpace(c.Recorder.FFmpegBinary)
	if c.Recorder.FFmpegBinary == "" {
		c.Recorder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Recorder.FFprobeBinary = strings.TrimSpace(c.Recorder.FFprobeBinary)
	if c.Recorder.FFprobeBinary == "" {
		c.Recorder.FFprobeBinary = defaultFFprobeBinary
	}
	c.Recorder.UploadRoute = strings.Trim(strings.TrimSpace(c.Recorder.UploadRoute), "/")
	if c.Recorder.UploadRoute == "" {
		c.Recorder.UploadRoute = defaultUploadRoute
	}
	c.Recorder.GatewayURL = strings.TrimRight(strings.TrimSpace(c.Recorder.GatewayURL), "/")
	if c.Recorder.GatewayURL == "" {
		c.Recorder.GatewayURL = "http://" + c.Server.Bind
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("CLIPWATCH_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
