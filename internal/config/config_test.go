package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"clipwatch/internal/config"
)

func TestLoadDefaultConfigDerivesDirectoriesFromDataDir(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CLIPWATCH_DATA_DIR", "")
	t.Setenv("CLIPWATCH_ENGINE_URL", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "clipwatch")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.WatchDir != filepath.Join(wantData, "livestream") {
		t.Fatalf("unexpected watch dir: %q", cfg.Paths.WatchDir)
	}
	if cfg.Paths.ClipDir != filepath.Join(wantData, "clips") {
		t.Fatalf("unexpected clip dir: %q", cfg.Paths.ClipDir)
	}
	if cfg.Server.Bind != "127.0.0.1:3001" {
		t.Fatalf("unexpected bind: %q", cfg.Server.Bind)
	}
	if cfg.Engine.MaxResults != 20 {
		t.Fatalf("expected max results 20, got %d", cfg.Engine.MaxResults)
	}
	if cfg.Watcher.RetentionMax != 5 {
		t.Fatalf("expected retention 5, got %d", cfg.Watcher.RetentionMax)
	}
	if cfg.Workflow.StaleAfterSeconds != cfg.Engine.TimeoutSeconds+60 {
		t.Fatalf("expected stale window derived from engine timeout, got %d", cfg.Workflow.StaleAfterSeconds)
	}
	if cfg.StoreDSN() != filepath.Join(wantData, "clipwatch.db") {
		t.Fatalf("unexpected sqlite dsn: %q", cfg.StoreDSN())
	}
	if cfg.Recorder.GatewayURL != "http://127.0.0.1:3001" {
		t.Fatalf("expected gateway url derived from bind, got %q", cfg.Recorder.GatewayURL)
	}
}

func TestLoadHonoursEnvironmentFallbacks(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	dataDir := filepath.Join(t.TempDir(), "data")
	t.Setenv("CLIPWATCH_DATA_DIR", dataDir)
	t.Setenv("CLIPWATCH_ENGINE_URL", "http://engine.local:9000/")
	t.Setenv("CLIPWATCH_API_TOKEN", "secret")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DataDir != dataDir {
		t.Fatalf("expected data dir from env, got %q", cfg.Paths.DataDir)
	}
	if cfg.Engine.BaseURL != "http://engine.local:9000" {
		t.Fatalf("expected trimmed engine url from env, got %q", cfg.Engine.BaseURL)
	}
	if cfg.Server.APIToken != "secret" {
		t.Fatalf("expected api token from env, got %q", cfg.Server.APIToken)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CLIPWATCH_DATA_DIR", "")
	t.Setenv("CLIPWATCH_ENGINE_URL", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := []byte(`[paths]
data_dir = "~/clipdata"
clip_dir = "~/matches"

[recorder]
mode = "boundary"
segment_seconds = 30

[logging]
format = "JSON"
`)
	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.Paths.ClipDir != filepath.Join(tempHome, "matches") {
		t.Fatalf("unexpected clip dir: %q", cfg.Paths.ClipDir)
	}
	if cfg.Paths.UploadDir != filepath.Join(tempHome, "clipdata", "uploads") {
		t.Fatalf("unexpected upload dir: %q", cfg.Paths.UploadDir)
	}
	if cfg.Recorder.Mode != config.RecorderModeBoundary {
		t.Fatalf("unexpected recorder mode: %q", cfg.Recorder.Mode)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized log format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"segment too long", func(c *config.Config) { c.Recorder.SegmentSeconds = 61 }, "segment_seconds"},
		{"segment zero", func(c *config.Config) { c.Recorder.SegmentSeconds = 0 }, "segment_seconds"},
		{"threshold", func(c *config.Config) { c.Detector.ThresholdBits = 65 }, "threshold_bits"},
		{"driver", func(c *config.Config) { c.Store.Driver = "postgres" }, "store.driver"},
		{"mysql dsn", func(c *config.Config) { c.Store.Driver = config.StoreDriverMySQL }, "store.dsn"},
		{"engine url", func(c *config.Config) { c.Engine.BaseURL = "" }, "engine.base_url"},
		{"engine scheme", func(c *config.Config) { c.Engine.BaseURL = "ftp://x" }, "engine.base_url"},
		{"retention", func(c *config.Config) { c.Watcher.RetentionMax = 0 }, "retention_max"},
		{"poll", func(c *config.Config) { c.Watcher.PollIntervalSeconds = 0 }, "poll_interval"},
		{"mode", func(c *config.Config) { c.Recorder.Mode = "manual" }, "recorder.mode"},
		{"route", func(c *config.Config) { c.Recorder.UploadRoute = "upload" }, "upload_route"},
		{"schedule", func(c *config.Config) { c.Workflow.ReapSchedule = "every minute" }, "reap_schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if cfg.Engine.MaxResults != 20 {
		t.Fatalf("sample max_results = %d", cfg.Engine.MaxResults)
	}
}

func TestEnsureDirectoriesCreatesLayout(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = base
	cfg.Paths.UploadDir = filepath.Join(base, "u")
	cfg.Paths.WatchDir = filepath.Join(base, "w")
	cfg.Paths.ClipDir = filepath.Join(base, "c")
	cfg.Paths.TemplateDir = filepath.Join(base, "t")
	cfg.Paths.LogDir = filepath.Join(base, "l")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{"u", "w", "c", "t", "l"} {
		info, err := os.Stat(filepath.Join(base, dir))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, err=%v", dir, err)
		}
	}
}
