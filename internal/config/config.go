package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the working directories shared by the gateway, watcher and recorder.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	UploadDir   string `toml:"upload_dir"`
	WatchDir    string `toml:"watch_dir"`
	ClipDir     string `toml:"clip_dir"`
	TemplateDir string `toml:"template_dir"`
	LogDir      string `toml:"log_dir"`
}

// Server contains HTTP gateway settings.
type Server struct {
	Bind         string   `toml:"bind"`
	APIToken     string   `toml:"api_token"`
	CORSOrigins  []string `toml:"cors_origins"`
	MaxUploadMB  int      `toml:"max_upload_mb"`
	MaxSegmentMB int      `toml:"max_segment_mb"`
}

// Store selects the relational backend holding job and result records.
type Store struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Engine contains connection settings for the external similarity engine.
type Engine struct {
	BaseURL               string `toml:"base_url"`
	TimeoutSeconds        int    `toml:"timeout_seconds"`
	VerifyTimeoutSeconds  int    `toml:"verify_timeout_seconds"`
	ExtractTimeoutSeconds int    `toml:"extract_timeout_seconds"`
	MaxResults            int    `toml:"max_results"`
}

// Watcher controls the drop-folder scanner.
type Watcher struct {
	Enabled             bool `toml:"enabled"`
	PollIntervalSeconds int  `toml:"poll_interval_seconds"`
	RetentionMax        int  `toml:"retention_max"`
}

// Workflow contains job orchestration timing.
type Workflow struct {
	StaleAfterSeconds int    `toml:"stale_after_seconds"`
	ReapSchedule      string `toml:"reap_schedule"`
	VerifyTTLSeconds  int    `toml:"verify_ttl_seconds"`
}

// Detector contains boundary detection tuning.
type Detector struct {
	Enabled               bool    `toml:"enabled"`
	SampleIntervalSeconds float64 `toml:"sample_interval_seconds"`
	ThresholdBits         int     `toml:"threshold_bits"`
	MinGapSeconds         float64 `toml:"min_gap_seconds"`
	ReferenceSamples      int     `toml:"reference_samples"`
	ResetOnExit           bool    `toml:"reset_on_exit"`
	MinSegmentSeconds     float64 `toml:"min_segment_seconds"`
}

// Recorder contains capture and segment encoding settings.
type Recorder struct {
	Mode           string `toml:"mode"`
	SegmentSeconds int    `toml:"segment_seconds"`
	Source         string `toml:"source"`
	SourceFormat   string `toml:"source_format"`
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	GatewayURL     string `toml:"gateway_url"`
	UploadRoute    string `toml:"upload_route"`
}

// Notifications configures ntfy push messages for search outcomes.
type Notifications struct {
	NtfyTopic             string  `toml:"ntfy_topic"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	MinSimilarity         float64 `toml:"min_similarity"`
	IncludeWatched        bool    `toml:"include_watched"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for clipwatch.
//
// Configuration sections by subsystem:
//   - Paths: data, upload, watched, clip, template and log directories
//   - Server: gateway bind address, token, CORS and upload caps
//   - Store: job/result database driver and DSN
//   - Engine: similarity engine URL and timeouts
//   - Watcher: drop-folder polling and retention
//   - Workflow: stale job reaping and verify tracking
//   - Detector: perceptual hash boundary detection
//   - Recorder: capture source and segment encoding
//   - Notifications: ntfy topic and match threshold
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Store         Store         `toml:"store"`
	Engine        Engine        `toml:"engine"`
	Watcher       Watcher       `toml:"watcher"`
	Workflow      Workflow      `toml:"workflow"`
	Detector      Detector      `toml:"detector"`
	Recorder      Recorder      `toml:"recorder"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipwatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates every configured working directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.UploadDir, c.Paths.WatchDir, c.Paths.ClipDir, c.Paths.TemplateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AllowedMediaDirs lists the directories whose files may be streamed back to
// clients. The data dir itself is excluded since it holds the store and logs.
func (c *Config) AllowedMediaDirs() []string {
	return []string{c.Paths.ClipDir, c.Paths.WatchDir, c.Paths.UploadDir, c.Paths.TemplateDir}
}

// StoreDSN returns the DSN for the configured store driver, defaulting sqlite to a file in the data dir.
func (c *Config) StoreDSN() string {
	if dsn := strings.TrimSpace(c.Store.DSN); dsn != "" {
		return dsn
	}
	if c.Store.Driver == StoreDriverSQLite {
		return filepath.Join(c.Paths.DataDir, "clipwatch.db")
	}
	return ""
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "clipwatch.lock")
}

// EngineTimeout returns the per-search engine timeout.
func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSeconds) * time.Second
}

// StaleAfter returns the age beyond which a processing job is reaped.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Workflow.StaleAfterSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
