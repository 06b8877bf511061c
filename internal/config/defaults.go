package config

const (
	defaultConfigPath            = "~/.config/clipwatch/config.toml"
	defaultDataDir               = "~/.local/share/clipwatch"
	defaultUploadSubdir          = "uploads"
	defaultWatchSubdir           = "livestream"
	defaultClipSubdir            = "clips"
	defaultTemplateSubdir        = "templates"
	defaultLogSubdir             = "logs"
	defaultBind                  = "127.0.0.1:3001"
	defaultMaxUploadMB           = 100
	defaultMaxSegmentMB          = 200
	defaultStoreDriver           = StoreDriverSQLite
	defaultEngineBaseURL         = "http://127.0.0.1:5051"
	defaultEngineTimeoutSeconds  = 300
	defaultVerifyTimeoutSeconds  = 300
	defaultExtractTimeoutSeconds = 3600
	defaultEngineMaxResults      = 20
	defaultWatcherPollSeconds    = 3
	defaultRetentionMax          = 5
	defaultStaleGraceSeconds     = 60
	defaultReapSchedule          = "@every 1m"
	defaultVerifyTTLSeconds      = 3600
	defaultSampleIntervalSeconds = 2.0
	defaultThresholdBits         = 10
	defaultMinGapSeconds         = 10.0
	defaultReferenceSamples      = 4
	defaultMinSegmentSeconds     = 3.0
	defaultRecorderMode          = RecorderModeFixed
	defaultSegmentSeconds        = 10
	defaultSourceFormat          = "x11grab"
	defaultSource                = ":0.0"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultUploadRoute           = UploadRouteSaveVideo
	defaultNtfyTimeoutSeconds    = 10
	defaultNotifyMinSimilarity   = 80.0
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverMySQL  = "mysql"
)

// Recorder modes.
const (
	RecorderModeFixed    = "fixed"
	RecorderModeBoundary = "boundary"
)

// Gateway routes a recorder may upload finished segments to.
const (
	UploadRouteSaveVideo     = "save-video"
	UploadRouteSaveVideoAuto = "save-video-auto"
	UploadRouteSearch        = "search"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind:         defaultBind,
			CORSOrigins:  []string{"*"},
			MaxUploadMB:  defaultMaxUploadMB,
			MaxSegmentMB: defaultMaxSegmentMB,
		},
		Store: Store{
			Driver: defaultStoreDriver,
		},
		Engine: Engine{
			BaseURL:               defaultEngineBaseURL,
			TimeoutSeconds:        defaultEngineTimeoutSeconds,
			VerifyTimeoutSeconds:  defaultVerifyTimeoutSeconds,
			ExtractTimeoutSeconds: defaultExtractTimeoutSeconds,
			MaxResults:            defaultEngineMaxResults,
		},
		Watcher: Watcher{
			Enabled:             true,
			PollIntervalSeconds: defaultWatcherPollSeconds,
			RetentionMax:        defaultRetentionMax,
		},
		Workflow: Workflow{
			ReapSchedule:     defaultReapSchedule,
			VerifyTTLSeconds: defaultVerifyTTLSeconds,
		},
		Detector: Detector{
			Enabled:               true,
			SampleIntervalSeconds: defaultSampleIntervalSeconds,
			ThresholdBits:         defaultThresholdBits,
			MinGapSeconds:         defaultMinGapSeconds,
			ReferenceSamples:      defaultReferenceSamples,
			ResetOnExit:           true,
			MinSegmentSeconds:     defaultMinSegmentSeconds,
		},
		Recorder: Recorder{
			Mode:           defaultRecorderMode,
			SegmentSeconds: defaultSegmentSeconds,
			Source:         defaultSource,
			SourceFormat:   defaultSourceFormat,
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			UploadRoute:    defaultUploadRoute,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
			MinSimilarity:         defaultNotifyMinSimilarity,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
