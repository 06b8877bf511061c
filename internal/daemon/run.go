package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"clipwatch/internal/config"
	"clipwatch/internal/deps"
	"clipwatch/internal/engine"
	"clipwatch/internal/gateway"
	"clipwatch/internal/logging"
	"clipwatch/internal/notifications"
	"clipwatch/internal/queue"
	"clipwatch/internal/watcher"
	"clipwatch/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Build wires the store, engine client, workflow manager, watcher and gateway
// for cfg. The returned daemon owns the store.
func Build(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	eng := engine.NewClient(engine.ConfigFrom(cfg))
	notifier := notifications.NewService(cfg)
	mgr := workflow.NewManager(cfg, store, eng, logger, workflow.WithNotifier(notifier))
	var w *watcher.Watcher
	if cfg.Watcher.Enabled {
		w = watcher.New(cfg, store, mgr, logger)
	}
	gw := gateway.New(cfg, store, mgr, eng, logger, gateway.WithNotifier(notifier))

	d, err := New(cfg, store, logger, mgr, w, gw)
	if err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}

// Run starts the clipwatch daemon and blocks until the process is signalled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "clipwatch.log")
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	pidPath := filepath.Join(cfg.Paths.LogDir, "clipwatch.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := Build(cfg, logger)
	if err != nil {
		logger.Error("daemon setup failed", logging.Error(err))
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("clipwatch daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("engine_url", cfg.Engine.BaseURL),
		logging.String("store_driver", cfg.Store.Driver),
		logging.Bool("api_token_set", cfg.Server.APIToken != ""),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs,
			logging.Bool(status.Name+"_available", status.Available),
			logging.String(status.Name+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
