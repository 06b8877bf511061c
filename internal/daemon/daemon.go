package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"clipwatch/internal/config"
	"clipwatch/internal/deps"
	"clipwatch/internal/gateway"
	"clipwatch/internal/logging"
	"clipwatch/internal/queue"
	"clipwatch/internal/watcher"
	"clipwatch/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	watcher  *watcher.Watcher
	gateway  *gateway.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	StoreDriver  string
	StoreDSN     string
	LockFilePath string
	GatewayAddr  string
	Watching     bool
	Dependencies []deps.Status
}

// New constructs a daemon around already-built components. w may be nil when
// the watcher is disabled.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, w *watcher.Watcher, gw *gateway.Server) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil || gw == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, and gateway")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		watcher:  w,
		gateway:  gw,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the workflow manager, the
// watcher and the gateway, in that order.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipwatch daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	rollback := func() {
		cancel()
		d.workflow.Stop()
		if d.watcher != nil {
			d.watcher.Stop()
		}
		_ = d.lock.Unlock()
	}

	if err := d.workflow.Start(runCtx); err != nil {
		rollback()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.watcher != nil {
		if err := d.watcher.Start(runCtx); err != nil {
			rollback()
			return fmt.Errorf("start watcher: %w", err)
		}
	}
	if err := d.gateway.Start(runCtx); err != nil {
		rollback()
		return fmt.Errorf("start gateway: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("clipwatch daemon started",
		logging.String("lock", d.lockPath),
		logging.String("gateway", d.gateway.Addr()),
		logging.Bool("watching", d.watcher != nil),
	)
	return nil
}

// Stop shuts the gateway, the watcher and the workflow manager down and
// releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.gateway.Stop()
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.workflow.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("clipwatch daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		StoreDriver:  d.store.Driver(),
		StoreDSN:     d.store.Location(),
		LockFilePath: d.lockPath,
		GatewayAddr:  d.gateway.Addr(),
		Watching:     d.watcher != nil,
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
}
