package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"clipwatch/internal/config"
	"clipwatch/internal/logging"
	"clipwatch/internal/media"
	"clipwatch/internal/queue"
)

// DefaultPollInterval is used when the configured interval is not positive.
const DefaultPollInterval = 3 * time.Second

// Submitter queues a discovered file for search.
type Submitter interface {
	Submit(ctx context.Context, path string, origin queue.Origin) (*queue.Job, error)
}

// PathIndex reports which source paths already have a job.
type PathIndex interface {
	SourcePaths(ctx context.Context) (map[string]struct{}, error)
}

// PollResult summarizes one poll.
type PollResult struct {
	Removed []string
	Queued  []string
	Skipped bool
}

// Watcher scans one directory on a fixed interval.
type Watcher struct {
	dir          string
	retention    int
	pollInterval time.Duration
	index        PathIndex
	submitter    Submitter
	logger       *slog.Logger

	busy atomic.Bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a watcher for the configured watch directory.
func New(cfg *config.Config, index PathIndex, submitter Submitter, logger *slog.Logger) *Watcher {
	poll := time.Duration(cfg.Watcher.PollIntervalSeconds) * time.Second
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Watcher{
		dir:          cfg.Paths.WatchDir,
		retention:    cfg.Watcher.RetentionMax,
		pollInterval: poll,
		index:        index,
		submitter:    submitter,
		logger:       logging.NewComponentLogger(logger, "watcher"),
	}
}

// Start begins polling until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watcher already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop(runCtx)
	w.logger.Info("watching folder",
		logging.String("dir", w.dir),
		logging.Duration("interval", w.pollInterval),
		logging.Int("retention_max", w.retention),
	)
	return nil
}

// Stop halts polling and waits for an in-progress poll to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	w.Poll(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll runs one retention and enqueue pass. It returns Skipped when another
// poll is still in progress.
func (w *Watcher) Poll(ctx context.Context) PollResult {
	if !w.busy.CompareAndSwap(false, true) {
		return PollResult{Skipped: true}
	}
	defer w.busy.Store(false)

	var result PollResult
	if w.retention > 0 {
		removed, err := media.EnforceRetention(w.dir, w.retention)
		result.Removed = removed
		if err != nil {
			logging.WarnWithContext(w.logger, "retention pass incomplete", "watch_retention_failed",
				logging.String(logging.FieldErrorHint, "check permissions on the watched folder"),
				logging.String(logging.FieldImpact, "watched folder may exceed retention_max"),
				logging.Error(err),
			)
		}
		for _, path := range removed {
			w.logger.Debug("retention removed video", logging.String(logging.FieldSourcePath, path))
		}
	}

	videos, err := media.ListVideos(w.dir)
	if err != nil {
		logging.WarnWithContext(w.logger, "watched folder scan failed", "watch_scan_failed",
			logging.String(logging.FieldErrorHint, "check that paths.watch_dir exists and is readable"),
			logging.Error(err),
		)
		return result
	}
	if len(videos) == 0 {
		return result
	}

	known, err := w.index.SourcePaths(ctx)
	if err != nil {
		logging.WarnWithContext(w.logger, "job lookup failed", "watch_index_failed",
			logging.String(logging.FieldErrorHint, "check store connectivity"),
			logging.String(logging.FieldImpact, "new files wait for the next poll"),
			logging.Error(err),
		)
		return result
	}

	for _, video := range videos {
		if _, seen := known[video.Path]; seen {
			continue
		}
		if ctx.Err() != nil {
			return result
		}
		if _, err := w.submitter.Submit(ctx, video.Path, queue.OriginWatch); err != nil {
			logging.WarnWithContext(w.logger, "failed to queue watched file", "watch_enqueue_failed",
				logging.String(logging.FieldSourcePath, video.Path),
				logging.String(logging.FieldErrorHint, "check store connectivity"),
				logging.Error(err),
			)
			continue
		}
		result.Queued = append(result.Queued, video.Path)
	}
	if len(result.Queued) > 0 {
		w.logger.Info("queued watched files", logging.Int("count", len(result.Queued)))
	}
	return result
}
