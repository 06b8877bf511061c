package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"clipwatch/internal/config"
	"clipwatch/internal/engine"
	"clipwatch/internal/logging"
	"clipwatch/internal/notifications"
	"clipwatch/internal/queue"
)

// Engine is the slice of the similarity engine the workflow calls.
type Engine interface {
	Search(ctx context.Context, videoPath string) ([]engine.Match, error)
	Verify(ctx context.Context, videoPath string) (float64, error)
}

// DefaultMaxResults bounds the results persisted per job.
const DefaultMaxResults = 20

// Manager coordinates job execution.
type Manager struct {
	cfg        *config.Config
	store      *queue.Store
	engine     Engine
	verify     VerifyStore
	notifier   notifications.Service
	logger     *slog.Logger
	maxResults int
	staleAfter time.Duration
	schedule   string
	retry      retryPolicy

	mu       sync.RWMutex
	running  bool
	runCtx   context.Context
	cancel   context.CancelFunc
	cron     *cron.Cron
	inflight map[string]struct{}
	lastErr  error
	lastJob  *queue.Job

	wg sync.WaitGroup
}

// Option customizes a Manager.
type Option func(*Manager)

// WithVerifyStore replaces the default in-memory verification store.
func WithVerifyStore(store VerifyStore) Option {
	return func(m *Manager) {
		if store != nil {
			m.verify = store
		}
	}
}

// WithNotifier replaces the notifier built from cfg.
func WithNotifier(notifier notifications.Service) Option {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// NewManager constructs a manager. It does not dispatch work until Start.
func NewManager(cfg *config.Config, store *queue.Store, eng Engine, logger *slog.Logger, opts ...Option) *Manager {
	maxResults := cfg.Engine.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	m := &Manager{
		cfg:        cfg,
		store:      store,
		engine:     eng,
		logger:     logging.NewComponentLogger(logger, "workflow"),
		maxResults: maxResults,
		staleAfter: cfg.StaleAfter(),
		schedule:   cfg.Workflow.ReapSchedule,
		retry:      defaultRetryPolicy,
		inflight:   make(map[string]struct{}),
	}
	m.verify = NewMemoryVerifyStore(time.Duration(cfg.Workflow.VerifyTTLSeconds) * time.Second)
	m.notifier = notifications.NewService(cfg)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start resumes pending jobs and schedules the stale job reaper. Jobs
// submitted before Start stay pending until it runs.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.runCtx = runCtx
	m.cancel = cancel
	m.running = true

	if m.schedule != "" {
		m.cron = cron.New()
		if _, err := m.cron.AddFunc(m.schedule, func() { m.reap(runCtx) }); err != nil {
			m.running = false
			m.cancel = nil
			m.mu.Unlock()
			cancel()
			return err
		}
		m.cron.Start()
	}
	m.mu.Unlock()

	m.reap(runCtx)
	return m.resumePending(runCtx)
}

// Stop cancels in-flight engine calls, stops the reaper and waits for workers.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	scheduler := m.cron
	m.running = false
	m.cancel = nil
	m.cron = nil
	m.mu.Unlock()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	cancel()
	m.wg.Wait()
}

// Wait blocks until every dispatched job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) resumePending(ctx context.Context) error {
	jobs, err := m.store.List(ctx, 0, queue.StatusPending)
	if err != nil {
		m.setLastError(err)
		return err
	}
	for _, job := range jobs {
		m.dispatch(job)
	}
	if len(jobs) > 0 {
		m.logger.Info("resumed pending jobs", logging.Int("count", len(jobs)))
	}
	return nil
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := *job
	m.lastJob = &snapshot
}
