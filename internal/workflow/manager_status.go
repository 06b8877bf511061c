package workflow

import (
	"context"
	"time"

	"clipwatch/internal/logging"
	"clipwatch/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	InFlight   int
	LastError  string
	LastJob    *queue.Job
	QueueStats map[queue.Status]int
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, InFlight: len(m.inflight)}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		snapshot := *m.lastJob
		summary.LastJob = &snapshot
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read job stats", logging.Error(err))
	}
	summary.QueueStats = stats
	return summary
}

// ReapStale fails processing jobs not updated within the stale window and
// returns how many were reaped.
func (m *Manager) ReapStale(ctx context.Context) (int64, error) {
	if m.staleAfter <= 0 {
		return 0, nil
	}
	return m.store.ReapStale(ctx, time.Now().Add(-m.staleAfter))
}

func (m *Manager) reap(ctx context.Context) {
	reaped, err := m.ReapStale(ctx)
	if err != nil {
		m.setLastError(err)
		logging.WarnWithContext(m.logger, "stale job reap failed", "reap_failed",
			logging.String(logging.FieldErrorHint, "check store connectivity"),
			logging.String(logging.FieldImpact, "stuck processing jobs remain until the next run"),
			logging.Error(err),
		)
	} else if reaped > 0 {
		m.logger.Info("reaped stale processing jobs", logging.Int64("count", reaped))
	}

	if ttlStore, ok := m.verify.(interface{ TTL() time.Duration }); ok {
		m.verify.Sweep(time.Now().Add(-ttlStore.TTL()))
	}
}
