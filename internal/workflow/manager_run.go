package workflow

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"sort"

	"clipwatch/internal/engine"
	"clipwatch/internal/logging"
	"clipwatch/internal/queue"
	"clipwatch/internal/services"
)

// dispatch runs job on its own goroutine. It is a no-op when the manager is
// stopped or the job is already in flight in this process.
func (m *Manager) dispatch(job *queue.Job) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	if _, busy := m.inflight[job.ID]; busy {
		m.mu.Unlock()
		return
	}
	m.inflight[job.ID] = struct{}{}
	ctx := m.runCtx
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.inflight, job.ID)
			m.mu.Unlock()
		}()
		m.process(ctx, job)
	}()
}

func (m *Manager) process(ctx context.Context, job *queue.Job) {
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, m.logger).With(logging.String(logging.FieldSourcePath, job.SourcePath))

	claimed, err := m.store.Claim(ctx, job.ID)
	if err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(logger, "claim failed", "job_claim_failed",
			logging.String(logging.FieldErrorHint, "check store connectivity"),
			logging.Error(err),
		)
		return
	}
	if !claimed {
		logger.Debug("job already claimed or no longer pending")
		return
	}
	job.Status = queue.StatusProcessing
	defer m.cleanupSource(logger, job)

	logger.Info("job processing")
	matches, err := m.engine.Search(ctx, job.SourcePath)
	if err != nil {
		m.fail(logger, job, err)
		return
	}

	results := m.rankResults(matches)
	if err := m.store.Complete(ctx, job.ID, results); err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			logging.WarnWithContext(logger, "job left processing before completion", "job_complete_conflict",
				logging.String(logging.FieldErrorHint, "engine call outlived stale_after_seconds"),
				logging.String(logging.FieldImpact, "results discarded"),
				logging.Error(err),
			)
			return
		}
		m.fail(logger, job, services.Wrap(services.ErrStorage, "workflow", "complete", "persist results", err))
		return
	}
	job.Status = queue.StatusCompleted
	m.setLastJob(job)
	logger.Info("job completed", logging.Int("results", len(results)))
	m.announceMatch(ctx, logger, job, results)
}

// rankResults orders matches by engine rank, using array position when the
// engine omitted it, and keeps the first maxResults. Ranks are renumbered
// densely by the store.
func (m *Manager) rankResults(matches []engine.Match) []queue.Result {
	type ranked struct {
		rank  int
		match engine.Match
	}
	ordered := make([]ranked, 0, len(matches))
	for idx, match := range matches {
		rank := match.Rank
		if rank <= 0 {
			rank = idx + 1
		}
		ordered = append(ordered, ranked{rank: rank, match: match})
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].rank < ordered[j].rank })
	if len(ordered) > m.maxResults {
		ordered = ordered[:m.maxResults]
	}

	results := make([]queue.Result, 0, len(ordered))
	for i, r := range ordered {
		results = append(results, queue.Result{
			Rank:       i + 1,
			Name:       engine.DisplayName(r.match.Name, r.match.Path),
			Similarity: clampPercent(r.match.Similarity),
			Path:       r.match.Path,
		})
	}
	return results
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func (m *Manager) cleanupSource(logger *slog.Logger, job *queue.Job) {
	if !job.IsTemporary() {
		return
	}
	if err := os.Remove(job.SourcePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "temporary upload not removed", "upload_cleanup_failed",
			logging.String(logging.FieldErrorHint, "remove the file from the upload directory manually"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
			logging.Error(err),
		)
	}
}
