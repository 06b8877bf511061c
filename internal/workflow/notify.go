package workflow

import (
	"context"
	"log/slog"
	"path/filepath"

	"clipwatch/internal/logging"
	"clipwatch/internal/notifications"
	"clipwatch/internal/queue"
)

// announceMatch publishes the best result when it reaches
// notifications.min_similarity. Watched-folder jobs are skipped unless
// notifications.include_watched is set.
func (m *Manager) announceMatch(ctx context.Context, logger *slog.Logger, job *queue.Job, results []queue.Result) {
	if len(results) == 0 || !m.shouldAnnounce(job) {
		return
	}
	best := results[0]
	if best.Similarity < m.cfg.Notifications.MinSimilarity {
		return
	}
	m.publish(ctx, logger, notifications.EventSearchMatched, notifications.Payload{
		"source":     filepath.Base(job.SourcePath),
		"match":      best.Name,
		"matchPath":  best.Path,
		"similarity": best.Similarity,
	})
}

func (m *Manager) announceFailure(logger *slog.Logger, job *queue.Job) {
	if !m.shouldAnnounce(job) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.retry.timeout)
	defer cancel()
	m.publish(ctx, logger, notifications.EventSearchFailed, notifications.Payload{
		"source": filepath.Base(job.SourcePath),
		"error":  job.ErrorMessage,
	})
}

func (m *Manager) shouldAnnounce(job *queue.Job) bool {
	return job.Origin != queue.OriginWatch || m.cfg.Notifications.IncludeWatched
}

func (m *Manager) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification not delivered", "notification_failed",
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic is reachable"),
			logging.String(logging.FieldImpact, "operator not alerted"),
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
