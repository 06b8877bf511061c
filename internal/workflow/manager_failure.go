package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"clipwatch/internal/logging"
	"clipwatch/internal/queue"
	"clipwatch/internal/services"
)

type retryPolicy struct {
	attempts int
	backoff  time.Duration
	timeout  time.Duration
}

var defaultRetryPolicy = retryPolicy{attempts: 3, backoff: 250 * time.Millisecond, timeout: 10 * time.Second}

// fail records the failure on the job. The status write runs on a fresh
// context and is retried; if every attempt fails the job is left to the reaper.
func (m *Manager) fail(logger *slog.Logger, job *queue.Job, cause error) {
	message := failureMessage(cause)
	m.setLastError(cause)

	var err error
	for attempt := 1; attempt <= m.retry.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), m.retry.timeout)
		err = m.store.Fail(ctx, job.ID, message)
		cancel()
		if err == nil || errors.Is(err, queue.ErrInvalidTransition) {
			break
		}
		if attempt < m.retry.attempts {
			time.Sleep(m.retry.backoff * time.Duration(attempt))
		}
	}

	switch {
	case err == nil:
		job.Status = queue.StatusFailed
		job.ErrorMessage = queue.TruncateError(message)
		m.setLastJob(job)
		logger.Warn("job failed",
			logging.String(logging.FieldEventType, "job_failed"),
			logging.String(logging.FieldErrorHint, failureHint(cause)),
			logging.String(logging.FieldImpact, "no results for this clip; resubmit to retry"),
			logging.String("error_message", job.ErrorMessage),
		)
		m.announceFailure(logger, job)
	case errors.Is(err, queue.ErrInvalidTransition):
		logger.Debug("job already terminal, failure not recorded", logging.Error(err))
	default:
		logging.ErrorWithContext(logger, "failed to record job failure", "job_fail_write_failed",
			logging.String(logging.FieldErrorHint, "the reaper will fail this job after stale_after_seconds"),
			logging.String(logging.FieldImpact, "job stays processing until reaped"),
			logging.Error(err),
		)
	}
}

func failureMessage(err error) string {
	if err == nil {
		return "search failed without error detail"
	}
	switch {
	case errors.Is(err, services.ErrTimeout):
		return "Similarity engine timed out: " + services.Message(err)
	case errors.Is(err, context.Canceled):
		return "Search cancelled: service shutting down"
	}
	msg := strings.TrimSpace(services.Message(err))
	if msg == "" {
		msg = "search failed"
	}
	return msg
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrTimeout):
		return "engine took longer than engine.timeout_seconds"
	case errors.Is(err, services.ErrExternal):
		return "check the similarity engine logs and engine.base_url"
	case errors.Is(err, services.ErrStorage):
		return "check store connectivity"
	default:
		return "check logs for details"
	}
}
