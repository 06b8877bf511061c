package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Claim moves a pending job to processing. It reports false when another
// worker already claimed the job or it is no longer pending.
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE search_requests SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(StatusProcessing),
		formatTime(time.Now()),
		id,
		string(StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job rows: %w", err)
	}
	return affected == 1, nil
}

// Complete stores the ranked results and marks the job completed in one transaction.
// Ranks are reassigned densely from 1 in the order given.
func (s *Store) Complete(ctx context.Context, id string, results []Result) error {
	now := formatTime(time.Now())
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE search_requests SET status = ?, error_message = NULL, updated_at = ? WHERE id = ? AND status = ?`,
			string(StatusCompleted), now, id, string(StatusProcessing),
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected != 1 {
			return fmt.Errorf("%w: job %s is not processing", ErrInvalidTransition, id)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM search_results WHERE request_id = ?`, id); err != nil {
			return err
		}
		for idx, r := range results {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO search_results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, idx+1, r.Name, roundSimilarity(r.Similarity), r.Path, nullableInt(r.Match), now,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// Fail records a truncated error and marks a non-terminal job failed.
func (s *Store) Fail(ctx context.Context, id, message string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE search_requests SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		string(StatusFailed),
		nullableString(TruncateError(message)),
		formatTime(time.Now()),
		id,
		string(StatusPending),
		string(StatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fail job rows: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("fail job: %w: job %s is already terminal or unknown", ErrInvalidTransition, id)
	}
	return nil
}

// ReapStale marks processing jobs whose last update predates cutoff as failed.
func (s *Store) ReapStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE search_requests SET status = ?, error_message = ?, updated_at = ? WHERE status = ? AND updated_at < ?`,
		string(StatusFailed),
		StaleReapMessage,
		formatTime(time.Now()),
		string(StatusProcessing),
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reap stale jobs: %w", err)
	}
	return res.RowsAffected()
}
