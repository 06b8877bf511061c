package queue

import (
	"context"
	"database/sql"
	"fmt"
)

// LatestPageSize is the leaderboard length used by the gateway.
const LatestPageSize = 6

// Results returns a job's results ordered by rank.
func (s *Store) Results(ctx context.Context, id string) ([]Result, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+resultColumns+` FROM search_results WHERE request_id = ? ORDER BY rank_no ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// Latest aggregates results of completed jobs by path, ordered by mean similarity.
func (s *Store) Latest(ctx context.Context, limit int) ([]LatestEntry, error) {
	if limit <= 0 {
		limit = LatestPageSize
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `
        SELECT r.video_path AS video_path,
               MAX(r.video_name) AS video_name,
               AVG(r.similarity) AS avg_similarity,
               MAX(r.created_at) AS last_seen
        FROM search_results r
        JOIN search_requests q ON q.id = r.request_id
        WHERE q.status = ?
        GROUP BY r.video_path
        ORDER BY avg_similarity DESC, video_path ASC
        LIMIT ?`,
		string(StatusCompleted), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("latest results: %w", err)
	}
	defer rows.Close()

	var entries []LatestEntry
	for rows.Next() {
		var (
			entry    LatestEntry
			lastSeen sql.NullString
		)
		if err := rows.Scan(&entry.Path, &entry.Name, &entry.Similarity, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan latest: %w", err)
		}
		entry.Similarity = roundSimilarity(entry.Similarity)
		if ts, err := parseTimeString(lastSeen.String); err == nil {
			entry.CreatedAt = ts
		}
		entry.Rank = len(entries) + 1
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SetMatch stores the binary match label (nil clears it) on a job's result for path.
// It returns the number of rows updated.
func (s *Store) SetMatch(ctx context.Context, jobID, videoPath string, match *int) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE search_results SET result_match = ? WHERE request_id = ? AND video_path = ?`,
		nullableInt(match), jobID, videoPath,
	)
	if err != nil {
		return 0, fmt.Errorf("set result match: %w", err)
	}
	return res.RowsAffected()
}

// DeleteResultsByPath removes every result pointing at path and then removes the
// parent jobs left with no results. Both steps run in one transaction.
func (s *Store) DeleteResultsByPath(ctx context.Context, path string) (ResetCounts, error) {
	var counts ResetCounts
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		counts = ResetCounts{}
		rows, err := tx.QueryContext(ctx, `SELECT DISTINCT request_id FROM search_results WHERE video_path = ?`, path)
		if err != nil {
			return err
		}
		var parents []any
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			parents = append(parents, id)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if len(parents) == 0 {
			return nil
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM search_results WHERE video_path = ?`, path)
		if err != nil {
			return err
		}
		if counts.Results, err = res.RowsAffected(); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx,
			`DELETE FROM search_requests
             WHERE id IN (`+makePlaceholders(len(parents))+`)
               AND NOT EXISTS (SELECT 1 FROM search_results r WHERE r.request_id = search_requests.id)`,
			parents...,
		)
		if err != nil {
			return err
		}
		counts.Jobs, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return ResetCounts{}, fmt.Errorf("delete results by path: %w", err)
	}
	return counts, nil
}
