package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewJob inserts a pending job for the given source file.
func (s *Store) NewJob(ctx context.Context, sourcePath string, origin Origin) (*Job, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return nil, errors.New("insert job: source path is required")
	}
	if origin == "" {
		origin = OriginPath
	}

	now := time.Now().UTC()
	job := &Job{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		Origin:     origin,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	timestamp := formatTime(now)
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO search_requests (id, source_path, origin, status, error_message, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.SourcePath,
		string(job.Origin),
		string(job.Status),
		nil,
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// GetByID fetches a job. It returns nil, nil when the id is unknown.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM search_requests WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status (all when none given), newest first.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM search_requests`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// SourcePaths returns the set of source paths referenced by any job, regardless of status.
func (s *Store) SourcePaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT DISTINCT source_path FROM search_requests`)
	if err != nil {
		return nil, fmt.Errorf("list source paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan source path: %w", err)
		}
		paths[path] = struct{}{}
	}
	return paths, rows.Err()
}
