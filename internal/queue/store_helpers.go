package queue

import (
	"database/sql"
	"errors"
	"math"
	"time"
)

const jobColumns = "id, source_path, origin, status, error_message, created_at, updated_at"

const resultColumns = "request_id, rank_no, video_name, similarity, video_path, result_match, created_at"

// timeLayout is fixed width so stored timestamps compare correctly as strings.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type rowScanner interface{ Scan(dest ...any) error }

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		id           string
		sourcePath   string
		origin       sql.NullString
		statusStr    string
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(&id, &sourcePath, &origin, &statusStr, &errorMessage, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		SourcePath:   sourcePath,
		Origin:       Origin(origin.String),
		Status:       Status(statusStr),
		ErrorMessage: errorMessage.String,
	}
	if job.Origin == "" {
		job.Origin = OriginPath
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func scanResult(scanner rowScanner) (Result, error) {
	var (
		res        Result
		match      sql.NullInt64
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&res.JobID, &res.Rank, &res.Name, &res.Similarity, &res.Path, &match, &createdRaw); err != nil {
		return Result{}, err
	}
	if match.Valid {
		v := int(match.Int64)
		res.Match = &v
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		res.CreatedAt = created
	}
	return res, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// roundSimilarity keeps two decimals, matching the DECIMAL(6,2) column.
func roundSimilarity(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return math.Round(value*100) / 100
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
