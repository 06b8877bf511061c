package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a search job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Origin records how a job's source file entered the system.
type Origin string

const (
	// OriginUpload marks a temporary upload that is removed once the job finishes.
	OriginUpload Origin = "upload"
	// OriginPath marks a caller-supplied path that is never touched.
	OriginPath Origin = "path"
	// OriginWatch marks a file discovered in the watched folder.
	OriginWatch Origin = "watch"
)

// MaxErrorLength bounds the error message persisted on a failed job.
const MaxErrorLength = 1000

// StaleReapMessage is the error recorded on processing jobs reaped after timing out.
const StaleReapMessage = "stale processing job reaped"

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus normalizes a user supplied status name.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one similarity-search request.
type Job struct {
	ID           string
	SourcePath   string
	Origin       Origin
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTemporary reports whether the source file belongs to the job and must be removed after processing.
func (j *Job) IsTemporary() bool {
	return j != nil && j.Origin == OriginUpload
}

// Result is one ranked match returned by the engine for a job.
type Result struct {
	JobID      string
	Rank       int
	Name       string
	Similarity float64
	Path       string
	Match      *int
	CreatedAt  time.Time
}

// LatestEntry is one row of the cross-job leaderboard.
type LatestEntry struct {
	Rank       int
	Name       string
	Similarity float64
	Path       string
	CreatedAt  time.Time
}

// ResetCounts reports how many rows a bulk reset removed.
type ResetCounts struct {
	Jobs    int64
	Results int64
}

// HealthSummary aggregates job counts for status output.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// TruncateError clips a message to MaxErrorLength runes.
func TruncateError(message string) string {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) <= MaxErrorLength {
		return string(runes)
	}
	return string(runes[:MaxErrorLength])
}
