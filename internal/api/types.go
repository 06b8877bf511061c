package api

// Job statuses as reported over the wire. Processing jobs are reported as
// pending to clients.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SearchPathRequest submits an existing file or directory for search.
type SearchPathRequest struct {
	Path string `json:"path"`
}

// SearchAccepted acknowledges a search submission. Batch submissions set
// Batch, Count and RequestIDs; RequestID is then the first id.
type SearchAccepted struct {
	RequestID  string   `json:"request_id"`
	Status     string   `json:"status,omitempty"`
	CheckURL   string   `json:"check_url,omitempty"`
	Batch      bool     `json:"batch,omitempty"`
	Count      int      `json:"count,omitempty"`
	RequestIDs []string `json:"request_ids,omitempty"`
}

// ResultItem is one ranked match.
type ResultItem struct {
	Rank        int     `json:"rank"`
	Name        string  `json:"name"`
	Similarity  float64 `json:"similarity"`
	Path        string  `json:"path"`
	ResultMatch *int    `json:"result_match"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// SearchResult is the polled state of one job.
type SearchResult struct {
	Status  string       `json:"status"`
	Results []ResultItem `json:"results,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// MatchRequest labels a result. A nil ResultMatch clears the label.
type MatchRequest struct {
	VideoPath   string `json:"video_path" validate:"required"`
	ResultMatch *int   `json:"result_match" validate:"omitempty,oneof=0 1"`
}

// MatchResponse echoes the stored label.
type MatchResponse struct {
	Success     bool `json:"success"`
	ResultMatch *int `json:"result_match"`
}

// PathRequest carries a single filesystem path.
type PathRequest struct {
	Path string `json:"path" validate:"required"`
}

// DeleteResultResponse reports what a delete-by-path removed.
type DeleteResultResponse struct {
	Success         bool  `json:"success"`
	DeletedResults  int64 `json:"deleted_results"`
	DeletedRequests int64 `json:"deleted_requests"`
}

// ResetResponse reports what a full reset removed.
type ResetResponse struct {
	Success         bool  `json:"success"`
	DeletedVideos   int   `json:"deleted_videos"`
	DeletedResults  int64 `json:"deleted_results"`
	DeletedRequests int64 `json:"deleted_requests"`
}

// SaveVideoResponse describes a persisted segment.
type SaveVideoResponse struct {
	Success  bool   `json:"success"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

// TemplatesResponse lists reference clips.
type TemplatesResponse struct {
	Templates []string `json:"templates"`
	Message   string   `json:"message,omitempty"`
}

// VerifyStartResponse returns the id to poll.
type VerifyStartResponse struct {
	VerifyID string `json:"verify_id"`
}

// VerifyStatus is the polled state of a verification.
type VerifyStatus struct {
	Status     string  `json:"status"`
	Progress   int     `json:"progress"`
	Similarity float64 `json:"similarity"`
	VideoPath  string  `json:"video_path,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// HealthResponse reports gateway and engine reachability.
type HealthResponse struct {
	OK        bool   `json:"ok"`
	Engine    string `json:"engine"`
	EngineURL string `json:"engine_url"`
	Store     string `json:"store"`
	Error     string `json:"error,omitempty"`
}

// UpdateDBResponse relays the engine's index rebuild outcome.
type UpdateDBResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	TotalVideos int    `json:"total_videos"`
}
