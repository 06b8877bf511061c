package gateway

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clipwatch/internal/api"
	"clipwatch/internal/fileutil"
	"clipwatch/internal/logging"
	"clipwatch/internal/queue"
	"clipwatch/internal/services"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if isMultipart(r) {
		s.searchUpload(w, r)
		return
	}

	var req api.SearchPathRequest
	if err := decodeJSON(r, &req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "Upload a video or provide a path")
		return
	}
	jobs, batch, err := s.workflow.SubmitPath(r.Context(), req.Path)
	if err != nil {
		s.fail(w, r, "search", err)
		return
	}
	if batch {
		ids := make([]string, 0, len(jobs))
		for _, job := range jobs {
			ids = append(ids, job.ID)
		}
		writeJSON(w, http.StatusOK, api.SearchAccepted{
			Batch:      true,
			Count:      len(ids),
			RequestIDs: ids,
			RequestID:  ids[0],
		})
		return
	}
	writeJSON(w, http.StatusOK, accepted(jobs[0]))
}

func (s *Server) searchUpload(w http.ResponseWriter, r *http.Request) {
	up, err := receiveVideo(w, r, s.cfg.Paths.UploadDir, s.cfg.Server.MaxUploadMB, func(ext string) string {
		if ext == "" {
			ext = ".webm"
		}
		return uuid.NewString() + ext
	})
	if err != nil {
		s.fail(w, r, "search upload", err)
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("search upload received",
		logging.String("filename", up.Original),
		logging.Int64("bytes", up.Size),
		logging.String(logging.FieldSourcePath, up.Path),
	)

	job, err := s.workflow.Submit(r.Context(), up.Path, queue.OriginUpload)
	if err != nil {
		_ = fileutil.RemoveIfExists(up.Path)
		s.fail(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, accepted(job))
}

func accepted(job *queue.Job) api.SearchAccepted {
	return api.SearchAccepted{
		RequestID: job.ID,
		Status:    api.StatusPending,
		CheckURL:  "/search/result/" + url.PathEscape(job.ID),
	}
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, "get result", services.Wrap(services.ErrStorage, "gateway", "get result", "load job", err))
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "Search request not found")
		return
	}

	switch job.Status {
	case queue.StatusFailed:
		writeJSON(w, http.StatusOK, api.SearchResult{Status: api.StatusFailed, Error: job.ErrorMessage})
		return
	case queue.StatusCompleted:
	default:
		writeJSON(w, http.StatusOK, api.SearchResult{Status: api.StatusPending})
		return
	}

	results, err := s.store.Results(r.Context(), id)
	if err != nil {
		s.fail(w, r, "get result", services.Wrap(services.ErrStorage, "gateway", "get result", "load results", err))
		return
	}
	items := make([]api.ResultItem, 0, len(results))
	for _, res := range results {
		items = append(items, api.ResultItem{
			Rank:        res.Rank,
			Name:        res.Name,
			Similarity:  res.Similarity,
			Path:        res.Path,
			ResultMatch: res.Match,
			CreatedAt:   formatTimestamp(res.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, api.SearchResult{Status: api.StatusCompleted, Results: items})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Latest(r.Context(), queue.LatestPageSize)
	if err != nil {
		s.fail(w, r, "latest", services.Wrap(services.ErrStorage, "gateway", "latest", "aggregate results", err))
		return
	}
	items := make([]api.ResultItem, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name
		if name == "" {
			name = "Unknown"
		}
		items = append(items, api.ResultItem{
			Rank:       entry.Rank,
			Name:       name,
			Similarity: entry.Similarity,
			Path:       entry.Path,
			CreatedAt:  formatTimestamp(entry.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, api.SearchResult{Status: api.StatusCompleted, Results: items})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req api.MatchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, "set match", err)
		return
	}
	updated, err := s.store.SetMatch(r.Context(), chi.URLParam(r, "id"), req.VideoPath, req.ResultMatch)
	if err != nil {
		s.fail(w, r, "set match", services.Wrap(services.ErrStorage, "gateway", "set match", "update result", err))
		return
	}
	if updated == 0 {
		writeError(w, http.StatusNotFound, "Result not found")
		return
	}
	writeJSON(w, http.StatusOK, api.MatchResponse{Success: true, ResultMatch: req.ResultMatch})
}

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	var req api.PathRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, "delete result", err)
		return
	}
	counts, err := s.store.DeleteResultsByPath(r.Context(), req.Path)
	if err != nil {
		s.fail(w, r, "delete result", services.Wrap(services.ErrStorage, "gateway", "delete result", "delete by path", err))
		return
	}
	if counts.Results == 0 {
		writeError(w, http.StatusNotFound, "Video not found in results")
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("results deleted by path",
		logging.String(logging.FieldSourcePath, req.Path),
		logging.Int64("results", counts.Results),
		logging.Int64("requests", counts.Jobs),
	)
	writeJSON(w, http.StatusOK, api.DeleteResultResponse{
		Success:         true,
		DeletedResults:  counts.Results,
		DeletedRequests: counts.Jobs,
	})
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
