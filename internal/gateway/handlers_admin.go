package gateway

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"clipwatch/internal/api"
	"clipwatch/internal/logging"
	"clipwatch/internal/media"
	"clipwatch/internal/notifications"
	"clipwatch/internal/services"
)

const healthProbeTimeout = 5 * time.Second

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("clipwatch gateway running\n"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	resp := api.HealthResponse{OK: true, Engine: "connected", EngineURL: s.cfg.Engine.BaseURL, Store: "connected"}
	if err := s.engine.Health(ctx); err != nil {
		resp.Engine = "disconnected"
		resp.Error = services.Message(err)
	}
	if err := s.store.Ping(ctx); err != nil {
		resp.Store = "disconnected"
		if resp.Error == "" {
			resp.Error = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Reset(r.Context())
	if err != nil {
		s.fail(w, r, "reset", services.Wrap(services.ErrStorage, "gateway", "reset", "clear records", err))
		return
	}
	logger := logging.WithContext(r.Context(), s.logger)
	deleted, err := media.PurgeVideos(s.cfg.Paths.WatchDir)
	if err != nil {
		logging.WarnWithContext(logger, "watched folder purge incomplete", "reset_purge_failed",
			logging.String(logging.FieldErrorHint, "check permissions on the watched folder"),
			logging.String(logging.FieldImpact, "remaining segments will be re-queued by the watcher"),
			logging.Error(err),
		)
	}
	logger.Info("store reset",
		logging.Int64("results", counts.Results),
		logging.Int64("requests", counts.Jobs),
		logging.Int("videos", deleted),
	)
	writeJSON(w, http.StatusOK, api.ResetResponse{
		Success:         true,
		DeletedVideos:   deleted,
		DeletedResults:  counts.Results,
		DeletedRequests: counts.Jobs,
	})
}

func (s *Server) handleVerifyStart(w http.ResponseWriter, r *http.Request) {
	var req api.PathRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, "verify start", err)
		return
	}
	if _, err := os.Stat(req.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "Video does not exist")
			return
		}
		s.fail(w, r, "verify start", services.Wrap(services.ErrValidation, "", "", "Video not readable", err))
		return
	}
	id := s.workflow.StartVerify(r.Context(), req.Path)
	writeJSON(w, http.StatusOK, api.VerifyStartResponse{VerifyID: id})
}

func (s *Server) handleVerifyStatus(w http.ResponseWriter, r *http.Request) {
	state, ok := s.workflow.Verification(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Verify job not found")
		return
	}
	writeJSON(w, http.StatusOK, api.VerifyStatus{
		Status:     state.Status,
		Progress:   state.Progress,
		Similarity: state.Similarity,
		VideoPath:  state.VideoPath,
		Error:      state.Error,
	})
}

func (s *Server) handleUpdateDB(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Extract(r.Context())
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "engine index rebuild failed", "engine_extract_failed",
			logging.String(logging.FieldErrorHint, "check the similarity engine logs"),
			logging.Error(err),
		)
		writeError(w, http.StatusInternalServerError, services.Message(err))
		return
	}
	payload := notifications.Payload{"totalVideos": result.TotalVideos}
	if err := s.notifier.Publish(r.Context(), notifications.EventIndexRebuilt, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "notification not delivered", "notification_failed",
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic is reachable"),
			logging.Error(err),
		)
	}
	writeJSON(w, http.StatusOK, api.UpdateDBResponse{
		Success:     true,
		Message:     result.Message,
		TotalVideos: result.TotalVideos,
	})
}
