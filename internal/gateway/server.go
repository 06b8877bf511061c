package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"clipwatch/internal/config"
	"clipwatch/internal/engine"
	"clipwatch/internal/logging"
	"clipwatch/internal/notifications"
	"clipwatch/internal/queue"
	"clipwatch/internal/workflow"
)

// Orchestrator is the part of the workflow manager the gateway drives.
type Orchestrator interface {
	Submit(ctx context.Context, path string, origin queue.Origin) (*queue.Job, error)
	SubmitPath(ctx context.Context, path string) ([]*queue.Job, bool, error)
	StartVerify(ctx context.Context, videoPath string) string
	Verification(id string) (workflow.VerifyState, bool)
}

// Engine is the part of the similarity engine client the gateway calls directly.
type Engine interface {
	Health(ctx context.Context) error
	Extract(ctx context.Context) (engine.ExtractResult, error)
}

// Server serves the gateway API.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow Orchestrator
	engine   Engine
	notifier notifications.Service
	now      func() time.Time

	router   chi.Router
	server   *http.Server
	listener net.Listener
}

// Option customizes a Server.
type Option func(*Server)

// WithNotifier announces index rebuilds through notifier.
func WithNotifier(notifier notifications.Service) Option {
	return func(s *Server) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// New builds the router. It does not listen until Start.
func New(cfg *config.Config, store *queue.Store, wf Orchestrator, eng Engine, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "gateway"),
		store:    store,
		workflow: wf,
		engine:   eng,
		notifier: notifications.NewService(cfg),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Range", requestIDHeader},
		ExposedHeaders: []string{"Content-Range", "Accept-Ranges", "Content-Length", requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/search/result/{id}", s.handleResult)
	r.Get("/search/latest", s.handleLatest)
	r.Get("/verify/status/{id}", s.handleVerifyStatus)
	r.Get("/video", s.handleVideo)
	r.Get("/template", s.handleTemplate)
	r.Get("/templates", s.handleTemplates)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.cfg.Server.APIToken))
		r.Post("/search", s.handleSearch)
		r.Put("/search/result/{id}/match", s.handleMatch)
		r.Post("/verify/start", s.handleVerifyStart)
		r.Post("/save-video", s.handleSaveVideo)
		r.Post("/save-video-auto", s.handleSaveVideoAuto)
		r.Post("/update-db", s.handleUpdateDB)
		r.Delete("/result", s.handleDeleteResult)
		r.Delete("/reset", s.handleReset)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on server.bind and serves until ctx is done or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Server.Bind)
	if bind == "" {
		return errors.New("gateway bind address is empty")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "gateway server error", "gateway_serve_failed",
				logging.String(logging.FieldErrorHint, "check server.bind and port availability"),
				logging.Error(err),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	s.logger.Info("gateway listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	s.shutdown()
}

func (s *Server) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
