// Package web provides the HTTP API that drives step-wise imports.
//
// A client uploads a file, then calls the step endpoint with step 0, 1, 2, ...
// until the response reports is_done, and finally calls finish. Each call is
// independent: the upload and its parameters live in a source.Workspace and
// the counters in the progress store.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/stepimport/internal/config"
	"github.com/JonMunkholm/stepimport/internal/core"
	"github.com/JonMunkholm/stepimport/internal/metrics"
	"github.com/JonMunkholm/stepimport/internal/notify"
	"github.com/JonMunkholm/stepimport/internal/source"
	"github.com/JonMunkholm/stepimport/internal/web/middleware"
)

// Deps are the collaborators the server needs.
type Deps struct {
	Config    *config.Config
	DB        core.DBTX
	Progress  core.ProgressStore
	Workspace *source.Workspace
	Guard     *core.StepGuard
	Metrics   *metrics.Prometheus // optional; /metrics is not mounted when nil
	Notifiers []notify.Notifier

	// Permission overrides the principal allow-list from Config.Security.
	Permission core.PermissionFunc
}

// Server is the HTTP server for the import API.
type Server struct {
	deps       Deps
	cfg        *config.Config
	permission core.PermissionFunc
	recorder   core.Recorder

	router *chi.Mux
	server *http.Server
	stop   chan struct{}
}

// NewServer creates a new Server instance.
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:       deps,
		cfg:        deps.Config,
		permission: deps.Permission,
		recorder:   core.NoopRecorder{},
		router:     chi.NewRouter(),
		stop:       make(chan struct{}),
	}
	if s.permission == nil {
		s.permission = core.RequirePrincipal(deps.Config.Security.AllowedPrincipals)
	}
	if deps.Metrics != nil {
		s.recorder = deps.Metrics
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute).Middleware)
	}
}

// newLimiter creates a per-IP limiter whose sweeper stops with the server.
func (s *Server) newLimiter(perMinute int) *middleware.RateLimiter {
	rl := middleware.NewRateLimiter(perMinute)
	go rl.Run(time.Minute, s.stop)
	return rl
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		r.Get("/importers", s.handleListImporters)
		r.Get("/steps/status", s.handleStepStatus)

		upload := r.With()
		if s.cfg.Rate.Enabled {
			upload = r.With(s.newLimiter(s.cfg.Rate.UploadLimit).Middleware)
		}
		upload.Post("/imports/{entity}", s.handleUpload)

		r.Get("/imports/{batchID}", s.handleStatus)
		r.Delete("/imports/{batchID}", s.handleAbort)
		r.Post("/imports/{batchID}/steps/{step}", s.handleStep)
		r.Post("/imports/{batchID}/finish", s.handleFinish)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then waits for running steps to
// finish so their counters are written before the process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	if s.deps.Guard != nil {
		return s.deps.Guard.WaitForDrain(ctx)
	}
	return nil
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
