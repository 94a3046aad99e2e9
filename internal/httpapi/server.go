// Package httpapi serves layouts, diagrams, validation and stored
// definitions over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rendis/tileflow/internal/logging"
	"github.com/rendis/tileflow/internal/metrics"
	"github.com/rendis/tileflow/internal/service"
)

// Request limits.
const (
	maxBodyBytes  = 1 << 20
	maxBatchItems = 64
)

// Deps holds the dependencies for the API server.
type Deps struct {
	Service *service.Service
	Metrics *metrics.Registry // optional; enables GET /metrics
	Logger  *slog.Logger
}

// Server serves the tileflow HTTP API.
type Server struct {
	svc     *service.Service
	metrics *metrics.Registry
	logger  *slog.Logger
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{svc: deps.Service, metrics: deps.Metrics, logger: logger}
}

// Handler returns the HTTP handler for the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/layout", s.handleLayout)
		r.Post("/layout/batch", s.handleLayoutBatch)
		r.Post("/diagram", s.handleDiagram)
		r.Post("/validate", s.handleValidate)

		r.Route("/definitions", func(r chi.Router) {
			r.Get("/", s.handleListDefinitions)
			r.Post("/", s.handleDefine)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDefinition)
				r.Delete("/", s.handleDeleteDefinition)
				r.Get("/layout", s.handleDefinitionLayout)
				r.Get("/diagram", s.handleDefinitionDiagram)
			})
		})
	})
	return r
}

// NewHTTPServer wraps h in an *http.Server with the API's timeouts.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
