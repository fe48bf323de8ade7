package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/simple-store/pkg/simplestore/api"
	"github.com/tendant/simple-store/pkg/simplestore/config"
)

// HTTPServer wires the simple-store runtime into an HTTP handler
type HTTPServer struct {
	runtime  *config.Runtime
	config   *config.ServerConfig
	registry *prometheus.Registry
	logger   *slog.Logger
}

// NewHTTPServer creates a new HTTP server wrapper. A nil registry disables /metrics.
func NewHTTPServer(runtime *config.Runtime, serverConfig *config.ServerConfig, registry *prometheus.Registry, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{
		runtime:  runtime,
		config:   serverConfig,
		registry: registry,
		logger:   logger,
	}
}

// Routes sets up the HTTP routes
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)

	// only the health checks are bounded; API requests carry no deadline
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/health", s.handleHealth)
		r.Get("/healthz", s.handleHealth)
		r.Get("/healthz/ready", s.handleReady)
	})

	routerConfig := api.RouterConfig{
		Prefix:       s.config.APIPrefix,
		Environment:  s.config.Environment,
		MaxBodyBytes: s.config.MaxUploadBytes,
		Logger:       s.logger,
	}
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", api.MetricsHandler(s.registry))
		routerConfig.Registerer = s.registry
	}

	r.Mount("/", api.NewRouter(s.runtime.Service, routerConfig))

	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{
		"status":      "healthy",
		"environment": s.config.Environment,
		"database":    s.config.DatabaseType,
		"storage":     s.config.Storage.Type,
	})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.runtime.Ready(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "err", err)
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ready"})
}
