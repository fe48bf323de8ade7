package api

import (
	"log/slog"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-store/pkg/simplestore"
)

// RouterConfig configures NewRouter
type RouterConfig struct {
	// Prefix the resources are mounted under, "/api" when empty
	Prefix      string
	Environment string
	// MaxBodyBytes caps request bodies; zero means no limit
	MaxBodyBytes int64
	Logger       *slog.Logger
	// Registerer receives the HTTP metrics; nil disables them
	Registerer prometheus.Registerer
}

// NewRouter mounts the users, files and hello resources under the prefix
// with the standard middleware stack.
func NewRouter(service simplestore.Service, cfg RouterConfig) chi.Router {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "/api"
	}
	base := strings.TrimSuffix(prefix, "/")

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware)
	r.Use(CORSMiddleware(nil, nil, nil))
	if cfg.Registerer != nil {
		collector := NewPrometheusCollector(cfg.Registerer,
			base+"/users", base+"/files", base+"/hello",
		)
		r.Use(MetricsMiddleware(collector))
	}

	r.Route(prefix, func(r chi.Router) {
		r.Use(RequestSizeLimitMiddleware(cfg.MaxBodyBytes))
		r.Mount("/users", NewUsersHandler(service).Routes())
		r.Mount("/files", NewFilesHandler(service, base).Routes())
		r.Mount("/hello", NewHelloHandler(cfg.Environment).Routes())
	})

	return r
}
