package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

// DefaultMountPath is where the editor expects the connector endpoints.
const DefaultMountPath = "/connector"

// RouterConfig assembles the HTTP surface.
type RouterConfig struct {
	Service        editorbridge.Service
	Logger         *slog.Logger
	MountPath      string
	AllowedOrigins []string
	MaxUploadSize  int64
	// Principal resolves the caller. HeaderPrincipal is used when nil.
	Principal func(http.Handler) http.Handler
	// Metrics is optional; /metrics is only mounted when set.
	Metrics *Metrics
	// Wrap decorates the connector routes, e.g. for tracing.
	Wrap func(http.Handler) http.Handler
}

// NewRouter builds the full router: health and metrics at the root, connector
// endpoints under MountPath.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mount := strings.TrimRight(cfg.MountPath, "/")
	if mount == "" {
		mount = DefaultMountPath
	}
	principal := cfg.Principal
	if principal == nil {
		principal = HeaderPrincipal
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware(cfg.AllowedOrigins))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	h := NewHandler(cfg.Service, logger).WithMaxUploadSize(cfg.MaxUploadSize)
	r.Group(func(r chi.Router) {
		r.Use(principal)
		if cfg.Wrap != nil {
			r.Use(cfg.Wrap)
		}
		r.Mount(mount, h.Routes())
	})
	return r
}
