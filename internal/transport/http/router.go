package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"pricepipe/internal/config"
	apierrors "pricepipe/internal/errors"
	"pricepipe/internal/infrastructure"
	"pricepipe/internal/middleware"
)

// RouterDeps carries everything the router mounts.
type RouterDeps struct {
	Operations *OperationsHandler
	Runs       *RunsHandler
	Health     *HealthHandler
	WS         *WSHandler
	Metrics    *infrastructure.Metrics
	Security   config.SecurityConfig
	Logger     *slog.Logger
}

// NewRouter assembles the service's HTTP surface.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Compress(5))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		Logger:         logger,
	}))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	if deps.Security.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			deps.Security.RateLimit.RPS,
			deps.Security.RateLimit.Burst,
			logger,
		)
		r.Use(limiter.Handler)
	}

	r.Route("/api", func(r chi.Router) {
		// Not applied globally so the websocket route stays long-lived.
		r.Use(middleware.Timeout(60*time.Second, logger))
		if deps.Operations != nil {
			r.Mount("/operations", deps.Operations.Routes())
		}
		if deps.Runs != nil {
			r.Mount("/runs", deps.Runs.Routes())
			r.Mount("/models", deps.Runs.ModelRoutes())
		}
		if deps.Health != nil {
			r.Mount("/health", deps.Health.Routes())
		}
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	if deps.WS != nil {
		r.Get("/ws", deps.WS.ServeHTTP)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, apierrors.ErrNotFound)
	})

	return r
}
