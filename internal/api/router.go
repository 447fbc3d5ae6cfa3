package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hrdatainsights/salary-platform/internal/analytics"
	"github.com/hrdatainsights/salary-platform/pkg/health"
	"github.com/hrdatainsights/salary-platform/pkg/metrics"
	"github.com/hrdatainsights/salary-platform/pkg/middleware"
	"github.com/hrdatainsights/salary-platform/pkg/ratelimit"
)

// RouterConfig carries the optional pieces of the HTTP surface. Nil fields
// switch the matching routes or middleware off.
type RouterConfig struct {
	Analytics *analytics.Handler
	Health    *health.Checker
	Metrics   *metrics.Metrics
	Limiter   *ratelimit.Limiter
	Timeout   time.Duration
}

// NewRouter builds the estimator service's HTTP handler.
//
// Route table:
//
//	GET    /api/v1/options                    → selectable inputs
//	GET    /api/v1/history                    → historical lookup
//	GET    /api/v1/predict                    → prediction + projection
//	GET    /api/v1/estimate                   → lookup + prediction
//	GET    /api/v1/overview/{view}            → dataset overview (cached)
//	GET    /api/v1/overview/cache/stats       → overview cache counters
//	POST   /api/v1/overview/cache/invalidate  → drop cached views
//	GET    /api/v1/analytics                  → live query statistics
//	GET    /api/v1/analytics/snapshots        → persisted statistics
//	GET    /health/live, /health/ready        → probes
//
// Middleware chain (outermost first):
//
//	RequestID → Recover → Logging → CORS → Metrics → RateLimit → Timeout → handler
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.Limiter != nil {
		r.Use(middleware.RateLimit(cfg.Limiter, cfg.Metrics))
	}
	if cfg.Timeout > 0 {
		r.Use(middleware.Timeout(cfg.Timeout))
	}

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.LiveHandler())
		r.Get("/health/ready", cfg.Health.ReadyHandler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/options", h.Options)
		r.Get("/history", h.History)
		r.Get("/predict", h.Predict)
		r.Get("/estimate", h.Estimate)

		r.Route("/overview", func(r chi.Router) {
			r.Get("/cache/stats", h.CacheStats)
			r.Post("/cache/invalidate", h.CacheInvalidate)
			r.Get("/{view}", h.Overview)
		})

		if cfg.Analytics != nil {
			r.Get("/analytics", cfg.Analytics.Stats)
			r.Get("/analytics/snapshots", cfg.Analytics.Snapshots)
		}
	})

	return r
}
