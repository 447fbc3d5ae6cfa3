// Package router wires the gateway routes and middleware chain.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	gwhandler "github.com/hrdatainsights/salary-platform/internal/gateway/handler"
	gwmw "github.com/hrdatainsights/salary-platform/internal/gateway/middleware"
	"github.com/hrdatainsights/salary-platform/pkg/health"
	"github.com/hrdatainsights/salary-platform/pkg/metrics"
	pkgmw "github.com/hrdatainsights/salary-platform/pkg/middleware"
	"github.com/hrdatainsights/salary-platform/pkg/ratelimit"
)

// Config carries the router's collaborators. Metrics may be nil.
type Config struct {
	Validator gwmw.KeyValidator
	Limiter   *ratelimit.Limiter
	Health    *health.Checker
	Metrics   *metrics.Metrics
}

// New builds the gateway handler.
//
//	GET    /api/v1/options, history, predict, estimate  → estimator
//	GET    /api/v1/overview/*                           → estimator
//	POST   /api/v1/overview/cache/invalidate            → estimator (admin)
//	GET    /api/v1/analytics, analytics/snapshots       → analytics
//	GET    /api/v1/admin/keys                           → list keys (admin)
//	POST   /api/v1/admin/keys                           → create key (admin)
//	DELETE /api/v1/admin/keys/{id}                      → revoke key (admin)
//	GET    /health/live, /health/ready                  → gateway health
//
// Middleware chain (outermost first):
//
//	RequestID → Recover → Logging → CORS → Metrics → Auth → RateLimit → handler
func New(h *gwhandler.Handler, cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(pkgmw.RequestID)
	r.Use(pkgmw.Recover)
	r.Use(pkgmw.Logging)
	r.Use(pkgmw.CORS(corsConfig()))
	if cfg.Metrics != nil {
		r.Use(pkgmw.Metrics(cfg.Metrics))
	}

	r.Get("/health/live", cfg.Health.LiveHandler())
	r.Get("/health/ready", cfg.Health.ReadyHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(gwmw.Auth(cfg.Validator))
		r.Use(gwmw.RateLimit(cfg.Limiter, cfg.Metrics))

		r.Get("/options", h.ProxyEstimator)
		r.Get("/history", h.ProxyEstimator)
		r.Get("/predict", h.ProxyEstimator)
		r.Get("/estimate", h.ProxyEstimator)
		r.Get("/overview/*", h.ProxyEstimator)
		r.With(gwmw.RequireAdmin).Post("/overview/cache/invalidate", h.ProxyEstimator)

		r.Get("/analytics", h.ProxyAnalytics)
		r.Get("/analytics/snapshots", h.ProxyAnalytics)

		r.Route("/admin/keys", func(r chi.Router) {
			r.Use(gwmw.RequireAdmin)
			r.Get("/", h.ListAPIKeys)
			r.Post("/", h.CreateAPIKey)
			r.Delete("/{id}", h.RevokeAPIKey)
		})
	})
	return r
}

func corsConfig() pkgmw.CORSConfig {
	cfg := pkgmw.DefaultCORSConfig()
	cfg.AllowMethods = append(cfg.AllowMethods, http.MethodDelete)
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", "X-API-Key")
	return cfg
}
