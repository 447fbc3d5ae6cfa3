// Package handler implements the gateway's endpoints: reverse proxies to the
// estimator and analytics services, and API key administration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hrdatainsights/salary-platform/internal/auth/apikey"
	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
	"github.com/hrdatainsights/salary-platform/pkg/logger"
	"github.com/hrdatainsights/salary-platform/pkg/metrics"
	"github.com/hrdatainsights/salary-platform/pkg/middleware"
	"github.com/hrdatainsights/salary-platform/pkg/resilience"
)

// Config holds the base URLs of the services behind the gateway.
type Config struct {
	EstimatorURL string
	AnalyticsURL string
}

// KeyStore manages API keys. *apikey.Validator satisfies it.
type KeyStore interface {
	CreateKey(ctx context.Context, k apikey.NewKey) (string, *apikey.KeyInfo, error)
	RevokeKey(ctx context.Context, id string) error
	ListKeys(ctx context.Context) ([]apikey.KeyInfo, error)
}

// Handler proxies client requests and serves key administration.
type Handler struct {
	estimatorProxy *httputil.ReverseProxy
	analyticsProxy *httputil.ReverseProxy
	backends       map[string]*url.URL
	keys           KeyStore
	logger         *slog.Logger
}

// New builds the proxies. m may be nil.
func New(cfg Config, keys KeyStore, m *metrics.Metrics) (*Handler, error) {
	h := &Handler{
		backends: make(map[string]*url.URL, 2),
		keys:     keys,
		logger:   slog.Default().With("component", "gateway-handler"),
	}
	var err error
	if h.estimatorProxy, err = h.newProxy("estimator", cfg.EstimatorURL, m); err != nil {
		return nil, err
	}
	if h.analyticsProxy, err = h.newProxy("analytics", cfg.AnalyticsURL, m); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handler) newProxy(name, target string, m *metrics.Metrics) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s url %q", name, target)
	}
	h.backends[name] = u

	proxy := httputil.NewSingleHostReverseProxy(u)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		// Client credentials stop at the gateway.
		r.Header.Del("Authorization")
		r.Header.Del("X-API-Key")
		if id := logger.RequestID(r.Context()); id != "" {
			r.Header.Set(middleware.RequestIDHeader, id)
		}
	}
	proxy.Transport = &breakerTransport{
		next: http.DefaultTransport,
		breaker: resilience.NewCircuitBreaker("gateway-"+name, resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
			OnStateChange: func(name string, from, to resilience.State) {
				if m != nil {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				}
			},
		}),
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		status := http.StatusBadGateway
		if errors.Is(err, resilience.ErrCircuitOpen) {
			status = http.StatusServiceUnavailable
		}
		logger.FromContext(r.Context()).Warn("proxy request failed", "backend", name, "path", r.URL.Path, "error", err)
		h.writeJSON(w, status, map[string]string{
			"error":      name + " service unavailable",
			"request_id": logger.RequestID(r.Context()),
		})
	}
	return proxy, nil
}

// breakerTransport counts transport errors and 5xx answers against a
// circuit breaker and fails fast while it is open.
type breakerTransport struct {
	next    http.RoundTripper
	breaker *resilience.CircuitBreaker
}

var errUpstream = errors.New("upstream server error")

func (t *breakerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	var (
		resp  *http.Response
		rtErr error
	)
	err := t.breaker.Execute(func() error {
		resp, rtErr = t.next.RoundTrip(r)
		switch {
		case rtErr != nil && r.Context().Err() != nil:
			// The client went away; the backend is not at fault.
			return nil
		case rtErr != nil:
			return rtErr
		case resp.StatusCode >= http.StatusInternalServerError:
			return errUpstream
		}
		return nil
	})
	if err != nil && !errors.Is(err, errUpstream) {
		return nil, err
	}
	return resp, rtErr
}

// ProxyEstimator forwards to the estimator service.
func (h *Handler) ProxyEstimator(w http.ResponseWriter, r *http.Request) {
	h.estimatorProxy.ServeHTTP(w, r)
}

// ProxyAnalytics forwards to the analytics service.
func (h *Handler) ProxyAnalytics(w http.ResponseWriter, r *http.Request) {
	h.analyticsProxy.ServeHTTP(w, r)
}

// BackendCheck pings a backend's readiness probe. It feeds the gateway's
// own readiness check.
func (h *Handler) BackendCheck(name string) func(ctx context.Context) error {
	u := h.backends[name]
	return func(ctx context.Context) error {
		if u == nil {
			return fmt.Errorf("unknown backend %s", name)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.JoinPath("/health/ready").String(), nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s ready probe returned %d", name, resp.StatusCode)
		}
		return nil
	}
}

type createKeyRequest struct {
	Name      string `json:"name"`
	RateLimit int    `json:"rate_limit"`
	Admin     bool   `json:"admin"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

// CreateAPIKey creates a key and returns its raw value once.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid JSON body", apperrors.ErrInvalidInput))
		return
	}
	if req.RateLimit == 0 {
		req.RateLimit = 100
	}
	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			h.writeError(w, r, fmt.Errorf("%w: expires_in must be a positive duration", apperrors.ErrInvalidInput))
			return
		}
		t := time.Now().Add(d)
		expiresAt = &t
	}

	raw, info, err := h.keys.CreateKey(r.Context(), apikey.NewKey{
		Name:      req.Name,
		RateLimit: req.RateLimit,
		Admin:     req.Admin,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"api_key": raw,
		"key":     info,
	})
}

// ListAPIKeys lists the active keys.
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListKeys(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "count": len(keys)})
}

// RevokeAPIKey deactivates the key named by the {id} path parameter.
func (h *Handler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.RevokeKey(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("gateway request failed", "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, map[string]string{
		"error":      apperrors.PublicMessage(err),
		"request_id": logger.RequestID(r.Context()),
	})
}
