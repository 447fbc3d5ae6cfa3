// Package api exposes the estimator and the overview views over HTTP and
// the internal RPC layer. Handlers own the request-scoped concerns: input
// parsing, metrics, span logging and analytics events. The estimator itself
// stays free of them.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hrdatainsights/salary-platform/internal/analytics"
	"github.com/hrdatainsights/salary-platform/internal/dataset"
	"github.com/hrdatainsights/salary-platform/internal/estimator"
	"github.com/hrdatainsights/salary-platform/internal/overview/cache"
	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
	"github.com/hrdatainsights/salary-platform/pkg/logger"
	"github.com/hrdatainsights/salary-platform/pkg/metrics"
	"github.com/hrdatainsights/salary-platform/pkg/tracing"
)

// Tracker receives one event per served query. *analytics.Collector and
// *analytics.Aggregator both satisfy it.
type Tracker interface {
	Track(event analytics.PredictionEvent)
}

// Config tunes request validation and observability.
type Config struct {
	// MaxExperience rejects larger years of experience when positive.
	MaxExperience int
	// Tracing logs the span tree of every estimator request at debug level.
	Tracing bool
}

// Deps are the collaborators of a Handler. Views, Tracker and Metrics are
// optional.
type Deps struct {
	Estimator *estimator.Estimator
	Table     *dataset.Table
	Views     *cache.ViewCache
	Tracker   Tracker
	Metrics   *metrics.Metrics
}

// Handler serves the estimator's HTTP and RPC endpoints.
type Handler struct {
	est     *estimator.Estimator
	table   *dataset.Table
	views   *cache.ViewCache
	tracker Tracker
	metrics *metrics.Metrics
	cfg     Config
	logger  *slog.Logger
}

// New builds a Handler. Without a view cache, overviews are computed on
// every request.
func New(d Deps, cfg Config) *Handler {
	views := d.Views
	if views == nil {
		views = cache.New(nil, 0, d.Metrics)
	}
	return &Handler{
		est:     d.Estimator,
		table:   d.Table,
		views:   views,
		tracker: d.Tracker,
		metrics: d.Metrics,
		cfg:     cfg,
		logger:  slog.Default().With("component", "api-handler"),
	}
}

// Options serves the selectable countries and education levels.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.est.Options())
}

// History serves the historical statistics for one query.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	est, err := h.run(r.Context(), analytics.EventHistory, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, historyResponse{
		Country:           q.Country,
		EducationLevel:    q.EducationLevel,
		ResolvedCountry:   est.History.Country,
		ResolvedEducation: est.History.EducationLevel,
		YearsExperience:   q.YearsExperience,
		History:           historyStats(est.History),
	})
}

// Predict serves the point estimate and the projection for one query.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	est, err := h.run(r.Context(), analytics.EventPredict, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	lowest, highest := est.Prediction.Extremes()
	h.writeJSON(w, http.StatusOK, predictionResponse{
		Prediction: est.Prediction,
		Lowest:     lowest,
		Highest:    highest,
	})
}

// Estimate serves the lookup and the prediction resolved once.
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	est, err := h.run(r.Context(), analytics.EventEstimate, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, estimateResponse(est))
}

// parseQuery reads ?country=&education=&experience=. Experience accepts the
// survey's textual buckets ("Less than 1 year", "More than 50 years").
func (h *Handler) parseQuery(r *http.Request) (estimator.Query, error) {
	params := r.URL.Query()
	raw := strings.TrimSpace(params.Get("experience"))
	if raw == "" {
		return estimator.Query{}, fmt.Errorf("%w: experience is required", apperrors.ErrInvalidInput)
	}
	years, ok := dataset.ParseWholeYears(raw)
	if !ok {
		return estimator.Query{}, fmt.Errorf("%w: experience must be a non-negative whole number of years", apperrors.ErrInvalidInput)
	}
	q := estimator.Query{
		Country:         params.Get("country"),
		EducationLevel:  params.Get("education"),
		YearsExperience: years,
	}
	return q, h.checkLimits(q)
}

func (h *Handler) checkLimits(q estimator.Query) error {
	if h.cfg.MaxExperience > 0 && q.YearsExperience > h.cfg.MaxExperience {
		return fmt.Errorf("%w: experience must be at most %d years", apperrors.ErrInvalidInput, h.cfg.MaxExperience)
	}
	return nil
}

// run answers one query. op selects which halves run: history skips the
// model, predict skips the lookup. Both halves share a single resolution.
func (h *Handler) run(ctx context.Context, op analytics.EventType, q estimator.Query) (estimator.Estimate, error) {
	start := time.Now()
	ctx, root := tracing.StartSpan(ctx, string(op), logger.RequestID(ctx))
	defer func() {
		root.End()
		if h.cfg.Tracing {
			root.Log(logger.FromContext(ctx))
		}
	}()

	var out estimator.Estimate
	_, span := tracing.StartChildSpan(ctx, "resolve")
	resolved, err := h.est.Resolve(q)
	span.End()
	if err != nil {
		h.observe(ctx, op, q, out, time.Since(start), err)
		return out, err
	}
	out.Resolved = resolved
	root.SetAttr("country", resolved.Country.Label)
	root.SetAttr("education", resolved.Education.Label)

	if op != analytics.EventPredict {
		_, span = tracing.StartChildSpan(ctx, "lookup")
		out.History = h.est.LookupResolved(resolved)
		span.SetAttr("matched", out.History.Count)
		span.End()
	}
	if op != analytics.EventHistory {
		_, span = tracing.StartChildSpan(ctx, "predict")
		out.Prediction, err = h.est.PredictResolved(resolved)
		span.SetAttr("points", len(out.Prediction.Projection))
		span.End()
	}
	h.observe(ctx, op, q, out, time.Since(start), err)
	return out, err
}

// observe records metrics and the analytics event for one query.
func (h *Handler) observe(ctx context.Context, op analytics.EventType, q estimator.Query, out estimator.Estimate, latency time.Duration, err error) {
	lookedUp := err == nil && op != analytics.EventPredict
	if h.metrics != nil {
		result := "ok"
		switch {
		case apperrors.Is(err, apperrors.ErrInvalidInput):
			result = "invalid"
		case err != nil:
			result = "error"
		case lookedUp && out.History.NoData():
			result = "no_data"
		}
		h.metrics.EstimatesTotal.WithLabelValues(string(op), result).Inc()
		h.metrics.EstimateLatency.WithLabelValues(string(op)).Observe(latency.Seconds())
		if out.Resolved.Country.Fallback {
			h.metrics.CategoryFallbacks.WithLabelValues("country").Inc()
		}
		if out.Resolved.Education.Fallback {
			h.metrics.CategoryFallbacks.WithLabelValues("education").Inc()
		}
		if lookedUp {
			h.metrics.HistoryMatches.Observe(float64(out.History.Count))
		}
	}

	if err != nil {
		log := logger.FromContext(ctx)
		if apperrors.HTTPStatusCode(err) >= http.StatusInternalServerError {
			log.Error("estimator request failed", "operation", op, "error", err)
		} else {
			log.Debug("estimator request rejected", "operation", op, "error", err)
		}
	}

	if h.tracker == nil {
		return
	}
	event := analytics.NewEvent(op, q, latency, logger.RequestID(ctx))
	switch {
	case err != nil:
		event = event.WithError()
	default:
		if op != analytics.EventPredict {
			event = event.WithHistory(out.History)
		}
		if op != analytics.EventHistory {
			event = event.WithPrediction(out.Prediction)
		}
	}
	h.tracker.Track(event)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{
		"error":      apperrors.PublicMessage(err),
		"request_id": logger.RequestID(r.Context()),
	})
}
