package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hrdatainsights/salary-platform/internal/overview"
	"github.com/hrdatainsights/salary-platform/internal/overview/cache"
	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
	"github.com/hrdatainsights/salary-platform/pkg/logger"
)

// viewArgs are the parsed parameters of an overview request.
type viewArgs struct {
	filter overview.Filter
	bins   int
	group  overview.Grouping
}

// view computes one overview. filtered views accept ?country= and
// ?education= and include them in the cache key.
type view struct {
	filtered bool
	compute  func(h *Handler, a viewArgs) (any, error)
}

var views = map[string]view{
	"summary": {compute: func(h *Handler, _ viewArgs) (any, error) {
		return overview.Summary(h.table), nil
	}},
	"countries": {compute: func(h *Handler, _ viewArgs) (any, error) {
		return overview.CountryDistribution(h.table), nil
	}},
	"salary-by-country": {compute: func(h *Handler, _ viewArgs) (any, error) {
		return overview.SalaryByCountry(h.table), nil
	}},
	"salary-by-experience": {compute: func(h *Handler, _ viewArgs) (any, error) {
		return overview.SalaryByExperience(h.table), nil
	}},
	"salary-by-education": {compute: func(h *Handler, _ viewArgs) (any, error) {
		return overview.SalaryByEducation(h.table), nil
	}},
	"heatmap": {compute: func(h *Handler, _ viewArgs) (any, error) {
		return overview.Heatmap(h.table), nil
	}},
	"histogram": {filtered: true, compute: func(h *Handler, a viewArgs) (any, error) {
		return overview.Histogram(h.table, a.filter, a.bins)
	}},
	"boxplot": {filtered: true, compute: func(h *Handler, a viewArgs) (any, error) {
		return overview.BoxPlot(h.table, a.group, a.filter), nil
	}},
	"bubbles": {filtered: true, compute: func(h *Handler, a viewArgs) (any, error) {
		return overview.Bubbles(h.table, a.filter), nil
	}},
}

// parseViewArgs validates the parameters of view name and returns them with
// the normalized subset that shapes the result.
func parseViewArgs(name string, v view, params url.Values) (viewArgs, url.Values, error) {
	var a viewArgs
	key := url.Values{}
	if !v.filtered {
		return a, key, nil
	}
	a.filter = overview.Filter{
		Countries:       nonEmpty(params["country"]),
		EducationLevels: nonEmpty(params["education"]),
	}
	if len(a.filter.Countries) > 0 {
		key["country"] = a.filter.Countries
	}
	if len(a.filter.EducationLevels) > 0 {
		key["education"] = a.filter.EducationLevels
	}
	switch name {
	case "histogram":
		a.bins = overview.DefaultHistogramBins
		if s := params.Get("bins"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return a, nil, fmt.Errorf("%w: bins must be a positive integer", apperrors.ErrInvalidInput)
			}
			a.bins = n
		}
		key.Set("bins", strconv.Itoa(a.bins))
	case "boxplot":
		g, err := overview.ParseGrouping(params.Get("group"))
		if err != nil {
			return a, nil, err
		}
		a.group = g
		key.Set("group", string(g))
	}
	return a, key, nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Overview serves GET /overview/{view}. Results are cached per view and
// normalized parameters; X-Cache reports HIT or MISS.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "view")
	v, ok := views[name]
	if !ok {
		h.writeError(w, r, fmt.Errorf("%w: unknown overview view %q", apperrors.ErrNotFound, name))
		return
	}
	args, keyParams, err := parseViewArgs(name, v, r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data, hit, err := h.views.GetOrCompute(r.Context(), cache.Key{View: name, Params: keyParams}, func() (any, error) {
		return v.compute(h, args)
	})
	if err != nil {
		if apperrors.HTTPStatusCode(err) >= http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("computing overview view failed", "view", name, "error", err)
		}
		h.writeError(w, r, err)
		return
	}

	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// CacheStats serves the overview cache hit and miss counters.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.views.Stats())
}

// CacheInvalidate drops every cached overview view.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if !h.views.Stats().Enabled {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	deleted, err := h.views.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}
