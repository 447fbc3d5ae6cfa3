package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
	"github.com/hrdatainsights/salary-platform/pkg/metrics"
	"github.com/hrdatainsights/salary-platform/pkg/ratelimit"
)

// RateLimit applies each key's own per-window limit. Requests without key
// info, health probes included, pass through. m may be nil.
func RateLimit(limiter *ratelimit.Limiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := GetKeyInfo(r.Context())
			if info == nil {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.AllowLimit(info.ID, info.RateLimit) {
				if m != nil {
					m.RateLimitedTotal.Inc()
				}
				retry := limiter.RetryAfterLimit(info.RateLimit)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeError(w, r, fmt.Errorf("%w for key %s", apperrors.ErrRateLimited, info.Name))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
