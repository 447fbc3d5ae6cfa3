// Package middleware holds the gateway-only middleware: API key
// authentication, per-key rate limiting and the admin gate.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hrdatainsights/salary-platform/internal/auth/apikey"
	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
	"github.com/hrdatainsights/salary-platform/pkg/logger"
)

type contextKey string

const apiKeyInfoKey contextKey = "api_key_info"

// KeyValidator resolves a raw key to its metadata. *apikey.Validator
// satisfies it.
type KeyValidator interface {
	Validate(ctx context.Context, rawKey string) (*apikey.KeyInfo, error)
}

// Auth validates the API key on every request except health probes. Keys
// are read from "Authorization: Bearer", then X-API-Key.
func Auth(validator KeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}

			key := extractAPIKey(r)
			if key == "" {
				writeError(w, r, fmt.Errorf("%w: missing api key", apperrors.ErrUnauthorized))
				return
			}
			info, err := validator.Validate(r.Context(), key)
			if err != nil {
				if !apperrors.Is(err, apperrors.ErrUnauthorized) {
					logger.FromContext(r.Context()).Error("api key validation failed", "error", err)
				}
				writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyInfoKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose key lacks the admin flag. It must run
// after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := GetKeyInfo(r.Context())
		if info == nil || !info.Admin {
			writeError(w, r, fmt.Errorf("%w: admin key required", apperrors.ErrForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetKeyInfo returns the key validated by Auth, or nil.
func GetKeyInfo(ctx context.Context) *apikey.KeyInfo {
	info, _ := ctx.Value(apiKeyInfoKey).(*apikey.KeyInfo)
	return info
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.Header.Get("X-API-Key")
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatusCode(err))
	json.NewEncoder(w).Encode(map[string]string{
		"error":      apperrors.PublicMessage(err),
		"request_id": logger.RequestID(r.Context()),
	})
}
