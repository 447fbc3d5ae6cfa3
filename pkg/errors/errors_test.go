package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("parsing: %w", ErrInvalidInput), http.StatusBadRequest},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"unauthorized", fmt.Errorf("%w: missing api key", ErrUnauthorized), http.StatusUnauthorized},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"dataset", ErrDatasetUnavailable, http.StatusServiceUnavailable},
		{"unknown category", fmt.Errorf("encode: %w", ErrUnknownCategory), http.StatusInternalServerError},
		{"model", ErrModelInvocation, http.StatusInternalServerError},
		{"app error", New(ErrInvalidInput, http.StatusUnprocessableEntity, "bad"), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrNotFound, http.StatusNotFound, "view %q", "pie")
	if !Is(err, ErrNotFound) {
		t.Fatal("expected AppError to unwrap to its sentinel")
	}
	if err.Error() != `not found: view "pie"` {
		t.Errorf("Error() = %q", err.Error())
	}
	if PublicMessage(err) != `view "pie"` {
		t.Errorf("PublicMessage() = %q", PublicMessage(err))
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	err := fmt.Errorf("tree 3 node 12: %w", ErrModelInvocation)
	if got := PublicMessage(err); got != "internal error" {
		t.Errorf("PublicMessage() = %q", got)
	}
}

func TestPublicMessageClientErrors(t *testing.T) {
	err := fmt.Errorf("%w: missing api key", ErrUnauthorized)
	if got := PublicMessage(err); got != "unauthorized: missing api key" {
		t.Errorf("PublicMessage() = %q", got)
	}
}
