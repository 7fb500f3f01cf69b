// Package httpapi provides the HTTP handlers for the map-clustering API.
// Handlers follow a simple pattern: parse/validate query parameters,
// delegate to the relevant service (viewport, tiles, precompute status),
// respond via the helpers in this file.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jcom-dev/mapclusters/internal/apierr"
)

// errorEnvelope is the JSON shape spec.md §7 requires for user-visible
// failures.
type errorEnvelope struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// RespondJSON writes v as a JSON body with the given status code.
func RespondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

// RespondError maps err to an HTTP status and the error envelope. An
// *apierr.Error carries its own kind; any other error is treated as an
// opaque internal failure so stack traces never leak to the client.
func RespondError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*apierr.Error); ok {
		status := statusForKind(apiErr.Kind)
		RespondJSON(w, status, errorEnvelope{Error: string(apiErr.Kind), Detail: apiErr.Detail})
		return
	}

	slog.Error("internal error", "error", err)
	RespondJSON(w, http.StatusInternalServerError, errorEnvelope{
		Error:  string(apierr.KindInternal),
		Detail: "internal error",
	})
}

func statusForKind(kind apierr.Kind) int {
	switch kind {
	case apierr.KindInvalidParams:
		return http.StatusBadRequest
	case apierr.KindWorkerExhausted:
		return http.StatusServiceUnavailable
	case apierr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
