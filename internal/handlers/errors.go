package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/crucial707/aquamarine/internal/gpio"
	"github.com/crucial707/aquamarine/internal/scheduler"
	"github.com/crucial707/aquamarine/internal/service"
)

// ErrMessageInternal is the generic message for 500 responses. Do not expose internal details to clients.
const ErrMessageInternal = "internal server error"

// JSONError sends a JSON error response with a single "error" field.
func JSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// JSONValidationError sends a JSON error response with "error" and optional "fields" for field-level details.
// status is typically http.StatusBadRequest (400).
func JSONValidationError(w http.ResponseWriter, message string, fields map[string]string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	out := map[string]interface{}{"error": message}
	if len(fields) > 0 {
		out["fields"] = fields
	}
	json.NewEncoder(w).Encode(out)
}

// writeServiceError maps a service error onto a status code. Anything
// unrecognised is logged and answered with a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var pinErr *service.PinInUseError
	switch {
	case errors.As(err, &pinErr):
		JSONError(w, pinErr.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNotFound):
		JSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, scheduler.ErrInvalidTimeFormat):
		JSONValidationError(w, "validation failed", map[string]string{"schedule": timeFormatHint}, http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidInput):
		JSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, gpio.ErrInvalidPin):
		JSONValidationError(w, "validation failed", map[string]string{"gpio_number": "gte=0"}, http.StatusBadRequest)
	default:
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
	}
}
