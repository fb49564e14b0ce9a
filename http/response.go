package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dostvardhan/drivegate"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		OK:      false,
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes the appropriate error response based on error type.
// Clients get generic messages; the details stay in the logs.
func HandleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, drivegate.ErrNotFound):
		slog.Info("request error", "error", err)
		WriteError(w, http.StatusNotFound, "not_found", "Object not found")
	case errors.Is(err, drivegate.ErrInvalidInput):
		slog.Info("request error", "error", err)
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid input")
	case errors.Is(err, drivegate.ErrUnauthorized):
		slog.Info("request error", "error", err)
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
	case errors.Is(err, drivegate.ErrForbidden):
		slog.Info("request error", "error", err)
		WriteError(w, http.StatusForbidden, "forbidden", "Access denied")
	case errors.Is(err, drivegate.ErrCredential):
		// Operator misconfiguration, not a caller fault.
		slog.Error("delegated credential rejected by storage provider", "error", err)
		WriteError(w, http.StatusInternalServerError, "credential_error", "Storage credential failure")
	case errors.Is(err, drivegate.ErrUpstream):
		slog.Error("storage provider call failed", "error", err)
		WriteError(w, http.StatusBadGateway, "upstream_error", "Storage provider failure")
	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
