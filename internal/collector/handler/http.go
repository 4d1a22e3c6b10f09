package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Avi18971911/augur-span-reporter/internal/collector/service"
	"github.com/Avi18971911/augur-span-reporter/pkg/reporter"
	"go.uber.org/zap"
)

func HttpError(w http.ResponseWriter, message string, statusCode int, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(reporter.CollectorErrorDTO{Error: message})
	if err != nil {
		logger.Error("Failed to encode error message", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, body interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Error encountered when encoding response", zap.Error(err))
		HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrMissingField), errors.Is(err, service.ErrEndBeforeStart):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnknownParent), errors.Is(err, service.ErrUnknownSpan):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTraceMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}, logger *zap.Logger) bool {
	defer func() {
		if err := r.Body.Close(); err != nil {
			logger.Error("Error encountered when closing request body", zap.Error(err))
		}
	}()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		logger.Error("Error encountered when decoding request body", zap.Error(err))
		HttpError(w, "Invalid request payload", http.StatusBadRequest, logger)
		return false
	}
	return true
}
