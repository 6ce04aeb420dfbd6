package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/rmgsl/mapa-od/internal/survey"
)

var log = logrus.WithField("module", "handlers")

const (
	// Computed results only change on reload
	cacheResults = "public, max-age=60, stale-while-revalidate=30"
	cacheNone    = "no-store"
)

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, cacheControl string, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", cacheControl)
	w.Header().Set("Vary", "Accept-Encoding")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]interface{}) {
	writeJSON(w, status, cacheNone, ErrorResponse{Error: message, Details: details})
}

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, err.Error(), nil)
}

// writeSourceError maps a cache or loader error to a status code: 404 for
// an unknown source, 422 for a source that cannot be loaded
func writeSourceError(w http.ResponseWriter, sourceID string, err error) {
	if survey.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Source not found", map[string]interface{}{
			"sourceId": sourceID,
		})
		return
	}

	if le, ok := survey.AsLoadError(err); ok {
		details := map[string]interface{}{
			"sourceId": sourceID,
			"reason":   le.Error(),
		}
		if len(le.Missing) > 0 {
			details["missing"] = le.Missing
		}
		writeError(w, http.StatusUnprocessableEntity, "Failed to load source", details)
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, "Source load interrupted", map[string]interface{}{
			"sourceId": sourceID,
		})
		return
	}

	log.Errorf("Failed to load source %s: %v", sourceID, err)
	writeError(w, http.StatusInternalServerError, "Failed to load source", map[string]interface{}{
		"sourceId": sourceID,
		"internal": err.Error(),
	})
}
