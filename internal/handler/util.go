package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/phantasma-ai/specky/internal/chatlog"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps a service error to an HTTP status. Storage failures are
// server errors; malformed chat ids are the client's.
func statusFor(err error) int {
	if errors.Is(err, chatlog.ErrInvalidSessionID) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
