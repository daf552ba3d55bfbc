// internal/adapters/in/http/handlers/helpers.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	mintapp "github.com/aaruvan/tokenchamp/internal/application/mint"
	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps usecase errors to HTTP status codes.
//
//	not found                                  → 404
//	already exists / in progress / not failed  → 409
//	validation                                 → 400
func statusForError(err error) int {
	var invalid *mintdom.InvalidRecipientError
	switch {
	case errors.Is(err, windom.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, windom.ErrAlreadyExists),
		errors.Is(err, windom.ErrAttemptInProgress),
		errors.Is(err, windom.ErrNotFailed),
		errors.Is(err, windom.ErrRequiresManualRetry):
		return http.StatusConflict
	case windom.IsValidation(err), errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, mintapp.ErrDispatcherClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseIntDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// splitCSV parses "a,b,c" / "a, b, c" into []string (empty trimmed items are removed).
func splitCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
