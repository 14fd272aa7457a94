package session

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("session: failed to encode JSON response", "error", err)
	}
}

type sessionSummaryPayload struct {
	ID        string    `json:"id"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"createdAt"`
}

func sessionSummary(s *Session) sessionSummaryPayload {
	return sessionSummaryPayload{
		ID:        s.ID,
		Width:     s.Width,
		Height:    s.Height,
		CreatedAt: s.CreatedAt,
	}
}
