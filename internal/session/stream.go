package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// SolveEvent reports the outcome of one completed pass, broadcast over SSE
// to every subscriber of a session's /stream endpoint.
type SolveEvent struct {
	SessionID      string    `json:"sessionId"`
	PassIndex      int       `json:"passIndex"`
	ElapsedSeconds float64   `json:"elapsedSeconds"`
	Min            float64   `json:"min"`
	Max            float64   `json:"max"`
	Energy         float64   `json:"energy"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// EventBroadcaster fans a session's SolveEvents out to any number of SSE
// subscribers. Same subscribe/broadcast/unsubscribe shape as the reference
// repo's job progress broadcaster, keyed by session ID instead of job ID.
type EventBroadcaster struct {
	mu        sync.RWMutex
	clients   map[string]map[chan SolveEvent]bool
	lastEvent map[string]SolveEvent
}

// NewEventBroadcaster returns an empty broadcaster.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients:   make(map[string]map[chan SolveEvent]bool),
		lastEvent: make(map[string]SolveEvent),
	}
}

// Subscribe registers a new client channel for sessionID and, if a previous
// event was broadcast, replays it immediately for reconnecting clients.
func (eb *EventBroadcaster) Subscribe(sessionID string) chan SolveEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan SolveEvent, 10)
	if eb.clients[sessionID] == nil {
		eb.clients[sessionID] = make(map[chan SolveEvent]bool)
	}
	eb.clients[sessionID][ch] = true

	if last, ok := eb.lastEvent[sessionID]; ok {
		select {
		case ch <- last:
		default:
		}
	}
	return ch
}

// Unsubscribe removes and closes a client channel.
func (eb *EventBroadcaster) Unsubscribe(sessionID string, ch chan SolveEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if clients, ok := eb.clients[sessionID]; ok {
		delete(clients, ch)
		close(ch)
		if len(clients) == 0 {
			delete(eb.clients, sessionID)
		}
	}
}

// Broadcast sends event to every subscriber of its session, dropping it for
// any client whose buffer is full rather than blocking the solve loop.
func (eb *EventBroadcaster) Broadcast(event SolveEvent) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	eb.lastEvent[event.SessionID] = event
	clients, ok := eb.clients[event.SessionID]
	if !ok || len(clients) == 0 {
		return
	}
	for ch := range clients {
		select {
		case ch <- event:
		default:
			slog.Warn("session: SSE channel full, dropping event", "session_id", event.SessionID)
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event SolveEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("session: marshal solve event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func (srv *Server) handleStream(w http.ResponseWriter, r *http.Request, s *Session) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	ch := srv.manager.bcast.Subscribe(s.ID)
	defer srv.manager.bcast.Unsubscribe(s.ID, ch)

	_, passIndex, lastDuration := s.Status()
	initial := SolveEvent{
		SessionID:      s.ID,
		PassIndex:      passIndex,
		ElapsedSeconds: lastDuration,
		Timestamp:      time.Now(),
	}
	if err := writeSSEEvent(w, initial); err != nil {
		slog.Error("session: failed to write initial SSE event", "error", err)
		return
	}
	flusher.Flush()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				slog.Error("session: failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()
		case <-ping.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
