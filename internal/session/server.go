package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nealabq/heatwave/internal/persist"
)

// Server is the HTTP front end driving Sessions through a Manager: the
// session-layer analogue of the reference repo's job Server, with
// "/jobs" replaced by "/sessions" and a step-solve verb in place of a
// fire-and-forget optimization run.
type Server struct {
	manager *Manager
	store   persist.Store
	addr    string
	http    *http.Server
}

// NewServer returns a Server bound to addr, not yet listening. store may be
// nil, in which case checkpointing on shutdown is disabled.
func NewServer(addr string, store persist.Store) *Server {
	return &Server{manager: NewManager(), store: store, addr: addr}
}

// Manager exposes the server's session manager, for callers that need to
// seed a session before traffic arrives.
func (srv *Server) Manager() *Manager { return srv.manager }

// Start registers routes and blocks serving HTTP until the listener fails
// or Shutdown is called.
func (srv *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sessions", srv.handleSessions)
	mux.HandleFunc("/api/v1/sessions/", srv.handleSessionsWithID)

	srv.http = &http.Server{
		Addr:    srv.addr,
		Handler: srv.loggingMiddleware(srv.corsMiddleware(mux)),
	}

	slog.Info("starting HTTP server", "addr", srv.addr)
	return srv.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server, bounded by ctx. If a
// checkpoint store was configured, every live session is checkpointed
// first, mirroring the reference repo's checkpoint-on-shutdown behavior.
func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.store != nil {
		srv.checkpointAllSessions()
	}
	if srv.http == nil {
		return nil
	}
	slog.Info("shutting down HTTP server")
	return srv.http.Shutdown(ctx)
}

func (srv *Server) checkpointAllSessions() {
	sessions := srv.manager.List()
	if len(sessions) == 0 {
		slog.Info("no sessions to checkpoint")
		return
	}

	slog.Info("checkpointing sessions", "count", len(sessions))

	done := make(chan struct{}, len(sessions))
	for _, s := range sessions {
		go func(s *Session) {
			defer func() { done <- struct{}{} }()
			cp := s.ToCheckpoint()
			if err := srv.store.SaveCheckpoint(s.ID, cp); err != nil {
				slog.Error("failed to checkpoint session on shutdown", "session_id", s.ID, "error", err)
			}
		}(s)
	}
	for range sessions {
		<-done
	}
}

func (srv *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (srv *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// handleSessions handles /api/v1/sessions.
func (srv *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		srv.handleCreateSession(w, r)
	case http.MethodGet:
		srv.handleListSessions(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSessionsWithID handles /api/v1/sessions/:id/*.
func (srv *Server) handleSessionsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}

	s, ok := srv.manager.Get(parts[0])
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 1 || parts[1] == "status":
		srv.handleStatus(w, r, s)
	case parts[1] == "solve":
		srv.handleSolve(w, r, s)
	case parts[1] == "cancel":
		srv.handleCancel(w, r, s)
	case parts[1] == "stream":
		srv.handleStream(w, r, s)
	case parts[1] == "snapshot.json":
		srv.handleSnapshot(w, r, s)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (srv *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	s, err := srv.manager.Create(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, sessionSummary(s))
}

func (srv *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := srv.manager.List()
	summaries := make([]sessionSummaryPayload, len(sessions))
	for i, s := range sessions {
		summaries[i] = sessionSummary(s)
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (srv *Server) handleStatus(w http.ResponseWriter, r *http.Request, s *Session) {
	busy, passIndex, lastDuration := s.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                  s.ID,
		"width":               s.Width,
		"height":              s.Height,
		"busy":                busy,
		"passIndex":           passIndex,
		"lastDurationSeconds": lastDuration,
	})
}

type solveRequest struct {
	// Steps is the number of passes to run before the response to /solve's
	// caller becomes final (the handler itself returns immediately; Steps
	// governs how many SolveEvents the background run loop will emit).
	Steps int `json:"steps"`
}

func (srv *Server) handleSolve(w http.ResponseWriter, r *http.Request, s *Session) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req solveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid JSON: %v", err), http.StatusBadRequest)
			return
		}
	}

	go func() {
		if err := s.Run(context.Background(), req.Steps); err != nil {
			slog.Warn("session: run loop ended with error", "session_id", s.ID, "error", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (srv *Server) handleCancel(w http.ResponseWriter, r *http.Request, s *Session) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.Cancel()
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) handleSnapshot(w http.ResponseWriter, r *http.Request, s *Session) {
	width, height, data := s.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     s.ID,
		"width":  width,
		"height": height,
		"data":   data,
	})
}
