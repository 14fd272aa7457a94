package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nealabq/heatwave/internal/persist"
	"github.com/nealabq/heatwave/internal/solve"
)

func newTestRequest(t *testing.T) CreateSessionRequest {
	t.Helper()
	return CreateSessionRequest{
		Width:     4,
		Height:    4,
		Technique: solve.Simultaneous2D,
		Method:    solve.Forward,
		RateX:     0.2,
		RateY:     0.2,
	}
}

func TestManagerCreateAndGet(t *testing.T) {
	m := NewManager()
	s, err := m.Create(newTestRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == "" {
		t.Fatal("expected a non-empty session ID")
	}

	got, ok := m.Get(s.ID)
	if !ok || got.ID != s.ID {
		t.Fatal("expected to retrieve the created session")
	}

	if _, ok := m.Get("nonexistent"); ok {
		t.Fatal("expected nonexistent session to be absent")
	}
}

func TestManagerCreateRejectsNonPositiveDimensions(t *testing.T) {
	m := NewManager()
	req := newTestRequest(t)
	req.Width = 0

	if _, err := m.Create(req); err == nil {
		t.Fatal("expected an error for zero width")
	}
}

func TestManagerListReturnsAllSessions(t *testing.T) {
	m := NewManager()
	m.Create(newTestRequest(t))
	m.Create(newTestRequest(t))

	if got := len(m.List()); got != 2 {
		t.Fatalf("expected 2 sessions, got %d", got)
	}
}

func TestSessionRunAdvancesPassIndexAndBroadcasts(t *testing.T) {
	m := NewManager()
	s, err := m.Create(newTestRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ch := m.bcast.Subscribe(s.ID)
	defer m.bcast.Unsubscribe(s.ID, ch)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Run(ctx, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, passIndex, _ := s.Status()
	if passIndex != 3 {
		t.Fatalf("expected pass index 3, got %d", passIndex)
	}

	select {
	case event := <-ch:
		if event.SessionID != s.ID {
			t.Fatalf("expected event for session %s, got %s", s.ID, event.SessionID)
		}
	default:
		t.Fatal("expected a broadcast event to be queued")
	}
}

func TestSessionCancelStopsBetweenSteps(t *testing.T) {
	m := NewManager()
	s, err := m.Create(newTestRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Cancel()

	if err := s.Run(context.Background(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, passIndex, _ := s.Status()
	if passIndex != 0 {
		t.Fatalf("expected cancel-before-run to perform zero steps, got %d", passIndex)
	}
}

func TestHandleCreateSessionReturnsCreatedSummary(t *testing.T) {
	srv := NewServer(":0", nil)
	body, _ := json.Marshal(newTestRequest(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	srv.handleCreateSession(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var got sessionSummaryPayload
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID == "" || got.Width != 4 || got.Height != 4 {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestHandleStatusReportsSessionState(t *testing.T) {
	srv := NewServer(":0", nil)
	s, err := srv.manager.Create(newTestRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+s.ID+"/status", nil)
	w := httptest.NewRecorder()
	srv.handleSessionsWithID(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleSessionsWithIDUnknownSessionIs404(t *testing.T) {
	srv := NewServer(":0", nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/does-not-exist/status", nil)
	w := httptest.NewRecorder()
	srv.handleSessionsWithID(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandleSnapshotReturnsSheetData(t *testing.T) {
	srv := NewServer(":0", nil)
	s, err := srv.manager.Create(newTestRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+s.ID+"/snapshot.json", nil)
	w := httptest.NewRecorder()
	srv.handleSessionsWithID(w, req)

	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	data, ok := got["data"].([]any)
	if !ok || len(data) != 16 {
		t.Fatalf("expected 16 flattened cells, got %v", got["data"])
	}
}

func TestTechniqueRoundTripsThroughJSON(t *testing.T) {
	data, err := json.Marshal(solve.WaveWithDamping)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"wave_with_damping"` {
		t.Fatalf("unexpected encoding: %s", data)
	}

	var got solve.Technique
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != solve.WaveWithDamping {
		t.Fatalf("expected WaveWithDamping, got %v", got)
	}
}

func TestSessionCheckpointRoundTrip(t *testing.T) {
	m := NewManager()
	s, err := m.Create(newTestRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Seed(func(x, y int) float64 { return float64(x + y) })

	cp := s.ToCheckpoint()
	if cp.SessionID != s.ID {
		t.Fatalf("expected checkpoint for session %s, got %s", s.ID, cp.SessionID)
	}
	if cp.Width != s.Width || cp.Height != s.Height {
		t.Fatalf("unexpected checkpoint dimensions: %dx%d", cp.Width, cp.Height)
	}

	other, err := m.Create(newTestRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := other.Restore(cp); err != nil {
		t.Fatalf("unexpected error restoring checkpoint: %v", err)
	}

	_, _, origData := s.Snapshot()
	_, _, restoredData := other.Snapshot()
	if len(origData) != len(restoredData) {
		t.Fatalf("data length mismatch: %d vs %d", len(origData), len(restoredData))
	}
	for i := range origData {
		if origData[i] != restoredData[i] {
			t.Fatalf("cell %d mismatch: expected %f, got %f", i, origData[i], restoredData[i])
		}
	}
}

func TestServerCheckpointsSessionsOnShutdown(t *testing.T) {
	tempDir := t.TempDir()
	store, err := persist.NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	srv := NewServer(":0", store)
	s, err := srv.manager.Create(newTestRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := store.LoadCheckpoint(s.ID); err != nil {
		t.Fatalf("expected checkpoint to be saved on shutdown: %v", err)
	}
}
