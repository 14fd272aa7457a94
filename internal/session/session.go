// Package session runs the HTTP front end that exercises
// internal/controller interactively: each Session owns one Controller and
// a ping-ponging pair of sheets, stepped one solve.Calc call at a time and
// observed over a JSON/SSE API.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nealabq/heatwave/internal/controller"
	"github.com/nealabq/heatwave/internal/sheet"
	"github.com/nealabq/heatwave/internal/solve"
)

// CreateSessionRequest is the decoded body of POST /api/v1/sessions.
type CreateSessionRequest struct {
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Technique solve.Technique `json:"technique"`
	Method    solve.Method    `json:"method"`
	RateX     float64         `json:"rateX"`
	RateY     float64         `json:"rateY"`
	Damping   float64         `json:"damping"`
}

// Session pairs one controller.Controller with the two sheets it steps
// between. Every completed step swaps cur and next, so the sheet holding
// the current field and the scratch destination for the next step change
// identity each call but a caller reading Snapshot always sees the latest.
type Session struct {
	ID        string
	CreatedAt time.Time
	Width     int
	Height    int

	ctrl  *controller.Controller
	bcast *EventBroadcaster

	mu         sync.Mutex
	cur, next  *sheet.Sheet
	extra      *sheet.Sheet
	passIndex  int
	lastResult controller.Result
	cancelled  atomic.Bool
}

func newSession(id string, req CreateSessionRequest, bcast *EventBroadcaster) *Session {
	ctrl := controller.New()
	ctrl.SetTechnique(req.Technique)
	ctrl.SetMethod(req.Method)
	ctrl.SetRates(req.RateX, req.RateY)
	ctrl.SetDamping(req.Damping)

	cur, next, extra := sheet.NewSheet(), sheet.NewSheet(), sheet.NewSheet()
	cur.SetXYCounts(req.Width, req.Height, 0)
	next.SetXYCounts(req.Width, req.Height, 0)

	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		Width:     req.Width,
		Height:    req.Height,
		ctrl:      ctrl,
		bcast:     bcast,
		cur:       cur,
		next:      next,
		extra:     extra,
	}
}

// Seed overwrites the session's current sheet with caller-supplied values,
// for callers that want to drive a solve from a specific initial condition
// rather than the all-zero default.
func (s *Session) Seed(f func(x, y int) float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.TransformRect(0, s.cur.Width(), 0, s.cur.Height(), func(_ float64, x, y int) float64 {
		return f(x, y)
	}, sheet.AssignSet)
}

// Snapshot returns the current sheet's values in row-major order.
func (s *Session) Snapshot() (w, h int, data []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, h = s.cur.Width(), s.cur.Height()
	data = make([]float64, 0, w*h)
	s.cur.ScanRect(0, w, 0, h, func(v float64, _, _ int) bool {
		data = append(data, v)
		return true
	})
	return w, h, data
}

// Status reports the session's current pass index and the controller's
// busy/duration state.
func (s *Session) Status() (busy bool, passIndex int, lastDurationSeconds float64) {
	s.mu.Lock()
	passIndex = s.passIndex
	s.mu.Unlock()
	return s.ctrl.IsBusy(), passIndex, s.ctrl.LastDurationSeconds()
}

// Cancel stops a running Run loop before its next step; a Cancel that comes
// before Run starts stops that Run before its first step. It cannot interrupt
// a step already submitted to the controller: Controller reserves EarlyExit
// for Shutdown, so an in-flight solve always finishes before a cancelled
// Run loop observes it and stops.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Run drives n steps (n <= 0 means one step), broadcasting a SolveEvent
// after each. It returns when all steps complete, ctx is done, or Cancel is
// called between steps.
func (s *Session) Run(ctx context.Context, n int) error {
	if n <= 0 {
		n = 1
	}
	defer s.cancelled.Store(false)

	for i := 0; i < n; i++ {
		if s.cancelled.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) step(ctx context.Context) error {
	s.mu.Lock()
	cur, next, extra := s.cur, s.next, s.extra
	s.mu.Unlock()

	done := make(chan controller.Result, 1)
	s.ctrl.OnComplete(func(r controller.Result) { done <- r })

	if !s.ctrl.Submit(cur, next, extra, true) {
		return fmt.Errorf("session: controller busy, step rejected")
	}

	var res controller.Result
	select {
	case res = <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.passIndex++
	passIndex := s.passIndex
	s.lastResult = res
	s.cur, s.next = s.next, s.cur
	latest := s.cur
	s.mu.Unlock()

	min, max := latest.MinMaxValues()
	event := SolveEvent{
		SessionID:      s.ID,
		PassIndex:      passIndex,
		ElapsedSeconds: res.DurationSeconds,
		Min:            min,
		Max:            max,
		Energy:         sheetEnergy(latest),
		Timestamp:      time.Now(),
	}
	if res.Err != nil {
		event.Error = res.Err.Error()
	}
	s.bcast.Broadcast(event)
	return res.Err
}

func sheetEnergy(sh *sheet.Sheet) float64 {
	total := 0.0
	sh.ScanRect(0, sh.Width(), 0, sh.Height(), func(v float64, _, _ int) bool {
		total += v * v
		return true
	})
	return total
}

// Manager owns every live Session, the session-layer analogue of the
// reference repo's JobManager collapsed from a job-lifecycle map to a
// session-lifecycle map (sessions outlive any one solve, jobs did not).
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	bcast    *EventBroadcaster
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		bcast:    NewEventBroadcaster(),
	}
}

// Create validates req and registers a new Session.
func (m *Manager) Create(req CreateSessionRequest) (*Session, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("session: width and height must be positive, got %dx%d", req.Width, req.Height)
	}
	if req.Width > sheet.MaxAxis || req.Height > sheet.MaxAxis {
		return nil, fmt.Errorf("session: width and height must not exceed %d", sheet.MaxAxis)
	}

	s := newSession(uuid.New().String(), req, m.bcast)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns every registered session.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}
