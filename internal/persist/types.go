package persist

import (
	"fmt"
	"time"

	"github.com/nealabq/heatwave/internal/solve"
)

// StatusSnapshot is a serializable copy of solve.Status: the same fields,
// minus EarlyExit (an atomic.Bool, caller-owned and meaningless once a
// solve has finished).
type StatusSnapshot struct {
	WasExtraUsed   bool               `json:"wasExtraUsed"`
	WasExtraSized  bool               `json:"wasExtraSized"`
	SolveCount     int                `json:"solveCount"`
	LastSolveSaved solve.SaveLocation `json:"lastSolveSaved"`
}

// SnapshotStatus copies the non-atomic fields of a solve.Status.
func SnapshotStatus(st *solve.Status) StatusSnapshot {
	return StatusSnapshot{
		WasExtraUsed:   st.WasExtraUsed,
		WasExtraSized:  st.WasExtraSized,
		SolveCount:     st.SolveCount,
		LastSolveSaved: st.LastSolveSaved,
	}
}

// Checkpoint represents a saved session state that can be resumed later: a
// sheet snapshot plus the solve parameters and status that produced it,
// where the reference repo's checkpoint held circle parameters and cost.
type Checkpoint struct {
	SessionID string `json:"sessionId"`

	Width  int       `json:"width"`
	Height int       `json:"height"`
	Data   []float64 `json:"data"`

	Input  solve.Input    `json:"input"`
	Status StatusSnapshot `json:"status"`

	Timestamp time.Time `json:"timestamp"`
}

// NewCheckpoint builds a Checkpoint from a session's current state.
func NewCheckpoint(sessionID string, width, height int, data []float64, in solve.Input, st *solve.Status) *Checkpoint {
	return &Checkpoint{
		SessionID: sessionID,
		Width:     width,
		Height:    height,
		Data:      data,
		Input:     in,
		Status:    SnapshotStatus(st),
		Timestamp: time.Now(),
	}
}

// CheckpointInfo is checkpoint metadata without the sheet payload, for
// listing many checkpoints without loading their (potentially large) data.
type CheckpointInfo struct {
	SessionID  string          `json:"sessionId"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Technique  solve.Technique `json:"technique"`
	SolveCount int             `json:"solveCount"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ToInfo converts a full Checkpoint to CheckpointInfo.
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		SessionID:  c.SessionID,
		Width:      c.Width,
		Height:     c.Height,
		Technique:  c.Input.Technique,
		SolveCount: c.Status.SolveCount,
		Timestamp:  c.Timestamp,
	}
}

// Validate checks that a checkpoint's required fields are present and
// internally consistent.
func (c *Checkpoint) Validate() error {
	if c.SessionID == "" {
		return &ValidationError{Field: "SessionID", Reason: "cannot be empty"}
	}
	if c.Width <= 0 || c.Height <= 0 {
		return &ValidationError{Field: "Width/Height", Reason: "must be positive"}
	}
	if len(c.Data) != c.Width*c.Height {
		return &ValidationError{
			Field:  "Data",
			Reason: fmt.Sprintf("length %d does not match %dx%d", len(c.Data), c.Width, c.Height),
		}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a checkpoint validation failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible reports whether this checkpoint can seed a session of the
// given dimensions.
func (c *Checkpoint) IsCompatible(width, height int) error {
	if c.Width != width || c.Height != height {
		return &CompatibilityError{
			Field:    "dimensions",
			Expected: fmt.Sprintf("%dx%d", c.Width, c.Height),
			Actual:   fmt.Sprintf("%dx%d", width, height),
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint/session mismatch.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
