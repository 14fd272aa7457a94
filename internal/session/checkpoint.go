package session

import (
	"fmt"
	"time"

	"github.com/nealabq/heatwave/internal/persist"
	"github.com/nealabq/heatwave/internal/sheet"
)

// ToCheckpoint captures the session's current sheet and solve parameters as
// a persist.Checkpoint, suitable for FSStore.SaveCheckpoint.
func (s *Session) ToCheckpoint() *persist.Checkpoint {
	s.mu.Lock()
	w, h := s.cur.Width(), s.cur.Height()
	data := make([]float64, 0, w*h)
	s.cur.ScanRect(0, w, 0, h, func(v float64, _, _ int) bool {
		data = append(data, v)
		return true
	})
	status := persist.StatusSnapshot{
		WasExtraUsed:   s.lastResult.WasExtraUsed,
		WasExtraSized:  s.lastResult.WasExtraSized,
		SolveCount:     s.lastResult.SolveCount,
		LastSolveSaved: s.lastResult.LastSolveSaved,
	}
	s.mu.Unlock()

	return &persist.Checkpoint{
		SessionID: s.ID,
		Width:     w,
		Height:    h,
		Data:      data,
		Input:     s.ctrl.Input(),
		Status:    status,
		Timestamp: time.Now(),
	}
}

// Restore overwrites the session's current sheet with a checkpoint's data.
// The checkpoint's dimensions must match the session's.
func (s *Session) Restore(cp *persist.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("session: restore checkpoint: %w", err)
	}
	if err := cp.IsCompatible(s.Width, s.Height); err != nil {
		return fmt.Errorf("session: restore checkpoint: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := 0
	s.cur.TransformRect(0, s.cur.Width(), 0, s.cur.Height(), func(_ float64, x, y int) float64 {
		v := cp.Data[i]
		i++
		return v
	}, sheet.AssignSet)
	return nil
}

// CheckpointAll builds a checkpoint for every session the Manager tracks.
func (m *Manager) CheckpointAll() []*persist.Checkpoint {
	sessions := m.List()
	out := make([]*persist.Checkpoint, len(sessions))
	for i, s := range sessions {
		out[i] = s.ToCheckpoint()
	}
	return out
}
