// Package solve implements the parallel dispatch and pass-orchestration
// layer that drives the finite-difference kernels in internal/fd over a
// pair of sheets.
package solve

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Technique selects the overall pass structure for one call to Calc.
type Technique int

const (
	// OrthoInterleave solves the x-axis and y-axis 1-D problems in
	// sequence within a single pass, writing in place when src == trg.
	OrthoInterleave Technique = iota
	// Simultaneous2D solves both axes together in one 2-D pass; modelled
	// as WaveWithDamping with Damping pinned to 1.
	Simultaneous2D
	// WaveWithDamping solves both axes together with a damping term that
	// blends the current and previous sheet states.
	WaveWithDamping
)

func (t Technique) String() string {
	switch t {
	case OrthoInterleave:
		return "ortho_interleave"
	case Simultaneous2D:
		return "simultaneous_2d"
	case WaveWithDamping:
		return "wave_with_damping"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes a Technique as its String() name, so the session HTTP
// layer's request/response bodies read as "simultaneous_2d" rather than a
// bare integer.
func (t Technique) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses a Technique from its String() name.
func (t *Technique) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "ortho_interleave":
		*t = OrthoInterleave
	case "simultaneous_2d":
		*t = Simultaneous2D
	case "wave_with_damping":
		*t = WaveWithDamping
	default:
		return fmt.Errorf("solve: unknown technique %q", s)
	}
	return nil
}

// Method selects the finite-difference scheme used along each axis.
type Method int

const (
	Forward Method = iota
	Backward
	Central
)

func (m Method) String() string {
	switch m {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Central:
		return "central"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes a Method as its String() name.
func (m Method) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON parses a Method from its String() name.
func (m *Method) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "forward":
		*m = Forward
	case "backward":
		*m = Backward
	case "central":
		*m = Central
	default:
		return fmt.Errorf("solve: unknown method %q", s)
	}
	return nil
}

// Input holds every caller-supplied knob for one Calc call. It is copied by
// value into each job, never shared, so a caller is free to mutate its own
// copy between solves.
type Input struct {
	Technique Technique
	Method    Method
	Parallel  bool
	Damping   float64
	RateX     float64
	RateY     float64

	// ExtraPassCount is the number of passes beyond the mandatory final
	// pass: total passes performed is 1 + ExtraPassCount.
	ExtraPassCount int

	// PassesDisabled forces a single pass regardless of ExtraPassCount,
	// for callers (the controller's Submit) that want one-shot behaviour
	// without mutating the stored ExtraPassCount.
	PassesDisabled bool
}

// DefaultInput returns the parameter defaults documented for the HTTP/CLI
// surface: Simultaneous2D technique, Forward method, parallel dispatch on,
// no damping, rates of 0.2 on both axes.
func DefaultInput() Input {
	return Input{
		Technique: Simultaneous2D,
		Method:    Forward,
		Parallel:  true,
		Damping:   0,
		RateX:     0.2,
		RateY:     0.2,
	}
}

// SaveLocation records which sheet, if any, still holds the generation
// before the final pass as history: InSrc after a single out-of-place pass,
// InExtra when extra received it. The final pass always writes to trg.
type SaveLocation int

const (
	NotSaved SaveLocation = iota
	InSrc
	InExtra
)

func (l SaveLocation) String() string {
	switch l {
	case InSrc:
		return "in_src"
	case InExtra:
		return "in_extra"
	default:
		return "not_saved"
	}
}

// MarshalJSON encodes a SaveLocation as its String() name.
func (l SaveLocation) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// Status reports the outcome of one Calc call. EarlyExit is the only field
// a caller may mutate concurrently with a running solve; every other field
// is written only by the goroutine executing Calc and is safe to read once
// Calc has returned.
type Status struct {
	EarlyExit atomic.Bool

	WasExtraUsed   bool
	WasExtraSized  bool
	SolveCount     int
	LastSolveSaved SaveLocation
}

// Reset clears every field except EarlyExit, which callers own and which
// Calc reads (not writes) at the start of a solve.
func (st *Status) Reset() {
	st.WasExtraUsed = false
	st.WasExtraSized = false
	st.SolveCount = 0
	st.LastSolveSaved = NotSaved
}
