package solve

import (
	"errors"
	"math"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nealabq/heatwave/internal/fd"
	"github.com/nealabq/heatwave/internal/sheet"
)

// WaveDampingStabilityThreshold is the lower damping bound below which
// WaveWithDamping is treated as numerically unstable and its result is
// clamped back into range. 0.3 does not derive from a stability proof; it
// is a rule found by experimentation with the original solver, kept as a
// tunable rather than baked into the branch below.
var WaveDampingStabilityThreshold = 0.3

// ErrInPlaceUnsupported is returned by Calc when src and trg are the same
// sheet but the requested technique cannot solve in place. Only
// OrthoInterleave can, since it resolves the x-axis and y-axis passes one
// at a time rather than needing both old and new values simultaneously.
var ErrInPlaceUnsupported = errors.New("solve: in-place solve requested but technique does not support it")

// techniqueTraits returns the technique-fixed policy for how history is
// preserved in the extra sheet. copyForHistory is true for every technique
// in this solver; sizeForHistory is true only for WaveWithDamping, which
// must keep a full generation-back sheet around for its momentum term;
// resetIfNotUsed is true only for OrthoInterleave, which otherwise leaves
// a stale extra sheet lying around from a previous technique.
func techniqueTraits(t Technique) (copyForHistory, sizeForHistory, resetIfNotUsed bool) {
	switch t {
	case OrthoInterleave:
		return true, false, true
	case Simultaneous2D:
		return true, false, false
	default: // WaveWithDamping
		return true, true, false
	}
}

// Calc advances src by one or more passes according to in, writing the
// final result to trg (and, when the technique or pass count requires it,
// recording intermediate history in extra). extra must be non-nil; Calc
// resizes it as needed but never reads from it before it is sized.
//
// src and trg may point to the same sheet only when in.Technique is
// OrthoInterleave.
func Calc(in Input, src, trg, extra *sheet.Sheet, st *Status) error {
	st.Reset()

	copyForHistory, sizeForHistory, resetIfNotUsed := techniqueTraits(in.Technique)

	isMultiPass := in.ExtraPassCount > 0 && !in.PassesDisabled
	isOnePass := !isMultiPass
	isInPlaceRequested := src == trg
	isInPlacePossible := in.Technique == OrthoInterleave
	isExtraPreSized := extra.Width() == src.Width() && extra.Height() == src.Height()

	if isInPlaceRequested && !isInPlacePossible {
		return ErrInPlaceUnsupported
	}

	isHistoryVital := sizeForHistory
	isHistoryNice := isHistoryVital || copyForHistory
	isExtraVitalForSolve := isMultiPass && !isInPlacePossible
	isExtraVitalForHistory := isMultiPass || isInPlaceRequested
	isExtraVital := isExtraVitalForSolve || (isHistoryVital && isExtraVitalForHistory)
	isExtraNice := isExtraVital || (isHistoryNice && isExtraVitalForHistory)
	isExtraUsed := isExtraVital || (isExtraNice && isExtraPreSized)

	if isExtraVital && !isExtraPreSized {
		extra.SetXYCounts(src.Width(), src.Height(), 0)
		st.WasExtraSized = true
	}

	if isExtraUsed {
		st.WasExtraUsed = true
	} else if resetIfNotUsed {
		extra.Reset()
	}

	if isMultiPass && in.Technique == WaveWithDamping {
		if st.EarlyExit.Load() {
			return nil
		}
		// Seed the extra sheet with whichever generation the pass loop
		// below will need as "one generation back" history, so the wave
		// momentum term sees the right values on its first real pass.
		if in.ExtraPassCount%2 == 1 {
			extra.CopyFrom(trg)
			trg.CopyFrom(src)
		} else {
			extra.CopyFrom(src)
		}
	}

	var scr scratch
	defer scr.release()

	pSrc := src
	countdown := 0
	if isMultiPass {
		countdown = in.ExtraPassCount
	}
	for ; countdown > 0; countdown-- {
		if st.EarlyExit.Load() {
			return nil
		}
		st.SolveCount++

		isThisPassTargetingExtra := isExtraUsed && countdown%2 == 1
		trgThisPass := trg
		if isThisPassTargetingExtra {
			trgThisPass = extra
		}
		if err := calcNextPass(in, pSrc, trgThisPass, &st.EarlyExit, &scr); err != nil {
			return err
		}
		pSrc = trgThisPass
	}

	if isOnePass {
		if isInPlaceRequested {
			if isHistoryNice && isExtraUsed {
				if st.EarlyExit.Load() {
					return nil
				}
				extra.CopyFrom(src)
				st.LastSolveSaved = InExtra
			}
		} else {
			st.LastSolveSaved = InSrc
		}
	} else if isExtraUsed {
		st.LastSolveSaved = InExtra
	}

	if st.EarlyExit.Load() {
		return nil
	}
	st.SolveCount++
	return calcNextPass(in, pSrc, trg, &st.EarlyExit, &scr)
}

// calcNextPass performs one technique-dispatched solve pass from src into
// trg, then applies the stability clamp.
func calcNextPass(in Input, src, trg *sheet.Sheet, early *atomic.Bool, scr *scratch) error {
	if early.Load() {
		return nil
	}

	var err error
	switch in.Technique {
	case OrthoInterleave:
		err = calcOrthoInterleave(in.Method, in.Parallel, in.RateX, in.RateY, src, trg, early, scr)
	case Simultaneous2D:
		err = calcWaveWithDamping(in.Method, in.Parallel, 1, in.RateX, in.RateY, src, trg, early, scr)
	default: // WaveWithDamping
		err = calcWaveWithDamping(in.Method, in.Parallel, in.Damping, in.RateX, in.RateY, src, trg, early, scr)
	}
	if err != nil {
		return err
	}

	if !early.Load() {
		fixOutOfBoundsIfNecessary(in.Technique, in.Method, in.Damping, in.RateX, in.RateY, trg)
	}
	return nil
}

// calcOrthoInterleave solves the 2-D problem as two perpendicular 1-D
// solves: x first (row by row), then y (column by column) reading the
// x-pass's own output — the only technique allowed to write in place,
// since each pass fully supersedes the data it reads.
func calcOrthoInterleave(method Method, parallel bool, rateX, rateY float64, src, trg *sheet.Sheet, early *atomic.Bool, scr *scratch) error {
	switch {
	case rateX != 0:
		if err := calc1DAxis(method, parallel, rateX, src.RangeYX(), trg.RangeYX(), sheet.AssignSet, 0, early, scr); err != nil {
			return err
		}
		if !early.Load() && rateY != 0 {
			return calc1DAxis(method, parallel, rateY, trg.RangeXY(), trg.RangeXY(), sheet.AssignSet, 0, early, scr)
		}
		return nil
	case rateY != 0:
		return calc1DAxis(method, parallel, rateY, src.RangeXY(), trg.RangeXY(), sheet.AssignSet, 0, early, scr)
	default:
		if src != trg {
			trg.CopyFrom(src)
		}
		return nil
	}
}

// calcWaveWithDamping solves both axes together, blending in
// (1 - damping) * (current - previous) as momentum, with trg holding the
// previous generation. Simultaneous2D is this with damping
// pinned to 1, which collapses the blend to a pure replace.
func calcWaveWithDamping(method Method, parallel bool, damping, rateX, rateY float64, src, trg *sheet.Sheet, early *atomic.Bool, scr *scratch) error {
	if method == Forward {
		return calc2DForward(parallel, damping, rateX, rateY, src, trg, early)
	}

	// Backward and central diff both read from the original src sheet for
	// each pass (never chaining trg into the second pass): the x-pass
	// blends in the real damping, the y-pass always sums undamped into
	// whatever the x-pass already wrote.
	if err := calc1DAxis(method, parallel, rateX, src.RangeYX(), trg.RangeYX(), sheet.AssignWave, damping, early, scr); err != nil {
		return err
	}
	if early.Load() {
		return nil
	}
	return calc1DAxis(method, parallel, rateY, src.RangeXY(), trg.RangeXY(), sheet.AssignSum, 0, early, scr)
}

// calc1DAxis dispatches a 1-D line solve (Forward, Backward, or Central)
// across every line of srcOuter/trgOuter, serially or in parallel. Forward
// needs no scratch; Backward and Central each get a private, non-
// overlapping window of per-line tridiagonal scratch.
func calc1DAxis(method Method, parallel bool, r float64, srcOuter, trgOuter sheet.StrideRange, assign sheet.AssignMode, damping float64, early *atomic.Bool, scr *scratch) error {
	n := srcOuter.Count()
	if n == 0 {
		return nil
	}
	lineLen := srcOuter.Begin().Range().Count()
	if method != Forward {
		scr.ensure(n * lineLen)
	}

	return dispatch(srcOuter, trgOuter, early, parallel, func(i int, s, t sheet.StrideRange) error {
		switch method {
		case Forward:
			fd.CalcNext1DForward(s, t, r, assign, damping)
		case Backward:
			diag, rhs, out := scr.lineScratch(i, lineLen)
			fd.CalcNext1DBackward(s, t, r, assign, damping, diag, rhs, out)
		case Central:
			diag, rhs, out := scr.lineScratch(i, lineLen)
			fd.CalcNext1DCentral(s, t, r, assign, damping, diag, rhs, out)
		}
		return nil
	})
}

// calc2DForward drives the explicit forward-diff stencil kernels directly
// over rows (RangeYX), rather than through the 1-D-per-axis functors, since
// forward diff can compute both axes' contributions in a single pass.
func calc2DForward(parallel bool, damping, rateX, rateY float64, src, trg *sheet.Sheet, early *atomic.Bool) error {
	srcRows := src.RangeYX()
	trgRows := trg.RangeYX()
	n := srcRows.Count()
	if n == 0 {
		return nil
	}

	if !parallel || n <= 1 {
		return calc2DForwardSerial(srcRows, trgRows, n, rateX, rateY, damping, early)
	}
	return calc2DForwardParallel(srcRows, trgRows, n, rateX, rateY, damping, early)
}

func calc2DForwardRow(i, n int, srcBegin sheet.StrideIter, row, trow sheet.StrideRange, rateX, rateY, damping float64) {
	switch {
	case n == 1:
		fd.CalcNext2DForwardThinStrip(row, trow, rateX, sheet.AssignWave, damping)
	case i == 0:
		below := srcBegin.Advance(1).Range()
		fd.CalcNext2DForwardEdgeRow(row, trow, below, rateX, rateY, sheet.AssignWave, damping)
	case i == n-1:
		above := srcBegin.Advance(i - 1).Range()
		fd.CalcNext2DForwardEdgeRow(row, trow, above, rateX, rateY, sheet.AssignWave, damping)
	default:
		above := srcBegin.Advance(i - 1).Range()
		below := srcBegin.Advance(i + 1).Range()
		fd.CalcNext2DForwardMid(row, trow, above, below, rateX, rateY, sheet.AssignWave, damping)
	}
}

func calc2DForwardSerial(srcRows, trgRows sheet.StrideRange, n int, rateX, rateY, damping float64, early *atomic.Bool) error {
	srcBegin := srcRows.Begin()
	trgBegin := trgRows.Begin()
	for i := 0; i < n; i++ {
		if early.Load() {
			return nil
		}
		row := srcBegin.Advance(i).Range()
		trow := trgBegin.Advance(i).Range()
		calc2DForwardRow(i, n, srcBegin, row, trow, rateX, rateY, damping)
	}
	return nil
}

func calc2DForwardParallel(srcRows, trgRows sheet.StrideRange, n int, rateX, rateY, damping float64, early *atomic.Bool) error {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	srcBegin := srcRows.Begin()
	trgBegin := trgRows.Begin()

	for i := 0; i < n; i++ {
		i := i
		row := srcBegin.Advance(i).Range()
		trow := trgBegin.Advance(i).Range()
		g.Go(func() error {
			if early.Load() {
				return nil
			}
			calc2DForwardRow(i, n, srcBegin, row, trow, rateX, rateY, damping)
			return nil
		})
	}

	return g.Wait()
}

// fixOutOfBoundsIfNecessary flags the handful of rate/damping/method
// combinations under which the original solver was observed to blow up,
// and clamps the result back into range when one applies. It is not a
// stability proof, just the guard the solver has always shipped with.
func fixOutOfBoundsIfNecessary(technique Technique, method Method, damping, rateX, rateY float64, trg *sheet.Sheet) {
	needsCorrection := false

	switch {
	case rateX < 0 || rateY < 0:
		needsCorrection = true
	case technique == WaveWithDamping &&
		(damping < 0 || damping > 1 || damping < WaveDampingStabilityThreshold):
		needsCorrection = true
	case method != Backward &&
		(rateX >= 0.5 || rateY >= 0.5 || (technique != OrthoInterleave && rateX+rateY >= 0.5)):
		needsCorrection = true
	}

	if needsCorrection {
		fixSeverelyOutOfBoundsSheet(trg)
	}
}

// fixSeverelyOutOfBoundsSheet clamps trg back into a sane range: a flat sheet
// outside [-1,1] is reset to 0, and a non-flat sheet reaching beyond
// [-100,100] is renormalized; a non-flat sheet within [-100,100] is left
// untouched.
func fixSeverelyOutOfBoundsSheet(trg *sheet.Sheet) {
	const normalMin, normalMax, normalMid = -1.0, 1.0, 0.0
	const outOfBoundsMin, outOfBoundsMax = -100.0, 100.0
	const backInBoundsMin, backInBoundsMax = -50.0, 50.0

	min, max := trg.MinMaxValues()

	switch {
	case min == max:
		if min < normalMin || max > normalMax {
			trg.FillSheet(normalMid)
		}
	case min < outOfBoundsMin:
		trg.Normalize(backInBoundsMin, math.Max(normalMid, math.Min(backInBoundsMax, max)))
	case max > outOfBoundsMax:
		trg.Normalize(math.Min(normalMid, math.Max(backInBoundsMin, min)), backInBoundsMax)
	}
}
