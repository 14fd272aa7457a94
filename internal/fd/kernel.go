package fd

import "github.com/nealabq/heatwave/internal/sheet"

func at(r sheet.StrideRange, i int) float64 {
	return *r.Begin().Advance(i).Elem()
}

func set(r sheet.StrideRange, i int, v float64) {
	*r.Begin().Advance(i).Elem() = v
}

// combine folds a freshly computed stencil value into a target cell
// according to assign. AssignSet and AssignSum are the plain "no-init"
// sentinels used when composing multi-pass techniques (OrthoInterleave's two
// 1-D solves, Crank-Nicolson's accumulate-on-second-pass); AssignWave applies
// the damping-selected combination g(t, s, value) described for the wave
// techniques, with d == 1 degenerating to a pure replace and d == 0 to
// undamped momentum-conserving wave propagation.
func combine(t, s, value float64, assign sheet.AssignMode, damping float64) float64 {
	switch assign {
	case sheet.AssignSum:
		return t + value
	case sheet.AssignWave:
		switch damping {
		case 1:
			return value
		case 0:
			return value + s - t
		default:
			return value + (1-damping)*(s-t)
		}
	default:
		return value
	}
}

// forwardStencilValue computes the explicit forward-difference update for one
// cell given whichever of its four neighbours actually exist. The
// self-coefficient shrinks by exactly the count of present neighbours on
// each axis, which is the no-leak edge policy: a missing neighbour is simply
// omitted rather than replaced by a zero contribution, so no heat vanishes
// at a boundary.
func forwardStencilValue(s, left, right, above, below float64, hasLeft, hasRight, hasAbove, hasBelow bool, r, rSide float64) float64 {
	return forwardStencilValueBase(1, s, left, right, above, below, hasLeft, hasRight, hasAbove, hasBelow, r, rSide)
}

// forwardStencilValueBase is forwardStencilValue generalised with an
// explicit self-term base, used by Crank-Nicolson's explicit half-step
// (base 2 instead of base 1 — see CalcNext1DCentral).
func forwardStencilValueBase(base, s, left, right, above, below float64, hasLeft, hasRight, hasAbove, hasBelow bool, r, rSide float64) float64 {
	var xCount, xSum float64
	if hasLeft {
		xCount++
		xSum += left
	}
	if hasRight {
		xCount++
		xSum += right
	}
	var yCount, ySum float64
	if hasAbove {
		yCount++
		ySum += above
	}
	if hasBelow {
		yCount++
		ySum += below
	}
	return (base-r*xCount-rSide*yCount)*s + r*xSum + rSide*ySum
}

// CalcNext1DForward computes the explicit forward-difference update for a
// single line with rate r. A single-cell line has no neighbour to diffuse
// with, so it is a no-op copy regardless of assign.
func CalcNext1DForward(src, trg sheet.StrideRange, r float64, assign sheet.AssignMode, damping float64) {
	n := src.Count()
	if n == 0 {
		return
	}
	if n == 1 {
		set(trg, 0, at(src, 0))
		return
	}
	// prev keeps the unmodified left neighbour, since src and trg may be the
	// same line (OrthoInterleave in place) and trg[i-1] is already written.
	prev := 0.0
	for i := 0; i < n; i++ {
		s := at(src, i)
		t := at(trg, i)
		var value float64
		switch {
		case i == 0:
			value = forwardStencilValue(s, 0, at(src, 1), 0, 0, false, true, false, false, r, 0)
		case i == n-1:
			value = forwardStencilValue(s, prev, 0, 0, 0, true, false, false, false, r, 0)
		default:
			value = forwardStencilValue(s, prev, at(src, i+1), 0, 0, true, true, false, false, r, 0)
		}
		set(trg, i, combine(t, s, value, assign, damping))
		prev = s
	}
}

// CalcNext2DForwardMid computes one interior row (a row with both an above
// and a below neighbour row) of the 2-D explicit forward difference.
func CalcNext2DForwardMid(src, trg, above, below sheet.StrideRange, r, rSide float64, assign sheet.AssignMode, damping float64) {
	n := src.Count()
	for i := 0; i < n; i++ {
		s := at(src, i)
		t := at(trg, i)
		a := at(above, i)
		b := at(below, i)
		var value float64
		switch {
		case i == 0:
			value = forwardStencilValue(s, 0, at(src, 1), a, b, false, true, true, true, r, rSide)
		case i == n-1:
			value = forwardStencilValue(s, at(src, i-1), 0, a, b, true, false, true, true, r, rSide)
		default:
			value = forwardStencilValue(s, at(src, i-1), at(src, i+1), a, b, true, true, true, true, r, rSide)
		}
		set(trg, i, combine(t, s, value, assign, damping))
	}
}

// CalcNext2DForwardEdgeRow computes the top or bottom row of a multi-row
// sheet, which has exactly one side neighbour row.
func CalcNext2DForwardEdgeRow(src, trg, side sheet.StrideRange, r, rSide float64, assign sheet.AssignMode, damping float64) {
	n := src.Count()
	for i := 0; i < n; i++ {
		s := at(src, i)
		t := at(trg, i)
		sideVal := at(side, i)
		var value float64
		switch {
		case i == 0:
			value = forwardStencilValue(s, 0, at(src, 1), sideVal, 0, false, true, true, false, r, rSide)
		case i == n-1:
			value = forwardStencilValue(s, at(src, i-1), 0, sideVal, 0, true, false, true, false, r, rSide)
		default:
			value = forwardStencilValue(s, at(src, i-1), at(src, i+1), sideVal, 0, true, true, true, false, r, rSide)
		}
		set(trg, i, combine(t, s, value, assign, damping))
	}
}

// CalcNext2DForwardThinStrip computes the sole row of a 1-row-tall sheet,
// which has no side neighbour at all — equivalent to CalcNext1DForward but
// named separately to mirror the technique's own dispatch table.
func CalcNext2DForwardThinStrip(src, trg sheet.StrideRange, r float64, assign sheet.AssignMode, damping float64) {
	CalcNext1DForward(src, trg, r, assign, damping)
}

// CalcNext1DBackward computes the implicit backward-difference update for one
// line via the tridiagonal solver. Damping, when assign is AssignWave, is
// folded in by pre-scaling the target before the solve: t <- d*(t-s) - t;
// the solve then accumulates into that pre-scaled value via AssignSum.
// AssignSum (no-init-sum: a prior pass already holds a value in trg to
// accumulate into, with no damping prescale) also solves via AssignSum.
// AssignSet skips the pre-scale and solves directly with AssignSet.
func CalcNext1DBackward(src, trg sheet.StrideRange, r float64, assign sheet.AssignMode, damping float64, scratchDiag, scratchRHS, scratchOut []float64) {
	n := src.Count()
	if n == 0 {
		return
	}

	diag := scratchDiag[:n]
	rhs := scratchRHS[:n]
	out := scratchOut[:n]

	for i := 0; i < n; i++ {
		if i == 0 || i == n-1 {
			diag[i] = 1 + r
		} else {
			diag[i] = 1 + 2*r
		}
		rhs[i] = at(src, i)
		out[i] = at(trg, i)
	}

	solveAssign := sheet.AssignSet
	switch assign {
	case sheet.AssignWave:
		for i := 0; i < n; i++ {
			s := rhs[i]
			t := out[i]
			out[i] = damping*(t-s) - t
		}
		solveAssign = sheet.AssignSum
	case sheet.AssignSum:
		solveAssign = sheet.AssignSum
	}

	solveTri := SolveTriDiagonal
	if r < 0 {
		solveTri = SolveTriDiagonalCareful
	}
	solveTri(n, -r, diag, rhs, -r, out, solveAssign)

	for i := 0; i < n; i++ {
		set(trg, i, out[i])
	}
}

// CalcNext1DCentral computes the Crank-Nicolson update for one line: like
// CalcNext1DBackward, but the main diagonal uses (2+2r) and the right-hand
// side is the explicit-forward stencil computed with a base of 2 instead of
// 1, i.e. the average of the implicit and explicit schemes.
func CalcNext1DCentral(src, trg sheet.StrideRange, r float64, assign sheet.AssignMode, damping float64, scratchDiag, scratchRHS, scratchOut []float64) {
	n := src.Count()
	if n == 0 {
		return
	}

	diag := scratchDiag[:n]
	rhs := scratchRHS[:n]
	out := scratchOut[:n]

	for i := 0; i < n; i++ {
		if i == 0 || i == n-1 {
			diag[i] = 2 + r
		} else {
			diag[i] = 2 + 2*r
		}

		s := at(src, i)
		var explicitValue float64
		switch {
		case i == 0:
			explicitValue = forwardStencilValueBase(2, s, 0, at(src, 1), 0, 0, false, true, false, false, r, 0)
		case i == n-1:
			explicitValue = forwardStencilValueBase(2, s, at(src, i-1), 0, 0, 0, true, false, false, false, r, 0)
		default:
			explicitValue = forwardStencilValueBase(2, s, at(src, i-1), at(src, i+1), 0, 0, true, true, false, false, r, 0)
		}
		rhs[i] = explicitValue
		out[i] = at(trg, i)
	}

	solveAssign := sheet.AssignSet
	switch assign {
	case sheet.AssignWave:
		for i := 0; i < n; i++ {
			s := at(src, i)
			t := out[i]
			out[i] = damping*(t-s) - t
		}
		solveAssign = sheet.AssignSum
	case sheet.AssignSum:
		solveAssign = sheet.AssignSum
	}

	solveTri := SolveTriDiagonal
	if r < 0 {
		solveTri = SolveTriDiagonalCareful
	}
	solveTri(n, -r, diag, rhs, -r, out, solveAssign)

	for i := 0; i < n; i++ {
		set(trg, i, out[i])
	}
}
