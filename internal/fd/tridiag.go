// Package fd implements the finite-difference building blocks the solver
// orchestrator composes: the tridiagonal (Thomas) solver and the forward,
// backward, and central-difference stencil kernels.
package fd

import (
	"math"

	"github.com/nealabq/heatwave/internal/sheet"
)

// tridiagEpsilon substitutes for an exactly-zero pivot in the careful
// variant, since dividing by zero there would otherwise be a silent NaN
// rather than a merely inaccurate answer.
const tridiagEpsilon = 1e-5

// SolveTriDiagonal solves M*x = d via the Thomas algorithm for a matrix with
// constant sub-diagonal a and constant super-diagonal c, main diagonal b and
// right-hand side d (both mutated destructively as scratch), writing the
// result into x through assign. Panics in debug builds if b is not strictly
// diagonally dominant (|b[i]| > |a|+|c|) — callers with possibly-negative
// rates should use SolveTriDiagonalCareful instead.
func SolveTriDiagonal(n int, a float64, b, d []float64, c float64, x []float64, assign sheet.AssignMode) {
	solveTriDiagonal(n, a, b, d, c, x, assign, false)
}

// SolveTriDiagonalCareful behaves like SolveTriDiagonal but substitutes
// tridiagEpsilon for any pivot that is exactly zero, rather than dividing by
// it. The backward and central kernels select this variant whenever their
// rate is negative — a deliberately permitted, numerically pathological
// input that is clamped downstream rather than rejected outright.
func SolveTriDiagonalCareful(n int, a float64, b, d []float64, c float64, x []float64, assign sheet.AssignMode) {
	solveTriDiagonal(n, a, b, d, c, x, assign, true)
}

func solveTriDiagonal(n int, a float64, b, d []float64, c float64, x []float64, assign sheet.AssignMode, careful bool) {
	if n == 0 {
		return
	}

	if Debug && !careful {
		for i := 0; i < n; i++ {
			debugAssertf(math.Abs(b[i]) > math.Abs(a)+math.Abs(c), "fd: tridiagonal matrix not diagonally dominant at row %d", i)
		}
	}

	pivot := func(v float64) float64 {
		if careful && v == 0 {
			return tridiagEpsilon
		}
		return v
	}

	for i := 1; i < n; i++ {
		factor := a / pivot(b[i-1])
		b[i] -= factor * c
		d[i] -= factor * d[i-1]
	}

	d[n-1] = d[n-1] / pivot(b[n-1])
	for i := n - 2; i >= 0; i-- {
		d[i] = (d[i] - c*d[i+1]) / pivot(b[i])
	}
	for i := 0; i < n; i++ {
		x[i] = assign.Apply(x[i], d[i])
	}
}
