package solve

// scratch holds the three buffers the implicit (Backward, Central) schemes
// need per line: a main-diagonal vector, a right-hand-side vector, and an
// output vector used as pre-scale storage for the wave techniques. Calc
// declares one per call: the buffers are allocated on that call's first
// implicit line solve and released (capacity dropped to zero) when Calc
// returns, so nothing is kept between calls. Forward needs no scratch.
type scratch struct {
	bufA []float64
	bufB []float64
	bufC []float64
}

// ensure grows the three buffers to at least n, reusing the existing
// backing array when it is already large enough.
func (s *scratch) ensure(n int) {
	s.bufA = ensureLen(s.bufA, n)
	s.bufB = ensureLen(s.bufB, n)
	s.bufC = ensureLen(s.bufC, n)
}

func ensureLen(buf []float64, n int) []float64 {
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]float64, n)
}

// release drops all three buffers, freeing their backing arrays.
func (s *scratch) release() {
	s.bufA = nil
	s.bufB = nil
	s.bufC = nil
}

// lineScratch carves out an exclusive, non-overlapping length-n window of
// each buffer for one parallel task — task i gets window [i*n, (i+1)*n).
// Sized to W*H by the caller for parallel dispatch (one strip per
// concurrent line) so that every task's window is disjoint and no locking
// is needed between them.
func (s *scratch) lineScratch(taskIndex, n int) (diag, rhs, out []float64) {
	lo := taskIndex * n
	hi := lo + n
	return s.bufA[lo:hi], s.bufB[lo:hi], s.bufC[lo:hi]
}
