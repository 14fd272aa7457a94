package sheet

// Line walker (C8): area-preserving resampling used when a sheet's
// dimensions change but its content should be kept.
//
// The source line is treated as a piecewise-constant function: cell i holds
// its value over the half-open interval [i, i+1) of a length-srcLen domain.
// Resizing to trgLen maps that same domain onto [0, trgLen) uniformly
// (scale = srcLen/trgLen) and assigns each target cell the overlap-weighted
// average of the source cells it spans — the area (integral) under the
// step function is preserved exactly, up to floating-point error, whether
// trgLen is larger or smaller than srcLen. This computes the same
// overlap-fraction quantities the original line_walker_type's incremental
// modulo/pivot state machine produces, via a direct two-pointer interval
// sweep instead of reproducing its bespoke increment/decrement automaton.
func resampleAreaPreserving(src []float64, trgLen int) []float64 {
	srcLen := len(src)
	trg := make([]float64, trgLen)

	if srcLen == 0 || trgLen == 0 {
		return trg
	}
	if srcLen == trgLen {
		copy(trg, src)
		return trg
	}

	scale := float64(srcLen) / float64(trgLen)

	for j := 0; j < trgLen; j++ {
		lo := float64(j) * scale
		hi := float64(j+1) * scale
		trg[j] = overlapWeightedAverage(src, lo, hi)
	}
	return trg
}

// overlapWeightedAverage returns the area-weighted average of src over the
// half-open real interval [lo, hi), where src[i] is constant over [i, i+1).
func overlapWeightedAverage(src []float64, lo, hi float64) float64 {
	srcLen := len(src)
	if hi > float64(srcLen) {
		hi = float64(srcLen)
	}
	if lo < 0 {
		lo = 0
	}
	if lo >= hi {
		// Degenerate span (can happen at the extreme edge from floating
		// point rounding) — fall back to the nearest source cell.
		i := int(lo)
		if i >= srcLen {
			i = srcLen - 1
		}
		if i < 0 {
			i = 0
		}
		return src[i]
	}

	var sum float64
	i0 := int(lo)
	i1 := int(hi)
	if i1 >= srcLen {
		i1 = srcLen - 1
	}

	for i := i0; i <= i1; i++ {
		cellLo := float64(i)
		cellHi := float64(i + 1)
		overlap := min64(hi, cellHi) - max64(lo, cellLo)
		if overlap > 0 {
			sum += src[i] * overlap
		}
	}
	return sum / (hi - lo)
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
