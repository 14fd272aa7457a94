package sheet

import "math"

// MaxAxis bounds a single sheet dimension. It exists to keep W*H comfortably
// inside int arithmetic on every platform Go targets, not because the field
// itself has a physical size limit.
const MaxAxis = 1 << 15

// Sheet is a 2-D scalar grid backed by a single flat buffer in row-major
// order (x varies fastest). It has no notion of physical units or spacing —
// those live in solve.Input — and never allocates implicitly outside its own
// mutators.
type Sheet struct {
	data []float64
	w, h int
}

// NewSheet returns a zero-value sheet (W == H == 0, no storage).
func NewSheet() *Sheet { return &Sheet{} }

// Width returns the current column count.
func (s *Sheet) Width() int { return s.w }

// Height returns the current row count.
func (s *Sheet) Height() int { return s.h }

// Reset releases storage and returns the sheet to its zero shape.
func (s *Sheet) Reset() {
	s.data = nil
	s.w = 0
	s.h = 0
}

func validAxisPair(w, h int) bool {
	if w < 0 || h < 0 {
		return false
	}
	if (w == 0) != (h == 0) {
		return false
	}
	if w > MaxAxis || h > MaxAxis {
		return false
	}
	return true
}

// SetXYCounts atomically replaces the grid with a w-by-h field filled with
// fill, discarding any previous content. Returns false, leaving the sheet
// unchanged, if exactly one of w, h is zero or either exceeds MaxAxis.
func (s *Sheet) SetXYCounts(w, h int, fill float64) bool {
	if !validAxisPair(w, h) {
		return false
	}
	if w == 0 {
		s.Reset()
		return true
	}
	data := make([]float64, w*h)
	if fill != 0 {
		for i := range data {
			data[i] = fill
		}
	}
	s.data = data
	s.w = w
	s.h = h
	return true
}

// ChangeXYCounts resizes the grid to w-by-h, preserving content by resampling
// through the area-preserving line walker (linewalker.go) rather than
// discarding it. Falls back to Reset+SetXYCounts when the sheet currently
// holds nothing to preserve, or when either new dimension is zero. Returns
// false, leaving the sheet unchanged, on invalid dimensions.
func (s *Sheet) ChangeXYCounts(w, h int) bool {
	if !validAxisPair(w, h) {
		return false
	}
	if w == 0 || s.w == 0 {
		s.Reset()
		return s.SetXYCounts(w, h, 0)
	}
	if w == s.w && h == s.h {
		return true
	}

	// Resample each existing row to the new width.
	widened := make([]float64, s.h*w)
	for y := 0; y < s.h; y++ {
		row := s.data[y*s.w : (y+1)*s.w]
		resampled := resampleAreaPreserving(row, w)
		copy(widened[y*w:(y+1)*w], resampled)
	}

	// Resample each column of the widened grid to the new height.
	final := make([]float64, w*h)
	col := make([]float64, s.h)
	for x := 0; x < w; x++ {
		for y := 0; y < s.h; y++ {
			col[y] = widened[y*w+x]
		}
		resampled := resampleAreaPreserving(col, h)
		for y := 0; y < h; y++ {
			final[y*w+x] = resampled[y]
		}
	}

	s.data = final
	s.w = w
	s.h = h
	return true
}

// RangeYX returns a whole-sheet depth-1 range over rows (outer = y, inner =
// x): iterating it yields, for each row, a range that walks x. This is the
// ordering a 1-D solve along the x-axis wants, since each kernel "line" must
// be one row.
func (s *Sheet) RangeYX() StrideRange {
	return NewRange(s.h, s.w, NewRange(s.w, 1, NewLeaf(s.data, 0, len(s.data))))
}

// RangeXY returns a whole-sheet depth-1 range over columns (outer = x, inner
// = y): the same storage as RangeYX, transposed via Swap so that y is the
// inner dimension — the ordering a 1-D solve along the y-axis wants.
func (s *Sheet) RangeXY() StrideRange {
	return s.RangeYX().Swap()
}

func emptyRange() StrideRange {
	return NewRange(0, 0, NewLeafRange(nil, 0, 0))
}

func (s *Sheet) validRect(xLo, xHi, yLo, yHi int) bool {
	return xLo >= 0 && xLo < xHi && xHi <= s.w && yLo >= 0 && yLo < yHi && yHi <= s.h
}

// RangeYXRect returns the sub-rectangle [xLo,xHi) x [yLo,yHi) as an outer=y,
// inner=x range (see RangeYX). Invalid bounds yield an empty range rather
// than an error, matching every other coordinate-taking operation on Sheet.
func (s *Sheet) RangeYXRect(xLo, xHi, yLo, yHi int) StrideRange {
	if !s.validRect(xLo, xHi, yLo, yHi) {
		return emptyRange()
	}
	leaf := NewLeaf(s.data, yLo*s.w+xLo, yLo*s.w+xHi)
	inner := NewRange(xHi-xLo, 1, leaf)
	return NewRange(yHi-yLo, s.w, inner)
}

// TransformRect visits every cell of [xLo,xHi) x [yLo,yHi) exactly once,
// replacing it with f(old, x, y) combined via assign. AssignWave is not a
// valid mode here — it needs kernel-local context TransformRect does not
// have — so it is treated the same as AssignSet.
func (s *Sheet) TransformRect(xLo, xHi, yLo, yHi int, f func(old float64, x, y int) float64, assign AssignMode) {
	if !s.validRect(xLo, xHi, yLo, yHi) {
		return
	}
	for y := yLo; y < yHi; y++ {
		row := s.data[y*s.w : (y+1)*s.w]
		for x := xLo; x < xHi; x++ {
			row[x] = assign.Apply(row[x], f(row[x], x, y))
		}
	}
}

// ScanRect visits every cell of [xLo,xHi) x [yLo,yHi) read-only, in row-major
// order, stopping early if f returns false. Returns false iff it stopped
// early.
func (s *Sheet) ScanRect(xLo, xHi, yLo, yHi int, f func(v float64, x, y int) bool) bool {
	if !s.validRect(xLo, xHi, yLo, yHi) {
		return true
	}
	for y := yLo; y < yHi; y++ {
		row := s.data[y*s.w : (y+1)*s.w]
		for x := xLo; x < xHi; x++ {
			if !f(row[x], x, y) {
				return false
			}
		}
	}
	return true
}

// FillSheet sets every cell of the whole sheet to v.
func (s *Sheet) FillSheet(v float64) {
	s.FillRect(v, 0, s.w, 0, s.h)
}

// FillRect sets every cell of [xLo,xHi) x [yLo,yHi) to v.
func (s *Sheet) FillRect(v float64, xLo, xHi, yLo, yHi int) {
	s.TransformRect(xLo, xHi, yLo, yHi, func(float64, int, int) float64 { return v }, AssignSet)
}

// ScaleSheet multiplies every cell of the whole sheet by k.
func (s *Sheet) ScaleSheet(k float64) {
	s.ScaleRect(k, 0, s.w, 0, s.h)
}

// ScaleRect multiplies every cell of [xLo,xHi) x [yLo,yHi) by k.
func (s *Sheet) ScaleRect(k float64, xLo, xHi, yLo, yHi int) {
	s.TransformRect(xLo, xHi, yLo, yHi, func(old float64, _, _ int) float64 { return old * k }, AssignSet)
}

// MinValue returns the minimum cell value over [xLo,xHi) x [yLo,yHi). Returns
// +Inf over an empty or invalid rectangle.
func (s *Sheet) MinValue(xLo, xHi, yLo, yHi int) float64 {
	min := math.Inf(1)
	s.ScanRect(xLo, xHi, yLo, yHi, func(v float64, _, _ int) bool {
		if v < min {
			min = v
		}
		return true
	})
	return min
}

// MinMaxValues returns the minimum and maximum cell values over the whole
// sheet. Always recomputed — Sheet never caches extrema across mutations.
func (s *Sheet) MinMaxValues() (min, max float64) {
	min = math.Inf(1)
	max = math.Inf(-1)
	s.ScanRect(0, s.w, 0, s.h, func(v float64, _, _ int) bool {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		return true
	})
	return min, max
}

// Normalize linearly remaps the sheet's current [min,max] onto [lo,hi]. A
// flat sheet (min == max) is remapped to the constant (lo+hi)/2 instead of
// dividing by zero.
func (s *Sheet) Normalize(lo, hi float64) {
	if s.w == 0 {
		return
	}
	min, max := s.MinMaxValues()
	span := max - min
	if span == 0 {
		s.FillSheet((lo + hi) / 2)
		return
	}
	scale := (hi - lo) / span
	s.TransformRect(0, s.w, 0, s.h, func(old float64, _, _ int) float64 {
		return lo + (old-min)*scale
	}, AssignSet)
}

func (s *Sheet) sameShape(other *Sheet) bool {
	return other != nil && other.w == s.w && other.h == s.h
}

// MaybeAddIn adds other into s cell-by-cell. Returns false, leaving s
// unchanged, if the two sheets' dimensions do not match.
func (s *Sheet) MaybeAddIn(other *Sheet) bool {
	if !s.sameShape(other) {
		return false
	}
	for i := range s.data {
		s.data[i] += other.data[i]
	}
	return true
}

// MaybeSubtractOut subtracts other out of s cell-by-cell. Returns false,
// leaving s unchanged, if the two sheets' dimensions do not match.
func (s *Sheet) MaybeSubtractOut(other *Sheet) bool {
	if !s.sameShape(other) {
		return false
	}
	for i := range s.data {
		s.data[i] -= other.data[i]
	}
	return true
}

// CopyFrom overwrites s's content with a copy of other's. Unlike MaybeAddIn
// and MaybeSubtractOut it resizes s to match rather than failing on a shape
// mismatch, since callers (the wave-damping history buffer) use it to seed
// or refresh a sheet that may not have been sized yet.
func (s *Sheet) CopyFrom(other *Sheet) {
	if other == nil || other.w == 0 {
		s.Reset()
		return
	}
	if !s.sameShape(other) {
		s.data = make([]float64, len(other.data))
		s.w = other.w
		s.h = other.h
	}
	copy(s.data, other.data)
}

// GetAt returns the value at (x, y). Out-of-range coordinates are a
// programming error (debugAssert), not a recoverable condition.
func (s *Sheet) GetAt(x, y int) float64 {
	debugAssertf(x >= 0 && x < s.w && y >= 0 && y < s.h, "sheet: GetAt(%d,%d) out of bounds for %dx%d sheet", x, y, s.w, s.h)
	return s.data[y*s.w+x]
}

// SetValueAt sets the value at (x, y). Out-of-range coordinates are a
// programming error (debugAssert), not a recoverable condition.
func (s *Sheet) SetValueAt(x, y int, v float64) {
	debugAssertf(x >= 0 && x < s.w && y >= 0 && y < s.h, "sheet: SetValueAt(%d,%d) out of bounds for %dx%d sheet", x, y, s.w, s.h)
	s.data[y*s.w+x] = v
}
