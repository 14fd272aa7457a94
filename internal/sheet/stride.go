// Package sheet implements the scalar grid container and the nestable
// stride-range/iterator machinery it is built on.
package sheet

// Inner is either a leaf view over a flat buffer, or another StrideRange
// one level further out. It is the Go stand-in for the C++ donor's
// variadic-tuple range construction: rather than a recursive generic type
// parameterized by depth, a range's inner dimension is either a Leaf or a
// StrideRange, decided at construction time.
type Inner interface {
	elemCount() int
}

// Leaf is a contiguous view over a backing buffer: every element is
// adjacent, one float64 apart. It is the depth-0 terminus of a StrideRange.
type Leaf struct {
	buf []float64
	lo  int // inclusive
	hi  int // exclusive
}

func (l Leaf) elemCount() int { return l.hi - l.lo }

// NewLeaf builds a leaf view over buf[lo:hi).
func NewLeaf(buf []float64, lo, hi int) Leaf {
	if lo < 0 || hi < lo || hi > len(buf) {
		debugAssertf(false, "sheet: invalid leaf bounds [%d,%d) over buffer of length %d", lo, hi, len(buf))
		return Leaf{buf: buf, lo: 0, hi: 0}
	}
	return Leaf{buf: buf, lo: lo, hi: hi}
}

// StrideRange is a depth-N view over a flat buffer: n successive sub-views,
// each `stride` elements apart in the underlying flat index space, where a
// sub-view is either a Leaf (depth 0) or nested further.
type StrideRange struct {
	n      int
	stride int
	inner  Inner
}

func (r StrideRange) elemCount() int { return r.n }

// NewLeafRange builds a depth-0 range (an element-count view with stride 1)
// directly from a leaf slice — the common case of "one row" or "the whole
// flat buffer."
func NewLeafRange(buf []float64, lo, hi int) StrideRange {
	leaf := NewLeaf(buf, lo, hi)
	return StrideRange{n: leaf.elemCount(), stride: 1, inner: leaf}
}

// NewRange builds a depth-(N+1) range: count successive inner ranges, each
// offset by stride elements from the last.
func NewRange(count, stride int, inner Inner) StrideRange {
	debugAssertf(count >= 0, "sheet: negative range count %d", count)
	return StrideRange{n: count, stride: stride, inner: inner}
}

// Count returns the number of elements (or sub-ranges, at depth > 0) this
// range iterates.
func (r StrideRange) Count() int { return r.n }

// Stride returns the element-space step between successive entries.
func (r StrideRange) Stride() int { return r.stride }

// Depth0 reports whether this range's inner dimension is a Leaf (so
// iterating it yields *float64 rather than a nested StrideRange).
func (r StrideRange) Depth0() bool {
	_, ok := r.inner.(Leaf)
	return ok
}

// StrideIter is a random-access position within a StrideRange. At depth 0 it
// dereferences to *float64; at depth > 0 it dereferences to a freshly built
// StrideRange one level shallower.
type StrideIter struct {
	stride int
	inner  Inner
	pos    int // element-space offset of the current position, relative to the range's origin
}

// Begin returns an iterator positioned at the first element.
func (r StrideRange) Begin() StrideIter {
	return StrideIter{stride: r.stride, inner: r.inner, pos: 0}
}

// End returns an iterator positioned one past the last element (iterPost).
func (r StrideRange) End() StrideIter {
	it := r.Begin()
	it.pos = r.n * r.stride
	return it
}

// RBegin returns a reverse iterator positioned at the last element, stepping
// backwards. Implemented by negating the stride on a copy, never by
// materialising a reversed view.
func (r StrideRange) RBegin() StrideIter {
	it := StrideIter{stride: -r.stride, inner: r.inner}
	it.pos = (r.n - 1) * r.stride
	return it
}

// REnd returns the reverse-iteration terminus, one step before the first
// element.
func (r StrideRange) REnd() StrideIter {
	it := r.RBegin()
	it.pos = -r.stride
	return it
}

// IterLo is the inclusive low reference point: Begin().
func (r StrideRange) IterLo() StrideIter { return r.Begin() }

// IterHi is the inclusive high reference point: the last valid element.
func (r StrideRange) IterHi() StrideIter {
	it := r.Begin()
	it.pos = (r.n - 1) * r.stride
	return it
}

// IterPre is one position before IterLo. Advancing past it is a programming
// error in every kernel inner loop.
func (r StrideRange) IterPre() StrideIter {
	it := r.Begin()
	it.pos = -r.stride
	return it
}

// IterPost is one position past IterHi (equivalent to End()).
func (r StrideRange) IterPost() StrideIter { return r.End() }

// Advance moves the iterator forward n logical steps (n may be negative).
func (it StrideIter) Advance(n int) StrideIter {
	it.pos += n * it.stride
	return it
}

// Retreat moves the iterator backward n logical steps.
func (it StrideIter) Retreat(n int) StrideIter {
	return it.Advance(-n)
}

// Sub returns the signed element-count distance from b to it: (it - b).
// The two iterators must share a stride; panics otherwise, since the
// subtraction would not correspond to an integral number of logical steps.
func (it StrideIter) Sub(b StrideIter) int {
	debugAssertf(it.stride == b.stride, "sheet: subtracting iterators with different strides (%d vs %d)", it.stride, b.stride)
	diff := it.pos - b.pos
	if it.stride == 0 {
		debugAssertf(diff == 0, "sheet: cannot divide by zero stride")
		return 0
	}
	debugAssertf(diff%it.stride == 0, "sheet: iterator difference %d is not a multiple of stride %d", diff, it.stride)
	return diff / it.stride
}

// Less reports it < b, comparing leaf positions directly when the (shared)
// stride is positive and in reverse when it is negative.
func (it StrideIter) Less(b StrideIter) bool {
	if it.stride >= 0 {
		return it.pos < b.pos
	}
	return it.pos > b.pos
}

// Equal reports positional equality, ignoring stride.
func (it StrideIter) Equal(b StrideIter) bool { return it.pos == b.pos }

// Elem dereferences a depth-0 iterator to the underlying element. Panics if
// the iterator is not depth-0.
func (it StrideIter) Elem() *float64 {
	leaf, ok := it.inner.(Leaf)
	debugAssertf(ok, "sheet: Elem() called on a non-depth-0 iterator")
	idx := leaf.lo + it.pos
	debugAssertf(idx >= leaf.lo && idx < leaf.hi, "sheet: iterator out of leaf bounds")
	return &leaf.buf[idx]
}

// Range dereferences a depth-N>0 iterator to a freshly constructed
// StrideRange one level shallower, rooted at the iterator's current
// position. The returned range is a value, never an alias back into the
// iterator.
func (it StrideIter) Range() StrideRange {
	inner, ok := it.inner.(StrideRange)
	debugAssertf(ok, "sheet: Range() called on a depth-0 iterator")
	return shiftInner(inner, it.pos)
}

// shiftInner rebuilds r with its leaf (or nested range) origin moved by
// delta elements — used when dereferencing an outer iterator to produce the
// inner range at that position, and by the in-place range mutators below.
func shiftInner(r StrideRange, delta int) StrideRange {
	switch in := r.inner.(type) {
	case Leaf:
		return StrideRange{n: r.n, stride: r.stride, inner: Leaf{buf: in.buf, lo: in.lo + delta, hi: in.hi + delta}}
	case StrideRange:
		return StrideRange{n: r.n, stride: r.stride, inner: shiftInner(in, delta)}
	default:
		debugAssertf(false, "sheet: unknown inner type")
		return r
	}
}

// RestrictByIndex narrows the range in place to [lo, hiExclusive). Returns
// false (range unchanged) if the bounds are invalid.
func (r *StrideRange) RestrictByIndex(lo, hiExclusive int) bool {
	if lo >= hiExclusive || hiExclusive > r.n || lo < 0 {
		return false
	}
	r.inner = shiftInner(*r, lo*r.stride).inner
	r.n = hiExclusive - lo
	return true
}

// IncLo grows the range by n elements on the low end (equivalent to
// decrementing the logical start index by n and increasing count by n).
func (r *StrideRange) IncLo(n int) {
	r.inner = shiftInner(*r, -n*r.stride).inner
	r.n += n
}

// IncHi grows the range by n elements on the high end.
func (r *StrideRange) IncHi(n int) {
	r.n += n
}

// DecLo shrinks the range by n elements on the low end.
func (r *StrideRange) DecLo(n int) {
	r.inner = shiftInner(*r, n*r.stride).inner
	r.n -= n
}

// DecHi shrinks the range by n elements on the high end.
func (r *StrideRange) DecHi(n int) {
	r.n -= n
}

// RotateLeft and RotateRight are the same operation on a depth-1 range in
// this two-level design — both levels are already at the same depth, so "left"
// and "right" rotation and Swap all produce the same transposed view. They
// exist to mirror the distilled spec's named operations.
func (r StrideRange) RotateLeft() StrideRange  { return r.Swap() }
func (r StrideRange) RotateRight() StrideRange { return r.Swap() }

// Swap transposes a depth-1 range: the outer (count, stride) and the inner
// (count, stride) trade places, with no data movement. Panics if r is not
// depth-1 (its inner dimension must itself be a StrideRange over a leaf).
func (r StrideRange) Swap() StrideRange {
	inner, ok := r.inner.(StrideRange)
	debugAssertf(ok, "sheet: Swap() requires a depth-1 range")
	debugAssertf(inner.Depth0(), "sheet: Swap() requires a depth-1 range (inner must be depth-0)")

	leaf, ok := inner.inner.(Leaf)
	debugAssertf(ok, "sheet: Swap() requires a depth-1 range backed by a leaf")

	newInner := StrideRange{n: r.n, stride: r.stride, inner: leaf}
	return StrideRange{n: inner.n, stride: inner.stride, inner: newInner}
}
