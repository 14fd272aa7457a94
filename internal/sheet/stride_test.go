package sheet

import "testing"

func TestLeafRangeIteration(t *testing.T) {
	buf := []float64{10, 20, 30, 40, 50}
	r := NewLeafRange(buf, 1, 4)

	if r.Count() != 3 {
		t.Fatalf("expected count 3, got %d", r.Count())
	}

	var got []float64
	for it := r.Begin(); it.Less(r.End()); it = it.Advance(1) {
		got = append(got, *it.Elem())
	}

	want := []float64{20, 30, 40}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestStrideIterReverse(t *testing.T) {
	buf := []float64{1, 2, 3, 4}
	r := NewLeafRange(buf, 0, 4)

	var got []float64
	end := r.REnd()
	for it := r.RBegin(); !it.Equal(end); it = it.Advance(1) {
		got = append(got, *it.Elem())
	}

	want := []float64{4, 3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestStrideIterSub(t *testing.T) {
	buf := make([]float64, 10)
	r := NewLeafRange(buf, 0, 10)

	a := r.Begin().Advance(2)
	b := r.Begin().Advance(7)

	if got := b.Sub(a); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := a.Sub(b); got != -5 {
		t.Fatalf("expected -5, got %d", got)
	}
}

func TestStrideIterSubPanicsOnMismatchedStride(t *testing.T) {
	buf := make([]float64, 10)
	a := NewLeafRange(buf, 0, 10).Begin()
	b := NewRange(2, 5, NewLeafRange(buf, 0, 10)).Begin()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on mismatched-stride subtraction")
		}
	}()
	a.Sub(b)
}

func TestRestrictByIndex(t *testing.T) {
	buf := []float64{0, 1, 2, 3, 4, 5}
	r := NewLeafRange(buf, 0, 6)

	if ok := r.RestrictByIndex(2, 4); !ok {
		t.Fatal("expected RestrictByIndex to succeed")
	}
	if got := *r.Begin().Elem(); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
	if r.Count() != 2 {
		t.Fatalf("expected count 2, got %d", r.Count())
	}

	if ok := r.RestrictByIndex(5, 1); ok {
		t.Fatal("expected RestrictByIndex to fail on inverted bounds")
	}
}

func TestIncDecLoHi(t *testing.T) {
	buf := []float64{0, 1, 2, 3, 4, 5}
	r := NewLeafRange(buf, 2, 4)

	r.IncLo(1)
	if got := *r.Begin().Elem(); got != 1 {
		t.Fatalf("expected 1 after IncLo, got %v", got)
	}
	r.IncHi(1)
	if r.Count() != 4 {
		t.Fatalf("expected count 4 after IncLo+IncHi, got %d", r.Count())
	}
	r.DecHi(1)
	r.DecLo(1)
	if r.Count() != 2 {
		t.Fatalf("expected count 2, got %d", r.Count())
	}
	if got := *r.Begin().Elem(); got != 2 {
		t.Fatalf("expected 2 after DecLo, got %v", got)
	}
}

func TestSwapTransposesDepth1Range(t *testing.T) {
	// 2 rows x 3 cols, row-major.
	buf := []float64{
		1, 2, 3,
		4, 5, 6,
	}
	outer := NewRange(2, 3, NewRange(3, 1, NewLeaf(buf, 0, 6)))
	swapped := outer.Swap()

	if swapped.Count() != 3 {
		t.Fatalf("expected swapped outer count 3, got %d", swapped.Count())
	}

	// Column 0 of the original should be {1, 4}.
	col0 := swapped.Begin().Range()
	if got := *col0.Begin().Elem(); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
	if got := *col0.Begin().Advance(1).Elem(); got != 4 {
		t.Fatalf("expected 4, got %v", got)
	}

	// Column 2 should be {3, 6}.
	col2 := swapped.Begin().Advance(2).Range()
	if got := *col2.Begin().Elem(); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
	if got := *col2.Begin().Advance(1).Elem(); got != 6 {
		t.Fatalf("expected 6, got %v", got)
	}
}
