package solve

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nealabq/heatwave/internal/sheet"
)

// lineFunc is applied to one paired line (a row or column) of a source and
// target range. lineIndex is the line's position within the outer range,
// used by callers that need to carve out an exclusive scratch window per
// line. A non-nil error stops the serial dispatch before its next line; the
// parallel dispatch still runs every other line and returns the first error
// once all have finished. Calc's kernels never actually return
// an error today, but the signature leaves room for one without a breaking
// change.
type lineFunc func(lineIndex int, src, trg sheet.StrideRange) error

// dispatch pairs src and trg (same-shaped depth-1 ranges) line by line and
// applies fn to each pair, either serially or across a bounded goroutine
// pool, blocking until every line has been processed. early is checked once
// per line at the start of that line's work; a line observed after early
// fires returns without writing, leaving its target contents undefined.
func dispatch(src, trg sheet.StrideRange, early *atomic.Bool, parallel bool, fn lineFunc) error {
	n := src.Count()
	if n != trg.Count() {
		panic("solve: dispatch requires src and trg ranges of equal length")
	}

	if !parallel || n <= 1 {
		return dispatchSerial(src, trg, early, n, fn)
	}
	return dispatchParallel(src, trg, early, n, fn)
}

func dispatchSerial(src, trg sheet.StrideRange, early *atomic.Bool, n int, fn lineFunc) error {
	srcIt := src.Begin()
	trgIt := trg.Begin()
	for i := 0; i < n; i++ {
		if early.Load() {
			return nil
		}
		if err := fn(i, srcIt.Range(), trgIt.Range()); err != nil {
			return err
		}
		srcIt = srcIt.Advance(1)
		trgIt = trgIt.Advance(1)
	}
	return nil
}

func dispatchParallel(src, trg sheet.StrideRange, early *atomic.Bool, n int, fn lineFunc) error {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	srcBegin := src.Begin()
	trgBegin := trg.Begin()

	for i := 0; i < n; i++ {
		i := i
		srcLine := srcBegin.Advance(i).Range()
		trgLine := trgBegin.Advance(i).Range()
		g.Go(func() error {
			if early.Load() {
				return nil
			}
			return fn(i, srcLine, trgLine)
		})
	}

	return g.Wait()
}
