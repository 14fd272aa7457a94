// Package controller runs solve.Calc on a single long-lived background
// goroutine, delivering completion through both a channel and an optional
// callback. It is the single-job analogue of the reference repo's
// JobManager: one job slot instead of a map, one worker instead of one
// goroutine per submitted job.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nealabq/heatwave/internal/sheet"
	"github.com/nealabq/heatwave/internal/solve"
)

// Result reports the outcome of one Submit call. DurationSeconds is -1 if
// the wall-clock timer was unavailable; Go's time.Since cannot fail, so in
// practice this sentinel is never observed, but the field is kept so a
// caller's format string never needs a special case for it.
type Result struct {
	Err             error
	DurationSeconds float64
	WasExtraUsed    bool
	WasExtraSized   bool
	SolveCount      int
	LastSolveSaved  solve.SaveLocation
}

type job struct {
	in              solve.Input
	src, trg, extra *sheet.Sheet
}

// Controller owns one solve.Input parameter block and runs at most one
// solve.Calc at a time on a background goroutine started lazily by the
// first Submit.
type Controller struct {
	mu           sync.Mutex
	in           solve.Input
	busy         bool
	goingDown    bool
	lastDuration float64
	onComplete   func(Result)

	status solve.Status

	startOnce sync.Once
	started   bool
	jobCh     chan job
	quitCh    chan struct{}
	doneCh    chan struct{}
	results   chan Result
}

// New returns a Controller seeded with solve.DefaultInput. The worker
// goroutine is not started until the first Submit.
func New() *Controller {
	return &Controller{
		in:      solve.DefaultInput(),
		jobCh:   make(chan job),
		quitCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		results: make(chan Result, 1),
	}
}

// Results returns the channel completed solves are published on. The
// channel is buffered to depth 1: a caller that does not drain it promptly
// only loses visibility into a completion, never blocks the worker.
func (c *Controller) Results() <-chan Result { return c.results }

// OnComplete registers a callback invoked synchronously on the worker
// goroutine after every completed solve, in addition to the Results
// channel. Passing nil disables the callback.
func (c *Controller) OnComplete(fn func(Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = fn
}

func (c *Controller) startWorker() {
	c.startOnce.Do(func() {
		c.mu.Lock()
		c.started = true
		c.mu.Unlock()
		go c.run()
	})
}

// Submit enqueues one solve if the controller is idle. It returns false
// without side effects if a solve is already running or the controller is
// shutting down. On success it clones the controller's current Input
// (callers mutating it afterwards via the Set* methods do not affect the
// in-flight solve) and hands the sheets to the worker goroutine.
func (c *Controller) Submit(src, trg, extra *sheet.Sheet, passesDisabled bool) bool {
	c.mu.Lock()
	if c.busy || c.goingDown {
		c.mu.Unlock()
		return false
	}
	c.busy = true
	in := c.in
	in.PassesDisabled = passesDisabled
	c.mu.Unlock()

	c.status.EarlyExit.Store(false)
	c.startWorker()
	c.jobCh <- job{in: in, src: src, trg: trg, extra: extra}
	return true
}

func (c *Controller) setIfIdle(name string, mutate func(*solve.Input)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		slog.Warn("controller: ignoring parameter change while busy", "setter", name)
		return
	}
	mutate(&c.in)
}

// SetTechnique, SetMethod, SetParallel, SetDamping, SetRates and
// SetExtraPassCount mutate the stored Input under the controller's mutex.
// Each is a caller error (logged, ignored) while a solve is running — the
// in-flight job already holds its own cloned copy of Input, so a rejected
// call never corrupts a running solve, but the caller's intent to affect
// that solve is silently lost and worth a warning.

func (c *Controller) SetTechnique(t solve.Technique) {
	c.setIfIdle("SetTechnique", func(in *solve.Input) { in.Technique = t })
}

func (c *Controller) SetMethod(m solve.Method) {
	c.setIfIdle("SetMethod", func(in *solve.Input) { in.Method = m })
}

func (c *Controller) SetParallel(parallel bool) {
	c.setIfIdle("SetParallel", func(in *solve.Input) { in.Parallel = parallel })
}

func (c *Controller) SetDamping(damping float64) {
	c.setIfIdle("SetDamping", func(in *solve.Input) { in.Damping = damping })
}

func (c *Controller) SetRates(rateX, rateY float64) {
	c.setIfIdle("SetRates", func(in *solve.Input) {
		in.RateX = rateX
		in.RateY = rateY
	})
}

func (c *Controller) SetExtraPassCount(n int) {
	c.setIfIdle("SetExtraPassCount", func(in *solve.Input) { in.ExtraPassCount = n })
}

// IsBusy reports whether a solve is currently running.
func (c *Controller) IsBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Input returns a copy of the controller's current parameter block, for
// callers that need to persist it alongside a sheet snapshot.
func (c *Controller) Input() solve.Input {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.in
}

// IsGoingDown reports whether Shutdown has been called.
func (c *Controller) IsGoingDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goingDown
}

// LastDurationSeconds returns the wall-clock duration of the most recently
// completed solve, or 0 if none has completed yet.
func (c *Controller) LastDurationSeconds() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDuration
}

// Shutdown requests early exit of any in-flight solve, signals the worker
// goroutine to quit once idle, and waits for it to stop, bounded by ctx. A
// controller whose worker was never started (no Submit yet) returns
// immediately. Shutdown is idempotent.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.goingDown {
		c.mu.Unlock()
		return nil
	}
	c.goingDown = true
	started := c.started
	c.mu.Unlock()

	c.status.EarlyExit.Store(true)

	if !started {
		return nil
	}

	// The send only completes once the worker is back at its select (i.e.
	// has finished draining any in-flight solve), so this doubles as the
	// "wait for drain" step; ctx bounds both the send and the exit wait.
	select {
	case c.quitCh <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-c.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) run() {
	defer close(c.doneCh)
	for {
		select {
		case j := <-c.jobCh:
			c.execute(j)
		case <-c.quitCh:
			return
		}
	}
}

func (c *Controller) execute(j job) {
	start := time.Now()
	err := solve.Calc(j.in, j.src, j.trg, j.extra, &c.status)
	duration := time.Since(start).Seconds()

	res := Result{
		Err:             err,
		DurationSeconds: duration,
		WasExtraUsed:    c.status.WasExtraUsed,
		WasExtraSized:   c.status.WasExtraSized,
		SolveCount:      c.status.SolveCount,
		LastSolveSaved:  c.status.LastSolveSaved,
	}

	c.mu.Lock()
	c.busy = false
	c.lastDuration = duration
	cb := c.onComplete
	c.mu.Unlock()

	select {
	case c.results <- res:
	default:
		select {
		case <-c.results:
		default:
		}
		c.results <- res
	}

	if cb != nil {
		cb(res)
	}
}
