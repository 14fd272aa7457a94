package controller

import (
	"context"
	"testing"
	"time"

	"github.com/nealabq/heatwave/internal/sheet"
	"github.com/nealabq/heatwave/internal/solve"
)

func newFlatSheets(w, h int, v float64) (src, trg, extra *sheet.Sheet) {
	src, trg, extra = sheet.NewSheet(), sheet.NewSheet(), sheet.NewSheet()
	src.SetXYCounts(w, h, v)
	trg.SetXYCounts(w, h, v)
	return src, trg, extra
}

func TestSubmitRunsAndReportsCompletion(t *testing.T) {
	c := New()
	src, trg, extra := newFlatSheets(4, 4, 2.0)

	if !c.Submit(src, trg, extra, false) {
		t.Fatal("expected Submit to accept a job on an idle controller")
	}

	select {
	case res := <-c.Results():
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for completion")
	}

	if c.IsBusy() {
		t.Fatal("expected controller to be idle after completion")
	}
	if c.LastDurationSeconds() < 0 {
		t.Fatalf("expected a non-negative duration, got %v", c.LastDurationSeconds())
	}
}

func TestSubmitRejectsWhileBusy(t *testing.T) {
	c := New()
	src, trg, extra := newFlatSheets(64, 64, 1.0)
	c.SetExtraPassCount(200)

	if !c.Submit(src, trg, extra, false) {
		t.Fatal("expected first Submit to be accepted")
	}
	if c.Submit(src, trg, extra, false) {
		t.Fatal("expected second Submit to be rejected while busy")
	}

	<-c.Results()
}

func TestSetterIgnoredWhileBusyLogsAndKeepsPriorValue(t *testing.T) {
	c := New()
	c.SetRates(0.1, 0.1)
	src, trg, extra := newFlatSheets(64, 64, 1.0)
	c.SetExtraPassCount(200)

	c.Submit(src, trg, extra, false)
	c.SetRates(0.4, 0.4) // should be ignored: controller is busy
	if got := c.Input(); got.RateX != 0.1 || got.RateY != 0.1 {
		t.Fatalf("expected rates to stay 0.1/0.1 while busy, got %v/%v", got.RateX, got.RateY)
	}

	<-c.Results()

	// Once idle again the setter works normally.
	c.SetRates(0.4, 0.4)
	if c.in.RateX != 0.4 || c.in.RateY != 0.4 {
		t.Fatalf("expected rates to update once idle, got %v/%v", c.in.RateX, c.in.RateY)
	}
}

func TestOnCompleteCallbackFires(t *testing.T) {
	c := New()
	done := make(chan Result, 1)
	c.OnComplete(func(r Result) { done <- r })

	src, trg, extra := newFlatSheets(3, 3, 0.5)
	c.Submit(src, trg, extra, false)

	select {
	case res := <-done:
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnComplete callback")
	}
}

func TestShutdownBeforeAnySubmitReturnsImmediately(t *testing.T) {
	c := New()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsGoingDown() {
		t.Fatal("expected IsGoingDown to be true after Shutdown")
	}
}

func TestShutdownAfterSubmitDrainsAndStops(t *testing.T) {
	c := New()
	src, trg, extra := newFlatSheets(4, 4, 1.0)

	c.Submit(src, trg, extra, false)
	<-c.Results()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Submit(src, trg, extra, false) {
		t.Fatal("expected Submit to be rejected after Shutdown")
	}
}

func TestShutdownSetsEarlyExitOnRunningSolve(t *testing.T) {
	c := New()
	src, trg, extra := newFlatSheets(64, 64, 1.0)
	c.SetExtraPassCount(10000)

	c.Submit(src, trg, extra, false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := <-c.Results()
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
}

func TestDefaultInputIsSimultaneous2D(t *testing.T) {
	c := New()
	if c.in.Technique != solve.Simultaneous2D {
		t.Fatalf("expected default technique Simultaneous2D, got %v", c.in.Technique)
	}
}
