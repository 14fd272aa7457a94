package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nealabq/heatwave/internal/sheet"
	"github.com/nealabq/heatwave/internal/solve"
)

func resetRunFlags() {
	runTechnique = "simultaneous_2d"
	runMethod = "forward"
	runParallel = true
	runDamping = 0
	runRateX = 0.2
	runRateY = 0.2
	runExtraPasses = 0
}

func TestParseRunInput_Defaults(t *testing.T) {
	resetRunFlags()
	in, err := parseRunInput()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Technique != solve.Simultaneous2D {
		t.Errorf("expected Simultaneous2D, got %v", in.Technique)
	}
	if in.Method != solve.Forward {
		t.Errorf("expected Forward, got %v", in.Method)
	}
	if !in.Parallel {
		t.Error("expected Parallel to be true")
	}
}

func TestParseRunInput_AllTechniques(t *testing.T) {
	resetRunFlags()
	tests := []struct {
		name string
		want solve.Technique
	}{
		{"ortho_interleave", solve.OrthoInterleave},
		{"simultaneous_2d", solve.Simultaneous2D},
		{"wave_with_damping", solve.WaveWithDamping},
	}
	for _, tt := range tests {
		runTechnique = tt.name
		in, err := parseRunInput()
		if err != nil {
			t.Fatalf("technique %q: unexpected error: %v", tt.name, err)
		}
		if in.Technique != tt.want {
			t.Errorf("technique %q: expected %v, got %v", tt.name, tt.want, in.Technique)
		}
	}
}

func TestParseRunInput_AllMethods(t *testing.T) {
	resetRunFlags()
	tests := []struct {
		name string
		want solve.Method
	}{
		{"forward", solve.Forward},
		{"backward", solve.Backward},
		{"central", solve.Central},
	}
	for _, tt := range tests {
		runMethod = tt.name
		in, err := parseRunInput()
		if err != nil {
			t.Fatalf("method %q: unexpected error: %v", tt.name, err)
		}
		if in.Method != tt.want {
			t.Errorf("method %q: expected %v, got %v", tt.name, tt.want, in.Method)
		}
	}
}

func TestParseRunInput_InvalidTechnique(t *testing.T) {
	resetRunFlags()
	runTechnique = "not-a-technique"
	if _, err := parseRunInput(); err == nil {
		t.Error("expected error for invalid technique, got nil")
	}
}

func TestParseRunInput_InvalidMethod(t *testing.T) {
	resetRunFlags()
	runMethod = "not-a-method"
	if _, err := parseRunInput(); err == nil {
		t.Error("expected error for invalid method, got nil")
	}
}

func TestSeedHotspot(t *testing.T) {
	s := sheet.NewSheet()
	s.SetXYCounts(3, 3, 0)
	seedHotspot(s, 3, 3, 5.0)

	s.ScanRect(0, 3, 0, 3, func(v float64, x, y int) bool {
		if x == 1 && y == 1 {
			if v != 5.0 {
				t.Errorf("expected centre cell to be 5.0, got %f", v)
			}
		} else if v != 0 {
			t.Errorf("expected cell (%d,%d) to be 0, got %f", x, y, v)
		}
		return true
	})
}

func TestFlattenSheetRoundTrip(t *testing.T) {
	s := sheet.NewSheet()
	s.SetXYCounts(2, 2, 0)
	seedHotspot(s, 2, 2, 1.0)

	data := flattenSheet(s)
	if len(data) != 4 {
		t.Fatalf("expected 4 cells, got %d", len(data))
	}

	other := sheet.NewSheet()
	other.SetXYCounts(2, 2, 0)
	seedSheet(other, data, 2, 2)

	roundTripped := flattenSheet(other)
	for i := range data {
		if data[i] != roundTripped[i] {
			t.Errorf("cell %d mismatch: expected %f, got %f", i, data[i], roundTripped[i])
		}
	}
}

func TestWriteSnapshot(t *testing.T) {
	s := sheet.NewSheet()
	s.SetXYCounts(2, 2, 1.5)

	path := filepath.Join(t.TempDir(), "out.json")
	if err := writeSnapshot(path, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty snapshot file")
	}
}
