package persist

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nealabq/heatwave/internal/solve"
)

func TestCheckpoint_JSONSerialization(t *testing.T) {
	original := &Checkpoint{
		SessionID: "test-session-123",
		Width:     2,
		Height:    2,
		Data:      []float64{1.0, 2.0, 3.0, 4.0},
		Input:     solve.DefaultInput(),
		Status: StatusSnapshot{
			WasExtraUsed:   true,
			WasExtraSized:  false,
			SolveCount:     42,
			LastSolveSaved: solve.InSrc,
		},
		Timestamp: time.Date(2026, 7, 1, 10, 30, 0, 0, time.UTC),
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal checkpoint: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshaled JSON is empty")
	}

	var restored Checkpoint
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal checkpoint: %v", err)
	}

	if restored.SessionID != original.SessionID {
		t.Errorf("SessionID mismatch: expected %s, got %s", original.SessionID, restored.SessionID)
	}
	if restored.Width != original.Width || restored.Height != original.Height {
		t.Errorf("dimension mismatch: expected %dx%d, got %dx%d", original.Width, original.Height, restored.Width, restored.Height)
	}
	if !restored.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp mismatch: expected %v, got %v", original.Timestamp, restored.Timestamp)
	}
	if len(restored.Data) != len(original.Data) {
		t.Fatalf("Data length mismatch: expected %d, got %d", len(original.Data), len(restored.Data))
	}
	for i := range original.Data {
		if restored.Data[i] != original.Data[i] {
			t.Errorf("Data[%d] mismatch: expected %f, got %f", i, original.Data[i], restored.Data[i])
		}
	}
	if restored.Status.SolveCount != original.Status.SolveCount {
		t.Errorf("Status.SolveCount mismatch: expected %d, got %d", original.Status.SolveCount, restored.Status.SolveCount)
	}
	if restored.Input.Technique != original.Input.Technique {
		t.Errorf("Input.Technique mismatch: expected %v, got %v", original.Input.Technique, restored.Input.Technique)
	}
}

func TestCheckpoint_JSONIndented(t *testing.T) {
	checkpoint := &Checkpoint{
		SessionID: "test-session",
		Width:     2,
		Height:    2,
		Data:      []float64{1, 2, 3, 4},
		Input:     solve.DefaultInput(),
		Timestamp: time.Now(),
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal with indent: %v", err)
	}

	var restored Checkpoint
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal indented JSON: %v", err)
	}
	if restored.SessionID != checkpoint.SessionID {
		t.Errorf("SessionID mismatch after indented serialization")
	}
}

func TestCheckpoint_Validate_Valid(t *testing.T) {
	checkpoint := &Checkpoint{
		SessionID: "valid-session",
		Width:     2,
		Height:    2,
		Data:      []float64{1, 2, 3, 4},
		Timestamp: time.Now(),
	}

	if err := checkpoint.Validate(); err != nil {
		t.Errorf("Valid checkpoint should not have validation error: %v", err)
	}
}

func TestCheckpoint_Validate_EmptySessionID(t *testing.T) {
	checkpoint := &Checkpoint{
		SessionID: "",
		Width:     2,
		Height:    2,
		Data:      []float64{1, 2, 3, 4},
		Timestamp: time.Now(),
	}

	err := checkpoint.Validate()
	if err == nil {
		t.Fatal("Expected validation error for empty SessionID")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("Expected ValidationError, got %T", err)
	}
}

func TestCheckpoint_Validate_NonPositiveDimensions(t *testing.T) {
	testCases := []struct {
		name          string
		width, height int
	}{
		{"zero width", 0, 2},
		{"zero height", 2, 0},
		{"negative width", -1, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			checkpoint := &Checkpoint{
				SessionID: "test",
				Width:     tc.width,
				Height:    tc.height,
				Data:      []float64{1, 2, 3, 4},
				Timestamp: time.Now(),
			}

			if err := checkpoint.Validate(); err == nil {
				t.Fatalf("Expected validation error for %s", tc.name)
			}
		})
	}
}

func TestCheckpoint_Validate_DataLengthMismatch(t *testing.T) {
	checkpoint := &Checkpoint{
		SessionID: "test",
		Width:     2,
		Height:    2,
		Data:      []float64{1, 2, 3},
		Timestamp: time.Now(),
	}

	err := checkpoint.Validate()
	if err == nil {
		t.Fatal("Expected validation error for mismatched data length")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("Expected ValidationError, got %T", err)
	}
}

func TestCheckpoint_Validate_ZeroTimestamp(t *testing.T) {
	checkpoint := &Checkpoint{
		SessionID: "test",
		Width:     2,
		Height:    2,
		Data:      []float64{1, 2, 3, 4},
		Timestamp: time.Time{},
	}

	if err := checkpoint.Validate(); err == nil {
		t.Fatal("Expected validation error for zero timestamp")
	}
}

func TestCheckpoint_IsCompatible_Compatible(t *testing.T) {
	checkpoint := &Checkpoint{Width: 10, Height: 20}

	if err := checkpoint.IsCompatible(10, 20); err != nil {
		t.Errorf("Compatible dimensions should not return error: %v", err)
	}
}

func TestCheckpoint_IsCompatible_DifferentDimensions(t *testing.T) {
	checkpoint := &Checkpoint{Width: 10, Height: 20}

	err := checkpoint.IsCompatible(10, 30)
	if err == nil {
		t.Fatal("Expected compatibility error for different dimensions")
	}
	if _, ok := err.(*CompatibilityError); !ok {
		t.Errorf("Expected CompatibilityError, got %T", err)
	}
}

func TestCheckpointInfo_FromCheckpoint(t *testing.T) {
	checkpoint := &Checkpoint{
		SessionID: "test-session",
		Width:     4,
		Height:    4,
		Input:     solve.DefaultInput(),
		Status:    StatusSnapshot{SolveCount: 500},
		Timestamp: time.Now(),
	}

	info := checkpoint.ToInfo()

	if info.SessionID != checkpoint.SessionID {
		t.Errorf("SessionID mismatch: expected %s, got %s", checkpoint.SessionID, info.SessionID)
	}
	if info.SolveCount != checkpoint.Status.SolveCount {
		t.Errorf("SolveCount mismatch: expected %d, got %d", checkpoint.Status.SolveCount, info.SolveCount)
	}
	if !info.Timestamp.Equal(checkpoint.Timestamp) {
		t.Errorf("Timestamp mismatch")
	}
	if info.Technique != checkpoint.Input.Technique {
		t.Errorf("Technique mismatch: expected %v, got %v", checkpoint.Input.Technique, info.Technique)
	}
}

func TestNewCheckpoint(t *testing.T) {
	in := solve.DefaultInput()
	st := &solve.Status{SolveCount: 7}
	data := []float64{1, 2, 3, 4}

	checkpoint := NewCheckpoint("test-session", 2, 2, data, in, st)

	if checkpoint.SessionID != "test-session" {
		t.Errorf("SessionID mismatch: expected test-session, got %s", checkpoint.SessionID)
	}
	if checkpoint.Status.SolveCount != 7 {
		t.Errorf("SolveCount mismatch: expected 7, got %d", checkpoint.Status.SolveCount)
	}
	if checkpoint.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if len(checkpoint.Data) != len(data) {
		t.Errorf("Data length mismatch")
	}
}
