package model

import (
	"errors"
	"testing"

	"github.com/mbd888/amlscope/internal/features"
)

func testScaler(n int) *StandardScaler {
	s := &StandardScaler{
		FeatureNames: make([]string, n),
		Mean:         make([]float64, n),
		Scale:        make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s.FeatureNames[i] = "f"
		s.Mean[i] = float64(i)
		s.Scale[i] = 2
	}
	return s
}

func TestScalerValidate(t *testing.T) {
	if err := testScaler(3).Validate(); err != nil {
		t.Fatalf("Valid scaler rejected: %v", err)
	}

	s := testScaler(3)
	s.Mean = s.Mean[:2]
	if err := s.Validate(); !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("Expected ErrConfigInvalid for mismatched lengths, got %v", err)
	}

	s = testScaler(3)
	s.Scale[1] = 0
	if err := s.Validate(); !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("Expected ErrConfigInvalid for zero scale, got %v", err)
	}
}

func TestScalerTransform(t *testing.T) {
	s := testScaler(3) // mean = [0,1,2], scale = 2

	out, err := s.Transform(features.Vector{4, 5, 6})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	want := []float64{2, 2, 2}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestScalerTransform_WidthMismatch(t *testing.T) {
	s := testScaler(3)

	out, err := s.Transform(features.Vector{1, 2})
	if out != nil {
		t.Error("Expected nil output on width mismatch")
	}

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("Expected SchemaError, got %v", err)
	}
	if schemaErr.Want != 3 || schemaErr.Got != 2 {
		t.Errorf("SchemaError = %+v, want Want=3 Got=2", schemaErr)
	}
}

func TestScalerTransform_DoesNotMutateInput(t *testing.T) {
	s := testScaler(2)
	in := features.Vector{10, 10}

	if _, err := s.Transform(in); err != nil {
		t.Fatal(err)
	}
	if in[0] != 10 || in[1] != 10 {
		t.Error("Transform must not mutate its input")
	}
}
