package formulas

import (
	"math"
	"testing"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		expected float64
	}{
		{"empty slice", []float64{}, 0},
		{"single value", []float64{42.0}, 42.0},
		{"uniform values", []float64{5, 5, 5, 5}, 5.0},
		{"mixed values", []float64{10, 20, 30}, 20.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Mean(tt.data)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("Expected %.4f, got %.4f", tt.expected, result)
			}
		})
	}
}

func TestWeightedMean(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		weights  []float64
		expected float64
	}{
		{"empty", nil, nil, 0},
		{"mismatched lengths", []float64{1, 2}, []float64{1}, 0},
		{"all weights zero", []float64{80, 40}, []float64{0, 0}, 0},
		{"equal weights", []float64{80, 40}, []float64{1, 1}, 60},
		{"value weighted", []float64{80, 40}, []float64{60000, 40000}, 64},
		{"zero weight entry skipped", []float64{80, 40, 99}, []float64{60000, 40000, 0}, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WeightedMean(tt.data, tt.weights)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("Expected %.4f, got %.4f", tt.expected, result)
			}
		})
	}
}

func TestSum(t *testing.T) {
	if got := Sum(nil); got != 0 {
		t.Errorf("Expected 0 for nil slice, got %.4f", got)
	}
	if got := Sum([]float64{1.5, 2.5, -1}); math.Abs(got-3) > 1e-9 {
		t.Errorf("Expected 3, got %.4f", got)
	}
}
