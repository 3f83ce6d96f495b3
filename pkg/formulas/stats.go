package formulas

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// WeightedMean calculates the weighted mean of data with the given weights.
// Entries with zero weight contribute nothing. Returns 0 when the total
// weight is zero.
func WeightedMean(data, weights []float64) float64 {
	if len(data) == 0 || len(data) != len(weights) {
		return 0
	}
	if floats.Sum(weights) == 0 {
		return 0
	}
	return stat.Mean(data, weights)
}

// Sum adds up a slice of float64 values
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return floats.Sum(data)
}
