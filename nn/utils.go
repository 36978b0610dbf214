package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MaxAbsDiff calculates the maximum absolute difference between two slices,
// over the length of the shorter one.
func MaxAbsDiff(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	return floats.Distance(a[:n], b[:n], math.Inf(1))
}

// Min returns the minimum value in a slice
func Min(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Min(v)
}

// Max returns the maximum value in a slice
func Max(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Max(v)
}

// Mean returns the mean value of a slice
func Mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Sum(v) / float64(len(v))
}

// ArgMax returns the index of the largest value, -1 for an empty slice
func ArgMax(v []float64) int {
	if len(v) == 0 {
		return -1
	}
	return floats.MaxIdx(v)
}
