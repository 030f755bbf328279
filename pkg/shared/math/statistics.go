// Package math provides the small set of descriptive-statistics
// primitives the Baseline Engine and Anomaly Detector build on.
// Standard deviation here is always the population statistic (not the
// sample statistic) per spec: behavior should not drift as the sample
// size grows.
package math

import "math"

// Sum returns the sum of values, 0 for an empty slice.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Mean returns the arithmetic mean of values, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// Variance returns the population variance of values, 0 for an empty
// or single-element slice.
func Variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return sumSq / float64(len(values))
}

// StandardDeviation returns the population standard deviation.
func StandardDeviation(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Min returns the smallest value, 0 for an empty slice.
func Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest value, 0 for an empty slice.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Median returns the median of values, 0 for an empty slice. The input
// is copied and sorted; the caller's slice is never mutated.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	insertionSort(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func insertionSort(values []float64) {
	for i := 1; i < len(values); i++ {
		v := values[i]
		j := i - 1
		for j >= 0 && values[j] > v {
			values[j+1] = values[j]
			j--
		}
		values[j+1] = v
	}
}

// WeightedMean returns Σ(value·weight)/Σ(weight). It is the only
// correct aggregation for ROAS and CTR across ads (spec §9) — an
// unweighted average of per-ad ratios is a defect. Returns 0 when the
// slices mismatch in length, are empty, or the weights sum to ~0.
func WeightedMean(values, weights []float64) float64 {
	if len(values) == 0 || len(values) != len(weights) {
		return 0
	}
	var weightedSum, weightSum float64
	for i, v := range values {
		weightedSum += v * weights[i]
		weightSum += weights[i]
	}
	if math.Abs(weightSum) < 1e-9 {
		return 0
	}
	return weightedSum / weightSum
}

// ZScore returns (observed-mean)/stdev. Returns 0 when stdev is ~0
// (spec: a uniform metric emits no anomalies, it does not divide by
// zero).
func ZScore(observed, mean, stdev float64) float64 {
	if math.Abs(stdev) < 1e-6 {
		return 0
	}
	return (observed - mean) / stdev
}
