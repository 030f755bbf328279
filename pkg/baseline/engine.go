// Package baseline implements the Baseline Engine (spec §4.2): it
// turns the Metric Store Adapter's per-ad AdSummary rows into a
// per-metric AccountBaseline (spend-weighted mean, population
// standard deviation, median, sample count, sufficiency flag).
package baseline

import (
	sharedmath "github.com/adinsight/adinsight/pkg/shared/math"
	"github.com/adinsight/adinsight/pkg/types"
)

// MinSampleSize is the default minimum number of contributing ads a
// metric needs before its baseline is considered usable.
const MinSampleSize = 10

// epsilon is the "uniform metric" guard from spec §4.2: a standard
// deviation at or below this is treated as zero variance.
const epsilon = 1e-6

// Engine computes AccountBaseline values. Stateless; safe for
// concurrent use.
type Engine struct {
	MinSampleSize int
}

// New returns an Engine using the given minimum sample size, or the
// spec default when minSampleSize <= 0.
func New(minSampleSize int) *Engine {
	if minSampleSize <= 0 {
		minSampleSize = MinSampleSize
	}
	return &Engine{MinSampleSize: minSampleSize}
}

// metricValue extracts the (value, weight, ok) triple for one metric
// from one AdSummary. weight is the ad's total spend for
// spend-weighted metrics; ok is false when the ad has no value for
// this metric (e.g. CPA when conversions are unknown), in which case
// the ad is excluded from that metric's baseline but retained for
// others.
func metricValue(s types.AdSummary, metric types.Metric) (value, weight float64, ok bool) {
	spend, _ := s.TotalSpend.Float64()
	switch metric {
	case types.MetricSpend:
		return spend, 1, true
	case types.MetricROAS:
		return s.WeightedROAS, spend, true
	case types.MetricCTR:
		return s.WeightedCTR, spend, true
	case types.MetricCPA:
		if !s.HasCPA {
			return 0, 0, false
		}
		return s.CPA, spend, true
	default:
		return 0, 0, false
	}
}

// Compute returns the AccountBaseline for one metric over the given
// summaries.
func (e *Engine) Compute(summaries []types.AdSummary, metric types.Metric) types.AccountBaseline {
	values := make([]float64, 0, len(summaries))
	weights := make([]float64, 0, len(summaries))

	for _, s := range summaries {
		v, w, ok := metricValue(s, metric)
		if !ok {
			continue
		}
		values = append(values, v)
		weights = append(weights, w)
	}

	count := len(values)
	baseline := types.AccountBaseline{
		Metric:     metric,
		Count:      count,
		Sufficient: count >= e.MinSampleSize,
	}
	if count == 0 {
		return baseline
	}

	baseline.Mean = weightedOrPlainMean(metric, values, weights)
	baseline.StdDev = sharedmath.StandardDeviation(values)
	baseline.Median = sharedmath.Median(values)

	if baseline.StdDev <= epsilon {
		baseline.StdDev = 0
	}

	return baseline
}

// ComputeAll computes baselines for every metric the anomaly detector
// and diagnostic probes consume.
func (e *Engine) ComputeAll(summaries []types.AdSummary) map[types.Metric]types.AccountBaseline {
	metrics := []types.Metric{
		types.MetricSpend,
		types.MetricROAS,
		types.MetricCTR,
		types.MetricCPA,
	}
	out := make(map[types.Metric]types.AccountBaseline, len(metrics))
	for _, m := range metrics {
		out[m] = e.Compute(summaries, m)
	}
	return out
}

// weightedOrPlainMean applies spend-weighting for ratio metrics
// (ROAS, CTR) per spec §9's Σ(metric·spend)/Σ(spend) identity, and a
// plain mean for metrics that are already totals (Spend itself, CPA).
func weightedOrPlainMean(metric types.Metric, values, weights []float64) float64 {
	switch metric {
	case types.MetricROAS, types.MetricCTR:
		return sharedmath.WeightedMean(values, weights)
	default:
		return sharedmath.Mean(values)
	}
}
