package baseline

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/adinsight/adinsight/pkg/types"
)

func summary(spend float64, roas, ctr, cpa float64, hasCPA bool) types.AdSummary {
	return types.AdSummary{
		TotalSpend:   decimal.NewFromFloat(spend),
		WeightedROAS: roas,
		WeightedCTR:  ctr,
		CPA:          cpa,
		HasCPA:       hasCPA,
	}
}

func TestCompute_SpendWeightedROAS(t *testing.T) {
	e := New(2)
	summaries := []types.AdSummary{
		summary(100, 2.0, 0.02, 0, false),
		summary(300, 4.0, 0.03, 0, false),
	}
	baseline := e.Compute(summaries, types.MetricROAS)
	// (2*100 + 4*300) / 400 = 3.5
	assert.InDelta(t, 3.5, baseline.Mean, 1e-9)
	assert.Equal(t, 2, baseline.Count)
}

func TestCompute_InsufficientSampleSize(t *testing.T) {
	e := New(10)
	summaries := []types.AdSummary{summary(100, 2.0, 0.02, 0, false)}
	baseline := e.Compute(summaries, types.MetricROAS)
	assert.False(t, baseline.Sufficient)
}

func TestCompute_ExcludesMissingCPA(t *testing.T) {
	e := New(1)
	summaries := []types.AdSummary{
		summary(100, 2.0, 0.02, 15, true),
		summary(200, 3.0, 0.02, 0, false),
	}
	baseline := e.Compute(summaries, types.MetricCPA)
	assert.Equal(t, 1, baseline.Count)
	assert.InDelta(t, 15, baseline.Mean, 1e-9)
}

func TestCompute_ZeroVarianceFlattenedToZero(t *testing.T) {
	e := New(1)
	summaries := []types.AdSummary{
		summary(100, 2.0, 0.02, 0, false),
		summary(100, 2.0, 0.02, 0, false),
	}
	baseline := e.Compute(summaries, types.MetricROAS)
	assert.Equal(t, 0.0, baseline.StdDev)
}

func TestCompute_EmptySummaries(t *testing.T) {
	e := New(1)
	baseline := e.Compute(nil, types.MetricSpend)
	assert.Equal(t, 0, baseline.Count)
	assert.False(t, baseline.Sufficient)
}

func TestComputeAll_CoversAllMetrics(t *testing.T) {
	e := New(1)
	summaries := []types.AdSummary{summary(100, 2.0, 0.02, 15, true)}
	baselines := e.ComputeAll(summaries)

	assert.Contains(t, baselines, types.MetricSpend)
	assert.Contains(t, baselines, types.MetricROAS)
	assert.Contains(t, baselines, types.MetricCTR)
	assert.Contains(t, baselines, types.MetricCPA)
}

func TestNew_DefaultsMinSampleSize(t *testing.T) {
	e := New(0)
	assert.Equal(t, MinSampleSize, e.MinSampleSize)
}
