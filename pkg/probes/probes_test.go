package probes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adinsight/adinsight/pkg/metricstore"
	"github.com/adinsight/adinsight/pkg/types"
)

type fakeFetcher struct {
	daily   map[types.Metric][]metricstore.DailyPoint
	account map[types.Metric][]metricstore.DailyPoint
	err     error
}

func (f *fakeFetcher) FetchDailySeries(_ context.Context, _, _ string, metric types.Metric, _ int) ([]metricstore.DailyPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.daily[metric], nil
}

func (f *fakeFetcher) FetchAccountDailyTotals(_ context.Context, _ string, metric types.Metric, _ int) ([]metricstore.DailyPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.account[metric], nil
}

func days(start time.Time, values ...float64) []metricstore.DailyPoint {
	points := make([]metricstore.DailyPoint, len(values))
	for i, v := range values {
		points[i] = metricstore.DailyPoint{Date: start.AddDate(0, 0, i), Value: v}
	}
	return points
}

var day0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestCPMSpike_Fires(t *testing.T) {
	f := &fakeFetcher{daily: map[types.Metric][]metricstore.DailyPoint{
		types.MetricCPM: days(day0, 10, 10, 10, 10, 10, 10, 10, 20, 20, 20),
	}}
	ev, err := CPMSpike(context.Background(), f, "acme", "ad-1", 30)
	require.NoError(t, err)
	assert.True(t, ev.Fired)
}

func TestCPMSpike_InconclusiveOnShortHistory(t *testing.T) {
	f := &fakeFetcher{daily: map[types.Metric][]metricstore.DailyPoint{
		types.MetricCPM: days(day0, 10, 10),
	}}
	ev, err := CPMSpike(context.Background(), f, "acme", "ad-1", 30)
	require.NoError(t, err)
	assert.True(t, ev.Inconclusive)
}

func TestCPMSpike_PropagatesFetchError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("warehouse down")}
	_, err := CPMSpike(context.Background(), f, "acme", "ad-1", 30)
	assert.Error(t, err)
}

func TestCreativeFatigue_FiresOnDecline(t *testing.T) {
	f := &fakeFetcher{daily: map[types.Metric][]metricstore.DailyPoint{
		types.MetricCTR:         days(day0, 0.05, 0.045, 0.04, 0.035, 0.03, 0.025, 0.02),
		types.MetricImpressions: days(day0, 1000, 1000, 1000, 1000, 1000, 1000, 1000),
	}}
	ev, err := CreativeFatigue(context.Background(), f, "acme", "ad-1", 30)
	require.NoError(t, err)
	assert.True(t, ev.Fired)
}

func TestCreativeFatigue_NoDeclineDoesNotFire(t *testing.T) {
	f := &fakeFetcher{daily: map[types.Metric][]metricstore.DailyPoint{
		types.MetricCTR:         days(day0, 0.04, 0.04, 0.04, 0.04, 0.04),
		types.MetricImpressions: days(day0, 1000, 1000, 1000, 1000, 1000),
	}}
	ev, err := CreativeFatigue(context.Background(), f, "acme", "ad-1", 30)
	require.NoError(t, err)
	assert.False(t, ev.Fired)
}

func TestLandingPage_InconclusiveWithoutCVR(t *testing.T) {
	f := &fakeFetcher{daily: map[types.Metric][]metricstore.DailyPoint{
		types.MetricCTR: days(day0, 0.04, 0.04),
	}}
	ev, err := LandingPage(context.Background(), f, "acme", "ad-1", 30)
	require.NoError(t, err)
	assert.True(t, ev.Inconclusive)
}

func TestLandingPage_FiresOnStableCTRAndDroppedCVR(t *testing.T) {
	f := &fakeFetcher{daily: map[types.Metric][]metricstore.DailyPoint{
		types.MetricCTR: days(day0, 0.040, 0.041),
		types.MetricCPA: days(day0, 10, 4),
	}}
	ev, err := LandingPage(context.Background(), f, "acme", "ad-1", 30)
	require.NoError(t, err)
	assert.True(t, ev.Fired)
}

func TestTracking_FiresOnClicksWithoutConversions(t *testing.T) {
	f := &fakeFetcher{daily: map[types.Metric][]metricstore.DailyPoint{
		types.MetricClicks: days(day0, 5, 10, 20),
		types.MetricCPA:    days(day0, 2, 0, 0),
	}}
	ev, err := Tracking(context.Background(), f, "acme", "ad-1", 30)
	require.NoError(t, err)
	assert.True(t, ev.Fired)
}

func TestTracking_NoClicksInconclusive(t *testing.T) {
	f := &fakeFetcher{daily: map[types.Metric][]metricstore.DailyPoint{}}
	ev, err := Tracking(context.Background(), f, "acme", "ad-1", 30)
	require.NoError(t, err)
	assert.True(t, ev.Inconclusive)
}

func TestBudgetExhaustion_InconclusiveWithoutBudget(t *testing.T) {
	f := &fakeFetcher{}
	ad := types.AdSummary{AdID: "ad-1", HasDailyBudget: false}
	ev, err := BudgetExhaustion(context.Background(), f, "acme", ad, 30)
	require.NoError(t, err)
	assert.True(t, ev.Inconclusive)
}

func TestBudgetExhaustion_FiresNearLimit(t *testing.T) {
	f := &fakeFetcher{daily: map[types.Metric][]metricstore.DailyPoint{
		types.MetricSpend: days(day0, 98, 99, 97),
	}}
	ad := types.AdSummary{AdID: "ad-1", HasDailyBudget: true, DailyBudget: decimal.NewFromFloat(100)}
	ev, err := BudgetExhaustion(context.Background(), f, "acme", ad, 30)
	require.NoError(t, err)
	assert.True(t, ev.Fired)
}

func TestSeasonality_MatchesWeekAgo(t *testing.T) {
	latest := day0.AddDate(0, 0, 30)
	series := append(days(day0, 100, 100, 100, 100, 100, 100, 100), metricstore.DailyPoint{Date: latest, Value: 102})
	f := &fakeFetcher{account: map[types.Metric][]metricstore.DailyPoint{
		types.MetricSpend: series,
	}}
	_, err := Seasonality(context.Background(), f, "acme", types.MetricSpend, 30)
	require.NoError(t, err)
}

func TestSeasonality_NoHistoryInconclusive(t *testing.T) {
	f := &fakeFetcher{account: map[types.Metric][]metricstore.DailyPoint{}}
	ev, err := Seasonality(context.Background(), f, "acme", types.MetricSpend, 30)
	require.NoError(t, err)
	assert.True(t, ev.Inconclusive)
}
