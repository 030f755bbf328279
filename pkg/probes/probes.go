// Package probes implements the six fixed diagnostic probes of spec
// §4.4. Every probe is a pure function of (tenant, ad identity,
// window): none mutate state, and none raise for business reasons —
// only for upstream data unavailability, in which case the RCA
// Orchestrator treats the raised probe as inconclusive.
package probes

import (
	"context"
	"time"

	"github.com/adinsight/adinsight/pkg/metricstore"
	"github.com/adinsight/adinsight/pkg/types"
)

// Fetcher is the subset of the Metric Store Adapter each probe needs.
// Probes depend on this narrow interface rather than *metricstore.Adapter
// directly so they can be exercised against fakes in tests.
type Fetcher interface {
	FetchDailySeries(ctx context.Context, warehouseView, adID string, metric types.Metric, windowDays int) ([]metricstore.DailyPoint, error)
	FetchAccountDailyTotals(ctx context.Context, warehouseView string, metric types.Metric, windowDays int) ([]metricstore.DailyPoint, error)
}

// inconclusive builds the standard "couldn't determine" Evidence
// shape shared by every probe's early-out paths.
func inconclusive(probe types.ProbeName, adID, reason string) types.Evidence {
	return types.Evidence{
		Probe:          probe,
		AdID:           adID,
		Fired:          false,
		Inconclusive:   true,
		Measurements:   map[string]float64{},
		Interpretation: reason,
	}
}

func windowOf(points []metricstore.DailyPoint) (start, end time.Time) {
	if len(points) == 0 {
		return time.Time{}, time.Time{}
	}
	return points[0].Date, points[len(points)-1].Date
}

func mean(points []metricstore.DailyPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}

func lastN(points []metricstore.DailyPoint, n int) []metricstore.DailyPoint {
	if len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}

func relativeChange(current, baseline float64) (float64, bool) {
	if baseline == 0 {
		return 0, false
	}
	return (current - baseline) / baseline, true
}

// severityBand converts a fired probe's own magnitude into a
// mild/significant/extreme judgment against that probe's thresholds.
// The RCA Orchestrator's confidence mapping only reaches HIGH when a
// fired probe's severity is extreme, so a probe that always reported
// significant could never produce a HIGH-confidence diagnosis.
func severityBand(magnitude, significantAt, extremeAt float64) types.Severity {
	switch {
	case magnitude >= extremeAt:
		return types.SeverityExtreme
	case magnitude >= significantAt:
		return types.SeveritySignificant
	default:
		return types.SeverityMild
	}
}

// CPMSpike compares the mean CPM of the most recent 3 days against
// the prior 7 days, firing when the relative change exceeds 25%.
func CPMSpike(ctx context.Context, f Fetcher, warehouseView, adID string, windowDays int) (types.Evidence, error) {
	series, err := f.FetchDailySeries(ctx, warehouseView, adID, types.MetricCPM, windowDays)
	if err != nil {
		return types.Evidence{}, err
	}
	if len(series) < 10 {
		return inconclusive(types.ProbeCPMSpike, adID, "fewer than 10 days of CPM history"), nil
	}

	recent := lastN(series, 3)
	priorWindow := series[:len(series)-3]
	prior := lastN(priorWindow, 7)

	recentMean := mean(recent)
	priorMean := mean(prior)

	change, ok := relativeChange(recentMean, priorMean)
	start, end := windowOf(series)
	ev := types.Evidence{
		Probe: types.ProbeCPMSpike,
		AdID:  adID,
		Measurements: map[string]float64{
			"recent_3d_mean_cpm": recentMean,
			"prior_7d_mean_cpm":  priorMean,
			"percent_change":     change,
		},
		WindowStart: start,
		WindowEnd:   end,
	}
	if !ok {
		ev.Inconclusive = true
		ev.Interpretation = "prior-period CPM baseline is zero"
		return ev, nil
	}

	if change > 0.25 {
		ev.Fired = true
		ev.Severity = severityBand(change, 0.40, 0.50)
		ev.Interpretation = "CPM rose more than 25% versus the prior 7-day window"
	} else {
		ev.Interpretation = "CPM change within normal range"
	}
	return ev, nil
}

// CreativeFatigue fits a linear slope to the per-day CTR series over
// the window, firing when CTR declines more than 15% across the
// window while impressions remain stable (last 3 days ≥ 50% of the
// series mean — ruling out a simple pause rather than fatigue).
func CreativeFatigue(ctx context.Context, f Fetcher, warehouseView, adID string, windowDays int) (types.Evidence, error) {
	ctrSeries, err := f.FetchDailySeries(ctx, warehouseView, adID, types.MetricCTR, windowDays)
	if err != nil {
		return types.Evidence{}, err
	}
	impressionSeries, err := f.FetchDailySeries(ctx, warehouseView, adID, types.MetricImpressions, windowDays)
	if err != nil {
		return types.Evidence{}, err
	}
	if len(ctrSeries) < 5 {
		return inconclusive(types.ProbeCreativeFatigue, adID, "fewer than 5 days of CTR history"), nil
	}

	slope := linearSlope(ctrSeries)
	first, last := ctrSeries[0].Value, ctrSeries[len(ctrSeries)-1].Value
	decline, ok := relativeChange(last, first)

	impressionsStable := true
	if len(impressionSeries) > 0 {
		recentImpressions := mean(lastN(impressionSeries, 3))
		seriesImpressionMean := mean(impressionSeries)
		impressionsStable = seriesImpressionMean == 0 || recentImpressions >= 0.5*seriesImpressionMean
	}

	start, end := windowOf(ctrSeries)
	ev := types.Evidence{
		Probe: types.ProbeCreativeFatigue,
		AdID:  adID,
		Measurements: map[string]float64{
			"ctr_slope":        slope,
			"fractional_decline": decline,
		},
		WindowStart: start,
		WindowEnd:   end,
	}

	if ok && decline < -0.15 && slope < 0 && impressionsStable {
		ev.Fired = true
		ev.Severity = severityBand(-decline, 0.30, 0.50)
		ev.Interpretation = "CTR declined more than 15% across the window with stable delivery"
	} else {
		ev.Interpretation = "no sustained CTR decline detected"
	}
	return ev, nil
}

func linearSlope(points []metricstore.DailyPoint) float64 {
	n := float64(len(points))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range points {
		x := float64(i)
		sumX += x
		sumY += p.Value
		sumXY += x * p.Value
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// LandingPage detects stable upstream CTR paired with a sharp drop in
// downstream conversion rate. CVR data is frequently absent, in which
// case the probe returns inconclusive rather than firing.
func LandingPage(ctx context.Context, f Fetcher, warehouseView, adID string, windowDays int) (types.Evidence, error) {
	ctrSeries, err := f.FetchDailySeries(ctx, warehouseView, adID, types.MetricCTR, windowDays)
	if err != nil {
		return types.Evidence{}, err
	}
	cvrSeries, err := f.FetchDailySeries(ctx, warehouseView, adID, types.MetricCPA, windowDays)
	if err != nil {
		return types.Evidence{}, err
	}
	if len(cvrSeries) == 0 {
		return inconclusive(types.ProbeLandingPage, adID, "no conversion-rate data available"), nil
	}
	if len(ctrSeries) < 2 || len(cvrSeries) < 2 {
		return inconclusive(types.ProbeLandingPage, adID, "insufficient history for trend comparison"), nil
	}

	ctrChange, ctrOK := relativeChange(ctrSeries[len(ctrSeries)-1].Value, ctrSeries[0].Value)
	cvrChange, cvrOK := relativeChange(cvrSeries[len(cvrSeries)-1].Value, cvrSeries[0].Value)

	start, end := windowOf(ctrSeries)
	ev := types.Evidence{
		Probe: types.ProbeLandingPage,
		AdID:  adID,
		Measurements: map[string]float64{
			"ctr_percent_change": ctrChange,
			"cvr_percent_change": cvrChange,
		},
		WindowStart: start,
		WindowEnd:   end,
	}

	if ctrOK && cvrOK {
		stableCTR := ctrChange >= -0.10 && ctrChange <= 0.10
		if stableCTR && cvrChange < -0.30 {
			ev.Fired = true
			ev.Severity = severityBand(-cvrChange, 0.50, 0.70)
			ev.Interpretation = "CTR is stable but conversion rate dropped sharply"
			return ev, nil
		}
	}
	ev.Interpretation = "no landing-page divergence pattern detected"
	return ev, nil
}

// Tracking fires when clicks occurred over a trailing 48-hour window
// with zero reported conversions, even though the ad has a positive
// historical conversion rate — a signature of broken tag firing
// rather than a genuine performance collapse.
func Tracking(ctx context.Context, f Fetcher, warehouseView, adID string, windowDays int) (types.Evidence, error) {
	clickSeries, err := f.FetchDailySeries(ctx, warehouseView, adID, types.MetricClicks, windowDays)
	if err != nil {
		return types.Evidence{}, err
	}
	conversionSeries, err := f.FetchDailySeries(ctx, warehouseView, adID, types.MetricCPA, windowDays)
	if err != nil {
		return types.Evidence{}, err
	}
	if len(clickSeries) == 0 {
		return inconclusive(types.ProbeTracking, adID, "no click data available"), nil
	}

	recentClicks := sumValues(lastN(clickSeries, 2))
	historicalConversionRate := mean(conversionSeries)
	recentConversions := sumValues(lastN(conversionSeries, 2))

	start, end := windowOf(clickSeries)
	ev := types.Evidence{
		Probe: types.ProbeTracking,
		AdID:  adID,
		Measurements: map[string]float64{
			"recent_48h_clicks":          recentClicks,
			"recent_48h_conversions":     recentConversions,
			"historical_conversion_rate": historicalConversionRate,
		},
		WindowStart: start,
		WindowEnd:   end,
	}

	if recentClicks > 0 && recentConversions == 0 && historicalConversionRate > 0 {
		ev.Fired = true
		ev.Severity = severityBand(recentClicks, 20, 100)
		ev.Interpretation = "clicks with zero conversions despite a positive historical rate"
	} else {
		ev.Interpretation = "no tracking integrity issue detected"
	}
	return ev, nil
}

func sumValues(points []metricstore.DailyPoint) float64 {
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum
}

// BudgetExhaustion fires when observed spend over the last 3 days
// exceeds 95% of the ad's daily budget, when both values are known.
func BudgetExhaustion(ctx context.Context, f Fetcher, warehouseView string, ad types.AdSummary, windowDays int) (types.Evidence, error) {
	if !ad.HasDailyBudget {
		return inconclusive(types.ProbeBudgetExhaustion, ad.AdID, "daily budget is unknown"), nil
	}
	spendSeries, err := f.FetchDailySeries(ctx, warehouseView, ad.AdID, types.MetricSpend, windowDays)
	if err != nil {
		return types.Evidence{}, err
	}
	if len(spendSeries) == 0 {
		return inconclusive(types.ProbeBudgetExhaustion, ad.AdID, "no spend history available"), nil
	}

	recentSpend := mean(lastN(spendSeries, 3))
	budget, _ := ad.DailyBudget.Float64()

	start, end := windowOf(spendSeries)
	ev := types.Evidence{
		Probe: types.ProbeBudgetExhaustion,
		AdID:  ad.AdID,
		Measurements: map[string]float64{
			"recent_3d_mean_spend": recentSpend,
			"daily_budget":         budget,
		},
		WindowStart: start,
		WindowEnd:   end,
	}

	if budget > 0 && recentSpend/budget > 0.95 {
		ev.Fired = true
		ev.Severity = severityBand(recentSpend/budget, 1.0, 1.2)
		ev.Interpretation = "spend is consistently exhausting the daily budget"
	} else {
		ev.Interpretation = "spend is within budget headroom"
	}
	return ev, nil
}

// Seasonality compares the current period's metric value to the same
// metric 7 and 364 days prior, when that history exists. A current
// deviation within ±25% of either historical point is an expected
// seasonal pattern, not a true anomaly — a legitimate null result.
func Seasonality(ctx context.Context, f Fetcher, warehouseView string, metric types.Metric, windowDays int) (types.Evidence, error) {
	lookback := windowDays
	if lookback < 365 {
		lookback = 365
	}
	series, err := f.FetchAccountDailyTotals(ctx, warehouseView, metric, lookback)
	if err != nil {
		return types.Evidence{}, err
	}
	if len(series) == 0 {
		return inconclusive(types.ProbeSeasonality, "", "no account-level history available"), nil
	}

	current := series[len(series)-1].Value
	weekAgo, hasWeek := valueDaysBefore(series, 7)
	yearAgo, hasYear := valueDaysBefore(series, 364)

	start, end := windowOf(series)
	ev := types.Evidence{
		Probe: types.ProbeSeasonality,
		Measurements: map[string]float64{
			"current_value": current,
		},
		WindowStart: start,
		WindowEnd:   end,
	}
	if hasWeek {
		ev.Measurements["week_ago_value"] = weekAgo
	}
	if hasYear {
		ev.Measurements["year_ago_value"] = yearAgo
	}

	matchesWeek := hasWeek && withinPct(current, weekAgo, 0.25)
	matchesYear := hasYear && withinPct(current, yearAgo, 0.25)

	if matchesWeek || matchesYear {
		ev.Fired = true
		ev.Interpretation = "deviation matches an expected seasonal pattern"
	} else {
		ev.Interpretation = "no matching seasonal precedent found"
	}
	return ev, nil
}

func valueDaysBefore(series []metricstore.DailyPoint, days int) (float64, bool) {
	target := series[len(series)-1].Date.AddDate(0, 0, -days)
	for _, p := range series {
		if p.Date.Equal(target) {
			return p.Value, true
		}
	}
	return 0, false
}

func withinPct(current, reference, pct float64) bool {
	if reference == 0 {
		return false
	}
	change := (current - reference) / reference
	if change < 0 {
		change = -change
	}
	return change <= pct
}
