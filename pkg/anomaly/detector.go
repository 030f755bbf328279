// Package anomaly implements the Anomaly Detector (spec §4.3):
// z-score classification of each ad against its account baseline,
// severity banding, the fixed direction/polarity table, the
// "bad-only" filter, and the max-anomalies-per-metric cap with its
// |z|-desc / spend-desc tie-break.
package anomaly

import (
	"sort"

	sharedmath "github.com/adinsight/adinsight/pkg/shared/math"
	"github.com/adinsight/adinsight/pkg/types"
)

// Config controls detection thresholds (spec §4.3, §6 defaults).
type Config struct {
	ThresholdSigma float64
	MinSpend       float64
	MaxPerMetric   int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{ThresholdSigma: 2.0, MinSpend: 100, MaxPerMetric: 50}
}

// Severity band thresholds keyed on |z| (spec §3, §4.3).
const (
	mildThreshold        = 1.5
	significantThreshold = 2.0
	extremeThreshold     = 3.0
)

func severityOf(absZ float64) types.Severity {
	switch {
	case absZ >= extremeThreshold:
		return types.SeverityExtreme
	case absZ >= significantThreshold:
		return types.SeveritySignificant
	default:
		return types.SeverityMild
	}
}

// direction reports which side of the mean an observation falls on
// for metrics examined in both directions (Spend, CTR); for
// one-sided metrics (ROAS low-only, CPA high-only, CPM high-only) the
// examined direction is fixed regardless of the observed sign.
func direction(observed, mean float64) types.Direction {
	if observed >= mean {
		return types.DirectionHigh
	}
	return types.DirectionLow
}

// polarity implements the fixed direction/polarity table of spec
// §4.3.
func polarity(metric types.Metric, dir types.Direction) types.Polarity {
	switch metric {
	case types.MetricSpend:
		// Both directions are potentially bad: a drop signals a
		// delivery problem, a spike signals waste — severity alone
		// can't say which without ROAS context, so this probe-level
		// judgment is left to the RCA Orchestrator's evidence.
		return types.PolarityBad
	case types.MetricROAS:
		if dir == types.DirectionLow {
			return types.PolarityBad
		}
		return types.PolarityGood
	case types.MetricCPA:
		if dir == types.DirectionHigh {
			return types.PolarityBad
		}
		return types.PolarityGood
	case types.MetricCTR:
		if dir == types.DirectionLow {
			return types.PolarityBad
		}
		return types.PolarityUnknown
	case types.MetricCPM:
		if dir == types.DirectionHigh {
			return types.PolarityBad
		}
		return types.PolarityGood
	default:
		return types.PolarityUnknown
	}
}

// metricValue mirrors pkg/baseline's extraction so the detector
// evaluates the same observed value the baseline was built from.
func metricValue(s types.AdSummary, metric types.Metric) (value float64, ok bool) {
	switch metric {
	case types.MetricSpend:
		v, _ := s.TotalSpend.Float64()
		return v, true
	case types.MetricROAS:
		return s.WeightedROAS, true
	case types.MetricCTR:
		return s.WeightedCTR, true
	case types.MetricCPA:
		if !s.HasCPA {
			return 0, false
		}
		return s.CPA, true
	default:
		return 0, false
	}
}

// Detect classifies anomalies across summaries for the given
// baselines, applying the bad-only filter, the minimum-spend floor,
// and the per-metric cap with its tie-break order.
func Detect(summaries []types.AdSummary, baselines map[types.Metric]types.AccountBaseline, cfg Config) []types.Anomaly {
	if cfg.ThresholdSigma <= 0 {
		cfg = DefaultConfig()
	}

	byMetric := make(map[types.Metric][]types.Anomaly)

	for metric, baseline := range baselines {
		if !baseline.Sufficient || baseline.StdDev == 0 {
			continue
		}
		for _, s := range summaries {
			spend, _ := s.TotalSpend.Float64()
			if spend < cfg.MinSpend {
				continue
			}
			value, ok := metricValue(s, metric)
			if !ok {
				continue
			}
			z := sharedmath.ZScore(value, baseline.Mean, baseline.StdDev)
			absZ := z
			if absZ < 0 {
				absZ = -absZ
			}
			if absZ < cfg.ThresholdSigma {
				continue
			}
			dir := direction(value, baseline.Mean)
			pol := polarity(metric, dir)
			if pol != types.PolarityBad && pol != types.PolarityUnknown {
				continue
			}
			byMetric[metric] = append(byMetric[metric], types.Anomaly{
				AdSummary: s,
				Metric:    metric,
				Observed:  value,
				Baseline:  baseline.Mean,
				ZScore:    z,
				Direction: dir,
				Severity:  severityOf(absZ),
				Polarity:  pol,
			})
		}
	}

	maxPerMetric := cfg.MaxPerMetric
	if maxPerMetric <= 0 {
		maxPerMetric = DefaultConfig().MaxPerMetric
	}

	var out []types.Anomaly
	for _, anomalies := range byMetric {
		sort.SliceStable(anomalies, func(i, j int) bool {
			if anomalies[i].AbsZ() != anomalies[j].AbsZ() {
				return anomalies[i].AbsZ() > anomalies[j].AbsZ()
			}
			iSpend, _ := anomalies[i].AdSummary.TotalSpend.Float64()
			jSpend, _ := anomalies[j].AdSummary.TotalSpend.Float64()
			return iSpend > jSpend
		})
		if len(anomalies) > maxPerMetric {
			anomalies = anomalies[:maxPerMetric]
		}
		out = append(out, anomalies...)
	}

	return out
}
