// Package recommend implements the Recommendation Generator (spec
// §4.6): classifies each anomalous ad into one of the six fixed
// actions using the ROAS/spend/days-active guideline table, letting a
// RootCauseVerdict override the table's suggestion when its tag
// argues for a different action.
package recommend

import (
	"github.com/shopspring/decimal"

	"github.com/adinsight/adinsight/pkg/types"
)

// Guideline table constants (spec §4.6).
const (
	scaleROASRatio       = 2.0
	monitorROASRatioLow  = 1.0
	reduceROASRatioLow   = 0.5
	minSpendForScale     = 1000.0
	minSpendForReduce    = 10000.0
	minSpendForPause     = 5000.0
	minDaysActive        = 7

	scalePct  = 50.0  // representative point in the table's [+30%, +100%] band
	reduceLow = -35.0 // representative point in [-20%, -50%] for the 0.5–1.0x band
	reduceHigh = -50.0
)

// rootCauseOverride is the fixed RootCauseVerdict→Action override rule
// (spec §4.6: "CREATIVE_FATIGUE → REFRESH_CREATIVE overrides MONITOR").
// Only overrides that the spec calls out by example are implemented;
// any other tag leaves the guideline-table action untouched.
var rootCauseOverride = map[types.RootCause]types.Action{
	types.RootCauseCreativeFatigue: types.ActionRefreshCreative,
}

// Generate produces one Recommendation for anomaly, classifying its
// ad via the guideline table and applying verdict's override rule when
// present. baseline must be the account's ROAS baseline; callers
// typically pass baselines[types.MetricROAS].
func Generate(anomaly types.Anomaly, verdict *types.RootCauseVerdict, baseline types.AccountBaseline) types.Recommendation {
	summary := anomaly.AdSummary
	action, pct := classify(summary, baseline)

	rationale := classifyRationale(summary, baseline, action)
	if verdict != nil {
		if override, ok := rootCauseOverride[verdict.Tag]; ok && override != action {
			action = override
			pct = 0
			rationale = "root cause " + string(verdict.Tag) + " (" + string(verdict.Confidence) + " confidence) overrides the guideline-table action: " + verdict.SuggestedAction
		}
	}

	current := summary.TotalSpend
	proposedNew := current.Mul(decimal.NewFromFloat(1 + pct/100))
	delta := proposedNew.Sub(current).Mul(decimal.NewFromFloat(summary.WeightedROAS)).Round(0)

	return types.Recommendation{
		AdID:                 summary.AdID,
		Action:               action,
		CurrentDailySpend:    current,
		ProposedChangePct:    pct,
		ProposedNewSpend:     proposedNew.Round(2),
		ExpectedRevenueDelta: delta,
		Confidence:           confidenceFor(verdict),
		Rationale:            rationale,
	}
}

// classify applies the guideline table in the order spec §4.6 lists
// it. The spend/days-active floor row always wins, matching "any:
// < $1,000 or < 7 days ⇒ WAIT" being listed last but applying
// regardless of the ROAS ratio.
func classify(summary types.AdSummary, baseline types.AccountBaseline) (types.Action, float64) {
	spend, _ := summary.TotalSpend.Float64()

	if spend < minSpendForScale || summary.DaysActive < minDaysActive {
		return types.ActionWait, 0
	}

	ratio := roasRatio(summary, baseline)

	switch {
	case summary.WeightedROAS == 0 && spend >= minSpendForPause:
		return types.ActionPause, -100
	case ratio < reduceROASRatioLow && spend >= minSpendForReduce:
		return types.ActionReduce, reduceHigh
	case ratio >= reduceROASRatioLow && ratio < monitorROASRatioLow && spend >= minSpendForReduce:
		return types.ActionReduce, reduceLow
	case ratio >= monitorROASRatioLow && ratio < scaleROASRatio:
		return types.ActionMonitor, 0
	case ratio >= scaleROASRatio:
		return types.ActionScale, scalePct
	default:
		// falls between bands the table doesn't name explicitly (e.g.
		// a near-zero ROAS ad that hasn't yet reached the PAUSE spend
		// floor) — hold rather than act on an under-specified signal.
		return types.ActionMonitor, 0
	}
}

func roasRatio(summary types.AdSummary, baseline types.AccountBaseline) float64 {
	if baseline.Mean == 0 {
		return 0
	}
	return summary.WeightedROAS / baseline.Mean
}

func classifyRationale(summary types.AdSummary, baseline types.AccountBaseline, action types.Action) string {
	ratio := roasRatio(summary, baseline)
	switch action {
	case types.ActionScale:
		return "ROAS is a strong multiple of the account baseline with sufficient spend and tenure to scale."
	case types.ActionReduce:
		return "ROAS trails the account baseline at meaningful spend; reducing limits further waste."
	case types.ActionPause:
		return "Zero observed ROAS at material spend; pausing stops the bleed."
	case types.ActionMonitor:
		return "ROAS is in line with the account baseline; no action warranted yet."
	default:
		_ = ratio
		return "Insufficient spend or tenure to classify confidently; wait for more data."
	}
}

func confidenceFor(verdict *types.RootCauseVerdict) types.Confidence {
	if verdict == nil {
		return types.ConfidenceMedium
	}
	return verdict.Confidence
}
