package validation

// RCAVerdictSchema describes the RootCauseVerdict JSON shape a model
// may propose. The RCA Orchestrator's own resolver never trusts the
// model's tag directly (it recomputes it deterministically from
// Evidence), so this schema exists for the narrower case of validating
// a model-authored rationale/confidence pairing before it's surfaced
// to an operator.
func RCAVerdictSchema() Schema {
	return Schema{
		RequiredPaths: []string{".root_cause", ".confidence", ".suggested_action"},
		EnumFields: map[string][]string{
			".root_cause": {
				"CPM_SPIKE", "CREATIVE_FATIGUE", "LANDING_PAGE", "TRACKING",
				"BUDGET_EXHAUSTION", "SEASONALITY", "UNKNOWN",
			},
			".confidence": {"HIGH", "MEDIUM", "LOW"},
		},
		Citations: []NumericCitation{
			{OutputPath: ".evidence.z_score", SourcePath: ".anomaly.z_score", Tolerance: 0.05, Kind: ToleranceAbsolute},
		},
		ReasoningChain: []string{
			".reasoning.data",
			".reasoning.comparison",
			".reasoning.qualification",
			".reasoning.classification",
			".reasoning.confidence_rationale",
		},
	}
}

// RecommendationSchema describes the Recommendation JSON shape a model
// proposes when the Recommendation Generator is run with model
// reasoning enabled (spec §6 recommend(sessionId, useModelReasoning)).
func RecommendationSchema() Schema {
	return Schema{
		RequiredPaths: []string{".action", ".confidence", ".proposed_new_spend", ".expected_revenue_delta", ".rationale"},
		EnumFields: map[string][]string{
			".action":     {"SCALE", "REDUCE", "PAUSE", "REFRESH_CREATIVE", "MONITOR", "WAIT"},
			".confidence": {"HIGH", "MEDIUM", "LOW"},
		},
		Citations: []NumericCitation{
			{OutputPath: ".current_daily_spend", SourcePath: ".ad_summary.total_spend", Tolerance: 1.0, Kind: ToleranceAbsolute},
			{OutputPath: ".observed_roas", SourcePath: ".ad_summary.weighted_roas", Tolerance: 0.01, Kind: ToleranceRelative},
		},
		ReasoningChain: []string{
			".reasoning.data",
			".reasoning.comparison",
			".reasoning.qualification",
			".reasoning.classification",
			".reasoning.confidence_rationale",
		},
		Derived: &DerivedCheck{
			OutputPath: ".expected_revenue_delta",
			InputPaths: []string{".proposed_new_spend", ".current_daily_spend", ".observed_roas"},
			Recompute: func(in []float64) float64 {
				return (in[0] - in[1]) * in[2]
			},
			Tolerance: 1.0,
		},
	}
}
