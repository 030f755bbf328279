// Package types holds the core data model shared by every adinsight
// component: AdRecord, AdSummary, AccountBaseline, Anomaly, Evidence,
// RootCauseVerdict, and Recommendation (spec §3). These are plain,
// immutable-after-construction value types; ownership and lifetime
// rules live on Session (pkg/session), not here.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider is the advertising platform that served an ad.
type Provider string

const (
	ProviderGoogleAds  Provider = "google_ads"
	ProviderMetaAds    Provider = "meta_ads"
	ProviderTikTokAds  Provider = "tiktok_ads"
	ProviderAmazonAds  Provider = "amazon_ads"
	ProviderMicrosoft  Provider = "microsoft_ads"
)

// CampaignStatus mirrors the advertiser-facing lifecycle state of the
// campaign an ad belongs to.
type CampaignStatus string

const (
	CampaignStatusActive CampaignStatus = "active"
	CampaignStatusPaused CampaignStatus = "paused"
	CampaignStatusEnded  CampaignStatus = "ended"
)

// Metric is one of the fixed metric names the account baseline and
// anomaly detector operate over.
type Metric string

const (
	MetricSpend       Metric = "spend"
	MetricROAS        Metric = "roas"
	MetricCTR         Metric = "ctr"
	MetricCPA         Metric = "cpa"
	MetricCPM         Metric = "cpm"
	MetricImpressions Metric = "impressions"
	MetricClicks      Metric = "clicks"
)

// AdRecord is one (ad, day) row. Immutable input; the core never
// mutates it.
type AdRecord struct {
	AdID        string
	DisplayName string
	Provider    Provider
	Market      string
	Status      CampaignStatus
	Spend       decimal.Decimal
	ROAS        float64
	Impressions int64
	Clicks      int64
	CPM         float64
	CPA         float64
	Timestamp   time.Time // UTC
}

// CTR returns clicks/impressions, or (0, false) when impressions is 0
// (spec: CTR is undefined, not zero, when there were no impressions).
func (r AdRecord) CTR() (float64, bool) {
	if r.Impressions <= 0 {
		return 0, false
	}
	return float64(r.Clicks) / float64(r.Impressions), true
}

// AdSummary is the per-ad aggregate over an analysis window, produced
// by the Baseline Engine and immutable thereafter.
type AdSummary struct {
	AdID          string
	DisplayName   string
	Provider      Provider
	Market        string
	Status        CampaignStatus
	TotalSpend    decimal.Decimal
	WeightedROAS  float64
	WeightedCTR   float64
	CPA           float64
	HasCPA        bool
	DaysActive    int
	FirstActive   time.Time
	LastActive    time.Time
	DailyBudget   decimal.Decimal
	HasDailyBudget bool
}

// AccountBaseline is the per-metric statistics snapshot over the full
// account within the analysis window (spec §4.2).
type AccountBaseline struct {
	Metric     Metric
	Mean       float64
	StdDev     float64
	Median     float64
	Count      int
	Sufficient bool
}

// Direction is the side of the distribution an observation fell on
// relative to the baseline mean.
type Direction string

const (
	DirectionHigh Direction = "high"
	DirectionLow  Direction = "low"
)

// Polarity is the business goodness of a direction for a given metric.
type Polarity string

const (
	PolarityGood    Polarity = "good"
	PolarityBad     Polarity = "bad"
	PolarityUnknown Polarity = "unknown"
)

// Severity bands the magnitude of |z|.
type Severity string

const (
	SeverityMild        Severity = "mild"
	SeveritySignificant Severity = "significant"
	SeverityExtreme     Severity = "extreme"
)

// Anomaly is a single detected deviation on one metric for one ad.
type Anomaly struct {
	AdSummary  AdSummary
	Metric     Metric
	Observed   float64
	Baseline   float64
	ZScore     float64
	Direction  Direction
	Severity   Severity
	Polarity   Polarity
}

// AbsZ returns |ZScore|, used for tie-break sorting.
func (a Anomaly) AbsZ() float64 {
	if a.ZScore < 0 {
		return -a.ZScore
	}
	return a.ZScore
}

// ProbeName is one of the six fixed diagnostic probe identities.
type ProbeName string

const (
	ProbeCPMSpike        ProbeName = "cpm_spike"
	ProbeCreativeFatigue ProbeName = "creative_fatigue"
	ProbeLandingPage     ProbeName = "landing_page"
	ProbeTracking        ProbeName = "tracking"
	ProbeBudgetExhaustion ProbeName = "budget_exhaustion"
	ProbeSeasonality     ProbeName = "seasonality"
)

// AllProbes is the fixed, closed probe catalog in a stable order.
var AllProbes = []ProbeName{
	ProbeCPMSpike,
	ProbeCreativeFatigue,
	ProbeLandingPage,
	ProbeTracking,
	ProbeBudgetExhaustion,
	ProbeSeasonality,
}

// Evidence is the structured, immutable output of one probe
// invocation.
type Evidence struct {
	Probe           ProbeName
	AdID            string
	Fired           bool
	Inconclusive    bool
	Measurements    map[string]float64
	Interpretation  string
	WindowStart     time.Time
	WindowEnd       time.Time
	Severity        Severity // probe's own severity judgment of its measurement, if any
}

// RootCause is a tag from the closed ontology (spec §3).
type RootCause string

const (
	RootCauseCPMSpike         RootCause = "CPM_SPIKE"
	RootCauseCreativeFatigue  RootCause = "CREATIVE_FATIGUE"
	RootCauseLandingPage      RootCause = "LANDING_PAGE"
	RootCauseTracking         RootCause = "TRACKING"
	RootCauseBudgetExhaustion RootCause = "BUDGET_EXHAUSTION"
	RootCauseSeasonality      RootCause = "SEASONALITY"
	RootCauseUnknown          RootCause = "UNKNOWN"
)

// Confidence is the orchestrator's confidence in a RootCauseVerdict.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// RootCauseVerdict is the RCA Orchestrator's output for one anomaly.
type RootCauseVerdict struct {
	AnomalyAdID      string
	AnomalyMetric    Metric
	Tag              RootCause
	Confidence       Confidence
	Evidence         []Evidence
	SuggestedAction  string
	Violations       []string // populated only on validator-fallback degrade
}

// Action is one of the fixed recommendation actions.
type Action string

const (
	ActionScale           Action = "SCALE"
	ActionReduce          Action = "REDUCE"
	ActionPause           Action = "PAUSE"
	ActionRefreshCreative Action = "REFRESH_CREATIVE"
	ActionMonitor         Action = "MONITOR"
	ActionWait            Action = "WAIT"
)

// Recommendation is the Recommendation Generator's output for one ad.
type Recommendation struct {
	AdID                 string
	Action               Action
	CurrentDailySpend    decimal.Decimal
	ProposedChangePct    float64
	ProposedNewSpend     decimal.Decimal
	ExpectedRevenueDelta decimal.Decimal
	Confidence           Confidence
	Rationale            string
}

// ExecutionStatus is the terminal state of one ExecutionResult.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "SUCCESS"
	ExecutionFailed  ExecutionStatus = "FAILED"
	ExecutionSkipped ExecutionStatus = "SKIPPED"
)

// ExecutionResult is one Execution Simulator outcome for one
// Recommendation.
type ExecutionResult struct {
	AdID    string
	Status  ExecutionStatus
	Message string
	DryRun  bool
}
