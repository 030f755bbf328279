// Package rca implements the RCA Orchestrator (spec §4.5): for one
// Anomaly, it drives a bounded tool-calling loop in which a language
// model selects diagnostic probes, then resolves the accumulated
// Evidence into a RootCauseVerdict using a deterministic resolver —
// never the model itself — to keep the root-cause ontology closed and
// the system debuggable.
package rca

import (
	"context"
	"time"

	"github.com/adinsight/adinsight/pkg/ai/llm"
	"github.com/adinsight/adinsight/pkg/types"
)

// DefaultMaxSteps is the bounded step count of spec §4.5.
const DefaultMaxSteps = 6

// DefaultDeadline bounds the wall-clock time of one anomaly's
// diagnosis regardless of step count.
const DefaultDeadline = 60 * time.Second

// decisionTable maps an anomaly's metric to an ordered probe
// preference list (spec §4.5 step 2), used as the tie-break order in
// the deterministic resolver. It is not included in the model's
// StepRequest or prompt.
var decisionTable = map[types.Metric][]types.ProbeName{
	types.MetricROAS: {types.ProbeCPMSpike, types.ProbeCreativeFatigue, types.ProbeLandingPage, types.ProbeTracking},
	types.MetricCPA:  {types.ProbeLandingPage, types.ProbeCPMSpike, types.ProbeTracking},
	types.MetricCPM:  {types.ProbeCPMSpike, types.ProbeSeasonality},
	types.MetricCTR:  {types.ProbeCreativeFatigue, types.ProbeLandingPage, types.ProbeTracking},
	types.MetricSpend: {types.ProbeBudgetExhaustion, types.ProbeSeasonality},
}

// probeToRootCause is the fixed mapping from a fired probe's
// semantics to its corresponding root-cause tag.
var probeToRootCause = map[types.ProbeName]types.RootCause{
	types.ProbeCPMSpike:         types.RootCauseCPMSpike,
	types.ProbeCreativeFatigue:  types.RootCauseCreativeFatigue,
	types.ProbeLandingPage:      types.RootCauseLandingPage,
	types.ProbeTracking:         types.RootCauseTracking,
	types.ProbeBudgetExhaustion: types.RootCauseBudgetExhaustion,
	types.ProbeSeasonality:      types.RootCauseSeasonality,
}

// tagToAction is the fixed tag→suggested-action map of spec §4.5.
var tagToAction = map[types.RootCause]string{
	types.RootCauseCPMSpike:         "adjust bids/targeting",
	types.RootCauseCreativeFatigue:  "refresh creatives",
	types.RootCauseLandingPage:      "investigate landing page conversion",
	types.RootCauseTracking:         "repair conversion tracking",
	types.RootCauseBudgetExhaustion: "raise daily budget or accept delivery cap",
	types.RootCauseSeasonality:      "no action — expected seasonal pattern",
	types.RootCauseUnknown:          "monitor and re-evaluate",
}

// ProbeRunner runs the fixed probe catalog against one ad. It exists
// so the orchestrator doesn't need to know each probe's individual
// signature — pkg/core adapts pkg/probes to this interface once,
// wiring in a concrete *metricstore.Adapter.
type ProbeRunner interface {
	Run(ctx context.Context, probe types.ProbeName, anomaly types.Anomaly, windowDays int) (types.Evidence, error)
}

// Orchestrator runs the RCA protocol for one anomaly at a time.
type Orchestrator struct {
	Model     llm.Client
	Runner    ProbeRunner
	MaxSteps  int
	Deadline  time.Duration
}

// New constructs an Orchestrator, applying spec defaults for
// non-positive maxSteps/deadline.
func New(model llm.Client, runner ProbeRunner, maxSteps int, deadline time.Duration) *Orchestrator {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Orchestrator{Model: model, Runner: runner, MaxSteps: maxSteps, Deadline: deadline}
}

// Diagnose runs the bounded probe-selection loop for one anomaly and
// returns its RootCauseVerdict.
func (o *Orchestrator) Diagnose(ctx context.Context, anomaly types.Anomaly, windowDays int) (types.RootCauseVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, o.Deadline)
	defer cancel()

	var toolResults []llm.ToolResult
	var evidence []types.Evidence
	called := make(map[types.ProbeName]bool)

	for step := 0; step < o.MaxSteps; step++ {
		resp, err := o.Model.Step(ctx, llm.StepRequest{
			Anomaly:     anomaly,
			ToolResults: toolResults,
			StepsLeft:   o.MaxSteps - step,
		})
		if err != nil {
			break // model unavailable mid-loop: fall through to whatever evidence we have
		}

		if resp.Verdict != nil {
			return o.resolve(anomaly, evidence)
		}
		if len(resp.ToolCalls) == 0 {
			break
		}

		for _, call := range resp.ToolCalls {
			if called[call.Probe] {
				continue // spec §4.5: at most one invocation per probe
			}
			called[call.Probe] = true

			ev, err := o.Runner.Run(ctx, call.Probe, anomaly, windowDays)
			if err != nil {
				ev = types.Evidence{Probe: call.Probe, AdID: anomaly.AdSummary.AdID, Inconclusive: true}
			}
			evidence = append(evidence, ev)
			toolResults = append(toolResults, llm.ToolResult{Probe: call.Probe, AdID: anomaly.AdSummary.AdID, Evidence: ev})
		}
	}

	return o.resolve(anomaly, evidence)
}

// resolve constructs the final verdict deterministically from
// accumulated Evidence, per spec §4.5 step 5: the first fired probe
// matching the decision-table preference order wins.
func (o *Orchestrator) resolve(anomaly types.Anomaly, evidence []types.Evidence) (types.RootCauseVerdict, error) {
	preference := decisionTable[anomaly.Metric]

	firedByProbe := make(map[types.ProbeName]types.Evidence, len(evidence))
	for _, ev := range evidence {
		if ev.Fired {
			firedByProbe[ev.Probe] = ev
		}
	}

	var tag types.RootCause = types.RootCauseUnknown
	for _, probeName := range preference {
		if _, fired := firedByProbe[probeName]; fired {
			tag = probeToRootCause[probeName]
			break
		}
	}
	if tag == types.RootCauseUnknown {
		// no probe in the preference list fired: fall back to any other
		// fired probe in catalog order, which also covers seasonality's
		// own explicit null-result match since it's a member of AllProbes.
		for _, probeName := range types.AllProbes {
			if _, fired := firedByProbe[probeName]; fired {
				tag = probeToRootCause[probeName]
				break
			}
		}
	}

	confidence := confidenceFrom(evidence)

	return types.RootCauseVerdict{
		AnomalyAdID:     anomaly.AdSummary.AdID,
		AnomalyMetric:   anomaly.Metric,
		Tag:             tag,
		Confidence:      confidence,
		Evidence:        evidence,
		SuggestedAction: tagToAction[tag],
	}, nil
}

// confidenceFrom implements spec §4.5's confidence mapping: HIGH when
// any fired probe's own severity judgment was extreme, MEDIUM when at
// least one significant probe fired, LOW otherwise.
func confidenceFrom(evidence []types.Evidence) types.Confidence {
	hasSignificant := false
	for _, ev := range evidence {
		if !ev.Fired {
			continue
		}
		switch ev.Severity {
		case types.SeverityExtreme:
			return types.ConfidenceHigh
		case types.SeveritySignificant:
			hasSignificant = true
		}
	}
	if hasSignificant {
		return types.ConfidenceMedium
	}
	return types.ConfidenceLow
}

// ActionFor returns the fixed suggested action for a root-cause tag.
func ActionFor(tag types.RootCause) string {
	return tagToAction[tag]
}
