package llm

import (
	"fmt"
	"strings"

	"github.com/go-faster/jx"
	"github.com/tidwall/gjson"

	"github.com/adinsight/adinsight/pkg/types"
)

// systemPromptTemplate fixes the model's role and the closed
// vocabularies it must answer within: the six probes, the seven
// root-cause tags, and the three confidence levels. Keeping these
// closed here is what lets the Grounded Output Validator treat any
// other token as a protocol violation rather than a new category to
// learn.
const systemPromptTemplate = `<|system|>
You are a root-cause diagnosis assistant for advertising performance
anomalies. You may call any of the following diagnostic probes, each
at most once per anomaly: cpm_spike, creative_fatigue, landing_page,
tracking, budget_exhaustion, seasonality.

When you have enough evidence, respond with a final verdict using
exactly one root_cause tag from: CPM_SPIKE, CREATIVE_FATIGUE,
LANDING_PAGE, TRACKING, BUDGET_EXHAUSTION, SEASONALITY, UNKNOWN, and
exactly one confidence from: HIGH, MEDIUM, LOW.

Respond only with a single JSON object. To call probes:
{"tool_calls": [{"probe": "cpm_spike"}, ...]}
To give a final verdict, cite the anomaly's own z-score under
"evidence" and walk through your reasoning under "reasoning" — every
one of its five steps is required and must be non-empty:
{"verdict": {
  "root_cause": "...", "confidence": "...", "suggested_action": "...", "violations": [],
  "evidence": {"z_score": 0.0},
  "reasoning": {
    "data": "what the evidence showed",
    "comparison": "how it compares to the baseline",
    "qualification": "why this probe's signal and not another's",
    "classification": "why this root_cause tag follows",
    "confidence_rationale": "why this confidence level"
  }
}}
A verdict missing any reasoning step, or whose z_score doesn't match
the anomaly you were given, will be rejected and you will be asked to
revise it.
<|/system|>`

// buildSystemPrompt returns the fixed system prompt.
func buildSystemPrompt() string {
	return systemPromptTemplate
}

// buildUserPrompt renders the anomaly under diagnosis and any
// evidence gathered so far. Evidence is marshaled with go-faster/jx
// rather than encoding/json for the tool-call boundary, matching the
// fast/alloc-light encoder used elsewhere for cross-boundary payloads.
func buildUserPrompt(req StepRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<|user|>\nAnomaly: ad=%s metric=%s observed=%.4f baseline=%.4f z=%.2f severity=%s direction=%s polarity=%s\nSteps remaining: %d\n",
		req.Anomaly.AdSummary.AdID, req.Anomaly.Metric, req.Anomaly.Observed, req.Anomaly.Baseline,
		req.Anomaly.ZScore, req.Anomaly.Severity, req.Anomaly.Direction, req.Anomaly.Polarity, req.StepsLeft)

	if len(req.ToolResults) > 0 {
		b.WriteString("Evidence gathered so far:\n")
		for _, tr := range req.ToolResults {
			b.WriteString(encodeEvidence(tr))
			b.WriteString("\n")
		}
	}
	b.WriteString("<|/user|>\n<|assistant|>\n")
	return b.String()
}

// encodeEvidence renders one ToolResult's Evidence as a compact JSON
// line using go-faster/jx's streaming encoder.
func encodeEvidence(tr ToolResult) string {
	var e jx.Encoder

	e.ObjStart()
	e.FieldStart("probe")
	e.Str(string(tr.Probe))
	e.FieldStart("ad_id")
	e.Str(tr.AdID)
	e.FieldStart("fired")
	e.Bool(tr.Evidence.Fired)
	e.FieldStart("inconclusive")
	e.Bool(tr.Evidence.Inconclusive)
	e.FieldStart("interpretation")
	e.Str(tr.Evidence.Interpretation)
	e.FieldStart("measurements")
	e.ObjStart()
	for k, v := range tr.Evidence.Measurements {
		e.FieldStart(k)
		e.Float64(v)
	}
	e.ObjEnd()
	e.ObjEnd()

	return e.String()
}

// parseStepResponse extracts either tool_calls or a verdict from the
// model's raw text using gjson path queries, tolerating any
// surrounding prose the model may have emitted around the JSON
// object.
func parseStepResponse(raw string) (StepResponse, error) {
	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		return StepResponse{RawText: raw}, nil
	}

	result := gjson.Parse(jsonText)

	if calls := result.Get("tool_calls"); calls.Exists() && calls.IsArray() {
		var toolCalls []ToolCall
		calls.ForEach(func(_, value gjson.Result) bool {
			toolCalls = append(toolCalls, ToolCall{
				Probe: types.ProbeName(value.Get("probe").String()),
				AdID:  value.Get("ad_id").String(),
			})
			return true
		})
		return StepResponse{ToolCalls: toolCalls, RawText: raw}, nil
	}

	if verdict := result.Get("verdict"); verdict.Exists() {
		v := &types.RootCauseVerdict{
			Tag:             types.RootCause(verdict.Get("root_cause").String()),
			Confidence:      types.Confidence(verdict.Get("confidence").String()),
			SuggestedAction: verdict.Get("suggested_action").String(),
		}
		verdict.Get("violations").ForEach(func(_, value gjson.Result) bool {
			v.Violations = append(v.Violations, value.String())
			return true
		})
		return StepResponse{Verdict: v, RawText: raw}, nil
	}

	return StepResponse{RawText: raw}, nil
}

// extractJSONObject returns the first top-level {...} substring in s,
// or "" if none is found. Models occasionally wrap their JSON answer
// in prose despite instructions not to.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
