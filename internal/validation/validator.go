// Package validation implements the Grounded Output Validator (spec
// §4.7): a stateless, deterministic check that any model-produced
// structured object is actually grounded in the source facts it was
// given, rather than a plausible-sounding hallucination. It sits
// transversally over the RCA Orchestrator's verdict path and the
// Recommendation Generator's model-reasoning path.
package validation

import (
	"fmt"
	"math"
	"strings"

	"github.com/itchyny/gojq"
)

// ToleranceKind selects how a NumericCitation's tolerance is applied.
type ToleranceKind int

const (
	ToleranceAbsolute ToleranceKind = iota
	ToleranceRelative
)

// NumericCitation pairs a numeric field in the model's output with the
// source fact it must be grounded against, and the tolerance spec
// §4.7 check 3 allows between them.
type NumericCitation struct {
	OutputPath string
	SourcePath string
	Tolerance  float64
	Kind       ToleranceKind
}

// DerivedCheck is spec §4.7 check 5: a derived quantity in the output
// must match a recomputation from its own cited inputs.
type DerivedCheck struct {
	OutputPath string
	InputPaths []string
	Recompute  func(inputs []float64) float64
	Tolerance  float64
}

// Schema describes one model-output shape: which fields must be
// present, which are closed-enum, which numeric fields are grounded
// citations, which reasoning steps are required, and the one derived
// quantity (if any) that must recompute consistently.
type Schema struct {
	RequiredPaths  []string
	EnumFields     map[string][]string
	Citations      []NumericCitation
	ReasoningChain []string
	Derived        *DerivedCheck
}

// MaxRetries is the number of times the orchestrator/generator retry
// the model with feedback before degrading to a deterministic
// fallback (spec §4.7's "third failure" language: two retries, then
// degrade).
const MaxRetries = 2

// Validate runs all five checks of spec §4.7 against output, grounding
// numeric fields in sourceFacts. Returns ok=true only when no
// violation was found; violations are human-readable and suitable as
// retry feedback to the model via FeedbackMessage.
func Validate(output, sourceFacts map[string]interface{}, schema Schema) (bool, []string) {
	var violations []string

	for _, path := range schema.RequiredPaths {
		if _, ok := queryValue(output, path); !ok {
			violations = append(violations, fmt.Sprintf("missing required field %s", path))
		}
	}

	for path, allowed := range schema.EnumFields {
		v, ok := queryValue(output, path)
		if !ok {
			continue
		}
		s, isString := v.(string)
		if !isString || !contains(allowed, s) {
			violations = append(violations, fmt.Sprintf("%s: %v is not one of %v", path, v, allowed))
		}
	}

	for _, c := range schema.Citations {
		outVal, ok := queryValue(output, c.OutputPath)
		if !ok {
			continue // already reported by required-field check if it matters
		}
		outNum, ok := toFloat(outVal)
		if !ok {
			violations = append(violations, fmt.Sprintf("%s: not numeric", c.OutputPath))
			continue
		}
		srcVal, ok := queryValue(sourceFacts, c.SourcePath)
		if !ok {
			violations = append(violations, fmt.Sprintf("%s: no source fact at %s to ground against", c.OutputPath, c.SourcePath))
			continue
		}
		srcNum, ok := toFloat(srcVal)
		if !ok {
			continue
		}
		if !withinTolerance(outNum, srcNum, c.Tolerance, c.Kind) {
			violations = append(violations, fmt.Sprintf("%s=%.4f is not grounded in %s=%.4f within tolerance", c.OutputPath, outNum, c.SourcePath, srcNum))
		}
	}

	for _, path := range schema.ReasoningChain {
		v, ok := queryValue(output, path)
		if !ok {
			violations = append(violations, fmt.Sprintf("reasoning chain missing step %s", path))
			continue
		}
		s, isString := v.(string)
		if !isString || strings.TrimSpace(s) == "" {
			violations = append(violations, fmt.Sprintf("reasoning chain step %s is empty", path))
		}
	}

	if schema.Derived != nil {
		if msg, ok := checkDerived(output, *schema.Derived); !ok {
			violations = append(violations, msg)
		}
	}

	return len(violations) == 0, violations
}

// FeedbackMessage renders violations as the retry feedback the
// orchestrator/generator sends back to the model.
func FeedbackMessage(violations []string) string {
	if len(violations) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("The previous response failed grounding validation:\n")
	for _, v := range violations {
		b.WriteString("- ")
		b.WriteString(v)
		b.WriteString("\n")
	}
	b.WriteString("Revise your response so every cited number and required field matches the source data.")
	return b.String()
}

func checkDerived(output map[string]interface{}, d DerivedCheck) (string, bool) {
	claimed, ok := queryValue(output, d.OutputPath)
	if !ok {
		return fmt.Sprintf("derived field %s missing", d.OutputPath), false
	}
	claimedNum, ok := toFloat(claimed)
	if !ok {
		return fmt.Sprintf("derived field %s is not numeric", d.OutputPath), false
	}

	inputs := make([]float64, 0, len(d.InputPaths))
	for _, p := range d.InputPaths {
		v, ok := queryValue(output, p)
		if !ok {
			return fmt.Sprintf("derived field %s: missing input %s", d.OutputPath, p), false
		}
		f, ok := toFloat(v)
		if !ok {
			return fmt.Sprintf("derived field %s: input %s is not numeric", d.OutputPath, p), false
		}
		inputs = append(inputs, f)
	}

	recomputed := d.Recompute(inputs)
	if math.Abs(recomputed-claimedNum) > d.Tolerance {
		return fmt.Sprintf("%s: claimed %.4f but recomputing from its cited inputs gives %.4f", d.OutputPath, claimedNum, recomputed), false
	}
	return "", true
}

func withinTolerance(got, want, tol float64, kind ToleranceKind) bool {
	switch kind {
	case ToleranceRelative:
		if want == 0 {
			return got == 0
		}
		return math.Abs(got-want)/math.Abs(want) <= tol
	default:
		return math.Abs(got-want) <= tol
	}
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// queryValue runs a gojq path expression against obj and returns its
// first result. A missing path or a query error both report ok=false
// — the validator treats either as "not present," never panics.
func queryValue(obj map[string]interface{}, path string) (interface{}, bool) {
	query, err := gojq.Parse(path)
	if err != nil {
		return nil, false
	}
	iter := query.Run(obj)
	v, ok := iter.Next()
	if !ok {
		return nil, false
	}
	if err, isErr := v.(error); isErr {
		_ = err
		return nil, false
	}
	if v == nil {
		return nil, false
	}
	return v, true
}
