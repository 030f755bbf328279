// Package llm abstracts the three language-model backends the RCA
// Orchestrator can be configured against (spec §4.5): Anthropic's
// hosted API, AWS Bedrock, and a generic OpenAI-compatible endpoint
// via langchaingo (the "langchain" provider, used for local or
// self-hosted models). Callers depend only on the Client interface;
// NewClient hides the provider selection.
package llm

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/adinsight/adinsight/internal/adierrors"
	"github.com/adinsight/adinsight/internal/config"
	"github.com/adinsight/adinsight/internal/validation"
	"github.com/adinsight/adinsight/pkg/types"
)

// ToolResult is one probe's evidence fed back into the model after a
// ToolCall the model previously requested.
type ToolResult struct {
	Probe    types.ProbeName
	AdID     string
	Evidence types.Evidence
}

// ToolCall is one probe invocation the model has requested.
type ToolCall struct {
	Probe types.ProbeName
	AdID  string
}

// StepRequest is one turn of the bounded RCA step loop.
type StepRequest struct {
	Anomaly     types.Anomaly
	ToolResults []ToolResult
	StepsLeft   int
}

// StepResponse is the model's reply to one StepRequest: either more
// probes to run, or a final verdict.
type StepResponse struct {
	ToolCalls []ToolCall
	Verdict   *types.RootCauseVerdict
	RawText   string
}

// Client is the orchestrator-facing model boundary.
type Client interface {
	Step(ctx context.Context, req StepRequest) (StepResponse, error)
}

// completer is the narrow, provider-specific primitive every Client
// implementation is built from: send a system+user prompt, get text
// back. Token budgeting and response parsing are shared across all
// three providers in client.go and prompt.go; only the wire call
// differs.
type completer interface {
	complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// client is the common Client implementation, parameterized by a
// provider-specific completer.
type client struct {
	completer      completer
	maxContextSize int
	encoding       *tiktoken.Tiktoken
	logger         *logrus.Logger
}

// NewClient selects and constructs the configured provider's Client.
func NewClient(cfg config.ModelConfig, logger *logrus.Logger) (Client, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, adierrors.New(adierrors.KindModelProtocolViolation, "load tokenizer encoding", err)
	}

	maxContext := cfg.MaxContextSize
	if maxContext <= 0 {
		maxContext = 4000
	}

	base := &client{maxContextSize: maxContext, encoding: encoding, logger: logger}

	switch cfg.Provider {
	case "anthropic":
		c, err := newAnthropicCompleter(cfg)
		if err != nil {
			return nil, err
		}
		base.completer = c
	case "bedrock":
		c, err := newBedrockCompleter(cfg)
		if err != nil {
			return nil, err
		}
		base.completer = c
	case "langchain":
		c, err := newLangchainCompleter(cfg)
		if err != nil {
			return nil, err
		}
		base.completer = c
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	return base, nil
}

// Step renders the anomaly and accumulated tool results into a
// prompt, budgets it against maxContextSize, calls the provider, and
// parses its response into either further ToolCalls or a final
// verdict. A verdict the model proposes is run through the Grounded
// Output Validator before it's trusted: an ungrounded or
// incomplete-reasoning verdict earns the model a retry with the
// violations as feedback, up to validation.MaxRetries times. If the
// model still can't produce a grounded verdict, Step degrades by
// returning the turn as if no verdict had been given at all, leaving
// the orchestrator's own deterministic resolver — never the model's
// claimed root cause — to decide from whatever evidence exists.
func (c *client) Step(ctx context.Context, req StepRequest) (StepResponse, error) {
	systemPrompt := buildSystemPrompt()
	basePrompt := buildUserPrompt(req)

	var feedback string
	for attempt := 0; ; attempt++ {
		userPrompt := basePrompt
		if feedback != "" {
			userPrompt += "<|user|>\n" + feedback + "\n<|/user|>\n<|assistant|>\n"
		}
		if c.tokenCount(systemPrompt+userPrompt) > c.maxContextSize {
			userPrompt = truncateToBudget(userPrompt, c.maxContextSize-c.tokenCount(systemPrompt), c.encoding)
		}

		raw, err := c.completer.complete(ctx, systemPrompt, userPrompt)
		if err != nil {
			return StepResponse{}, adierrors.UpstreamUnavailable("model step", err)
		}

		resp, err := parseStepResponse(raw)
		if err != nil {
			return StepResponse{}, err
		}
		if resp.Verdict == nil {
			return resp, nil
		}

		ok, violations := validateVerdict(raw, req.Anomaly)
		if ok {
			return resp, nil
		}
		if attempt >= validation.MaxRetries {
			c.logger.WithField("violations", violations).Warn("model verdict failed grounding validation after exhausting retries; degrading to evidence-only resolution")
			return StepResponse{RawText: raw}, nil
		}
		c.logger.WithField("violations", violations).Debug("model verdict failed grounding validation, retrying with feedback")
		feedback = validation.FeedbackMessage(violations)
	}
}

// validateVerdict extracts the model's raw JSON verdict object and
// runs it through the Grounded Output Validator, citing the anomaly's
// own z-score as the source fact its evidence must be grounded
// against.
func validateVerdict(raw string, anomaly types.Anomaly) (bool, []string) {
	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		return false, []string{"model response did not contain a JSON object"}
	}

	parsed := gjson.Parse(jsonText)
	output, ok := parsed.Value().(map[string]interface{})
	if !ok {
		return false, []string{"model response JSON object was not a map"}
	}

	sourceFacts := map[string]interface{}{
		"anomaly": map[string]interface{}{
			"z_score": anomaly.ZScore,
		},
	}

	return validation.Validate(output, sourceFacts, validation.RCAVerdictSchema())
}

func (c *client) tokenCount(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

func truncateToBudget(text string, tokenBudget int, enc *tiktoken.Tiktoken) string {
	if tokenBudget <= 0 {
		return ""
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= tokenBudget {
		return text
	}
	return enc.Decode(tokens[:tokenBudget])
}
