package llm

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/adinsight/adinsight/internal/config"
)

// langchainCompleter talks to any OpenAI-compatible endpoint via
// langchaingo — the provider-agnostic fallback used for local or
// self-hosted models (e.g. an Ollama or vLLM server exposing the
// OpenAI chat-completions API).
type langchainCompleter struct {
	llm   llms.Model
	model string
}

func newLangchainCompleter(cfg config.ModelConfig) (*langchainCompleter, error) {
	opts := []openai.Option{
		openai.WithBaseURL(cfg.Endpoint),
		openai.WithModel(cfg.Model),
	}
	if apiKey := config.ModelAPIKey(); apiKey != "" {
		opts = append(opts, openai.WithToken(apiKey))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &langchainCompleter{llm: model, model: cfg.Model}, nil
}

func (c *langchainCompleter) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	resp, err := c.llm.GenerateContent(ctx, content, llms.WithMaxTokens(1024))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}
