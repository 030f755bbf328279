package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/adinsight/adinsight/internal/config"
)

// anthropicCompleter calls Anthropic's Messages API directly. This is
// the default "anthropic" provider.
type anthropicCompleter struct {
	client anthropic.Client
	model  string
}

func newAnthropicCompleter(cfg config.ModelConfig) (*anthropicCompleter, error) {
	apiKey := config.ModelAPIKey()
	if apiKey == "" {
		return nil, anthropicMissingAPIKeyError()
	}
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}
	return &anthropicCompleter{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (c *anthropicCompleter) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

func anthropicMissingAPIKeyError() error {
	return &configError{field: "ADINSIGHT_MODEL_API_KEY", detail: "required for the anthropic provider"}
}

type configError struct {
	field  string
	detail string
}

func (e *configError) Error() string {
	return e.field + ": " + e.detail
}
