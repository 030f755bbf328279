package llm

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	adinsightconfig "github.com/adinsight/adinsight/internal/config"
)

// bedrockCompleter calls a model hosted on AWS Bedrock, for teams
// standardized on AWS-hosted models rather than a direct provider
// API key.
type bedrockCompleter struct {
	client  *bedrockruntime.Client
	modelID string
}

func newBedrockCompleter(cfg adinsightconfig.ModelConfig) (*bedrockCompleter, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, err
	}
	modelID := cfg.Model
	if modelID == "" {
		modelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	return &bedrockCompleter{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: modelID,
	}, nil
}

// bedrockRequestBody follows Bedrock's Anthropic-on-Bedrock messages
// format.
type bedrockRequestBody struct {
	AnthropicVersion string                 `json:"anthropic_version"`
	MaxTokens        int                    `json:"max_tokens"`
	System           string                 `json:"system"`
	Messages         []bedrockMessage       `json:"messages"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockResponseBody struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *bedrockCompleter) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body := bedrockRequestBody{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        1024,
		System:           systemPrompt,
		Messages:         []bedrockMessage{{Role: "user", Content: userPrompt}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	out, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		ContentType: strPtr("application/json"),
		Body:        payload,
	})
	if err != nil {
		return "", err
	}

	var resp bedrockResponseBody
	if err := json.NewDecoder(bytes.NewReader(out.Body)).Decode(&resp); err != nil {
		return "", err
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

func strPtr(s string) *string { return &s }
