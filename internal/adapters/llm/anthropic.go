package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"inkwell/internal/domain"
)

const anthropicMaxTokens = 4096

type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a Completer backed by the Anthropic
// Messages API. The key is read from the named environment variable.
func NewAnthropicClient(model, apiKeyEnv string) (*AnthropicClient, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key not set: %s", apiKeyEnv)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{
		client: &client,
		model:  model,
	}, nil
}

// Complete implements domain.Completer.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt string, messages []domain.PromptMessage, temperature float32) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(anthropicMaxTokens),
		Temperature: anthropic.Float(float64(temperature)),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Speaker.IsUser() {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		}
	}

	res, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifyAnthropicErr(err)
	}

	var text string
	for i := range res.Content {
		if res.Content[i].Type == "text" {
			text += res.Content[i].Text
		}
	}
	if text == "" {
		return "", &domain.GenerationError{Err: fmt.Errorf("anthropic returned empty text")}
	}
	return text, nil
}

func classifyAnthropicErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &domain.GenerationError{Status: apiErr.StatusCode, Err: err}
	}
	return &domain.GenerationError{Err: err}
}
