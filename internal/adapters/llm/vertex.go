package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"inkwell/internal/domain"
)

type VertexClient struct {
	client    *genai.Client
	modelName string
}

// NewVertexClient creates a Completer backed by Vertex AI (Gemini).
func NewVertexClient(ctx context.Context, projectID, location, modelName string) (*VertexClient, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("project id and location are required for the vertex client")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexClient{
		client:    client,
		modelName: modelName,
	}, nil
}

// GenAI exposes the underlying client so embedding adapters can share
// the same connection and credentials.
func (v *VertexClient) GenAI() *genai.Client {
	return v.client
}

// Complete implements domain.Completer using Vertex AI.
func (v *VertexClient) Complete(ctx context.Context, systemPrompt string, messages []domain.PromptMessage, temperature float32) (string, error) {
	var contents []*genai.Content
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if !m.Speaker.IsUser() {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	temp := temperature
	topP := float32(0.9)
	outputTokens := int32(8192)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   outputTokens,
	}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		return "", classifyVertexErr(err)
	}

	text := res.Text()
	if text == "" {
		return "", &domain.GenerationError{Err: fmt.Errorf("vertex returned empty text")}
	}
	return text, nil
}

func classifyVertexErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.GenerationError{Status: apiErr.Code, Err: err}
	}
	return &domain.GenerationError{Err: err}
}
