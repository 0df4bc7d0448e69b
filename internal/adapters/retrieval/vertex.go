package retrieval

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// VertexEmbedder maps text into Vertex AI's embedding space. It can
// share the genai client with the completion adapter.
type VertexEmbedder struct {
	client    *genai.Client
	modelName string
}

func NewVertexEmbedder(client *genai.Client, modelName string) *VertexEmbedder {
	if modelName == "" {
		modelName = "gemini-embedding-001"
	}
	return &VertexEmbedder{client: client, modelName: modelName}
}

func (e *VertexEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	res, err := e.client.Models.EmbedContent(ctx, e.modelName, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("vertex embed content: %w", err)
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("vertex returned no embedding")
	}
	return res.Embeddings[0].Values, nil
}
