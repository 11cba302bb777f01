// Package embedding turns chunk text into vectors through an OpenAI-compatible API.
package embedding

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks chessrag/internal/embedding Embedder

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"chessrag/internal/contextutil"
)

// Embedder produces one vector per input text.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIClient calls the embeddings endpoint of an OpenAI-compatible server
// (OpenAI, llama.cpp, vLLM, Ollama).
type OpenAIClient struct {
	Model        string
	ExpectedSize int // every returned vector must have this size
	client       *openai.Client
}

// NewOpenAIClient creates a client for baseURL, e.g. "http://localhost:8080".
// The "/v1" API prefix is added when missing.
func NewOpenAIClient(baseURL, apiKey, model string, expectedSize int) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	cfg.BaseURL = base
	return &OpenAIClient{
		Model:        model,
		ExpectedSize: expectedSize,
		client:       openai.NewClientWithConfig(cfg),
	}
}

// EmbedTexts generates embeddings for the given texts, in input order.
// Validates that all returned vectors match the expected size.
func (c *OpenAIClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}
	logger := contextutil.LoggerFromContext(ctx)

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.Model),
	})
	if err != nil {
		logger.ErrorContext(ctx, "embedding request failed", "model", c.Model, "count", len(texts), "error", err)
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	result := make([][]float32, len(texts))
	for i, data := range resp.Data {
		idx := data.Index
		if idx < 0 || idx >= len(texts) || result[idx] != nil {
			idx = i
		}
		if len(data.Embedding) != c.ExpectedSize {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", idx, len(data.Embedding), c.ExpectedSize)
		}
		result[idx] = data.Embedding
	}

	logger.DebugContext(ctx, "embedded texts", "model", c.Model, "count", len(texts))
	return result, nil
}
