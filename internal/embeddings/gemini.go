package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/common"
	"google.golang.org/genai"
)

// GeminiEmbedder embeds via the Gemini API
type GeminiEmbedder struct {
	model     string
	client    *genai.Client
	dimension *dimensionCache
	logger    arbor.ILogger
}

// NewGeminiEmbedder creates a Gemini embedding adapter
func NewGeminiEmbedder(model string, config common.EmbeddingsConfig, logger arbor.ILogger) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	e := &GeminiEmbedder{
		model:  model,
		client: client,
		logger: logger,
	}
	e.dimension = &dimensionCache{
		model:      model,
		configured: config.Dimension,
		probe:      e.probeDimension,
	}
	return e, nil
}

// Model returns the model name
func (e *GeminiEmbedder) Model() string {
	return e.model
}

// Dimensions resolves the embedding dimension
func (e *GeminiEmbedder) Dimensions(ctx context.Context) (int, error) {
	return e.dimension.resolve(ctx)
}

// EmbedBatch embeds all texts in one call, preserving input order
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var embedConfig *genai.EmbedContentConfig
	if e.dimension.configured > 0 {
		outputDim := int32(e.dimension.configured)
		embedConfig = &genai.EmbedContentConfig{OutputDimensionality: &outputDim}
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	start := time.Now()
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, embedConfig)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", got, len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
		vectors[i] = emb.Values
	}

	e.logger.Debug().
		Str("model", e.model).
		Int("texts", len(texts)).
		Dur("duration", time.Since(start)).
		Msg("Embedded batch")
	return vectors, nil
}

func (e *GeminiEmbedder) probeDimension(ctx context.Context) (int, error) {
	vectors, err := e.EmbedBatch(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return 0, fmt.Errorf("probe returned no embedding")
	}
	return len(vectors[0]), nil
}
