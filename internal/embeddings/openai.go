package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/common"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIEmbedder talks to the OpenAI embeddings endpoint or any
// OpenAI-compatible server (Azure, Ollama, vLLM) selected via base_url
type OpenAIEmbedder struct {
	model     string
	apiKey    string
	baseURL   string
	client    *http.Client
	dimension *dimensionCache
	logger    arbor.ILogger
}

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible endpoint
func NewOpenAIEmbedder(model string, config common.EmbeddingsConfig, logger arbor.ILogger) *OpenAIEmbedder {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	e := &OpenAIEmbedder{
		model:   model,
		apiKey:  config.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
	e.dimension = &dimensionCache{
		model:      model,
		configured: config.Dimension,
		probe:      e.probeDimension,
	}
	return e
}

// Model returns the model name
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Dimensions resolves the embedding dimension
func (e *OpenAIEmbedder) Dimensions(ctx context.Context) (int, error) {
	return e.dimension.resolve(ctx)
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// EmbedBatch embeds all texts in one request, preserving input order
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{Model: e.model, Input: texts}
	// The v3 models accept a requested output dimension
	if e.dimension.configured > 0 {
		reqBody.Dimensions = e.dimension.configured
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("embedding provider returned %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("embedding provider returned status %d", resp.StatusCode)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	// Responses may arrive out of order; the index field is authoritative
	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding provider returned out-of-range index %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}

	e.logger.Debug().
		Str("model", e.model).
		Int("texts", len(texts)).
		Dur("duration", time.Since(start)).
		Msg("Embedded batch")
	return vectors, nil
}

// probeDimension embeds a single token to observe the model's dimension
func (e *OpenAIEmbedder) probeDimension(ctx context.Context) (int, error) {
	vectors, err := e.EmbedBatch(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return 0, fmt.Errorf("probe returned no embedding")
	}
	return len(vectors[0]), nil
}
