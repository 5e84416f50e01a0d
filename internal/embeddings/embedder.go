// -----------------------------------------------------------------------
// Embedding Adapter - provider selection and dimension resolution
// -----------------------------------------------------------------------

package embeddings

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/common"
)

// Embedder converts text chunks to fixed-dimension vectors
type Embedder interface {
	// Model returns the model spec this embedder was built from
	Model() string

	// Dimensions resolves the vector dimension. Known models answer from a
	// static table; unknown models probe the provider once and cache.
	Dimensions(ctx context.Context) (int, error)

	// EmbedBatch embeds the given texts in order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// modelDimensions maps known provider models to their default dimension
var modelDimensions = map[string]int{
	"text-embedding-3-small":    1536,
	"text-embedding-3-large":    3072,
	"text-embedding-ada-002":    1536,
	"gemini-embedding-001":      3072,
	"text-embedding-004":        768,
	"nomic-embed-text":          768,
	"mxbai-embed-large":         1024,
	"all-minilm":                384,
	"snowflake-arctic-embed":    1024,
	"bge-m3":                    1024,
	"amazon.titan-embed-text-v2": 1024,
}

// ParseModelSpec splits a "[provider:]model" spec. A bare model name defaults
// to the openai provider.
func ParseModelSpec(spec string) (provider, model string) {
	spec = strings.TrimSpace(spec)
	if idx := strings.Index(spec, ":"); idx >= 0 {
		return strings.ToLower(spec[:idx]), spec[idx+1:]
	}
	return "openai", spec
}

// NewEmbedder builds the provider adapter selected by the configured model
// spec. DOCTRINA_EMBEDDING_MODEL overrides the configured spec. An empty
// spec returns nil: indexing and search then run full-text only.
func NewEmbedder(config common.EmbeddingsConfig, logger arbor.ILogger) (Embedder, error) {
	spec := config.Model
	if env := os.Getenv("DOCTRINA_EMBEDDING_MODEL"); env != "" {
		spec = env
	}
	if strings.TrimSpace(spec) == "" {
		logger.Info().Msg("No embedding model configured, search will be full-text only")
		return nil, nil
	}

	provider, model := ParseModelSpec(spec)
	switch provider {
	case "openai", "azure", "microsoft":
		return NewOpenAIEmbedder(model, config, logger), nil
	case "gemini", "google", "vertex":
		return NewGeminiEmbedder(model, config, logger)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q in model spec %q", provider, spec)
	}
}

// dimensionCache resolves a model dimension once: configured override, then
// the static table, then a single probe call
type dimensionCache struct {
	model      string
	configured int
	probe      func(ctx context.Context) (int, error)

	mu     sync.Mutex
	cached int
}

func (d *dimensionCache) resolve(ctx context.Context) (int, error) {
	if d.configured > 0 {
		return d.configured, nil
	}
	if dim, ok := modelDimensions[d.model]; ok {
		return dim, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached > 0 {
		return d.cached, nil
	}

	dim, err := d.probe(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to probe dimension of model %s: %w", d.model, err)
	}
	d.cached = dim
	return dim, nil
}
