package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/config"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/textmatch"
)

// DefaultDimension is used when no dimension is configured.
const DefaultDimension = 384

// MockClient hashes each word of the text into a bucket and normalizes the
// counts. Texts sharing words get a positive cosine similarity, which is
// enough for development and tests without a model.
type MockClient struct {
	dimension int
}

// NewMockClient creates a mock embedder.
func NewMockClient(dimension int) *MockClient {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &MockClient{dimension: dimension}
}

// Embed implements Embedder.
func (c *MockClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, c.dimension)
		for _, w := range textmatch.Words(text) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			v[h.Sum32()%uint32(c.dimension)]++
		}
		out[i] = normalize(v)
	}
	return out, nil
}

// EmbedSingle implements Embedder.
func (c *MockClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Model returns the mock model name.
func (c *MockClient) Model() string {
	return "mock-hash-embedding"
}

// Dimension returns the embedding dimension.
func (c *MockClient) Dimension() int {
	return c.dimension
}

// ZeroClient always returns all-zero vectors. It disables vector scoring
// while keeping every keyword path working.
type ZeroClient struct {
	dimension int
}

// NewZeroClient creates a zero embedder.
func NewZeroClient(dimension int) *ZeroClient {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &ZeroClient{dimension: dimension}
}

// Embed implements Embedder.
func (c *ZeroClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, c.dimension)
	}
	return out, nil
}

// EmbedSingle implements Embedder.
func (c *ZeroClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, c.dimension), nil
}

// Model returns the zero model name.
func (c *ZeroClient) Model() string {
	return "zero"
}

// Dimension returns the embedding dimension.
func (c *ZeroClient) Dimension() int {
	return c.dimension
}

// New builds the embedder selected by cfg.
func New(cfg *config.Config) (Embedder, error) {
	dim := cfg.Vector.Dimension
	switch cfg.Embedding.Provider {
	case "", "mock":
		return NewMockClient(dim), nil
	case "zero":
		return NewZeroClient(dim), nil
	case "http":
		return NewClient(Config{
			APIKey:    cfg.EmbeddingAPIKey(),
			Model:     cfg.Embedding.Model,
			BaseURL:   cfg.Embedding.BaseURL,
			Dimension: dim,
			BatchSize: cfg.Embedding.BatchSize,
			Timeout:   cfg.Embedding.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * norm)
	}
	return v
}

var (
	_ Embedder = (*MockClient)(nil)
	_ Embedder = (*ZeroClient)(nil)
)
