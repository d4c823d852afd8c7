package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/vector"
)

type failingEmbedder struct{ embedding.Embedder }

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("provider unavailable")
}

func (failingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("provider unavailable")
}

func catalogFixture(n int) []*storage.Product {
	out := make([]*storage.Product, n)
	for i := range out {
		out[i] = &storage.Product{
			ID:       uuid.New(),
			Title:    fmt.Sprintf("Widget %d", i),
			Brand:    "Acme",
			Category: storage.CategoryAccessories,
		}
	}
	return out
}

func TestProductText(t *testing.T) {
	p := &storage.Product{
		Title:       "Pixel 8",
		Brand:       "Google",
		Category:    storage.CategorySmartphones,
		Description: "  Compact   flagship ",
		Features:    storage.StringList{"Magic Eraser"},
	}

	text := ProductText(p)

	assert.Contains(t, text, "Pixel 8")
	assert.Contains(t, text, "Google")
	assert.Contains(t, text, "Compact flagship")
	assert.Contains(t, text, "Magic Eraser")
	assert.NotContains(t, text, "  ")
}

func TestOrderText(t *testing.T) {
	o := &storage.Order{
		Number: "ORD-10042",
		Status: storage.OrderStatusShipped,
		Items:  []storage.OrderItem{{Title: "Sony WH-1000XM5"}, {Title: "USB-C Cable"}},
	}
	assert.Equal(t, "ORD-10042 shipped Sony WH-1000XM5 USB-C Cable", OrderText(o))
}

func TestIndexProduct_IsSearchable(t *testing.T) {
	ctx := context.Background()
	idx := vector.NewMemoryIndex(vector.MemoryConfig{})
	emb := embedding.NewMockClient(64)
	ix := NewIndexer(idx, emb, observability.NopLogger(), Config{})

	laptop := &storage.Product{ID: uuid.New(), Title: "ASUS ROG Strix G16 Gaming Laptop", Brand: "ASUS", Category: storage.CategoryLaptops}
	phone := &storage.Product{ID: uuid.New(), Title: "Pixel 8", Brand: "Google", Category: storage.CategorySmartphones}
	require.NoError(t, ix.IndexProduct(ctx, laptop))
	require.NoError(t, ix.IndexProduct(ctx, phone))
	require.NoError(t, ix.IndexProduct(ctx, laptop))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	q, err := emb.EmbedSingle(ctx, "asus rog gaming laptop")
	require.NoError(t, err)
	results, err := idx.TopK(ctx, q, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, laptop.ID, results[0].EntityID)
	assert.Equal(t, "Laptops", results[0].Metadata["category"])
}

func TestIndexOrder_ScopedToOwner(t *testing.T) {
	ctx := context.Background()
	idx := vector.NewMemoryIndex(vector.MemoryConfig{})
	emb := embedding.NewMockClient(64)
	ix := NewIndexer(idx, emb, observability.NopLogger(), Config{})

	owner, other := uuid.New(), uuid.New()
	o := &storage.Order{ID: uuid.New(), Number: "ORD-1", UserID: owner, Status: storage.OrderStatusShipped,
		Items: []storage.OrderItem{{Title: "Pixel 8"}}}
	require.NoError(t, ix.IndexOrder(ctx, o))

	q, err := emb.EmbedSingle(ctx, "pixel 8 order")
	require.NoError(t, err)

	mine, err := idx.TopKForOwner(ctx, owner, q, 5)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "ORD-1", mine[0].Metadata["number"])

	theirs, err := idx.TopKForOwner(ctx, other, q, 5)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestIndex_ZeroEmbeddingSkipped(t *testing.T) {
	ctx := context.Background()
	idx := vector.NewMemoryIndex(vector.MemoryConfig{})
	ix := NewIndexer(idx, embedding.NewZeroClient(16), observability.NopLogger(), Config{})

	require.NoError(t, ix.IndexProduct(ctx, catalogFixture(1)[0]))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIndex_EmbedFailure(t *testing.T) {
	ix := NewIndexer(vector.NewMemoryIndex(vector.MemoryConfig{}), failingEmbedder{}, observability.NopLogger(), Config{})

	err := ix.IndexProduct(context.Background(), catalogFixture(1)[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider unavailable")
}

func TestReindexAll(t *testing.T) {
	ctx := context.Background()
	idx := vector.NewMemoryIndex(vector.MemoryConfig{})
	ix := NewIndexer(idx, embedding.NewMockClient(32), observability.NopLogger(), Config{Workers: 3, BatchSize: 4})

	products := catalogFixture(17)
	user := uuid.New()
	orders := []*storage.Order{
		{ID: uuid.New(), Number: "ORD-1", UserID: user, Status: storage.OrderStatusPending, Items: []storage.OrderItem{{Title: "Widget 1"}}},
		{ID: uuid.New(), Number: "ORD-2", UserID: user, Status: storage.OrderStatusDelivered, Items: []storage.OrderItem{{Title: "Widget 2"}}},
	}

	var mu sync.Mutex
	var seen []int
	stats, err := ix.ReindexAll(ctx, products, orders, func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 19, total)
		seen = append(seen, done)
	})
	require.NoError(t, err)

	assert.Equal(t, Stats{Products: 17, Orders: 2}, stats)
	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 19, count)

	require.Len(t, seen, 5)
	assert.IsIncreasing(t, seen)
	assert.Equal(t, 19, seen[len(seen)-1])
}

func TestReindexAll_Empty(t *testing.T) {
	ix := NewIndexer(vector.NewMemoryIndex(vector.MemoryConfig{}), embedding.NewMockClient(8), observability.NopLogger(), Config{})

	called := false
	stats, err := ix.ReindexAll(context.Background(), nil, nil, func(int, int) { called = true })
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.False(t, called)
}

func TestReindexAll_PropagatesFailure(t *testing.T) {
	ix := NewIndexer(vector.NewMemoryIndex(vector.MemoryConfig{}), failingEmbedder{}, observability.NopLogger(), Config{Workers: 2, BatchSize: 2})

	_, err := ix.ReindexAll(context.Background(), catalogFixture(5), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed batch")
}
