package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/indexing"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/vector"
)

type memStores struct {
	products map[string]*storage.Product
	users    map[string]*storage.User
	orders   map[string]*storage.Order
	failOn   string
}

func newMemStores() *memStores {
	return &memStores{
		products: map[string]*storage.Product{},
		users:    map[string]*storage.User{},
		orders:   map[string]*storage.Order{},
	}
}

type productSink struct{ *memStores }

func (s productSink) Upsert(ctx context.Context, p *storage.Product) error {
	if s.failOn == "products" {
		return errors.New("disk full")
	}
	s.products[p.ID.String()] = p
	return nil
}

type userSink struct{ *memStores }

func (s userSink) Upsert(ctx context.Context, u *storage.User) error {
	s.users[u.ID.String()] = u
	return nil
}

type orderSink struct{ *memStores }

func (s orderSink) Create(ctx context.Context, o *storage.Order) error {
	if _, ok := s.orders[o.Number]; ok {
		return storage.ErrConflict
	}
	s.orders[o.Number] = o
	return nil
}

func (s *memStores) stores() Stores {
	return Stores{Products: productSink{s}, Users: userSink{s}, Orders: orderSink{s}}
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateCache(ctx context.Context) error {
	c.calls++
	return nil
}

func TestPipeline_IngestDemoCatalog(t *testing.T) {
	ctx := context.Background()
	mem := newMemStores()
	idx := vector.NewMemoryIndex(vector.MemoryConfig{})
	ix := indexing.NewIndexer(idx, embedding.NewMockClient(64), observability.NopLogger(), indexing.Config{Workers: 2, BatchSize: 5})
	inv := &countingInvalidator{}
	pipeline := NewPipeline(observability.NopLogger(), mem.stores(), ix, inv)

	var lastDone, lastTotal int
	res, err := pipeline.Ingest(ctx, IngestionRequest{
		Source:   DemoCatalog(),
		Progress: func(done, total int) { lastDone, lastTotal = done, total },
	})
	require.NoError(t, err)

	assert.Equal(t, 14, res.ProductsLoaded)
	assert.Equal(t, 2, res.UsersLoaded)
	assert.Equal(t, 4, res.OrdersCreated)
	assert.Empty(t, res.Errors)
	assert.Equal(t, indexing.Stats{Products: 14, Orders: 4}, res.Indexed)
	assert.Equal(t, 18, lastDone)
	assert.Equal(t, 18, lastTotal)
	assert.Equal(t, 1, inv.calls)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 18, count)

	again, err := pipeline.Ingest(ctx, IngestionRequest{Source: DemoCatalog(), SkipIndex: true})
	require.NoError(t, err)
	assert.Equal(t, 4, again.OrdersExisting)
	assert.Zero(t, again.OrdersCreated)
	assert.Len(t, mem.products, 14)
}

func TestPipeline_FromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - {title: Pixel 8, category: smartphones, price: 59999}\n"), 0o600))

	mem := newMemStores()
	res, err := NewPipeline(observability.NopLogger(), mem.stores(), nil, nil).Ingest(context.Background(), IngestionRequest{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ProductsLoaded)
}

func TestPipeline_MissingFile(t *testing.T) {
	_, err := NewPipeline(observability.NopLogger(), newMemStores().stores(), nil, nil).
		Ingest(context.Background(), IngestionRequest{Path: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open seed")
}

func TestPipeline_StoreFailureAborts(t *testing.T) {
	mem := newMemStores()
	mem.failOn = "products"
	inv := &countingInvalidator{}

	_, err := NewPipeline(observability.NopLogger(), mem.stores(), nil, inv).
		Ingest(context.Background(), IngestionRequest{Source: strings.NewReader("products:\n  - {title: Pixel 8, category: smartphones, price: 1}\n")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, inv.calls)
}
