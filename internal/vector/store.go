package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
)

// EmbeddingStore persists embedding records.
type EmbeddingStore interface {
	Upsert(ctx context.Context, rec *storage.EmbeddingRecord) error
	Delete(ctx context.Context, entityID uuid.UUID) error
	ListAll(ctx context.Context) ([]*storage.EmbeddingRecord, error)
}

// StoreIndex persists every write to an EmbeddingStore and serves reads from
// a MemoryIndex loaded from the store on first use.
type StoreIndex struct {
	store EmbeddingStore
	mem   *MemoryIndex

	mu     sync.Mutex
	warmed bool
}

// NewStoreIndex creates an index backed by store.
func NewStoreIndex(store EmbeddingStore, cfg MemoryConfig) *StoreIndex {
	return &StoreIndex{store: store, mem: NewMemoryIndex(cfg)}
}

// Upsert writes rec to the store and then to memory.
func (s *StoreIndex) Upsert(ctx context.Context, rec Record) error {
	if err := s.warm(ctx); err != nil {
		return err
	}
	// Validate against memory first so a mismatched vector never reaches the store.
	if err := s.checkDimension(rec); err != nil {
		return err
	}
	if err := s.store.Upsert(ctx, rec.ToStorage()); err != nil {
		return fmt.Errorf("persist embedding: %w", err)
	}
	return s.mem.Upsert(ctx, rec)
}

// TopK implements Index.
func (s *StoreIndex) TopK(ctx context.Context, query []float32, k int) ([]Result, error) {
	if err := s.warm(ctx); err != nil {
		return []Result{}, err
	}
	return s.mem.TopK(ctx, query, k)
}

// TopKForOwner implements Index.
func (s *StoreIndex) TopKForOwner(ctx context.Context, owner uuid.UUID, query []float32, k int) ([]Result, error) {
	if err := s.warm(ctx); err != nil {
		return []Result{}, err
	}
	return s.mem.TopKForOwner(ctx, owner, query, k)
}

// Delete removes the entity from the store and memory.
func (s *StoreIndex) Delete(ctx context.Context, entityID uuid.UUID) error {
	if err := s.store.Delete(ctx, entityID); err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}
	return s.mem.Delete(ctx, entityID)
}

// Count implements Index.
func (s *StoreIndex) Count(ctx context.Context) (int, error) {
	if err := s.warm(ctx); err != nil {
		return 0, err
	}
	return s.mem.Count(ctx)
}

// Reload discards the in-memory copy so the next call reads the store again.
func (s *StoreIndex) Reload() {
	s.mu.Lock()
	s.warmed = false
	s.mu.Unlock()
}

func (s *StoreIndex) warm(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.warmed {
		return nil
	}

	stored, err := s.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load embeddings: %w", err)
	}
	records := make([]Record, 0, len(stored))
	for _, rec := range stored {
		records = append(records, RecordFromStorage(rec))
	}
	s.mem.replaceAll(records)
	s.warmed = true
	return nil
}

func (s *StoreIndex) checkDimension(rec Record) error {
	s.mem.mu.RLock()
	dim := s.mem.dimension
	s.mem.mu.RUnlock()
	if len(rec.Vector) == 0 || (dim != 0 && len(rec.Vector) != dim) {
		return fmt.Errorf("%w: expected %d, got %d for %s", ErrDimensionMismatch, dim, len(rec.Vector), rec.EntityID)
	}
	return nil
}

var _ Index = (*StoreIndex)(nil)
