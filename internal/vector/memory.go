package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
)

// MemoryConfig configures a MemoryIndex.
type MemoryConfig struct {
	// Dimension fixes the vector length. Zero adopts the length of the first
	// upserted vector.
	Dimension int
	// MinSimilarity defaults to DefaultMinSimilarity when zero.
	MinSimilarity float64
}

// MemoryIndex is an in-process Index keyed by entity id.
type MemoryIndex struct {
	mu            sync.RWMutex
	dimension     int
	minSimilarity float64
	records       map[uuid.UUID]Record
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex(cfg MemoryConfig) *MemoryIndex {
	if cfg.MinSimilarity == 0 {
		cfg.MinSimilarity = DefaultMinSimilarity
	}
	return &MemoryIndex{
		dimension:     cfg.Dimension,
		minSimilarity: cfg.MinSimilarity,
		records:       make(map[uuid.UUID]Record),
	}
}

// Upsert stores rec, replacing any record with the same entity id.
func (m *MemoryIndex) Upsert(ctx context.Context, rec Record) error {
	if rec.EntityID == uuid.Nil {
		return fmt.Errorf("vector record entity id is required")
	}
	if len(rec.Vector) == 0 {
		return fmt.Errorf("%w: empty vector for %s", ErrDimensionMismatch, rec.EntityID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dimension == 0 {
		m.dimension = len(rec.Vector)
	}
	if len(rec.Vector) != m.dimension {
		return fmt.Errorf("%w: expected %d, got %d for %s", ErrDimensionMismatch, m.dimension, len(rec.Vector), rec.EntityID)
	}

	rec.Vector = append([]float32(nil), rec.Vector...)
	m.records[rec.EntityID] = rec
	return nil
}

// TopK returns the k product records most similar to query.
func (m *MemoryIndex) TopK(ctx context.Context, query []float32, k int) ([]Result, error) {
	return m.search(query, k, func(r Record) bool {
		return r.Kind == "" || r.Kind == storage.EntityKindProduct
	}), nil
}

// TopKForOwner returns the k order records of owner most similar to query.
func (m *MemoryIndex) TopKForOwner(ctx context.Context, owner uuid.UUID, query []float32, k int) ([]Result, error) {
	return m.search(query, k, func(r Record) bool {
		return r.Kind == storage.EntityKindOrder && r.OwnerID != nil && *r.OwnerID == owner
	}), nil
}

// Delete removes one entity. Unknown ids are ignored.
func (m *MemoryIndex) Delete(ctx context.Context, entityID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, entityID)
	return nil
}

// Count returns the number of stored records.
func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Get returns a copy of one record.
func (m *MemoryIndex) Get(entityID uuid.UUID) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[entityID]
	return rec, ok
}

// replaceAll swaps the whole record set, used when warming from a store.
func (m *MemoryIndex) replaceAll(records []Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[uuid.UUID]Record, len(records))
	dim := m.dimension
	for _, r := range records {
		if len(r.Vector) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(r.Vector)
		}
		if len(r.Vector) != dim {
			continue
		}
		next[r.EntityID] = r
	}
	m.dimension = dim
	m.records = next
}

func (m *MemoryIndex) search(query []float32, k int, keep func(Record) bool) []Result {
	out := []Result{}
	if k <= 0 || IsZero(query) {
		return out
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.records) == 0 || len(query) != m.dimension {
		return out
	}

	for _, r := range m.records {
		if !keep(r) {
			continue
		}
		sim := CosineSimilarity(query, r.Vector)
		if sim <= m.minSimilarity {
			continue
		}
		out = append(out, Result{EntityID: r.EntityID, Kind: r.Kind, Metadata: r.Metadata, Similarity: sim})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].EntityID.String() < out[j].EntityID.String()
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

var _ Index = (*MemoryIndex)(nil)
