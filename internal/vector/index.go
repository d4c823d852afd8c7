// Package vector provides brute-force cosine similarity search over entity
// embeddings.
package vector

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
)

// DefaultMinSimilarity is the exclusive lower bound for a result to be returned.
const DefaultMinSimilarity = 0.3

// ErrDimensionMismatch indicates a vector whose length differs from the index.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Record is one indexed entity.
type Record struct {
	EntityID uuid.UUID
	Kind     storage.EntityKind
	OwnerID  *uuid.UUID
	Vector   []float32
	Metadata map[string]string
}

// Result is a record scored against a query vector.
type Result struct {
	EntityID   uuid.UUID
	Kind       storage.EntityKind
	Metadata   map[string]string
	Similarity float64
}

// Index stores embeddings and answers top-k similarity queries.
//
// TopK searches product embeddings; TopKForOwner searches the order
// embeddings owned by one user. Both return results sorted by descending
// similarity, keep only similarity above the index threshold, and return an
// empty slice for an empty index or a degenerate query vector.
type Index interface {
	Upsert(ctx context.Context, rec Record) error
	TopK(ctx context.Context, query []float32, k int) ([]Result, error)
	TopKForOwner(ctx context.Context, owner uuid.UUID, query []float32, k int) ([]Result, error)
	Delete(ctx context.Context, entityID uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

// CosineSimilarity returns dot(a, b) / (|a| |b|). It is 0 when the lengths
// differ or either norm is 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// IsZero reports whether v is empty or has no non-zero component.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// RecordFromStorage converts a persisted embedding.
func RecordFromStorage(rec *storage.EmbeddingRecord) Record {
	return Record{
		EntityID: rec.EntityID,
		Kind:     rec.Kind,
		OwnerID:  rec.OwnerID,
		Vector:   []float32(rec.Vector),
		Metadata: map[string]string(rec.Metadata),
	}
}

// ToStorage converts r for persistence.
func (r Record) ToStorage() *storage.EmbeddingRecord {
	return &storage.EmbeddingRecord{
		EntityID: r.EntityID,
		Kind:     r.Kind,
		OwnerID:  r.OwnerID,
		Vector:   storage.Vector(r.Vector),
		Metadata: storage.Metadata(r.Metadata),
	}
}
