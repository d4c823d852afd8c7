package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EmbeddingRepository persists embedding records keyed by entity ID.
type EmbeddingRepository struct {
	db DB
}

// NewEmbeddingRepository creates a new embedding repository.
func NewEmbeddingRepository(db DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// Upsert writes the record, replacing any previous vector for the same entity.
func (r *EmbeddingRepository) Upsert(ctx context.Context, rec *EmbeddingRecord) error {
	if rec.EntityID == uuid.Nil {
		return fmt.Errorf("embedding entity id is required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	var owner interface{}
	if rec.OwnerID != nil {
		owner = *rec.OwnerID
	}

	query := `
		INSERT INTO embeddings (entity_id, kind, owner_id, dimension, vector, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_id) DO UPDATE SET
			kind = excluded.kind, owner_id = excluded.owner_id, dimension = excluded.dimension,
			vector = excluded.vector, metadata = excluded.metadata, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query,
		rec.EntityID, string(rec.Kind), owner, len(rec.Vector), rec.Vector, rec.Metadata, rec.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert embedding %s: %w", rec.EntityID, err)
	}
	return nil
}

// Delete removes the record for an entity. Missing records are not an error.
func (r *EmbeddingRepository) Delete(ctx context.Context, entityID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM embeddings WHERE entity_id = $1`, entityID); err != nil {
		return fmt.Errorf("delete embedding %s: %w", entityID, err)
	}
	return nil
}

// ListAll returns every stored embedding record.
func (r *EmbeddingRepository) ListAll(ctx context.Context) ([]*EmbeddingRecord, error) {
	return r.query(ctx, `
		SELECT entity_id, kind, owner_id, vector, metadata, updated_at
		FROM embeddings ORDER BY entity_id
	`)
}

// ListByKind returns every record of one entity kind.
func (r *EmbeddingRepository) ListByKind(ctx context.Context, kind EntityKind) ([]*EmbeddingRecord, error) {
	return r.query(ctx, `
		SELECT entity_id, kind, owner_id, vector, metadata, updated_at
		FROM embeddings WHERE kind = $1 ORDER BY entity_id
	`, string(kind))
}

func (r *EmbeddingRepository) query(ctx context.Context, query string, args ...interface{}) ([]*EmbeddingRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	records := []*EmbeddingRecord{}
	for rows.Next() {
		rec := &EmbeddingRecord{}
		var kind string
		var owner uuid.NullUUID
		var updated sql.NullTime
		if err := rows.Scan(&rec.EntityID, &kind, &owner, &rec.Vector, &rec.Metadata, &updated); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		rec.Kind = EntityKind(kind)
		if owner.Valid {
			id := owner.UUID
			rec.OwnerID = &id
		}
		rec.UpdatedAt = updated.Time
		records = append(records, rec)
	}
	return records, rows.Err()
}
