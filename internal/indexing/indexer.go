// Package indexing keeps the vector index in step with the catalog and
// order stores.
package indexing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/specs"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/vector"
)

// Config controls reindexing throughput.
type Config struct {
	Workers   int
	BatchSize int
}

// Stats summarizes a reindex run.
type Stats struct {
	Products int `json:"products"`
	Orders   int `json:"orders"`
	// Skipped counts entities whose embedding was all zeros.
	Skipped int `json:"skipped"`
}

// ProgressFunc receives the number of processed entities out of total.
type ProgressFunc func(done, total int)

// Indexer embeds products and orders and upserts them into a vector index.
type Indexer struct {
	index    vector.Index
	embedder embedding.Embedder
	logger   *observability.Logger
	config   Config
}

// NewIndexer creates an indexer.
func NewIndexer(index vector.Index, embedder embedding.Embedder, logger *observability.Logger, cfg Config) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &Indexer{index: index, embedder: embedder, logger: logger, config: cfg}
}

// ProductText is the text embedded for a product.
func ProductText(p *storage.Product) string {
	return strings.Join(strings.Fields(specs.ProductText(p)), " ")
}

// OrderText is the text embedded for an order: its number, status and the
// titles of its items.
func OrderText(o *storage.Order) string {
	parts := []string{o.Number, string(o.Status)}
	for _, it := range o.Items {
		parts = append(parts, it.Title)
	}
	return strings.Join(parts, " ")
}

// IndexProduct embeds and upserts one product.
func (ix *Indexer) IndexProduct(ctx context.Context, p *storage.Product) error {
	vec, err := ix.embedder.EmbedSingle(ctx, ProductText(p))
	if err != nil {
		return fmt.Errorf("embed product %s: %w", p.ID, err)
	}
	_, err = ix.upsert(ctx, productRecord(p, vec))
	return err
}

// IndexOrder embeds and upserts one order under its owner.
func (ix *Indexer) IndexOrder(ctx context.Context, o *storage.Order) error {
	vec, err := ix.embedder.EmbedSingle(ctx, OrderText(o))
	if err != nil {
		return fmt.Errorf("embed order %s: %w", o.Number, err)
	}
	_, err = ix.upsert(ctx, orderRecord(o, vec))
	return err
}

type job struct {
	text   string
	record func([]float32) vector.Record
	order  bool
}

// ReindexAll embeds every product and order in batches, running up to
// Workers batches at once. The first failure cancels the remaining batches.
func (ix *Indexer) ReindexAll(ctx context.Context, products []*storage.Product, orders []*storage.Order, progress ProgressFunc) (Stats, error) {
	jobs := make([]job, 0, len(products)+len(orders))
	for _, p := range products {
		jobs = append(jobs, job{text: ProductText(p), record: func(v []float32) vector.Record { return productRecord(p, v) }})
	}
	for _, o := range orders {
		jobs = append(jobs, job{text: OrderText(o), record: func(v []float32) vector.Record { return orderRecord(o, v) }, order: true})
	}

	var (
		mu    sync.Mutex
		stats Stats
		done  int
	)
	total := len(jobs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.config.Workers)
	for start := 0; start < total; start += ix.config.BatchSize {
		batch := jobs[start:min(start+ix.config.BatchSize, total)]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, j := range batch {
				texts[i] = j.text
			}
			vecs, err := ix.embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch: %w", err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("embed batch: got %d vectors for %d texts", len(vecs), len(batch))
			}

			var local Stats
			for i, j := range batch {
				stored, err := ix.upsert(gctx, j.record(vecs[i]))
				if err != nil {
					return err
				}
				switch {
				case !stored:
					local.Skipped++
				case j.order:
					local.Orders++
				default:
					local.Products++
				}
			}

			mu.Lock()
			defer mu.Unlock()
			stats.Products += local.Products
			stats.Orders += local.Orders
			stats.Skipped += local.Skipped
			done += len(batch)
			if progress != nil {
				progress(done, total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	ix.logger.Info().
		Int("products", stats.Products).
		Int("orders", stats.Orders).
		Int("skipped", stats.Skipped).
		Str("model", ix.embedder.Model()).
		Msg("Reindex complete")
	return stats, nil
}

// upsert stores rec unless its vector is degenerate.
func (ix *Indexer) upsert(ctx context.Context, rec vector.Record) (bool, error) {
	if vector.IsZero(rec.Vector) {
		ix.logger.Debug().Str("entity_id", rec.EntityID.String()).Msg("Skipping zero embedding")
		return false, nil
	}
	if err := ix.index.Upsert(ctx, rec); err != nil {
		return false, fmt.Errorf("upsert %s %s: %w", rec.Kind, rec.EntityID, err)
	}
	return true, nil
}

func productRecord(p *storage.Product, vec []float32) vector.Record {
	return vector.Record{
		EntityID: p.ID,
		Kind:     storage.EntityKindProduct,
		Vector:   vec,
		Metadata: map[string]string{
			"title":    p.Title,
			"brand":    p.Brand,
			"category": string(p.Category),
		},
	}
}

func orderRecord(o *storage.Order, vec []float32) vector.Record {
	owner := o.UserID
	return vector.Record{
		EntityID: o.ID,
		Kind:     storage.EntityKindOrder,
		OwnerID:  &owner,
		Vector:   vec,
		Metadata: map[string]string{
			"number": o.Number,
			"status": string(o.Status),
		},
	}
}
