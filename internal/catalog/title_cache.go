// Package catalog holds the time-bounded snapshot of product titles used by
// text matching.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/textmatch"
)

// DefaultTTL bounds how stale a snapshot may get before the next read reloads it.
const DefaultTTL = 5 * time.Minute

// Entry is the lightweight projection of one product.
type Entry struct {
	ID         uuid.UUID
	Title      string
	Brand      string
	Category   storage.Category
	SearchText string
}

// Snapshot is an immutable view of the catalog titles at one point in time.
type Snapshot struct {
	Entries  []Entry
	LoadedAt time.Time
}

// TitleSource loads the title projection of the full catalog.
type TitleSource interface {
	ListTitles(ctx context.Context) ([]storage.TitleRecord, error)
}

// TitleCache lazily loads and refreshes the title snapshot. Readers never
// block each other; a refresh swaps the snapshot pointer.
type TitleCache struct {
	source TitleSource
	ttl    time.Duration

	current atomic.Pointer[Snapshot]
	loads   singleflight.Group
}

// NewTitleCache creates a cache over source. A non-positive ttl uses DefaultTTL.
func NewTitleCache(source TitleSource, ttl time.Duration) *TitleCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TitleCache{source: source, ttl: ttl}
}

// GetOrRefresh returns the current snapshot, reloading it first if it is
// missing or older than the TTL at now. When a reload fails and an older
// snapshot exists, the stale snapshot is returned along with the error.
func (c *TitleCache) GetOrRefresh(ctx context.Context, now time.Time) (*Snapshot, error) {
	if snap := c.current.Load(); snap != nil && now.Sub(snap.LoadedAt) < c.ttl {
		return snap, nil
	}

	// Concurrent misses share one load.
	v, err, _ := c.loads.Do("titles", func() (interface{}, error) {
		return c.load(ctx, now)
	})
	snap, _ := v.(*Snapshot)
	return snap, err
}

func (c *TitleCache) load(ctx context.Context, now time.Time) (*Snapshot, error) {
	stale := c.current.Load()
	if stale != nil && now.Sub(stale.LoadedAt) < c.ttl {
		return stale, nil
	}

	records, err := c.source.ListTitles(ctx)
	if err != nil {
		if stale != nil {
			return stale, fmt.Errorf("refresh title cache: %w", err)
		}
		return &Snapshot{Entries: []Entry{}, LoadedAt: now}, fmt.Errorf("load title cache: %w", err)
	}

	snap := &Snapshot{Entries: make([]Entry, 0, len(records)), LoadedAt: now}
	for _, r := range records {
		snap.Entries = append(snap.Entries, newEntry(r))
	}
	c.current.Store(snap)
	return snap, nil
}

// Invalidate drops the snapshot so the next read reloads it.
func (c *TitleCache) Invalidate() {
	c.current.Store(nil)
}

func newEntry(r storage.TitleRecord) Entry {
	parts := []string{r.Brand, r.Title, string(r.Category)}
	return Entry{
		ID:         r.ID,
		Title:      r.Title,
		Brand:      r.Brand,
		Category:   r.Category,
		SearchText: textmatch.Normalize(strings.Join(parts, " ")),
	}
}

// ByCategory returns the entries in one category.
func (s *Snapshot) ByCategory(category storage.Category) []Entry {
	out := []Entry{}
	for _, e := range s.Entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// Brands returns the distinct brands in the snapshot, lowercased.
func (s *Snapshot) Brands() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, e := range s.Entries {
		b := strings.ToLower(strings.TrimSpace(e.Brand))
		if b != "" && !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}
