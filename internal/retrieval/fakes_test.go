package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
)

// memCatalog is an in-memory Catalog with the repository's ordering.
type memCatalog struct {
	mu       sync.Mutex
	products []*storage.Product
	err      error
	calls    []string
}

func newMemCatalog(products ...*storage.Product) *memCatalog {
	return &memCatalog{products: products}
}

func (c *memCatalog) record(call string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return c.err
}

func (c *memCatalog) GetByID(ctx context.Context, id uuid.UUID) (*storage.Product, error) {
	if err := c.record("GetByID"); err != nil {
		return nil, err
	}
	for _, p := range c.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (c *memCatalog) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*storage.Product, error) {
	if err := c.record("GetByIDs"); err != nil {
		return nil, err
	}
	var out []*storage.Product
	for _, p := range c.products {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (c *memCatalog) ListAll(ctx context.Context) ([]*storage.Product, error) {
	if err := c.record("ListAll"); err != nil {
		return nil, err
	}
	return c.where(func(*storage.Product) bool { return true }, 0), nil
}

func (c *memCatalog) ListByCategory(ctx context.Context, category storage.Category) ([]*storage.Product, error) {
	if err := c.record("ListByCategory"); err != nil {
		return nil, err
	}
	return c.where(func(p *storage.Product) bool { return p.Category == category }, 0), nil
}

func (c *memCatalog) Filter(ctx context.Context, f storage.ProductFilter) ([]*storage.Product, error) {
	if err := c.record("Filter"); err != nil {
		return nil, err
	}
	return c.where(func(p *storage.Product) bool {
		if f.Category != nil && p.Category != *f.Category {
			return false
		}
		if len(f.Brands) > 0 {
			ok := false
			for _, b := range f.Brands {
				ok = ok || strings.EqualFold(b, p.Brand)
			}
			if !ok {
				return false
			}
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			return false
		}
		if f.MinRating != nil && p.Rating < *f.MinRating {
			return false
		}
		return true
	}, f.Limit), nil
}

func (c *memCatalog) TopRated(ctx context.Context, category *storage.Category, limit int) ([]*storage.Product, error) {
	return c.Filter(ctx, storage.ProductFilter{Category: category, Limit: limit})
}

func (c *memCatalog) MatchTitle(ctx context.Context, terms []string, limit int) ([]*storage.Product, error) {
	if err := c.record("MatchTitle"); err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return []*storage.Product{}, nil
	}
	return c.where(func(p *storage.Product) bool {
		title := strings.ToLower(p.Title)
		for _, t := range terms {
			if !strings.Contains(title, strings.ToLower(t)) {
				return false
			}
		}
		return true
	}, limit), nil
}

func (c *memCatalog) SearchText(ctx context.Context, terms []string, category *storage.Category, limit int) ([]*storage.Product, error) {
	if err := c.record("SearchText"); err != nil {
		return nil, err
	}
	return c.where(func(p *storage.Product) bool {
		if category != nil && p.Category != *category {
			return false
		}
		text := strings.ToLower(p.Title + " " + p.Description + " " + p.Specifications.Text() + " " + strings.Join(p.Features, " "))
		for _, t := range terms {
			if strings.Contains(text, strings.ToLower(t)) {
				return true
			}
		}
		return false
	}, limit), nil
}

func (c *memCatalog) where(keep func(*storage.Product) bool, limit int) []*storage.Product {
	out := []*storage.Product{}
	for _, p := range c.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.RatingCount != b.RatingCount {
			return a.RatingCount > b.RatingCount
		}
		return a.Price < b.Price
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type memOrders struct {
	orders []*storage.Order
	err    error
}

func (o *memOrders) GetByID(ctx context.Context, id uuid.UUID) (*storage.Order, error) {
	if o.err != nil {
		return nil, o.err
	}
	for _, ord := range o.orders {
		if ord.ID == id {
			return ord, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (o *memOrders) GetByNumber(ctx context.Context, number string) (*storage.Order, error) {
	if o.err != nil {
		return nil, o.err
	}
	for _, ord := range o.orders {
		if strings.EqualFold(ord.Number, number) {
			return ord, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (o *memOrders) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*storage.Order, error) {
	if o.err != nil {
		return nil, o.err
	}
	out := []*storage.Order{}
	for _, ord := range o.orders {
		if ord.UserID == userID {
			out = append(out, ord)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memUsers struct {
	users map[uuid.UUID]*storage.User
}

func (u *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*storage.User, error) {
	if user, ok := u.users[id]; ok {
		return user, nil
	}
	return nil, storage.ErrNotFound
}

// panicCatalog fails every call with a panic.
type panicCatalog struct{ memCatalog }

func (*panicCatalog) ListAll(ctx context.Context) ([]*storage.Product, error) {
	panic("catalog exploded")
}

func (*panicCatalog) ListByCategory(ctx context.Context, category storage.Category) ([]*storage.Product, error) {
	panic("catalog exploded")
}

func product(title, brand string, category storage.Category, price, rating float64, ratingCount int) *storage.Product {
	return &storage.Product{
		ID:          uuid.New(),
		Title:       title,
		Brand:       brand,
		Category:    category,
		Price:       price,
		Rating:      rating,
		RatingCount: ratingCount,
		Stock:       10,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func withSpecs(p *storage.Product, values map[string]string) *storage.Product {
	p.Specifications = storage.Specifications{Sections: []storage.SpecSection{{Values: values}}}
	return p
}

func order(number string, user uuid.UUID, age time.Duration, titles ...string) *storage.Order {
	o := &storage.Order{
		ID:              uuid.New(),
		Number:          number,
		UserID:          user,
		Status:          storage.OrderStatusShipped,
		ShippingAddress: "12 Marine Drive, Mumbai",
		CreatedAt:       time.Now().Add(-age),
	}
	for _, t := range titles {
		o.Items = append(o.Items, storage.OrderItem{ProductID: uuid.New(), Title: t, Quantity: 1})
	}
	return o
}
