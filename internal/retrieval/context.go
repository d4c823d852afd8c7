// Package retrieval routes classified queries to the catalog, order, user and
// vector stores.
package retrieval

import (
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/intent"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
)

// Route names the retrieval procedure that produced a context.
type Route string

const (
	RouteSemanticSearch Route = "semantic_search"
	RouteExactProduct   Route = "exact_product"
	RouteComparison     Route = "comparison"
	RouteRecommendation Route = "recommendation"
	RouteOrderTracking  Route = "order_tracking"
	RouteOrderSupport   Route = "order_support"
	RouteUserAccount    Route = "user_account"
	RouteLoginRequired  Route = "login_required"
	RouteNoRetrieval    Route = "no_retrieval"
)

// Routes returns every route.
func Routes() []Route {
	return []Route{
		RouteSemanticSearch, RouteExactProduct, RouteComparison, RouteRecommendation,
		RouteOrderTracking, RouteOrderSupport, RouteUserAccount, RouteLoginRequired, RouteNoRetrieval,
	}
}

// RetrievalType describes which kind of lookup produced the items.
type RetrievalType string

const (
	RetrievalStructured RetrievalType = "structured"
	RetrievalText       RetrievalType = "text"
	RetrievalVector     RetrievalType = "vector"
	RetrievalHybrid     RetrievalType = "hybrid"
	RetrievalNone       RetrievalType = "none"
)

// ItemKind identifies the record an Item wraps.
type ItemKind string

const (
	ItemProduct ItemKind = "product"
	ItemOrder   ItemKind = "order"
	ItemUser    ItemKind = "user"
)

// Item is one retrieved record. Exactly one of Product, Order or User is set.
type Item struct {
	Kind         ItemKind         `json:"kind"`
	Product      *storage.Product `json:"product,omitempty"`
	Order        *storage.Order   `json:"order,omitempty"`
	User         *storage.User    `json:"user,omitempty"`
	Score        float64          `json:"score,omitempty"`
	MatchedSpecs []string         `json:"matchedSpecs,omitempty"`
}

// ProductItem wraps p.
func ProductItem(p *storage.Product) Item { return Item{Kind: ItemProduct, Product: p} }

// OrderItem wraps o.
func OrderItem(o *storage.Order) Item { return Item{Kind: ItemOrder, Order: o} }

// UserItem wraps u.
func UserItem(u *storage.User) Item { return Item{Kind: ItemUser, User: u} }

// RoutedContext is the router's output for one query. Items is never nil.
type RoutedContext struct {
	Intent         intent.Intent
	Route          Route
	RetrievalType  RetrievalType
	Items          []Item
	AppliedFilters map[string]interface{}
	// Clarification asks the caller for more detail when the query could not
	// be resolved unambiguously.
	Clarification string
	// Error records a failure that forced the no-retrieval fallback.
	Error string
}

func newContext(in intent.Intent, route Route, rt RetrievalType) RoutedContext {
	return RoutedContext{
		Intent:         in,
		Route:          route,
		RetrievalType:  rt,
		Items:          []Item{},
		AppliedFilters: map[string]interface{}{},
	}
}

func productItems(products []*storage.Product) []Item {
	items := make([]Item, 0, len(products))
	for _, p := range products {
		if p != nil {
			items = append(items, ProductItem(p))
		}
	}
	return items
}

func orderItems(orders []*storage.Order) []Item {
	items := make([]Item, 0, len(orders))
	for _, o := range orders {
		if o != nil {
			items = append(items, OrderItem(o))
		}
	}
	return items
}
