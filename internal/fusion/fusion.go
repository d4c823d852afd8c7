// Package fusion turns routed retrieval output into the single envelope the
// answer generator consumes.
package fusion

import (
	"fmt"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/intent"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/retrieval"
)

// Type is the envelope type the answer generator switches on.
type Type string

const (
	TypeProductList           Type = "product_list"
	TypeProductDetail         Type = "product_detail"
	TypeProductComparison     Type = "product_comparison"
	TypeProductRecommendation Type = "product_recommendation"
	TypeOrderStatus           Type = "order_status"
	TypeOrderSupport          Type = "order_support"
	TypeAccount               Type = "account"
	TypeAuthRequired          Type = "auth_required"
	TypeGeneral               Type = "general"
)

var routeTypes = map[retrieval.Route]Type{
	retrieval.RouteSemanticSearch: TypeProductList,
	retrieval.RouteExactProduct:   TypeProductDetail,
	retrieval.RouteComparison:     TypeProductComparison,
	retrieval.RouteRecommendation: TypeProductRecommendation,
	retrieval.RouteOrderTracking:  TypeOrderStatus,
	retrieval.RouteOrderSupport:   TypeOrderSupport,
	retrieval.RouteUserAccount:    TypeAccount,
	retrieval.RouteLoginRequired:  TypeAuthRequired,
	retrieval.RouteNoRetrieval:    TypeGeneral,
}

// TypeFor maps a route to its envelope type. Unknown routes are general.
func TypeFor(route retrieval.Route) Type {
	if t, ok := routeTypes[route]; ok {
		return t
	}
	return TypeGeneral
}

// Metadata describes how the items were retrieved.
type Metadata struct {
	AppliedFilters map[string]interface{} `json:"appliedFilters"`
	Clarification  string                 `json:"clarification,omitempty"`
	ItemCount      int                    `json:"itemCount"`
}

// FusedContext is the contract with the answer generator.
type FusedContext struct {
	Intent        intent.View             `json:"intent"`
	Route         retrieval.Route         `json:"route"`
	Type          Type                    `json:"type"`
	Items         []retrieval.Item        `json:"items"`
	RetrievalType retrieval.RetrievalType `json:"retrievalType"`
	Metadata      Metadata                `json:"metadata"`
	UserID        string                  `json:"userId,omitempty"`
	Error         string                  `json:"error,omitempty"`
}

// Fuse normalizes rc. It never panics: a failure yields a general envelope
// with no items and the error recorded.
func Fuse(rc retrieval.RoutedContext, userID string) (fc FusedContext) {
	defer func() {
		if r := recover(); r != nil {
			fc = FusedContext{
				Intent:        intent.View{Type: intent.KindGeneral, Slots: map[string]interface{}{}},
				Route:         rc.Route,
				Type:          TypeGeneral,
				Items:         []retrieval.Item{},
				RetrievalType: retrieval.RetrievalNone,
				Metadata:      Metadata{AppliedFilters: map[string]interface{}{}},
				UserID:        userID,
				Error:         fmt.Sprintf("fusion failed: %v", r),
			}
		}
	}()

	in := rc.Intent
	if in == nil {
		in = intent.General{}
	}

	items := make([]retrieval.Item, 0, len(rc.Items))
	for _, it := range rc.Items {
		if it.Product != nil || it.Order != nil || it.User != nil {
			items = append(items, it)
		}
	}
	filters := rc.AppliedFilters
	if filters == nil {
		filters = map[string]interface{}{}
	}
	rt := rc.RetrievalType
	if rt == "" {
		rt = retrieval.RetrievalNone
	}

	return FusedContext{
		Intent:        intent.ToView(in),
		Route:         rc.Route,
		Type:          TypeFor(rc.Route),
		Items:         items,
		RetrievalType: rt,
		Metadata: Metadata{
			AppliedFilters: filters,
			Clarification:  rc.Clarification,
			ItemCount:      len(items),
		},
		UserID: userID,
		Error:  rc.Error,
	}
}
