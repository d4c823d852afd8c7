package fusion

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/intent"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/retrieval"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
)

func TestTypeFor_OneToOne(t *testing.T) {
	seen := map[Type]retrieval.Route{}
	for _, route := range retrieval.Routes() {
		typ := TypeFor(route)
		if prev, dup := seen[typ]; dup {
			t.Fatalf("routes %s and %s both map to %s", prev, route, typ)
		}
		seen[typ] = route
	}
	assert.Len(t, seen, len(retrieval.Routes()))

	assert.Equal(t, TypeProductComparison, TypeFor(retrieval.RouteComparison))
	assert.Equal(t, TypeAuthRequired, TypeFor(retrieval.RouteLoginRequired))
	assert.Equal(t, TypeGeneral, TypeFor(retrieval.RouteNoRetrieval))
	assert.Equal(t, TypeGeneral, TypeFor(retrieval.Route("mystery")))
}

func TestFuse_ProductRoute(t *testing.T) {
	p := &storage.Product{ID: uuid.New(), Title: "Pixel 8", Category: storage.CategorySmartphones}
	rc := retrieval.RoutedContext{
		Intent:         intent.ProductSemantic{Meta: intent.Meta{Score: 0.6}},
		Route:          retrieval.RouteSemanticSearch,
		RetrievalType:  retrieval.RetrievalHybrid,
		Items:          []retrieval.Item{retrieval.ProductItem(p)},
		AppliedFilters: map[string]interface{}{"category": "smartphones"},
	}

	fc := Fuse(rc, "")

	assert.Equal(t, TypeProductList, fc.Type)
	assert.Equal(t, retrieval.RouteSemanticSearch, fc.Route)
	assert.Equal(t, retrieval.RetrievalHybrid, fc.RetrievalType)
	require.Len(t, fc.Items, 1)
	assert.Equal(t, p.ID, fc.Items[0].Product.ID)
	assert.Equal(t, 1, fc.Metadata.ItemCount)
	assert.Equal(t, "smartphones", fc.Metadata.AppliedFilters["category"])
	assert.Equal(t, intent.KindProductSemantic, fc.Intent.Type)
	assert.Empty(t, fc.Error)
}

func TestFuse_NormalizesEmptyContext(t *testing.T) {
	fc := Fuse(retrieval.RoutedContext{Route: retrieval.RouteNoRetrieval}, "")

	assert.NotNil(t, fc.Items)
	assert.Empty(t, fc.Items)
	assert.NotNil(t, fc.Metadata.AppliedFilters)
	assert.Equal(t, retrieval.RetrievalNone, fc.RetrievalType)
	assert.Equal(t, intent.KindGeneral, fc.Intent.Type)

	raw, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"items":[]`)
	assert.NotContains(t, string(raw), `"userId"`)
}

func TestFuse_DropsEmptyItems(t *testing.T) {
	o := &storage.Order{ID: uuid.New(), Number: "ORD-1"}
	rc := retrieval.RoutedContext{
		Intent: intent.OrderTracking{},
		Route:  retrieval.RouteOrderTracking,
		Items:  []retrieval.Item{{Kind: retrieval.ItemOrder}, retrieval.OrderItem(o)},
	}

	fc := Fuse(rc, "user-1")

	require.Len(t, fc.Items, 1)
	assert.Equal(t, "ORD-1", fc.Items[0].Order.Number)
	assert.Equal(t, TypeOrderStatus, fc.Type)
	assert.Equal(t, "user-1", fc.UserID)
}

func TestFuse_CarriesClarificationAndError(t *testing.T) {
	rc := retrieval.RoutedContext{
		Intent:        intent.ProductComparison{},
		Route:         retrieval.RouteComparison,
		Clarification: "Which products would you like to compare?",
	}
	fc := Fuse(rc, "")
	assert.Equal(t, "Which products would you like to compare?", fc.Metadata.Clarification)

	failed := Fuse(retrieval.RoutedContext{Route: retrieval.RouteNoRetrieval, Error: "list products: db down"}, "")
	assert.Equal(t, "list products: db down", failed.Error)
	assert.Equal(t, TypeGeneral, failed.Type)
}

// explodingIntent panics when its view is built.
type explodingIntent struct{ intent.General }

func (explodingIntent) Kind() intent.Kind { panic("bad intent") }

func TestFuse_RecoversToGeneral(t *testing.T) {
	p := &storage.Product{ID: uuid.New(), Title: "Pixel 8"}
	rc := retrieval.RoutedContext{
		Intent: explodingIntent{},
		Route:  retrieval.RouteExactProduct,
		Items:  []retrieval.Item{retrieval.ProductItem(p)},
	}

	fc := Fuse(rc, "u")

	assert.Equal(t, TypeGeneral, fc.Type)
	assert.Empty(t, fc.Items)
	assert.NotNil(t, fc.Items)
	assert.Contains(t, fc.Error, "bad intent")
	assert.Equal(t, "u", fc.UserID)
}
