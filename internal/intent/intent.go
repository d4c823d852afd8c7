// Package intent classifies shopping queries into one intent with slots.
package intent

import (
	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
)

// Kind names an intent.
type Kind string

const (
	KindOrderTracking         Kind = "order_tracking"
	KindOrderSupport          Kind = "order_support"
	KindProductComparison     Kind = "product_comparison"
	KindProductRecommendation Kind = "product_recommendation"
	KindProductExact          Kind = "product_exact"
	KindProductSemantic       Kind = "product_semantic"
	KindUserAccount           Kind = "user_account"
	KindGeneral               Kind = "general"
)

// Kinds returns every intent kind.
func Kinds() []Kind {
	return []Kind{
		KindOrderTracking, KindOrderSupport, KindProductComparison, KindProductRecommendation,
		KindProductExact, KindProductSemantic, KindUserAccount, KindGeneral,
	}
}

// ParseKind returns the kind named by s.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Intent is the classification of one query. The concrete types below are
// the only implementations.
type Intent interface {
	Kind() Kind
	Confidence() float64
	Reason() string
	// Slots returns the extracted values for logging and the response envelope.
	Slots() map[string]interface{}
	isIntent()
}

// Meta carries the fields every intent has.
type Meta struct {
	Score float64
	Why   string
}

// Confidence returns the detector's ordinal confidence in [0,1].
func (m Meta) Confidence() float64 { return m.Score }

// Reason explains which rule produced the intent.
func (m Meta) Reason() string { return m.Why }

func (Meta) isIntent() {}

// OrderTracking asks where an order is.
type OrderTracking struct {
	Meta
	// OrderRef is an order number like "ORD-10042" or an order UUID.
	OrderRef string
}

// OrderSupport asks for help with an existing order.
type OrderSupport struct {
	Meta
	OrderRef string
}

// ProductComparison asks to compare named products.
type ProductComparison struct {
	Meta
	// ProductIDs is set only when every name resolved to a distinct product.
	ProductIDs   []uuid.UUID
	ProductNames []string
	Category     *storage.Category
}

// ProductRecommendation asks for suggestions under constraints.
type ProductRecommendation struct {
	Meta
	Category  *storage.Category
	MaxPrice  *float64
	MinRating *float64
	Brands    []string
	UseCases  []string
}

// ProductExact refers to one known product.
type ProductExact struct {
	Meta
	ProductID uuid.UUID
	Name      string
	// SKUIndex is the 1-based position used to pick among several partial
	// matches, when one was given.
	SKUIndex *int
}

// ProductSemantic is a free-form product search.
type ProductSemantic struct {
	Meta
	Category *storage.Category
}

// UserAccount asks about the caller's own profile.
type UserAccount struct {
	Meta
}

// General is anything else.
type General struct {
	Meta
}

func (OrderTracking) Kind() Kind         { return KindOrderTracking }
func (OrderSupport) Kind() Kind          { return KindOrderSupport }
func (ProductComparison) Kind() Kind     { return KindProductComparison }
func (ProductRecommendation) Kind() Kind { return KindProductRecommendation }
func (ProductExact) Kind() Kind          { return KindProductExact }
func (ProductSemantic) Kind() Kind       { return KindProductSemantic }
func (UserAccount) Kind() Kind           { return KindUserAccount }
func (General) Kind() Kind               { return KindGeneral }

func (i OrderTracking) Slots() map[string]interface{} {
	return optional(map[string]interface{}{}, "orderId", i.OrderRef)
}

func (i OrderSupport) Slots() map[string]interface{} {
	return optional(map[string]interface{}{}, "orderId", i.OrderRef)
}

func (i ProductComparison) Slots() map[string]interface{} {
	s := map[string]interface{}{}
	if len(i.ProductIDs) > 0 {
		s["productIds"] = i.ProductIDs
	}
	if len(i.ProductNames) > 0 {
		s["productNames"] = i.ProductNames
	}
	return withCategory(s, i.Category)
}

func (i ProductRecommendation) Slots() map[string]interface{} {
	s := withCategory(map[string]interface{}{}, i.Category)
	if i.MaxPrice != nil {
		s["maxPrice"] = *i.MaxPrice
	}
	if i.MinRating != nil {
		s["minRating"] = *i.MinRating
	}
	if len(i.Brands) > 0 {
		s["brands"] = i.Brands
	}
	if len(i.UseCases) > 0 {
		s["useCases"] = i.UseCases
	}
	return s
}

func (i ProductExact) Slots() map[string]interface{} {
	s := map[string]interface{}{}
	if i.ProductID != uuid.Nil {
		s["productId"] = i.ProductID
	}
	if i.SKUIndex != nil {
		s["skuIndex"] = *i.SKUIndex
	}
	return optional(s, "productName", i.Name)
}

func (i ProductSemantic) Slots() map[string]interface{} {
	return withCategory(map[string]interface{}{}, i.Category)
}

func (UserAccount) Slots() map[string]interface{} { return map[string]interface{}{} }
func (General) Slots() map[string]interface{}     { return map[string]interface{}{} }

func optional(s map[string]interface{}, key, value string) map[string]interface{} {
	if value != "" {
		s[key] = value
	}
	return s
}

func withCategory(s map[string]interface{}, c *storage.Category) map[string]interface{} {
	if c != nil {
		s["category"] = string(*c)
	}
	return s
}

// View is the JSON form of an intent.
type View struct {
	Type       Kind                   `json:"type"`
	Confidence float64                `json:"confidence"`
	Reason     string                 `json:"reason"`
	Slots      map[string]interface{} `json:"slots,omitempty"`
}

// ToView flattens in for serialization.
func ToView(in Intent) View {
	return View{Type: in.Kind(), Confidence: in.Confidence(), Reason: in.Reason(), Slots: in.Slots()}
}

// CategoryOf returns the category slot of in, if it has one.
func CategoryOf(in Intent) *storage.Category {
	switch v := in.(type) {
	case ProductComparison:
		return v.Category
	case ProductRecommendation:
		return v.Category
	case ProductSemantic:
		return v.Category
	}
	return nil
}

// Coerce returns an intent of kind k. When in already has that kind it is
// returned unchanged; otherwise a new intent of kind k keeps in's confidence
// and any category or order reference the two kinds share.
func Coerce(in Intent, k Kind) Intent {
	if in.Kind() == k {
		return in
	}
	meta := Meta{Score: in.Confidence(), Why: "caller hint: " + string(k)}
	cat := CategoryOf(in)
	var orderRef string
	switch v := in.(type) {
	case OrderTracking:
		orderRef = v.OrderRef
	case OrderSupport:
		orderRef = v.OrderRef
	}

	switch k {
	case KindOrderTracking:
		return OrderTracking{Meta: meta, OrderRef: orderRef}
	case KindOrderSupport:
		return OrderSupport{Meta: meta, OrderRef: orderRef}
	case KindProductComparison:
		return ProductComparison{Meta: meta, Category: cat}
	case KindProductRecommendation:
		return ProductRecommendation{Meta: meta, Category: cat}
	case KindProductExact:
		return ProductExact{Meta: meta}
	case KindProductSemantic:
		return ProductSemantic{Meta: meta, Category: cat}
	case KindUserAccount:
		return UserAccount{Meta: meta}
	default:
		return General{Meta: meta}
	}
}
