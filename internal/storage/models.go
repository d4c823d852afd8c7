// Package storage provides database models and repositories for the commerce assistant.
package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is the closed set of catalog categories.
type Category string

const (
	CategoryLaptops     Category = "Laptops"
	CategorySmartphones Category = "Smartphones"
	CategorySmartTVs    Category = "Smart TVs"
	CategoryWearables   Category = "Wearables"
	CategoryAccessories Category = "Accessories"
)

// Categories returns every catalog category in display order.
func Categories() []Category {
	return []Category{
		CategoryLaptops,
		CategorySmartphones,
		CategorySmartTVs,
		CategoryWearables,
		CategoryAccessories,
	}
}

// ParseCategory resolves a category name or slug. Matching ignores case,
// spaces, underscores and hyphens.
func ParseCategory(s string) (Category, bool) {
	key := categoryKey(s)
	for _, c := range Categories() {
		if categoryKey(string(c)) == key {
			return c, true
		}
	}
	return "", false
}

// Valid reports whether c is one of the closed set.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

func categoryKey(s string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(s)))
}

// OrderStatus represents the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusReturned  OrderStatus = "returned"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

// EntityKind identifies what an embedding record describes.
type EntityKind string

const (
	EntityKindProduct EntityKind = "product"
	EntityKindOrder   EntityKind = "order"
)

// Product is a catalog entry.
type Product struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	Title          string         `json:"title" db:"title"`
	Category       Category       `json:"category" db:"category"`
	Brand          string         `json:"brand" db:"brand"`
	Price          float64        `json:"price" db:"price"`
	Rating         float64        `json:"rating" db:"rating"`
	RatingCount    int            `json:"ratingCount" db:"rating_count"`
	Stock          int            `json:"stock" db:"stock"`
	Description    string         `json:"description,omitempty" db:"description"`
	Specifications Specifications `json:"specifications,omitempty" db:"specifications"`
	Features       StringList     `json:"features,omitempty" db:"features"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
}

// Validate enforces the catalog invariants.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("product title is required")
	}
	if !p.Category.Valid() {
		return fmt.Errorf("invalid product category: %q", p.Category)
	}
	if p.Price < 0 {
		return fmt.Errorf("product price must be >= 0, got %v", p.Price)
	}
	return nil
}

// User is a storefront customer.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Address   string    `json:"address,omitempty" db:"address"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Order is a customer order with its line items.
type Order struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	Number          string      `json:"number" db:"number"`
	UserID          uuid.UUID   `json:"userId" db:"user_id"`
	Status          OrderStatus `json:"status" db:"status"`
	Total           float64     `json:"total" db:"total"`
	ShippingAddress string      `json:"shippingAddress,omitempty" db:"shipping_address"`
	TrackingNumber  string      `json:"trackingNumber,omitempty" db:"tracking_number"`
	Items           []OrderItem `json:"items"`
	CreatedAt       time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time   `json:"updatedAt" db:"updated_at"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID uuid.UUID `json:"productId" db:"product_id"`
	Title     string    `json:"title" db:"title"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice float64   `json:"unitPrice" db:"unit_price"`
}

// EmbeddingRecord is a persisted vector with a denormalized metadata snapshot.
type EmbeddingRecord struct {
	EntityID  uuid.UUID  `json:"entityId" db:"entity_id"`
	Kind      EntityKind `json:"kind" db:"kind"`
	OwnerID   *uuid.UUID `json:"ownerId,omitempty" db:"owner_id"`
	Vector    Vector     `json:"vector" db:"vector"`
	Metadata  Metadata   `json:"metadata,omitempty" db:"metadata"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// Vector is a float32 embedding stored as a JSON array.
type Vector []float32

// Value implements driver.Valuer.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (v *Vector) Scan(src interface{}) error {
	b, err := bytesOf(src)
	if err != nil || b == nil {
		*v = nil
		return err
	}
	var out []float32
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("scan vector: %w", err)
	}
	*v = out
	return nil
}

// StringList is a list of strings stored as a JSON array.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	b, err := bytesOf(src)
	if err != nil || b == nil {
		*l = nil
		return err
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("scan string list: %w", err)
	}
	*l = out
	return nil
}

// SpecSection is one named group of specification values. The unnamed
// section holds the values of a flat specification map.
type SpecSection struct {
	Name   string            `json:"section,omitempty"`
	Values map[string]string `json:"values"`
}

// Specifications holds free-form product specs. On the wire it may be
// absent, a flat key/value map, or a list of sectioned maps.
type Specifications struct {
	Sections []SpecSection
}

// Empty reports whether there are no specification values.
func (s Specifications) Empty() bool {
	for _, sec := range s.Sections {
		if len(sec.Values) > 0 {
			return false
		}
	}
	return true
}

// Flatten merges all sections into one map. Keys from named sections are
// prefixed with the section name.
func (s Specifications) Flatten() map[string]string {
	out := make(map[string]string)
	for _, sec := range s.Sections {
		for k, v := range sec.Values {
			key := k
			if sec.Name != "" {
				key = sec.Name + "." + k
			}
			out[key] = v
		}
	}
	return out
}

// Text renders every section name, key and value as lowercase text for
// keyword matching.
func (s Specifications) Text() string {
	var parts []string
	for _, sec := range s.Sections {
		if sec.Name != "" {
			parts = append(parts, sec.Name)
		}
		keys := make([]string, 0, len(sec.Values))
		for k := range sec.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+" "+sec.Values[k])
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// MarshalJSON writes a flat map for a single unnamed section and a list of
// sections otherwise.
func (s Specifications) MarshalJSON() ([]byte, error) {
	if s.Empty() {
		return []byte("null"), nil
	}
	if len(s.Sections) == 1 && s.Sections[0].Name == "" {
		return json.Marshal(s.Sections[0].Values)
	}
	return json.Marshal(s.Sections)
}

// UnmarshalJSON accepts null, a flat or nested map, or a list of sections.
func (s *Specifications) UnmarshalJSON(data []byte) error {
	s.Sections = nil

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode specifications: %w", err)
	}

	switch v := raw.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		s.Sections = sectionsFromMap("", v)
	case []interface{}:
		for _, el := range v {
			obj, ok := el.(map[string]interface{})
			if !ok {
				continue
			}
			s.Sections = append(s.Sections, sectionsFromListEntry(obj)...)
		}
	default:
		return fmt.Errorf("unsupported specifications shape %T", raw)
	}
	return nil
}

// sectionsFromListEntry handles {"section": name, "values": {...}} as well as
// plain maps inside a list.
func sectionsFromListEntry(obj map[string]interface{}) []SpecSection {
	name, _ := firstString(obj, "section", "title", "name")
	for _, key := range []string{"values", "specs", "specifications"} {
		if inner, ok := obj[key].(map[string]interface{}); ok {
			return sectionsFromMap(name, inner)
		}
	}
	return sectionsFromMap("", obj)
}

func sectionsFromMap(name string, m map[string]interface{}) []SpecSection {
	flat := SpecSection{Name: name, Values: map[string]string{}}
	var nested []SpecSection

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch val := m[k].(type) {
		case map[string]interface{}:
			nested = append(nested, sectionsFromMap(k, val)...)
		default:
			flat.Values[k] = scalarString(val)
		}
	}

	if len(flat.Values) == 0 {
		return nested
	}
	return append([]SpecSection{flat}, nested...)
}

func firstString(obj map[string]interface{}, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			return s, true
		}
	}
	return "", false
}

func scalarString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, el := range val {
			parts = append(parts, scalarString(el))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// Value implements driver.Valuer.
func (s Specifications) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *Specifications) Scan(src interface{}) error {
	b, err := bytesOf(src)
	if err != nil || b == nil {
		s.Sections = nil
		return err
	}
	return s.UnmarshalJSON(b)
}

// Metadata is a string map stored as a JSON object.
type Metadata map[string]string

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src interface{}) error {
	b, err := bytesOf(src)
	if err != nil || b == nil {
		*m = nil
		return err
	}
	out := map[string]string{}
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("scan metadata: %w", err)
	}
	*m = out
	return nil
}

func bytesOf(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported scan source %T", src)
	}
}
