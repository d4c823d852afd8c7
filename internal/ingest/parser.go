// Package ingest loads catalog seed files into the stores and the vector index.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
)

// seedNamespace derives stable ids so reloading a seed updates rows in place.
var seedNamespace = uuid.MustParse("6f1c1d8e-3b5a-4d8e-9a52-0c7e2f4b9d31")

// SeedFile is the YAML layout of a catalog seed.
type SeedFile struct {
	Products []SeedProduct `yaml:"products"`
	Users    []SeedUser    `yaml:"users"`
	Orders   []SeedOrder   `yaml:"orders"`
}

// SeedProduct is one catalog entry.
type SeedProduct struct {
	Title          string            `yaml:"title"`
	Brand          string            `yaml:"brand"`
	Category       string            `yaml:"category"`
	Price          float64           `yaml:"price"`
	Rating         float64           `yaml:"rating"`
	RatingCount    int               `yaml:"rating_count"`
	Stock          int               `yaml:"stock"`
	Description    string            `yaml:"description"`
	Features       []string          `yaml:"features"`
	Specifications []SeedSpecSection `yaml:"specifications"`
}

// SeedSpecSection is a named group of specification values.
type SeedSpecSection struct {
	Name   string            `yaml:"name"`
	Values map[string]string `yaml:"values"`
}

// SeedUser is one customer.
type SeedUser struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Phone   string `yaml:"phone"`
	Address string `yaml:"address"`
}

// SeedOrder references its user by email and its items by product title.
type SeedOrder struct {
	Number         string          `yaml:"number"`
	User           string          `yaml:"user"`
	Status         string          `yaml:"status"`
	TrackingNumber string          `yaml:"tracking_number"`
	PlacedDaysAgo  int             `yaml:"placed_days_ago"`
	Items          []SeedOrderItem `yaml:"items"`
}

// SeedOrderItem is one order line.
type SeedOrderItem struct {
	Product  string `yaml:"product"`
	Quantity int    `yaml:"quantity"`
}

// ParsedCatalog is a seed resolved into storage models.
type ParsedCatalog struct {
	Products []*storage.Product
	Users    []*storage.User
	Orders   []*storage.Order
	Errors   []ParseError
}

// ParseError describes a seed entry that was skipped.
type ParseError struct {
	Section string
	Index   int
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s[%d]: %s", e.Section, e.Index, e.Message)
}

// Parser turns seed YAML into storage models.
type Parser struct {
	now func() time.Time
}

// NewParser creates a parser.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// Parse reads a seed document. Malformed YAML is an error; invalid entries
// are skipped and reported in ParsedCatalog.Errors.
func (p *Parser) Parse(r io.Reader) (*ParsedCatalog, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return p.Resolve(seed), nil
}

// Resolve converts seed into storage models with deterministic ids.
func (p *Parser) Resolve(seed SeedFile) *ParsedCatalog {
	out := &ParsedCatalog{}
	now := p.now().UTC()

	byTitle := map[string]*storage.Product{}
	for i, sp := range seed.Products {
		product, err := p.product(sp, now)
		if err != nil {
			out.Errors = append(out.Errors, ParseError{Section: "products", Index: i, Message: err.Error()})
			continue
		}
		key := strings.ToLower(product.Title)
		if _, dup := byTitle[key]; dup {
			out.Errors = append(out.Errors, ParseError{Section: "products", Index: i, Message: "duplicate title " + product.Title})
			continue
		}
		byTitle[key] = product
		out.Products = append(out.Products, product)
	}

	byEmail := map[string]*storage.User{}
	for i, su := range seed.Users {
		email := strings.ToLower(strings.TrimSpace(su.Email))
		if email == "" {
			out.Errors = append(out.Errors, ParseError{Section: "users", Index: i, Message: "email is required"})
			continue
		}
		user := &storage.User{
			ID:        stableID("user", email),
			Name:      su.Name,
			Email:     email,
			Phone:     su.Phone,
			Address:   su.Address,
			CreatedAt: now,
		}
		byEmail[email] = user
		out.Users = append(out.Users, user)
	}

	for i, so := range seed.Orders {
		order, err := p.order(so, byEmail, byTitle, now)
		if err != nil {
			out.Errors = append(out.Errors, ParseError{Section: "orders", Index: i, Message: err.Error()})
			continue
		}
		out.Orders = append(out.Orders, order)
	}
	return out
}

func (p *Parser) product(sp SeedProduct, now time.Time) (*storage.Product, error) {
	category, ok := storage.ParseCategory(sp.Category)
	if !ok {
		return nil, fmt.Errorf("unknown category %q", sp.Category)
	}
	product := &storage.Product{
		ID:          stableID("product", strings.ToLower(strings.TrimSpace(sp.Title))),
		Title:       strings.TrimSpace(sp.Title),
		Brand:       strings.TrimSpace(sp.Brand),
		Category:    category,
		Price:       sp.Price,
		Rating:      sp.Rating,
		RatingCount: sp.RatingCount,
		Stock:       sp.Stock,
		Description: sp.Description,
		Features:    storage.StringList(sp.Features),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, sec := range sp.Specifications {
		product.Specifications.Sections = append(product.Specifications.Sections, storage.SpecSection{Name: sec.Name, Values: sec.Values})
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}
	if product.Rating < 0 || product.Rating > 5 {
		return nil, fmt.Errorf("rating %v out of range", product.Rating)
	}
	return product, nil
}

func (p *Parser) order(so SeedOrder, users map[string]*storage.User, products map[string]*storage.Product, now time.Time) (*storage.Order, error) {
	number := strings.ToUpper(strings.TrimSpace(so.Number))
	if number == "" {
		return nil, fmt.Errorf("number is required")
	}
	user, ok := users[strings.ToLower(strings.TrimSpace(so.User))]
	if !ok {
		return nil, fmt.Errorf("unknown user %q", so.User)
	}
	status := storage.OrderStatus(strings.ToLower(so.Status))
	if status == "" {
		status = storage.OrderStatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", so.Status)
	}

	order := &storage.Order{
		ID:              stableID("order", number),
		Number:          number,
		UserID:          user.ID,
		Status:          status,
		TrackingNumber:  so.TrackingNumber,
		ShippingAddress: user.Address,
		CreatedAt:       now.Add(-time.Duration(so.PlacedDaysAgo) * 24 * time.Hour),
	}
	for _, it := range so.Items {
		product, ok := products[strings.ToLower(strings.TrimSpace(it.Product))]
		if !ok {
			return nil, fmt.Errorf("unknown product %q", it.Product)
		}
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		order.Items = append(order.Items, storage.OrderItem{
			ProductID: product.ID,
			Title:     product.Title,
			Quantity:  qty,
			UnitPrice: product.Price,
		})
		order.Total += product.Price * float64(qty)
	}
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("order %s has no items", number)
	}
	return order, nil
}

func stableID(kind, key string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(kind+":"+key))
}
