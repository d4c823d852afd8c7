package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const productColumns = `id, title, category, brand, price, rating, rating_count, stock,
	description, specifications, features, created_at, updated_at`

// Ranking used by every "top rated" style listing.
const productRankOrder = `ORDER BY rating DESC, rating_count DESC, price ASC`

// TitleRecord is the lightweight product projection used for text matching.
type TitleRecord struct {
	ID       uuid.UUID
	Title    string
	Brand    string
	Category Category
}

// ProductFilter narrows a catalog listing. Nil fields are ignored; brands
// are OR-matched case-insensitively.
type ProductFilter struct {
	Category  *Category
	Brands    []string
	MaxPrice  *float64
	MinRating *float64
	Limit     int
}

// ProductRepository handles catalog reads and writes.
type ProductRepository struct {
	db DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Upsert inserts a product or replaces the existing row with the same ID.
func (r *ProductRepository) Upsert(ctx context.Context, product *Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	query := `
		INSERT INTO products (id, title, category, brand, price, rating, rating_count, stock,
			description, specifications, features, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title, category = excluded.category, brand = excluded.brand,
			price = excluded.price, rating = excluded.rating, rating_count = excluded.rating_count,
			stock = excluded.stock, description = excluded.description,
			specifications = excluded.specifications, features = excluded.features,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		product.ID, product.Title, string(product.Category), product.Brand, product.Price,
		product.Rating, product.RatingCount, product.Stock, product.Description,
		product.Specifications, product.Features, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", product.ID, err)
	}
	return nil
}

// GetByID retrieves a product by ID.
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return product, nil
}

// GetByIDs retrieves the products with the given IDs, preserving the input order.
// Unknown IDs are skipped.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Product, error) {
	if len(ids) == 0 {
		return []*Product{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + strings.Join(placeholders, ", ") + `)`
	found, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]*Product, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
			delete(byID, id)
		}
	}
	return out, nil
}

// ListAll returns the full catalog.
func (r *ProductRepository) ListAll(ctx context.Context) ([]*Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY title`)
}

// ListByCategory returns every product in a category.
func (r *ProductRepository) ListByCategory(ctx context.Context, category Category) ([]*Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE category = $1 ORDER BY title`, string(category))
}

// ListTitles returns the title projection of the full catalog.
func (r *ProductRepository) ListTitles(ctx context.Context) ([]TitleRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, brand, category FROM products ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	defer rows.Close()

	records := []TitleRecord{}
	for rows.Next() {
		var rec TitleRecord
		var category string
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Brand, &category); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		rec.Category = Category(category)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Filter lists products matching every non-nil constraint, best rated first.
func (r *ProductRepository) Filter(ctx context.Context, f ProductFilter) ([]*Product, error) {
	where, args := buildProductWhere(f)

	query := `SELECT ` + productColumns + ` FROM products`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ` + productRankOrder
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	return r.query(ctx, query, args...)
}

// TopRated lists the best rated products, optionally within one category.
func (r *ProductRepository) TopRated(ctx context.Context, category *Category, limit int) ([]*Product, error) {
	return r.Filter(ctx, ProductFilter{Category: category, Limit: limit})
}

// MatchTitle returns products whose title contains every term.
func (r *ProductRepository) MatchTitle(ctx context.Context, terms []string, limit int) ([]*Product, error) {
	terms = normalizeTerms(terms)
	if len(terms) == 0 {
		return []*Product{}, nil
	}

	clauses := make([]string, len(terms))
	args := make([]interface{}, len(terms))
	for i, term := range terms {
		clauses[i] = fmt.Sprintf("LOWER(title) LIKE $%d", i+1)
		args[i] = "%" + term + "%"
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE ` + strings.Join(clauses, " AND ") + ` ` + productRankOrder
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	return r.query(ctx, query, args...)
}

// SearchText returns products where any term appears in the title,
// description, specifications or features.
func (r *ProductRepository) SearchText(ctx context.Context, terms []string, category *Category, limit int) ([]*Product, error) {
	terms = normalizeTerms(terms)
	if len(terms) == 0 {
		return []*Product{}, nil
	}

	var args []interface{}
	clauses := make([]string, 0, len(terms))
	for _, term := range terms {
		args = append(args, "%"+term+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d OR LOWER(CAST(specifications AS TEXT)) LIKE $%d OR LOWER(CAST(features AS TEXT)) LIKE $%d)",
			n, n, n, n))
	}

	where := "(" + strings.Join(clauses, " OR ") + ")"
	if category != nil {
		args = append(args, string(*category))
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE ` + where + ` ` + productRankOrder
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	return r.query(ctx, query, args...)
}

// Count returns the number of catalog products.
func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r *ProductRepository) query(ctx context.Context, query string, args ...interface{}) ([]*Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []*Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*Product, error) {
	p := &Product{}
	var category string
	var description sql.NullString
	if err := row.Scan(
		&p.ID, &p.Title, &category, &p.Brand, &p.Price, &p.Rating, &p.RatingCount, &p.Stock,
		&description, &p.Specifications, &p.Features, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Category = Category(category)
	p.Description = description.String
	return p, nil
}

// buildProductWhere renders the filter as a WHERE clause with numbered placeholders.
func buildProductWhere(f ProductFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if f.Category != nil {
		args = append(args, string(*f.Category))
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}

	if brands := normalizeTerms(f.Brands); len(brands) > 0 {
		ors := make([]string, len(brands))
		for i, b := range brands {
			args = append(args, b)
			ors[i] = fmt.Sprintf("LOWER(brand) = $%d", len(args))
		}
		conditions = append(conditions, "("+strings.Join(ors, " OR ")+")")
	}

	if f.MaxPrice != nil {
		args = append(args, *f.MaxPrice)
		conditions = append(conditions, fmt.Sprintf("price <= $%d", len(args)))
	}

	if f.MinRating != nil {
		args = append(args, *f.MinRating)
		conditions = append(conditions, fmt.Sprintf("rating >= $%d", len(args)))
	}

	return strings.Join(conditions, " AND "), args
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// UserRepository reads customer profiles.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert inserts or replaces a user.
func (r *UserRepository) Upsert(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (id, name, email, phone, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, email = excluded.email,
			phone = excluded.phone, address = excluded.address
	`
	if _, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.Phone, user.Address, user.CreatedAt,
	); err != nil {
		return fmt.Errorf("upsert user %s: %w", user.ID, err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT id, name, email, phone, address, created_at FROM users WHERE id = $1`
	u := &User{}
	var phone, address sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &phone, &address, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	u.Phone = phone.String
	u.Address = address.String
	return u, nil
}

// Repositories groups every repository over one connection.
type Repositories struct {
	Products   *ProductRepository
	Users      *UserRepository
	Orders     *OrderRepository
	Embeddings *EmbeddingRepository
}

// NewRepositories creates all repositories with the given database connection.
func NewRepositories(db DB) *Repositories {
	return &Repositories{
		Products:   NewProductRepository(db),
		Users:      NewUserRepository(db),
		Orders:     NewOrderRepository(db),
		Embeddings: NewEmbeddingRepository(db),
	}
}
