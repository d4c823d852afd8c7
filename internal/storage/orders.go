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

const orderColumns = `id, number, user_id, status, total, shipping_address, tracking_number, created_at, updated_at`

// OrderRepository handles order reads and writes.
type OrderRepository struct {
	db DB
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(db DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts an order and its line items.
func (r *OrderRepository) Create(ctx context.Context, order *Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Number == "" {
		return fmt.Errorf("order number is required")
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.db.ExecContext(ctx, query,
		order.ID, order.Number, order.UserID, string(order.Status), order.Total,
		order.ShippingAddress, order.TrackingNumber, order.CreatedAt, order.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert order %s: %w", order.Number, err)
	}

	for i, item := range order.Items {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, title, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, order.ID, i+1, item.ProductID, item.Title, item.Quantity, item.UnitPrice); err != nil {
			return fmt.Errorf("insert order item %d of %s: %w", i+1, order.Number, err)
		}
	}
	return nil
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByNumber retrieves an order by its human-readable number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE UPPER(number) = $1`, strings.ToUpper(number))
}

// ListByUser returns a user's orders, most recent first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", userID, err)
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListAll returns every order. Used by reindexing.
func (r *OrderRepository) ListAll(ctx context.Context) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg interface{}) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := r.loadItems(ctx, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// loadItems fills Items for all orders with a single query.
func (r *OrderRepository) loadItems(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*Order, len(orders))
	placeholders := make([]string, len(orders))
	args := make([]interface{}, len(orders))
	for i, o := range orders {
		o.Items = []OrderItem{}
		byID[o.ID] = o
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = o.ID
	}

	query := `
		SELECT order_id, product_id, title, quantity, unit_price
		FROM order_items
		WHERE order_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY order_id, line_no
	`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		var item OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Title, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func scanOrder(row rowScanner) (*Order, error) {
	o := &Order{}
	var status string
	var address, tracking sql.NullString
	if err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &status, &o.Total, &address, &tracking, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Status = OrderStatus(status)
	o.ShippingAddress = address.String
	o.TrackingNumber = tracking.String
	return o, nil
}
