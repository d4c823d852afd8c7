package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, OpenConfig{Driver: DriverSQLite, DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	applied, err := NewMigrator(db, DriverSQLite).Up(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"0001_init"}, applied)
	return db
}

func TestMigrator_Idempotent(t *testing.T) {
	db := newSQLiteDB(t)
	m := NewMigrator(db, DriverSQLite)

	status, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.UpToDate())
	assert.Equal(t, []string{"0001_init"}, status.Applied)

	applied, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestSQLite_CatalogRoundTrip(t *testing.T) {
	db := newSQLiteDB(t)
	ctx := context.Background()
	products := NewProductRepository(db)

	var specs Specifications
	require.NoError(t, specs.UnmarshalJSON([]byte(`[{"section":"Display","values":{"Refresh":"144Hz"}}]`)))

	rog := &Product{Title: "ASUS ROG Strix G16", Category: CategoryLaptops, Brand: "ASUS", Price: 1499, Rating: 4.6, RatingCount: 310, Stock: 4,
		Description: "Gaming laptop", Specifications: specs, Features: StringList{"RGB keyboard"}}
	air := &Product{Title: "MacBook Air M3", Category: CategoryLaptops, Brand: "Apple", Price: 1099, Rating: 4.8, RatingCount: 900, Stock: 12}
	tv := &Product{Title: "Samsung S24 TV", Category: CategorySmartTVs, Brand: "Samsung", Price: 899, Rating: 4.1, RatingCount: 50}
	for _, p := range []*Product{rog, air, tv} {
		require.NoError(t, products.Upsert(ctx, p))
	}

	got, err := products.GetByID(ctx, rog.ID)
	require.NoError(t, err)
	assert.Equal(t, "144Hz", got.Specifications.Flatten()["Display.Refresh"])
	assert.Equal(t, StringList{"RGB keyboard"}, got.Features)

	laptops := CategoryLaptops
	maxPrice := 1200.0
	filtered, err := products.Filter(ctx, ProductFilter{Category: &laptops, MaxPrice: &maxPrice})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, air.ID, filtered[0].ID)

	top, err := products.TopRated(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, air.ID, top[0].ID)

	hits, err := products.SearchText(ctx, []string{"144hz"}, nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, rog.ID, hits[0].ID)

	matched, err := products.MatchTitle(ctx, []string{"samsung", "s24"}, 5)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, tv.ID, matched[0].ID)

	titles, err := products.ListTitles(ctx)
	require.NoError(t, err)
	assert.Len(t, titles, 3)

	rog.Price = 1399
	require.NoError(t, products.Upsert(ctx, rog))
	n, err := products.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSQLite_OrdersAndEmbeddings(t *testing.T) {
	db := newSQLiteDB(t)
	ctx := context.Background()

	users := NewUserRepository(db)
	orders := NewOrderRepository(db)
	embeddings := NewEmbeddingRepository(db)

	u := &User{Name: "Ravi", Email: "ravi@example.com"}
	require.NoError(t, users.Upsert(ctx, u))

	older := &Order{Number: "ORD-1001", UserID: u.ID, Status: OrderStatusDelivered, Total: 20,
		CreatedAt: time.Now().Add(-48 * time.Hour).UTC(),
		Items:     []OrderItem{{ProductID: uuid.New(), Title: "USB-C Cable", Quantity: 2, UnitPrice: 10}}}
	newer := &Order{Number: "ORD-1002", UserID: u.ID, Status: OrderStatusShipped, Total: 999, TrackingNumber: "TRK-9"}
	require.NoError(t, orders.Create(ctx, older))
	require.NoError(t, orders.Create(ctx, newer))

	dup := &Order{Number: "ORD-1002", UserID: u.ID, Status: OrderStatusPending}
	assert.ErrorIs(t, orders.Create(ctx, dup), ErrConflict)

	recent, err := orders.ListByUser(ctx, u.ID, 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "ORD-1002", recent[0].Number)
	require.Len(t, recent[1].Items, 1)

	byNumber, err := orders.GetByNumber(ctx, "ord-1001")
	require.NoError(t, err)
	assert.Equal(t, older.ID, byNumber.ID)

	rec := &EmbeddingRecord{EntityID: newer.ID, Kind: EntityKindOrder, OwnerID: &u.ID, Vector: Vector{1, 0}}
	require.NoError(t, embeddings.Upsert(ctx, rec))
	rec.Vector = Vector{0, 1}
	rec.UpdatedAt = time.Time{}
	require.NoError(t, embeddings.Upsert(ctx, rec))

	all, err := embeddings.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, Vector{0, 1}, all[0].Vector)
	require.NotNil(t, all[0].OwnerID)
	assert.Equal(t, u.ID, *all[0].OwnerID)
}
