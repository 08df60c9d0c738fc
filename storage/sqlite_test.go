package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// seedCatalog creates a category and a product and returns their ids.
func seedCatalog(t *testing.T, store *SQLiteStore, price string) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateCategoriesIfAbsent(ctx, []string{"Еда"}))
	categories, err := store.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)

	productID, err := store.CreateProduct(ctx, &Product{
		Name:        "Пицца Маргарита",
		Description: "Томаты и моцарелла",
		Price:       decimal.RequireFromString(price),
		Image:       "file-id-1",
		CategoryID:  categories[0].ID,
	})
	require.NoError(t, err)
	return categories[0].ID, productID
}

func TestSeedIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, store))
	require.NoError(t, Seed(ctx, store))

	banners, err := store.ListBanners(ctx)
	require.NoError(t, err)
	assert.Len(t, banners, len(DefaultBannerDescriptions))

	main, err := store.GetBanner(ctx, "main")
	require.NoError(t, err)
	assert.NotEmpty(t, main.Description)
	assert.Empty(t, main.Image)

	categories, err := store.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, len(DefaultCategories))
}

func TestBannerImageUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.UpdateBannerImage(ctx, "main", "file-id")
	assert.ErrorIs(t, err, ErrBannerNotFound)

	require.NoError(t, Seed(ctx, store))
	require.NoError(t, store.UpdateBannerImage(ctx, "main", "file-id"))

	b, err := store.GetBanner(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "file-id", b.Image)
}

func TestProductLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	categoryID, productID := seedCatalog(t, store, "99.99")

	p, err := store.GetProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, "Пицца Маргарита", p.Name)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("99.99")))

	p.Name = "Пицца Пепперони"
	p.Price = decimal.RequireFromString("119.50")
	require.NoError(t, store.UpdateProduct(ctx, productID, p))

	p, err = store.GetProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, "Пицца Пепперони", p.Name)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("119.50")))

	products, err := store.ListProducts(ctx, categoryID)
	require.NoError(t, err)
	assert.Len(t, products, 1)

	require.NoError(t, store.DeleteProduct(ctx, productID))
	_, err = store.GetProduct(ctx, productID)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorIs(t, store.DeleteProduct(ctx, productID), ErrProductNotFound)
	assert.ErrorIs(t, store.UpdateProduct(ctx, productID, p), ErrProductNotFound)
}

func TestUpsertUserIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := User{UserID: 1001, FirstName: "Иван", LastName: "Иванов"}
	require.NoError(t, store.UpsertUser(ctx, u))
	require.NoError(t, store.UpsertUser(ctx, u))
}

func TestCartQuantity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, productID := seedCatalog(t, store, "50.00")
	const userID = int64(1001)
	require.NoError(t, store.UpsertUser(ctx, User{UserID: userID, FirstName: "Иван", LastName: "Иванов"}))

	require.NoError(t, store.AddToCart(ctx, userID, productID))
	require.NoError(t, store.AddToCart(ctx, userID, productID))

	line, err := store.GetCartLine(ctx, userID, productID)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)

	// 2 -> 1: the line survives.
	remains, err := store.ReduceInCart(ctx, userID, productID)
	require.NoError(t, err)
	assert.True(t, remains)

	// 1 -> gone: quantity never drops below 1.
	remains, err = store.ReduceInCart(ctx, userID, productID)
	require.NoError(t, err)
	assert.False(t, remains)

	_, err = store.GetCartLine(ctx, userID, productID)
	assert.ErrorIs(t, err, ErrCartLineNotFound)

	// Removing an absent line is not an error.
	require.NoError(t, store.RemoveFromCart(ctx, userID, productID))
}

func TestListCartItemsJoinsProducts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, productID := seedCatalog(t, store, "75.25")
	const userID = int64(1001)
	require.NoError(t, store.UpsertUser(ctx, User{UserID: userID, FirstName: "Иван", LastName: "Иванов"}))
	require.NoError(t, store.AddToCart(ctx, userID, productID))

	items, err := store.ListCartItems(ctx, userID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, productID, items[0].ProductID)
	assert.Equal(t, "Пицца Маргарита", items[0].Product.Name)
	assert.True(t, items[0].Product.Price.Equal(decimal.RequireFromString("75.25")))

	other, err := store.ListCartItems(ctx, 2002)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCreateOrderSnapshotsTotal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, productID := seedCatalog(t, store, "49.90")
	const userID = int64(1001)
	require.NoError(t, store.UpsertUser(ctx, User{UserID: userID, FirstName: "Иван", LastName: "Иванов"}))
	require.NoError(t, store.AddToCart(ctx, userID, productID))
	require.NoError(t, store.AddToCart(ctx, userID, productID))

	order, err := store.CreateOrder(ctx, userID, productID, "Иванов Иван", "Москва", "+79990000000")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, order.Status)
	assert.False(t, order.Paid)
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("99.80")),
		"total %s", order.TotalPrice)

	// A later price change must not touch the snapshot.
	p, err := store.GetProduct(ctx, productID)
	require.NoError(t, err)
	p.Price = decimal.RequireFromString("999.99")
	require.NoError(t, store.UpdateProduct(ctx, productID, p))

	got, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalPrice.Equal(decimal.RequireFromString("99.80")))
}

func TestCreateOrderRequiresCartLine(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, productID := seedCatalog(t, store, "49.90")
	const userID = int64(1001)
	require.NoError(t, store.UpsertUser(ctx, User{UserID: userID, FirstName: "Иван", LastName: "Иванов"}))

	_, err := store.CreateOrder(ctx, userID, productID, "Иванов Иван", "Москва", "+79990000000")
	assert.ErrorIs(t, err, ErrCartLineNotFound)

	orders, err := store.ListOrders(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestSetOrderPaidIsMonotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, productID := seedCatalog(t, store, "49.90")
	const userID = int64(1001)
	require.NoError(t, store.UpsertUser(ctx, User{UserID: userID, FirstName: "Иван", LastName: "Иванов"}))
	require.NoError(t, store.AddToCart(ctx, userID, productID))
	order, err := store.CreateOrder(ctx, userID, productID, "Иванов Иван", "Москва", "+79990000000")
	require.NoError(t, err)

	changed, err := store.SetOrderPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	// Duplicate confirmation flips nothing.
	changed, err = store.SetOrderPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)

	_, err = store.SetOrderPaid(ctx, order.ID+100)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderStatusAndDeletion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, productID := seedCatalog(t, store, "49.90")
	const userID = int64(1001)
	require.NoError(t, store.UpsertUser(ctx, User{UserID: userID, FirstName: "Иван", LastName: "Иванов"}))
	require.NoError(t, store.AddToCart(ctx, userID, productID))
	order, err := store.CreateOrder(ctx, userID, productID, "Иванов Иван", "Москва", "+79990000000")
	require.NoError(t, err)

	require.NoError(t, store.UpdateOrderStatus(ctx, order.ID, StatusShipped))
	got, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, got.Status)

	all, err := store.ListAllOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteOrder(ctx, order.ID))
	_, err = store.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.ErrorIs(t, store.DeleteOrder(ctx, order.ID), ErrOrderNotFound)
	assert.ErrorIs(t, store.UpdateOrderStatus(ctx, order.ID, StatusDelivered), ErrOrderNotFound)
}
