package bot

import (
	"context"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iabalyuk/telemarket/storage"
)

func adminCallback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "q1",
		From: &tgbotapi.User{ID: 999, FirstName: "Админ"},
		Message: &tgbotapi.Message{
			MessageID: 5,
			Chat:      &tgbotapi.Chat{ID: 999, Type: "private"},
		},
		Data: data,
	}
}

func TestProductFormCreate(t *testing.T) {
	b, _, catalog, _, _ := newTestBot()
	ctx := context.Background()

	state := b.state(999)
	state.Product = &ProductState{Step: StepProductName}

	b.handleProductMessage(ctx, privateMessage(999, "Пицца Маргарита"), state)
	require.Equal(t, StepProductDescription, state.Product.Step)

	b.handleProductMessage(ctx, privateMessage(999, "Томаты и моцарелла"), state)
	require.Equal(t, StepProductCategory, state.Product.Step)

	// Free text does not advance the category step.
	b.handleProductMessage(ctx, privateMessage(999, "Еда"), state)
	require.Equal(t, StepProductCategory, state.Product.Step)

	b.handleProductCategoryChoice(ctx, adminCallback("1"), state)
	require.Equal(t, StepProductPrice, state.Product.Step)

	b.handleProductMessage(ctx, privateMessage(999, "99.99"), state)
	require.Equal(t, StepProductImage, state.Product.Step)

	photo := privateMessage(999, "")
	photo.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}}
	b.handleProductMessage(ctx, photo, state)

	require.True(t, state.idle(), "form must clear after a successful save")
	products, err := catalog.ListProducts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "Пицца Маргарита", p.Name)
	assert.Equal(t, "Томаты и моцарелла", p.Description)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("99.99")))
	assert.Equal(t, "large", p.Image, "the largest photo size must be stored")
}

func TestProductFormNameBounds(t *testing.T) {
	b, _, _, _, _ := newTestBot()
	ctx := context.Background()

	state := b.state(999)
	state.Product = &ProductState{Step: StepProductName}

	b.handleProductMessage(ctx, privateMessage(999, strings.Repeat("а", 4)), state)
	assert.Equal(t, StepProductName, state.Product.Step)

	b.handleProductMessage(ctx, privateMessage(999, strings.Repeat("а", 150)), state)
	assert.Equal(t, StepProductName, state.Product.Step)

	b.handleProductMessage(ctx, privateMessage(999, strings.Repeat("а", 149)), state)
	assert.Equal(t, StepProductDescription, state.Product.Step)
}

func TestProductFormPriceValidation(t *testing.T) {
	b, _, _, _, _ := newTestBot()
	ctx := context.Background()

	state := b.state(999)
	state.Product = &ProductState{Step: StepProductPrice, Name: "Пицца", Description: "desc", CategoryID: 1}

	b.handleProductMessage(ctx, privateMessage(999, "дорого"), state)
	assert.Equal(t, StepProductPrice, state.Product.Step)

	b.handleProductMessage(ctx, privateMessage(999, "-5"), state)
	assert.Equal(t, StepProductPrice, state.Product.Step)

	b.handleProductMessage(ctx, privateMessage(999, "149.50"), state)
	assert.Equal(t, StepProductImage, state.Product.Step)
}

func TestProductFormBackAndCancel(t *testing.T) {
	b, api, _, _, _ := newTestBot()
	ctx := context.Background()

	state := b.state(999)
	state.Product = &ProductState{Step: StepProductDescription, Name: "Пицца Маргарита"}

	b.handleProductMessage(ctx, privateMessage(999, "назад"), state)
	assert.Equal(t, StepProductName, state.Product.Step)

	b.handleProductMessage(ctx, privateMessage(999, "назад"), state)
	assert.Equal(t, StepProductName, state.Product.Step)
	assert.Contains(t, api.lastMessageText(t), "Предыдущего шага нет")

	b.handleProductMessage(ctx, privateMessage(999, "отмена"), state)
	assert.True(t, state.idle())
}

func TestProductFormEditReusesValues(t *testing.T) {
	b, _, catalog, _, _ := newTestBot()
	ctx := context.Background()
	p1 := addProduct(catalog, "Пицца Маргарита", "99.99", 1)
	existing, err := catalog.GetProduct(ctx, p1)
	require.NoError(t, err)

	state := b.state(999)
	state.Product = &ProductState{Step: StepProductName, Editing: existing}

	b.handleProductMessage(ctx, privateMessage(999, "."), state)
	assert.Equal(t, "Пицца Маргарита", state.Product.Name)

	b.handleProductMessage(ctx, privateMessage(999, "Новое описание"), state)
	b.handleProductCategoryChoice(ctx, adminCallback("1"), state)
	b.handleProductMessage(ctx, privateMessage(999, "."), state)
	assert.True(t, state.Product.Price.Equal(decimal.RequireFromString("99.99")))

	b.handleProductMessage(ctx, privateMessage(999, "."), state)
	require.True(t, state.idle())

	got, err := catalog.GetProduct(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, "Пицца Маргарита", got.Name)
	assert.Equal(t, "Новое описание", got.Description)
	assert.Equal(t, existing.Image, got.Image)
}

func TestProductFormDotWithoutEditingRejected(t *testing.T) {
	b, _, _, _, _ := newTestBot()
	ctx := context.Background()

	state := b.state(999)
	state.Product = &ProductState{Step: StepProductName}

	// "." is only a reuse marker while editing.
	b.handleProductMessage(ctx, privateMessage(999, "."), state)
	assert.Equal(t, StepProductName, state.Product.Step)
	assert.Empty(t, state.Product.Name)
}

func TestOrderCancelledIsDeleted(t *testing.T) {
	b, _, catalog, _, orders := newTestBot()
	ctx := context.Background()
	p1 := addProduct(catalog, "Пицца", "100.00", 1)
	order, err := orders.CreateOrder(ctx, 1, p1, "Иванов Иван", "Москва", "+79990000000")
	require.NoError(t, err)

	cb := OrderCallback{Action: "edit_status", OrderID: order.ID, Status: "cancelled"}
	b.handleOrderAction(ctx, adminCallback(cb.Pack()), &cb)

	_, err = orders.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
}

func TestOrderStatusRelabel(t *testing.T) {
	b, _, catalog, _, orders := newTestBot()
	ctx := context.Background()
	p1 := addProduct(catalog, "Пицца", "100.00", 1)
	order, err := orders.CreateOrder(ctx, 1, p1, "Иванов Иван", "Москва", "+79990000000")
	require.NoError(t, err)

	cb := OrderCallback{Action: "edit_status", OrderID: order.ID, Status: "shipped"}
	b.handleOrderAction(ctx, adminCallback(cb.Pack()), &cb)

	got, err := orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusShipped, got.Status)
}

func TestOrderConfirmDelete(t *testing.T) {
	b, _, catalog, _, orders := newTestBot()
	ctx := context.Background()
	p1 := addProduct(catalog, "Пицца", "100.00", 1)
	order, err := orders.CreateOrder(ctx, 1, p1, "Иванов Иван", "Москва", "+79990000000")
	require.NoError(t, err)

	// "delete" only asks for confirmation.
	del := OrderCallback{Action: "delete", OrderID: order.ID}
	b.handleOrderAction(ctx, adminCallback(del.Pack()), &del)
	_, err = orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)

	confirm := OrderCallback{Action: "confirm_delete", OrderID: order.ID}
	b.handleOrderAction(ctx, adminCallback(confirm.Pack()), &confirm)
	_, err = orders.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
}

func TestDeleteProductCallback(t *testing.T) {
	b, _, catalog, _, _ := newTestBot()
	ctx := context.Background()
	p1 := addProduct(catalog, "Пицца Маргарита", "99.99", 1)

	state := b.state(999)
	b.handleAssortmentCallback(ctx, adminCallback("delete_1"), state)

	_, err := catalog.GetProduct(ctx, p1)
	assert.ErrorIs(t, err, storage.ErrProductNotFound)
}

func TestChangeProductCallbackStartsEdit(t *testing.T) {
	b, _, catalog, _, _ := newTestBot()
	ctx := context.Background()
	p1 := addProduct(catalog, "Пицца Маргарита", "99.99", 1)

	state := b.state(999)
	b.handleAssortmentCallback(ctx, adminCallback("change_1"), state)

	require.NotNil(t, state.Product)
	assert.Equal(t, StepProductName, state.Product.Step)
	require.NotNil(t, state.Product.Editing)
	assert.Equal(t, p1, state.Product.Editing.ID)
}

func TestBannerUpload(t *testing.T) {
	b, api, catalog, _, _ := newTestBot()
	ctx := context.Background()

	state := b.state(999)
	state.AwaitBanner = true

	// A caption naming an unknown page is rejected and the wait continues.
	wrong := privateMessage(999, "")
	wrong.Photo = []tgbotapi.PhotoSize{{FileID: "banner-img"}}
	wrong.Caption = "unknown_page"
	b.handleBannerMessage(ctx, wrong, state)
	assert.True(t, state.AwaitBanner)
	assert.Contains(t, api.lastMessageText(t), "название страницы")

	ok := privateMessage(999, "")
	ok.Photo = []tgbotapi.PhotoSize{{FileID: "banner-img"}}
	ok.Caption = "main"
	b.handleBannerMessage(ctx, ok, state)
	assert.True(t, state.idle())

	banner, err := catalog.GetBanner(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "banner-img", banner.Image)
}

func TestBannerUploadCancel(t *testing.T) {
	b, _, _, _, _ := newTestBot()
	ctx := context.Background()

	state := b.state(999)
	state.AwaitBanner = true

	b.handleBannerMessage(ctx, privateMessage(999, "отмена"), state)
	assert.True(t, state.idle())
}

func TestIsAdmin(t *testing.T) {
	b, api, _, _, _ := newTestBot()

	assert.True(t, b.isAdmin(999), "configured admin id")
	assert.False(t, b.isAdmin(1))

	// Group admins become admins once the roster is refreshed.
	api.admins = []tgbotapi.ChatMember{
		{Status: "creator", User: &tgbotapi.User{ID: 7}},
		{Status: "administrator", User: &tgbotapi.User{ID: 8}},
		{Status: "member", User: &tgbotapi.User{ID: 9}},
	}
	require.NoError(t, b.refreshAdminRoster(-500))
	assert.True(t, b.isAdmin(7))
	assert.True(t, b.isAdmin(8))
	assert.False(t, b.isAdmin(9))
}

func TestAdminCallbackRequiresAdmin(t *testing.T) {
	b, api, _, _, _ := newTestBot()

	query := adminCallback(AdminCallback{Action: "list_orders"}.Pack())
	query.From = &tgbotapi.User{ID: 1}
	b.handleCallbackQuery(context.Background(), query)

	require.Len(t, api.requests, 1)
	cb, ok := api.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Contains(t, cb.Text, "Недостаточно прав")
}
