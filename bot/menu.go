package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/iabalyuk/telemarket/storage"
)

// Media is the visual header of a screen: a Telegram photo file id plus a
// caption. Image may be empty when no banner photo was uploaded yet; the
// renderer then falls back to a caption-only message.
type Media struct {
	Image   string
	Caption string
}

// Menu resolves a (level, context) pair into renderable content and applies
// the side effects each level's operation triggers. The engine itself keeps
// no cursor or session: state lives entirely in the MenuCallback passed on
// each call, which makes re-rendering idempotent.
type Menu struct {
	catalog storage.CatalogStore
	carts   storage.CartStore
	orders  storage.OrderStore
	log     *slog.Logger
}

// NewMenu wires the navigation engine to its stores.
func NewMenu(catalog storage.CatalogStore, carts storage.CartStore, orders storage.OrderStore, log *slog.Logger) *Menu {
	return &Menu{catalog: catalog, carts: carts, orders: orders, log: log}
}

// Resolve produces content for the screen the callback addresses.
// ScreenCheckout and ScreenPayment never reach here: the handler intercepts
// their menu names before resolution, like it intercepts add_to_cart.
func (m *Menu) Resolve(ctx context.Context, cb MenuCallback, userID int64) (*Media, *tgbotapi.InlineKeyboardMarkup, error) {
	switch cb.Level {
	case ScreenMain:
		return m.mainMenu(ctx, cb.Level, cb.MenuName)
	case ScreenCatalog:
		return m.catalogMenu(ctx, cb.Level, cb.MenuName)
	case ScreenProducts:
		return m.productsMenu(ctx, cb.Level, cb.CategoryID, cb.Page)
	case ScreenCart:
		return m.cartMenu(ctx, cb.Level, cb.MenuName, cb.Page, userID, cb.ProductID)
	case ScreenOrders:
		return m.ordersMenu(ctx, cb.Level, cb.Page, userID)
	case ScreenOrderDelete:
		return m.deleteOrderMenu(ctx, cb.OrderID, cb.Page, userID)
	}
	return nil, nil, fmt.Errorf("unknown menu level %d", int(cb.Level))
}

// banner loads the named banner, degrading to a caption-only placeholder
// when it does not exist. A missing banner must not break navigation.
func (m *Menu) banner(ctx context.Context, name string) *Media {
	b, err := m.catalog.GetBanner(ctx, name)
	if err != nil {
		m.log.Warn("banner lookup failed", slog.String("banner", name), slog.Any("error", err))
		return &Media{Caption: "ℹ️"}
	}
	return &Media{Image: b.Image, Caption: b.Description}
}

func (m *Menu) mainMenu(ctx context.Context, level Screen, menuName string) (*Media, *tgbotapi.InlineKeyboardMarkup, error) {
	media := m.banner(ctx, menuName)
	kbds := getUserMainButtons(level)
	return media, &kbds, nil
}

func (m *Menu) catalogMenu(ctx context.Context, level Screen, menuName string) (*Media, *tgbotapi.InlineKeyboardMarkup, error) {
	media := m.banner(ctx, menuName)
	categories, err := m.catalog.ListCategories(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load categories: %w", err)
	}
	kbds := getUserCatalogButtons(level, categories)
	return media, &kbds, nil
}

func (m *Menu) productsMenu(ctx context.Context, level Screen, categoryID int64, page int) (*Media, *tgbotapi.InlineKeyboardMarkup, error) {
	products, err := m.catalog.ListProducts(ctx, categoryID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load products of category %d: %w", categoryID, err)
	}
	if len(products) == 0 {
		// Empty category: same banner as the catalog with a hint.
		media := m.banner(ctx, "catalog")
		media.Caption += "\nВ этой категории пока нет товаров."
		kbds := getUserCatalogButtons(level-1, nil)
		return media, &kbds, nil
	}

	paginator, err := NewPaginator(products, page)
	if err != nil {
		return nil, nil, err
	}
	product := paginator.Item()

	media := &Media{
		Image: product.Image,
		Caption: fmt.Sprintf("<strong>%s</strong>\n%s\nСтоимость: %s\n<strong>Товар %d из %d</strong>",
			product.Name, product.Description, product.Price.StringFixed(2),
			paginator.Page(), paginator.Len()),
	}
	kbds := getProductsButtons(level, categoryID, page, pageButtons(paginator), product.ID)
	return media, &kbds, nil
}

// cartMenu applies the requested cart mutation first, then recomputes the
// cart and renders. The page is clamped downward when the viewed line was
// removed so the user is never shown a page referencing a deleted line.
func (m *Menu) cartMenu(ctx context.Context, level Screen, menuName string, page int, userID, productID int64) (*Media, *tgbotapi.InlineKeyboardMarkup, error) {
	switch menuName {
	case "delete":
		if err := m.carts.RemoveFromCart(ctx, userID, productID); err != nil {
			return nil, nil, err
		}
		if page > 1 {
			page--
		}
	case "decrement":
		remains, err := m.carts.ReduceInCart(ctx, userID, productID)
		if err != nil {
			return nil, nil, err
		}
		if page > 1 && !remains {
			page--
		}
	case "increment":
		if err := m.carts.AddToCart(ctx, userID, productID); err != nil {
			return nil, nil, err
		}
	}

	items, err := m.carts.ListCartItems(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load cart of user %d: %w", userID, err)
	}

	if len(items) == 0 {
		media := m.banner(ctx, "cart")
		media.Caption = "<strong>" + media.Caption + "</strong>"
		kbds := getUserCartButtons(level, 0, nil, 0)
		return media, &kbds, nil
	}

	paginator, err := NewPaginator(items, page)
	if err != nil {
		return nil, nil, err
	}
	item := paginator.Item()

	linePrice := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	media := &Media{
		Image: item.Product.Image,
		Caption: fmt.Sprintf("<strong>%s</strong>\n%s$ x %d = %s$\nТовар %d из %d в корзине.\nОбщая стоимость товаров в корзине %s",
			item.Product.Name, item.Product.Price.StringFixed(2), item.Quantity, linePrice.StringFixed(2),
			paginator.Page(), paginator.Len(), total.StringFixed(2)),
	}
	kbds := getUserCartButtons(level, page, pageButtons(paginator), item.Product.ID)
	return media, &kbds, nil
}

func (m *Menu) ordersMenu(ctx context.Context, level Screen, page int, userID int64) (*Media, *tgbotapi.InlineKeyboardMarkup, error) {
	orders, err := m.orders.ListOrders(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load orders of user %d: %w", userID, err)
	}

	if len(orders) == 0 {
		media := m.banner(ctx, "orders")
		media.Caption = "<strong>" + media.Caption + ":\nпусто</strong>"
		kbds := getUserOrdersButtons(level, 0, nil, 0, 0)
		return media, &kbds, nil
	}

	paginator, err := NewPaginator(orders, page)
	if err != nil {
		return nil, nil, err
	}
	order := paginator.Item()

	// A stale product id here is a hard error: the button came from a screen
	// rendered before the product was deleted.
	product, err := m.catalog.GetProduct(ctx, order.ProductID)
	if err != nil {
		return nil, nil, err
	}

	paid := "нет"
	if order.Paid {
		paid = "да"
	}
	media := &Media{
		Image: product.Image,
		Caption: fmt.Sprintf("<strong>%s</strong>\n%s\n%s\nОплачен: %s\nК оплате: %s",
			product.Name, product.Description, order.Status, paid, order.TotalPrice.StringFixed(2)),
	}
	kbds := getUserOrdersButtons(level, page, pageButtons(paginator), product.ID, order.ID)
	return media, &kbds, nil
}

// deleteOrderMenu hard-deletes the order, then re-renders the order history.
func (m *Menu) deleteOrderMenu(ctx context.Context, orderID int64, page int, userID int64) (*Media, *tgbotapi.InlineKeyboardMarkup, error) {
	if err := m.orders.DeleteOrder(ctx, orderID); err != nil {
		return nil, nil, err
	}
	m.log.Info("order deleted by user",
		slog.Int64("order_id", orderID), slog.Int64("user_id", userID))

	if page > 1 {
		page--
	}
	return m.ordersMenu(ctx, ScreenOrders, page, userID)
}

// CommitOrder finishes checkout: the accumulated answers plus the referenced
// cart line and product snapshot become an order, created atomically by the
// store. It returns the home screen and the created order for notification.
func (m *Menu) CommitOrder(ctx context.Context, userID int64, st *CheckoutState) (*Media, *tgbotapi.InlineKeyboardMarkup, *storage.Order, error) {
	order, err := m.orders.CreateOrder(ctx, userID, st.ProductID, st.FullName, st.Address, st.Phone)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create order: %w", err)
	}
	m.log.Info("order created",
		slog.Int64("order_id", order.ID),
		slog.Int64("user_id", userID),
		slog.String("total", order.TotalPrice.StringFixed(2)))

	media, kbds, err := m.mainMenu(ctx, ScreenMain, "main")
	if err != nil {
		return nil, nil, nil, err
	}
	return media, kbds, order, nil
}
