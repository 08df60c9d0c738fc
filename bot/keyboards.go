package bot

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iabalyuk/telemarket/storage"
)

// pageButton is one prev/next pagination control in display order.
type pageButton struct {
	text   string
	action string
}

// pageButtons builds the pagination controls for the current paginator state.
func pageButtons[T any](p *Paginator[T]) []pageButton {
	var btns []pageButton
	if p.HasPrevious() {
		btns = append(btns, pageButton{"◀ Пред.", "previous"})
	}
	if p.HasNext() {
		btns = append(btns, pageButton{"След. ▶", "next"})
	}
	return btns
}

// chunkRows lays buttons out into rows of the given width.
func chunkRows(btns []tgbotapi.InlineKeyboardButton, width int) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton
	for len(btns) > 0 {
		n := width
		if n > len(btns) {
			n = len(btns)
		}
		rows = append(rows, btns[:n])
		btns = btns[n:]
	}
	return rows
}

func menuButton(text string, cb MenuCallback) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, cb.Pack())
}

// getUserMainButtons builds the top-level action set.
func getUserMainButtons(level Screen) tgbotapi.InlineKeyboardMarkup {
	btns := []tgbotapi.InlineKeyboardButton{
		menuButton("Товары 🍔", MenuCallback{Level: level + 1, MenuName: "catalog"}),
		menuButton("Корзина 🛒", MenuCallback{Level: ScreenCart, MenuName: "cart"}),
		menuButton("О нас ℹ️", MenuCallback{Level: level, MenuName: "about"}),
		menuButton("Оплата 💰", MenuCallback{Level: level, MenuName: "payment"}),
		menuButton("Доставка ⛵", MenuCallback{Level: level, MenuName: "shipping"}),
		menuButton("Мои заказы 📦", MenuCallback{Level: ScreenOrders, MenuName: "orders"}),
	}
	return tgbotapi.NewInlineKeyboardMarkup(chunkRows(btns, 2)...)
}

// getUserCatalogButtons builds one button per category plus navigation.
func getUserCatalogButtons(level Screen, categories []storage.Category) tgbotapi.InlineKeyboardMarkup {
	btns := []tgbotapi.InlineKeyboardButton{
		menuButton("Назад", MenuCallback{Level: level - 1, MenuName: "main"}),
		menuButton("Корзина 🛒", MenuCallback{Level: ScreenCart, MenuName: "cart"}),
	}
	for _, c := range categories {
		btns = append(btns, menuButton(c.Name, MenuCallback{
			Level:      level + 1,
			MenuName:   c.Name,
			CategoryID: c.ID,
		}))
	}
	return tgbotapi.NewInlineKeyboardMarkup(chunkRows(btns, 2)...)
}

// getProductsButtons builds the product-card action set with pagination.
func getProductsButtons(level Screen, categoryID int64, page int, pagination []pageButton, productID int64) tgbotapi.InlineKeyboardMarkup {
	btns := []tgbotapi.InlineKeyboardButton{
		menuButton("Назад", MenuCallback{Level: level - 1, MenuName: "catalog"}),
		menuButton("Корзина 🛒", MenuCallback{Level: ScreenCart, MenuName: "cart"}),
		menuButton("В корзину 💵", MenuCallback{Level: level, MenuName: "add_to_cart", ProductID: productID, CategoryID: categoryID, Page: page}),
	}
	rows := chunkRows(btns, 2)

	var pagRow []tgbotapi.InlineKeyboardButton
	for _, pb := range pagination {
		next := page + 1
		if pb.action == "previous" {
			next = page - 1
		}
		pagRow = append(pagRow, menuButton(pb.text, MenuCallback{
			Level:      level,
			MenuName:   pb.action,
			CategoryID: categoryID,
			Page:       next,
		}))
	}
	if len(pagRow) > 0 {
		rows = append(rows, pagRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// getUserCartButtons builds the cart action set. A zero page means the cart
// is empty and only the home button is shown.
func getUserCartButtons(level Screen, page int, pagination []pageButton, productID int64) tgbotapi.InlineKeyboardMarkup {
	if page == 0 {
		return tgbotapi.NewInlineKeyboardMarkup(
			[]tgbotapi.InlineKeyboardButton{
				menuButton("На главную 🏠", MenuCallback{Level: ScreenMain, MenuName: "main"}),
			},
		)
	}

	btns := []tgbotapi.InlineKeyboardButton{
		menuButton("Удалить", MenuCallback{Level: level, MenuName: "delete", ProductID: productID, Page: page}),
		menuButton("-1", MenuCallback{Level: level, MenuName: "decrement", ProductID: productID, Page: page}),
		menuButton("+1", MenuCallback{Level: level, MenuName: "increment", ProductID: productID, Page: page}),
	}
	rows := chunkRows(btns, 3)

	var pagRow []tgbotapi.InlineKeyboardButton
	for _, pb := range pagination {
		next := page + 1
		if pb.action == "previous" {
			next = page - 1
		}
		pagRow = append(pagRow, menuButton(pb.text, MenuCallback{
			Level:    level,
			MenuName: pb.action,
			Page:     next,
		}))
	}
	if len(pagRow) > 0 {
		rows = append(rows, pagRow)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		menuButton("На главную 🏠", MenuCallback{Level: ScreenMain, MenuName: "main"}),
		menuButton("Заказать", MenuCallback{Level: ScreenCheckout, MenuName: "order", ProductID: productID}),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// getUserOrdersButtons builds the order-history action set. A zero page means
// the history is empty.
func getUserOrdersButtons(level Screen, page int, pagination []pageButton, productID, orderID int64) tgbotapi.InlineKeyboardMarkup {
	if page == 0 {
		return tgbotapi.NewInlineKeyboardMarkup(
			[]tgbotapi.InlineKeyboardButton{
				menuButton("На главную 🏠", MenuCallback{Level: ScreenMain, MenuName: "main"}),
			},
		)
	}

	btns := []tgbotapi.InlineKeyboardButton{
		menuButton("Оплатить", MenuCallback{Level: ScreenPayment, MenuName: "payment", ProductID: productID, OrderID: orderID, Page: page}),
		menuButton("Удалить", MenuCallback{Level: ScreenOrderDelete, MenuName: "delete", ProductID: productID, OrderID: orderID, Page: page}),
	}
	rows := chunkRows(btns, 3)

	var pagRow []tgbotapi.InlineKeyboardButton
	for _, pb := range pagination {
		next := page + 1
		if pb.action == "previous" {
			next = page - 1
		}
		pagRow = append(pagRow, menuButton(pb.text, MenuCallback{
			Level:    level,
			MenuName: pb.action,
			Page:     next,
		}))
	}
	if len(pagRow) > 0 {
		rows = append(rows, pagRow)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		menuButton("На главную 🏠", MenuCallback{Level: ScreenMain, MenuName: "main"}),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// callbackButton is an ordered (label, raw callback data) pair.
type callbackButton struct {
	text string
	data string
}

// getCallbackButtons builds a keyboard from ordered (text, data) pairs.
func getCallbackButtons(btns []callbackButton, width int) tgbotapi.InlineKeyboardMarkup {
	var flat []tgbotapi.InlineKeyboardButton
	for _, b := range btns {
		flat = append(flat, tgbotapi.NewInlineKeyboardButtonData(b.text, b.data))
	}
	return tgbotapi.NewInlineKeyboardMarkup(chunkRows(flat, width)...)
}

// getContactKeyboard is the reply keyboard requesting the user's phone number.
func getContactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		[]tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButtonContact("Отправить контакт ☎️")},
	)
	kb.ResizeKeyboard = true
	return kb
}

func getAdminMainButtons() tgbotapi.InlineKeyboardMarkup {
	return getCallbackButtons([]callbackButton{
		{"Cписок заказов 🚀", AdminCallback{Action: "list_orders"}.Pack()},
		{"Добавить товар", AdminCallback{Action: "add_product"}.Pack()},
		{"Ассортимент", AdminCallback{Action: "catalog"}.Pack()},
		{"Добавить/Изменить баннер", AdminCallback{Action: "banner"}.Pack()},
	}, 2)
}

func getAdminOrdersButtons(orders []storage.Order) tgbotapi.InlineKeyboardMarkup {
	var btns []callbackButton
	for _, o := range orders {
		paid := ""
		if o.Paid {
			paid = " 💰"
		}
		btns = append(btns, callbackButton{
			fmt.Sprintf("Заказ #%d (%s)%s", o.ID, o.Status, paid),
			OrderCallback{Action: "view", OrderID: o.ID}.Pack(),
		})
	}
	btns = append(btns, callbackButton{"Назад", AdminCallback{Action: "main"}.Pack()})
	return getCallbackButtons(btns, 1)
}

// getAdminOrderButtons is shown under a single order: status choices first,
// then deletion and navigation.
func getAdminOrderButtons(orderID int64) tgbotapi.InlineKeyboardMarkup {
	return getCallbackButtons([]callbackButton{
		{"Обработка", OrderCallback{Action: "edit_status", OrderID: orderID, Status: "processing"}.Pack()},
		{"Отправлен", OrderCallback{Action: "edit_status", OrderID: orderID, Status: "shipped"}.Pack()},
		{"Доставлен", OrderCallback{Action: "edit_status", OrderID: orderID, Status: "delivered"}.Pack()},
		{"Отменен ❌", OrderCallback{Action: "edit_status", OrderID: orderID, Status: "cancelled"}.Pack()},
		{"Удалить заказ 🗑", OrderCallback{Action: "delete", OrderID: orderID}.Pack()},
		{"Назад", AdminCallback{Action: "list_orders"}.Pack()},
	}, 2)
}

func getConfirmDeleteButtons(orderID int64) tgbotapi.InlineKeyboardMarkup {
	return getCallbackButtons([]callbackButton{
		{"Да, удалить", OrderCallback{Action: "confirm_delete", OrderID: orderID}.Pack()},
		{"Отмена", OrderCallback{Action: "view", OrderID: orderID}.Pack()},
	}, 2)
}

// getAssortmentButtons lists categories for the admin assortment browser.
func getAssortmentButtons(categories []storage.Category) tgbotapi.InlineKeyboardMarkup {
	var btns []callbackButton
	for _, c := range categories {
		btns = append(btns, callbackButton{c.Name, fmt.Sprintf("category_%d", c.ID)})
	}
	btns = append(btns, callbackButton{"Назад", AdminCallback{Action: "main"}.Pack()})
	return getCallbackButtons(btns, 2)
}

// getProductEditButtons is attached to each product card in the assortment
// browser.
func getProductEditButtons(productID int64) tgbotapi.InlineKeyboardMarkup {
	return getCallbackButtons([]callbackButton{
		{"Удалить", fmt.Sprintf("delete_%d", productID)},
		{"Изменить", fmt.Sprintf("change_%d", productID)},
	}, 2)
}

// getProductCategoryButtons offers categories during the product form's
// category step. Callback data is the bare category id.
func getProductCategoryButtons(categories []storage.Category) tgbotapi.InlineKeyboardMarkup {
	var btns []callbackButton
	for _, c := range categories {
		btns = append(btns, callbackButton{c.Name, strconv.FormatInt(c.ID, 10)})
	}
	return getCallbackButtons(btns, 2)
}
