package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/iabalyuk/telemarket/storage"
)

// Admin form control words. Typed, not clicked, same as in the checkout form.
const (
	adminCancelWord = "отмена"
	adminBackWord   = "назад"
)

// adminStatusLabels maps callback status codes to user-visible order statuses.
// Cancellation is not a label: it deletes the order.
var adminStatusLabels = map[string]string{
	"processing": storage.StatusInProgress,
	"shipped":    storage.StatusShipped,
	"delivered":  storage.StatusDelivered,
}

// handleAdminCommand opens the admin panel as a fresh message.
func (b *Bot) handleAdminCommand(ctx context.Context, message *tgbotapi.Message) {
	media, kbds := b.adminPanel(ctx)
	b.sendMenu(ctx, message.Chat.ID, media, kbds)
}

// adminPanel builds the panel header on the home banner.
func (b *Bot) adminPanel(ctx context.Context) (*Media, *tgbotapi.InlineKeyboardMarkup) {
	media := b.menu.banner(ctx, "main")
	media.Caption = "⚙️ <b>Панель администратора</b>\nЧто хотите сделать?"
	kbds := getAdminMainButtons()
	return media, &kbds
}

// handleAdminCallbackQuery routes the admin panel's button presses. The
// caller has already verified the sender is an admin.
func (b *Bot) handleAdminCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery, state *UserState) {
	data := query.Data
	switch {
	case IsAdminCallback(data):
		cb, err := ParseAdminCallback(data)
		if err != nil {
			b.log.Warn("invalid admin callback", slog.String("data", data), slog.Any("error", err))
			b.answerCallbackQuery(query.ID, "Ошибка данных")
			return
		}
		b.handleAdminAction(ctx, query, state, cb)
	case IsOrderCallback(data):
		cb, err := ParseOrderCallback(data)
		if err != nil {
			b.log.Warn("invalid order callback", slog.String("data", data), slog.Any("error", err))
			b.answerCallbackQuery(query.ID, "Ошибка данных")
			return
		}
		b.handleOrderAction(ctx, query, cb)
	default:
		b.handleAssortmentCallback(ctx, query, state)
	}
}

func (b *Bot) handleAdminAction(ctx context.Context, query *tgbotapi.CallbackQuery, state *UserState, cb *AdminCallback) {
	chatID := query.Message.Chat.ID

	switch cb.Action {
	case "main":
		media, kbds := b.adminPanel(ctx)
		b.editMenu(ctx, chatID, query.Message.MessageID, media, kbds)
		b.answerCallbackQuery(query.ID, "")

	case "list_orders":
		b.showOrderList(ctx, query)

	case "add_product":
		state.Product = &ProductState{Step: StepProductName}
		b.send(ctx, tgbotapi.NewMessage(chatID,
			"Введите название товара:\n(в любой момент: '"+adminBackWord+"' или '"+adminCancelWord+"')"))
		b.answerCallbackQuery(query.ID, "")

	case "catalog":
		categories, err := b.store.ListCategories(ctx)
		if err != nil {
			b.log.Error("failed to list categories", slog.Any("error", err))
			b.answerCallbackQuery(query.ID, "Произошла ошибка, попробуйте позже.")
			return
		}
		kbds := getAssortmentButtons(categories)
		b.editMenu(ctx, chatID, query.Message.MessageID,
			&Media{Caption: "Выберите категорию:"}, &kbds)
		b.answerCallbackQuery(query.ID, "")

	case "banner":
		names, err := b.bannerNames(ctx)
		if err != nil {
			b.log.Error("failed to list banners", slog.Any("error", err))
			b.answerCallbackQuery(query.ID, "Произошла ошибка, попробуйте позже.")
			return
		}
		state.AwaitBanner = true
		b.send(ctx, tgbotapi.NewMessage(chatID,
			"Отправьте фото баннера.\nВ описании к фото укажите для какой страницы:\n"+
				strings.Join(names, ", ")))
		b.answerCallbackQuery(query.ID, "")

	default:
		b.log.Warn("unknown admin action", slog.String("action", cb.Action))
		b.answerCallbackQuery(query.ID, "")
	}
}

// showOrderList edits the current message into the full order list.
func (b *Bot) showOrderList(ctx context.Context, query *tgbotapi.CallbackQuery) {
	orders, err := b.store.ListAllOrders(ctx)
	if err != nil {
		b.log.Error("failed to list orders", slog.Any("error", err))
		b.answerCallbackQuery(query.ID, "Произошла ошибка, попробуйте позже.")
		return
	}

	caption := "<b>Все заказы</b>"
	if len(orders) == 0 {
		caption = "Заказов пока нет."
	}
	kbds := getAdminOrdersButtons(orders)
	b.editMenu(ctx, query.Message.Chat.ID, query.Message.MessageID,
		&Media{Caption: caption}, &kbds)
	b.answerCallbackQuery(query.ID, "")
}

func (b *Bot) handleOrderAction(ctx context.Context, query *tgbotapi.CallbackQuery, cb *OrderCallback) {
	chatID := query.Message.Chat.ID

	switch cb.Action {
	case "view":
		b.showOrderCard(ctx, query, cb.OrderID)

	case "edit_status":
		if cb.Status == "cancelled" {
			// Cancelling hard-deletes the order rather than leaving a
			// tombstone row.
			if err := b.store.DeleteOrder(ctx, cb.OrderID); err != nil {
				b.reportOrderError(query, cb.OrderID, err)
				return
			}
			b.log.Info("order cancelled by admin",
				slog.Int64("order_id", cb.OrderID), slog.Int64("admin_id", query.From.ID))
			b.answerCallbackQuery(query.ID, "Заказ отменен и удален.")
			b.showOrderList(ctx, query)
			return
		}
		label, ok := adminStatusLabels[cb.Status]
		if !ok {
			b.log.Warn("unknown order status code", slog.String("status", cb.Status))
			b.answerCallbackQuery(query.ID, "Ошибка данных")
			return
		}
		if err := b.store.UpdateOrderStatus(ctx, cb.OrderID, label); err != nil {
			b.reportOrderError(query, cb.OrderID, err)
			return
		}
		b.answerCallbackQuery(query.ID, "Статус: "+label)
		b.showOrderCard(ctx, query, cb.OrderID)

	case "delete":
		kbds := getConfirmDeleteButtons(cb.OrderID)
		b.editMenu(ctx, chatID, query.Message.MessageID,
			&Media{Caption: fmt.Sprintf("Удалить заказ #%d безвозвратно?", cb.OrderID)}, &kbds)
		b.answerCallbackQuery(query.ID, "")

	case "confirm_delete":
		if err := b.store.DeleteOrder(ctx, cb.OrderID); err != nil {
			b.reportOrderError(query, cb.OrderID, err)
			return
		}
		b.log.Info("order deleted by admin",
			slog.Int64("order_id", cb.OrderID), slog.Int64("admin_id", query.From.ID))
		b.answerCallbackQuery(query.ID, "Заказ удален.")
		b.showOrderList(ctx, query)

	default:
		b.log.Warn("unknown order action", slog.String("action", cb.Action))
		b.answerCallbackQuery(query.ID, "")
	}
}

// showOrderCard edits the current message into one order's detail view.
func (b *Bot) showOrderCard(ctx context.Context, query *tgbotapi.CallbackQuery, orderID int64) {
	order, err := b.store.GetOrder(ctx, orderID)
	if err != nil {
		b.reportOrderError(query, orderID, err)
		return
	}

	paid := "нет"
	if order.Paid {
		paid = "да 💰"
	}
	caption := fmt.Sprintf(
		"<b>Заказ #%d</b>\nФИО: %s\nТелефон: %s\nАдрес: %s\nСумма: %s ₽\nСтатус: %s\nОплачен: %s",
		order.ID, order.FullName, order.Phone, order.Address,
		order.TotalPrice.StringFixed(2), order.Status, paid)
	kbds := getAdminOrderButtons(order.ID)
	b.editMenu(ctx, query.Message.Chat.ID, query.Message.MessageID,
		&Media{Caption: caption}, &kbds)
	b.answerCallbackQuery(query.ID, "")
}

func (b *Bot) reportOrderError(query *tgbotapi.CallbackQuery, orderID int64, err error) {
	if errors.Is(err, storage.ErrOrderNotFound) {
		b.answerCallbackQuery(query.ID, "Заказ больше не существует.")
		return
	}
	b.log.Error("admin order operation failed",
		slog.Int64("order_id", orderID), slog.Any("error", err))
	b.answerCallbackQuery(query.ID, "Произошла ошибка, попробуйте позже.")
}

// handleAssortmentCallback serves the category_/delete_/change_ buttons of
// the assortment browser.
func (b *Bot) handleAssortmentCallback(ctx context.Context, query *tgbotapi.CallbackQuery, state *UserState) {
	chatID := query.Message.Chat.ID
	data := query.Data

	switch {
	case strings.HasPrefix(data, "category_"):
		categoryID, err := parseID(strings.TrimPrefix(data, "category_"))
		if err != nil {
			b.answerCallbackQuery(query.ID, "Ошибка данных")
			return
		}
		products, err := b.store.ListProducts(ctx, categoryID)
		if err != nil {
			b.log.Error("failed to list products",
				slog.Int64("category_id", categoryID), slog.Any("error", err))
			b.answerCallbackQuery(query.ID, "Произошла ошибка, попробуйте позже.")
			return
		}
		if len(products) == 0 {
			b.answerCallbackQuery(query.ID, "В этой категории пока нет товаров.")
			return
		}
		for _, p := range products {
			kbds := getProductEditButtons(p.ID)
			b.sendMenu(ctx, chatID, &Media{
				Image: p.Image,
				Caption: fmt.Sprintf("<b>%s</b>\n%s\nСтоимость: %s ₽",
					p.Name, p.Description, p.Price.StringFixed(2)),
			}, &kbds)
		}
		b.send(ctx, tgbotapi.NewMessage(chatID, "ОК, вот список товаров ⏫"))
		b.answerCallbackQuery(query.ID, "")

	case strings.HasPrefix(data, "delete_"):
		productID, err := parseID(strings.TrimPrefix(data, "delete_"))
		if err != nil {
			b.answerCallbackQuery(query.ID, "Ошибка данных")
			return
		}
		if err := b.store.DeleteProduct(ctx, productID); err != nil {
			b.log.Error("failed to delete product",
				slog.Int64("product_id", productID), slog.Any("error", err))
			b.answerCallbackQuery(query.ID, "Произошла ошибка, попробуйте позже.")
			return
		}
		b.log.Info("product deleted",
			slog.Int64("product_id", productID), slog.Int64("admin_id", query.From.ID))
		b.answerCallbackQuery(query.ID, "Товар удален!")

	case strings.HasPrefix(data, "change_"):
		productID, err := parseID(strings.TrimPrefix(data, "change_"))
		if err != nil {
			b.answerCallbackQuery(query.ID, "Ошибка данных")
			return
		}
		product, err := b.store.GetProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, storage.ErrProductNotFound) {
				b.answerCallbackQuery(query.ID, "Товар больше не существует.")
				return
			}
			b.log.Error("failed to load product",
				slog.Int64("product_id", productID), slog.Any("error", err))
			b.answerCallbackQuery(query.ID, "Произошла ошибка, попробуйте позже.")
			return
		}
		state.Product = &ProductState{Step: StepProductName, Editing: product}
		b.send(ctx, tgbotapi.NewMessage(chatID,
			"Введите название товара, либо '.' чтобы оставить прежнее:"))
		b.answerCallbackQuery(query.ID, "")

	default:
		b.log.Warn("unhandled admin callback data", slog.String("data", data))
		b.answerCallbackQuery(query.ID, "")
	}
}

// handleProductMessage advances the product form by one step. Every text
// step accepts "." during an edit to keep the previous value.
func (b *Bot) handleProductMessage(ctx context.Context, message *tgbotapi.Message, state *UserState) {
	chatID := message.Chat.ID
	st := state.Product

	switch strings.ToLower(strings.TrimSpace(message.Text)) {
	case adminCancelWord:
		state.reset()
		b.send(ctx, tgbotapi.NewMessage(chatID, "Действия отменены"))
		media, kbds := b.adminPanel(ctx)
		b.sendMenu(ctx, chatID, media, kbds)
		return
	case adminBackWord:
		if st.Step == StepProductName {
			b.send(ctx, tgbotapi.NewMessage(chatID,
				"Предыдущего шага нет. Введите название товара или напишите '"+adminCancelWord+"'."))
			return
		}
		st.Step--
		b.send(ctx, tgbotapi.NewMessage(chatID,
			"Ок, вы вернулись к прошлому шагу.\n"+productRetryTexts[st.Step]))
		return
	}

	switch st.Step {
	case StepProductName:
		if message.Text == "." && st.Editing != nil {
			st.Name = st.Editing.Name
		} else {
			if err := b.validate.Var(message.Text, "required,min=5,max=149"); err != nil {
				b.send(ctx, tgbotapi.NewMessage(chatID,
					"Название не должно превышать 150 символов\nили быть короче 5 символов.\nВведите заново:"))
				return
			}
			st.Name = message.Text
		}
		st.Step = StepProductDescription
		b.send(ctx, tgbotapi.NewMessage(chatID, "Введите описание товара:"))

	case StepProductDescription:
		if message.Text == "." && st.Editing != nil {
			st.Description = st.Editing.Description
		} else {
			if err := b.validate.Var(message.Text, "required,min=5"); err != nil {
				b.send(ctx, tgbotapi.NewMessage(chatID, "Слишком короткое описание.\nВведите заново:"))
				return
			}
			st.Description = message.Text
		}
		st.Step = StepProductCategory
		b.promptProductCategory(ctx, chatID)

	case StepProductCategory:
		// Category is chosen via buttons; free text does not advance.
		b.send(ctx, tgbotapi.NewMessage(chatID, "Выберите категорию из кнопок ⬆️"))

	case StepProductPrice:
		if message.Text == "." && st.Editing != nil {
			st.Price = st.Editing.Price
		} else {
			price, err := decimal.NewFromString(strings.TrimSpace(message.Text))
			if err != nil || !price.IsPositive() {
				b.send(ctx, tgbotapi.NewMessage(chatID, "Введите корректное значение цены:"))
				return
			}
			st.Price = price
		}
		st.Step = StepProductImage
		b.send(ctx, tgbotapi.NewMessage(chatID, "Этот шаг последний, загрузите фото товара:"))

	case StepProductImage:
		switch {
		case len(message.Photo) > 0:
			st.Image = message.Photo[len(message.Photo)-1].FileID
		case message.Text == "." && st.Editing != nil:
			st.Image = st.Editing.Image
		default:
			b.send(ctx, tgbotapi.NewMessage(chatID, "Отправьте фото товара:"))
			return
		}
		b.saveProduct(ctx, message, state)
	}
}

// promptProductCategory shows the category choice keyboard.
func (b *Bot) promptProductCategory(ctx context.Context, chatID int64) {
	categories, err := b.store.ListCategories(ctx)
	if err != nil {
		b.log.Error("failed to list categories", slog.Any("error", err))
		b.send(ctx, tgbotapi.NewMessage(chatID, "Произошла ошибка, попробуйте позже."))
		return
	}
	msg := tgbotapi.NewMessage(chatID, "Выберите категорию:")
	msg.ReplyMarkup = getProductCategoryButtons(categories)
	b.send(ctx, msg)
}

// handleProductCategoryChoice consumes the bare category-id callback emitted
// by the category step's keyboard.
func (b *Bot) handleProductCategoryChoice(ctx context.Context, query *tgbotapi.CallbackQuery, state *UserState) {
	st := state.Product
	categoryID, err := parseID(query.Data)
	if err != nil || categoryID == 0 {
		b.answerCallbackQuery(query.ID, "Выберите категорию кнопкой.")
		return
	}

	st.CategoryID = categoryID
	st.Step = StepProductPrice
	b.answerCallbackQuery(query.ID, "")
	prompt := "Теперь введите стоимость товара:"
	if st.Editing != nil {
		prompt += "\n('.' чтобы оставить прежнюю)"
	}
	b.send(ctx, tgbotapi.NewMessage(query.Message.Chat.ID, prompt))
}

// saveProduct writes the accumulated form to the store. The form clears only
// after the write succeeded.
func (b *Bot) saveProduct(ctx context.Context, message *tgbotapi.Message, state *UserState) {
	chatID := message.Chat.ID
	st := state.Product
	product := &storage.Product{
		Name:        st.Name,
		Description: st.Description,
		Price:       st.Price,
		Image:       st.Image,
		CategoryID:  st.CategoryID,
	}

	var err error
	var productID int64
	if st.Editing != nil {
		productID = st.Editing.ID
		err = b.store.UpdateProduct(ctx, productID, product)
	} else {
		productID, err = b.store.CreateProduct(ctx, product)
	}
	if err != nil {
		b.log.Error("failed to save product",
			slog.Int64("admin_id", message.From.ID),
			slog.String("name", st.Name),
			slog.Any("error", err))
		b.send(ctx, tgbotapi.NewMessage(chatID,
			"Не удалось сохранить товар, отправьте фото еще раз."))
		return
	}

	verb := "добавлен"
	if st.Editing != nil {
		verb = "изменен"
	}
	b.log.Info("product saved",
		slog.Int64("product_id", productID),
		slog.Int64("admin_id", message.From.ID),
		slog.String("name", st.Name))
	state.reset()
	b.send(ctx, tgbotapi.NewMessage(chatID, "Товар "+verb+"!"))
	media, kbds := b.adminPanel(ctx)
	b.sendMenu(ctx, chatID, media, kbds)
}

// handleBannerMessage stores an uploaded banner photo under the page named in
// its caption.
func (b *Bot) handleBannerMessage(ctx context.Context, message *tgbotapi.Message, state *UserState) {
	chatID := message.Chat.ID

	if strings.EqualFold(strings.TrimSpace(message.Text), adminCancelWord) {
		state.reset()
		b.send(ctx, tgbotapi.NewMessage(chatID, "Действия отменены"))
		return
	}
	if len(message.Photo) == 0 {
		b.send(ctx, tgbotapi.NewMessage(chatID, "Отправьте фото баннера или напишите '"+adminCancelWord+"'."))
		return
	}

	names, err := b.bannerNames(ctx)
	if err != nil {
		b.log.Error("failed to list banners", slog.Any("error", err))
		b.send(ctx, tgbotapi.NewMessage(chatID, "Произошла ошибка, попробуйте позже."))
		return
	}

	name := strings.TrimSpace(message.Caption)
	if !slices.Contains(names, name) {
		b.send(ctx, tgbotapi.NewMessage(chatID,
			"Введите нормальное название страницы, например:\n"+strings.Join(names, ", ")))
		return
	}

	image := message.Photo[len(message.Photo)-1].FileID
	if err := b.store.UpdateBannerImage(ctx, name, image); err != nil {
		b.log.Error("failed to update banner",
			slog.String("banner", name), slog.Any("error", err))
		b.send(ctx, tgbotapi.NewMessage(chatID, "Произошла ошибка, попробуйте позже."))
		return
	}

	b.log.Info("banner updated", slog.String("banner", name), slog.Int64("admin_id", message.From.ID))
	state.reset()
	b.send(ctx, tgbotapi.NewMessage(chatID, "Баннер добавлен/изменен."))
}

// bannerNames returns the known banner page names, sorted.
func (b *Bot) bannerNames(ctx context.Context) ([]string, error) {
	banners, err := b.store.ListBanners(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(banners))
	for _, banner := range banners {
		names = append(names, banner.Name)
	}
	sort.Strings(names)
	return names, nil
}
