package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iabalyuk/telemarket/storage"
)

// handleUpdate routes one inbound update. Each update is handled to
// completion before the next one is read.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.PreCheckoutQuery != nil:
		b.handlePreCheckout(ctx, update.PreCheckoutQuery)
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage routes text, contact and photo messages.
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.SuccessfulPayment != nil {
		b.handleSuccessfulPayment(ctx, message)
		return
	}

	if message.Chat.IsGroup() || message.Chat.IsSuperGroup() {
		b.handleGroupMessage(ctx, message)
		return
	}
	if !message.Chat.IsPrivate() {
		return
	}

	userID := message.From.ID
	state := b.state(userID)

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			b.handleStartCommand(ctx, message)
		case "admin":
			if b.isAdmin(userID) {
				b.handleAdminCommand(ctx, message)
			}
		default:
			b.send(ctx, tgbotapi.NewMessage(message.Chat.ID,
				"Неизвестная команда. Используйте /start для открытия магазина."))
		}
		return
	}

	// Form input is routed to whichever workflow is in flight.
	switch {
	case state.Checkout != nil:
		b.handleCheckoutMessage(ctx, message, state)
	case state.Product != nil:
		b.handleProductMessage(ctx, message, state)
	case state.AwaitBanner:
		b.handleBannerMessage(ctx, message, state)
	default:
		b.send(ctx, tgbotapi.NewMessage(message.Chat.ID,
			"Используйте /start и кнопки меню."))
	}
}

// handleGroupMessage serves /admin in groups: it refreshes the cached
// administrator roster for that chat.
func (b *Bot) handleGroupMessage(ctx context.Context, message *tgbotapi.Message) {
	if !message.IsCommand() || message.Command() != "admin" {
		return
	}
	chatID := message.Chat.ID
	if err := b.refreshAdminRoster(chatID); err != nil {
		b.log.Error("failed to refresh admin roster",
			slog.Int64("chat_id", chatID), slog.Any("error", err))
		return
	}
	if b.isAdmin(message.From.ID) {
		del := tgbotapi.NewDeleteMessage(chatID, message.MessageID)
		if _, err := b.api.Request(del); err != nil {
			b.log.Warn("failed to delete /admin message", slog.Any("error", err))
		}
	}
}

// handleStartCommand shows the home screen.
func (b *Bot) handleStartCommand(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	user := storage.User{UserID: userID, FirstName: message.From.FirstName, LastName: message.From.LastName}
	if err := b.store.UpsertUser(ctx, user); err != nil {
		b.log.Error("failed to upsert user", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	media, kbds, err := b.menu.Resolve(ctx, MenuCallback{Level: ScreenMain, MenuName: "main", Page: 1}, userID)
	if err != nil {
		b.log.Error("failed to resolve main menu", slog.Int64("user_id", userID), slog.Any("error", err))
		b.send(ctx, tgbotapi.NewMessage(message.Chat.ID, "Произошла ошибка, попробуйте позже."))
		return
	}
	b.sendMenu(ctx, message.Chat.ID, media, kbds)
}

// handleCallbackQuery routes button presses by callback-data prefix and the
// sender's in-flight form, mirroring how commands are routed for messages.
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	userID := query.From.ID
	state := b.state(userID)
	data := query.Data

	// The category step of the product form consumes raw category-id
	// callbacks that no other screen produces.
	if state.Product != nil && state.Product.Step == StepProductCategory {
		b.handleProductCategoryChoice(ctx, query, state)
		return
	}

	switch {
	case IsMenuCallback(data):
		if !state.idle() {
			b.answerCallbackQuery(query.ID, "Сначала завершите текущую операцию или напишите 'отмена'.")
			return
		}
		b.handleMenuCallback(ctx, query)
	case IsAdminCallback(data), IsOrderCallback(data),
		strings.HasPrefix(data, "category_"),
		strings.HasPrefix(data, "delete_"),
		strings.HasPrefix(data, "change_"):
		if !b.isAdmin(userID) {
			b.answerCallbackQuery(query.ID, "Недостаточно прав.")
			return
		}
		b.handleAdminCallbackQuery(ctx, query, state)
	default:
		b.log.Warn("unhandled callback data", slog.String("data", data))
		b.answerCallbackQuery(query.ID, "")
	}
}

// handleMenuCallback serves the user-facing navigation engine. The three
// menu names with side effects outside the engine (add_to_cart, order,
// payment) are intercepted before resolution.
func (b *Bot) handleMenuCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	userID := query.From.ID
	chatID := query.Message.Chat.ID

	cb, err := ParseMenuCallback(query.Data)
	if err != nil {
		b.log.Warn("invalid menu callback", slog.String("data", query.Data), slog.Any("error", err))
		b.answerCallbackQuery(query.ID, "Ошибка данных")
		return
	}

	// The interception is screen-gated: "payment" on the home screen is the
	// payment-info page, "payment" on the payment screen is an invoice.
	switch {
	case cb.Level == ScreenProducts && cb.MenuName == "add_to_cart":
		b.handleAddToCart(ctx, query, cb)
		return
	case cb.Level == ScreenCheckout && cb.MenuName == "order":
		b.startCheckout(ctx, query, cb)
		return
	case cb.Level == ScreenPayment && cb.MenuName == "payment":
		b.handlePaymentRequest(ctx, query, cb)
		return
	}

	media, kbds, err := b.menu.Resolve(ctx, *cb, userID)
	if err != nil {
		b.reportMenuError(ctx, query, cb, err)
		return
	}
	b.editMenu(ctx, chatID, query.Message.MessageID, media, kbds)
	b.answerCallbackQuery(query.ID, "")
}

// reportMenuError turns resolution failures into user-visible feedback.
func (b *Bot) reportMenuError(ctx context.Context, query *tgbotapi.CallbackQuery, cb *MenuCallback, err error) {
	logAttrs := []any{
		slog.Int64("user_id", query.From.ID),
		slog.String("screen", cb.Level.String()),
		slog.String("menu", cb.MenuName),
		slog.Any("error", err),
	}
	switch {
	case errors.Is(err, storage.ErrProductNotFound),
		errors.Is(err, storage.ErrOrderNotFound),
		errors.Is(err, storage.ErrCartLineNotFound):
		b.log.Warn("stale entity referenced from menu", logAttrs...)
		b.answerCallbackQuery(query.ID, "Этого больше не существует. Обновите меню через /start.")
	case errors.Is(err, ErrPageOutOfRange):
		b.log.Warn("stale page referenced from menu", logAttrs...)
		b.answerCallbackQuery(query.ID, "Страница устарела. Обновите меню через /start.")
	default:
		b.log.Error("failed to resolve menu", logAttrs...)
		b.answerCallbackQuery(query.ID, "Произошла ошибка, попробуйте позже.")
	}
}

// handleAddToCart registers the user if needed and adds one unit of the
// product to their cart.
func (b *Bot) handleAddToCart(ctx context.Context, query *tgbotapi.CallbackQuery, cb *MenuCallback) {
	userID := query.From.ID
	user := storage.User{UserID: userID, FirstName: query.From.FirstName, LastName: query.From.LastName}
	if err := b.store.UpsertUser(ctx, user); err != nil {
		b.log.Error("failed to upsert user", slog.Int64("user_id", userID), slog.Any("error", err))
		b.answerCallbackQuery(query.ID, "Произошла ошибка, попробуйте позже.")
		return
	}
	if err := b.store.AddToCart(ctx, userID, cb.ProductID); err != nil {
		b.log.Error("failed to add product to cart",
			slog.Int64("user_id", userID),
			slog.Int64("product_id", cb.ProductID),
			slog.Any("error", err))
		b.answerCallbackQuery(query.ID, "Произошла ошибка, попробуйте позже.")
		return
	}
	b.answerCallbackQuery(query.ID, "Товар добавлен в корзину.")
}

// sendMenu sends a screen as a fresh message.
func (b *Bot) sendMenu(ctx context.Context, chatID int64, media *Media, kbds *tgbotapi.InlineKeyboardMarkup) {
	if media.Image == "" {
		msg := tgbotapi.NewMessage(chatID, media.Caption)
		msg.ParseMode = tgbotapi.ModeHTML
		if kbds != nil {
			msg.ReplyMarkup = kbds
		}
		b.send(ctx, msg)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(media.Image))
	photo.Caption = media.Caption
	photo.ParseMode = tgbotapi.ModeHTML
	if kbds != nil {
		photo.ReplyMarkup = kbds
	}
	b.send(ctx, photo)
}

// editMenu replaces the displayed screen in place. When the banner has no
// photo the caption-only fallback edits the message text instead.
func (b *Bot) editMenu(ctx context.Context, chatID int64, messageID int, media *Media, kbds *tgbotapi.InlineKeyboardMarkup) {
	if media.Image == "" {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, media.Caption)
		edit.ParseMode = tgbotapi.ModeHTML
		edit.ReplyMarkup = kbds
		b.send(ctx, edit)
		return
	}

	photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(media.Image))
	photo.Caption = media.Caption
	photo.ParseMode = tgbotapi.ModeHTML
	edit := tgbotapi.EditMessageMediaConfig{
		BaseEdit: tgbotapi.BaseEdit{
			ChatID:      chatID,
			MessageID:   messageID,
			ReplyMarkup: kbds,
		},
		Media: photo,
	}
	b.send(ctx, edit)
}

// handlePreCheckout acknowledges the provider's pre-checkout probe.
func (b *Bot) handlePreCheckout(ctx context.Context, query *tgbotapi.PreCheckoutQuery) {
	answer := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: query.ID, OK: true}
	if _, err := b.api.Request(answer); err != nil {
		b.log.Error("failed to answer pre-checkout query", slog.Any("error", err))
		return
	}
	b.send(ctx, tgbotapi.NewMessage(query.From.ID, "Спасибо за оплату! Проверяем платеж..."))
}

// handleSuccessfulPayment marks the order paid. The payload format is
// "order_<id>"; a duplicate confirmation is acknowledged but not treated as
// a second charge.
func (b *Bot) handleSuccessfulPayment(ctx context.Context, message *tgbotapi.Message) {
	pay := message.SuccessfulPayment
	orderID, err := orderIDFromPayload(pay.InvoicePayload)
	if err != nil {
		b.log.Error("invalid invoice payload",
			slog.String("payload", pay.InvoicePayload), slog.Any("error", err))
		return
	}

	changed, err := b.store.SetOrderPaid(ctx, orderID)
	if err != nil {
		b.log.Error("failed to mark order paid",
			slog.Int64("order_id", orderID),
			slog.Int64("user_id", message.From.ID),
			slog.Any("error", err))
		if errors.Is(err, storage.ErrOrderNotFound) {
			b.send(ctx, tgbotapi.NewMessage(message.Chat.ID,
				"Платеж получен, но заказ не найден. Свяжитесь с поддержкой."))
			return
		}
		b.send(ctx, tgbotapi.NewMessage(message.Chat.ID,
			"Платеж получен, обновляем заказ. Если статус не изменится, свяжитесь с поддержкой."))
		return
	}
	if !changed {
		b.log.Warn("duplicate payment confirmation",
			slog.Int64("order_id", orderID), slog.Int64("user_id", message.From.ID))
	}

	b.send(ctx, tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf(
		"✅ Платеж получен!\nID: %s\nСумма: %.2f %s\nЗаказ: %s",
		pay.TelegramPaymentChargeID,
		float64(pay.TotalAmount)/100, pay.Currency,
		pay.InvoicePayload)))
}

// orderIDFromPayload extracts the order id from an "order_<id>" payload.
func orderIDFromPayload(payload string) (int64, error) {
	rest, ok := strings.CutPrefix(payload, "order_")
	if !ok {
		return 0, fmt.Errorf("payload %q does not start with order_", payload)
	}
	id, err := parseID(rest)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("payload %q carries no order id", payload)
	}
	return id, nil
}
