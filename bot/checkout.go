package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/iabalyuk/telemarket/storage"
)

// Checkout form control words. Distinct from the admin form's so an admin
// filling their own order is not ambiguous.
const (
	checkoutCancelWord = "отмена2"
	checkoutBackWord   = "назад2"
)

// startCheckout begins the checkout form for the product on the viewed cart
// page.
func (b *Bot) startCheckout(ctx context.Context, query *tgbotapi.CallbackQuery, cb *MenuCallback) {
	state := b.state(query.From.ID)
	state.Checkout = &CheckoutState{Step: StepFullName, ProductID: cb.ProductID}

	b.log.Info("checkout started",
		slog.Int64("user_id", query.From.ID), slog.Int64("product_id", cb.ProductID))
	b.send(ctx, tgbotapi.NewMessage(query.Message.Chat.ID, checkoutPrompts[StepFullName]))
	b.answerCallbackQuery(query.ID, "")
}

// handleCheckoutMessage advances the checkout form by one step. Validation
// failures re-prompt the same step and never advance; state advances only
// after the input is accepted, and the final commit only clears the form
// after the order write succeeded.
func (b *Bot) handleCheckoutMessage(ctx context.Context, message *tgbotapi.Message, state *UserState) {
	chatID := message.Chat.ID
	st := state.Checkout

	switch strings.ToLower(strings.TrimSpace(message.Text)) {
	case checkoutCancelWord:
		state.reset()
		b.log.Info("checkout cancelled", slog.Int64("user_id", message.From.ID))
		msg := tgbotapi.NewMessage(chatID, "Действия отменены")
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
		b.send(ctx, msg)
		b.showHome(ctx, chatID, message.From.ID)
		return
	case checkoutBackWord:
		if st.Step == StepFullName {
			b.send(ctx, tgbotapi.NewMessage(chatID,
				"Предыдущего шага нет. Введите ФИО или напишите '"+checkoutCancelWord+"'."))
			return
		}
		st.Step--
		b.send(ctx, tgbotapi.NewMessage(chatID,
			"Ок, вы вернулись к прошлому шагу.\n"+checkoutRetryTexts[st.Step]))
		return
	}

	switch st.Step {
	case StepFullName:
		if err := b.validate.Var(message.Text, "required,min=2,max=150"); err != nil {
			b.send(ctx, tgbotapi.NewMessage(chatID, "Введите еще раз ваше ФИО:"))
			return
		}
		st.FullName = message.Text
		st.Step = StepAddress
		b.send(ctx, tgbotapi.NewMessage(chatID, checkoutPrompts[StepAddress]))

	case StepAddress:
		if err := b.validate.Var(message.Text, "required,min=4"); err != nil {
			b.send(ctx, tgbotapi.NewMessage(chatID, "Повторите адрес доставки:"))
			return
		}
		st.Address = message.Text
		st.Step = StepPhone
		msg := tgbotapi.NewMessage(chatID, checkoutPrompts[StepPhone])
		msg.ReplyMarkup = getContactKeyboard()
		b.send(ctx, msg)

	case StepPhone:
		phone, ok := b.extractPhone(message)
		if !ok {
			msg := tgbotapi.NewMessage(chatID, "Отправьте номер телефона, либо введите его вручную")
			msg.ReplyMarkup = getContactKeyboard()
			b.send(ctx, msg)
			return
		}
		st.Phone = phone
		b.commitCheckout(ctx, message, state)
	}
}

// extractPhone accepts either a structured contact payload or e164 text.
func (b *Bot) extractPhone(message *tgbotapi.Message) (string, bool) {
	var phone string
	if message.Contact != nil {
		phone = message.Contact.PhoneNumber
	} else {
		phone = strings.ReplaceAll(strings.TrimSpace(message.Text), " ", "")
	}
	if phone == "" {
		return "", false
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	if err := b.validate.Var(phone, "e164"); err != nil {
		return "", false
	}
	return phone, true
}

// commitCheckout creates the order from the accumulated answers and fires
// the admin notification. The notification is best-effort; the commit is
// done once the store write succeeded.
func (b *Bot) commitCheckout(ctx context.Context, message *tgbotapi.Message, state *UserState) {
	chatID := message.Chat.ID
	userID := message.From.ID
	st := state.Checkout

	media, kbds, order, err := b.menu.CommitOrder(ctx, userID, st)
	if err != nil {
		if errors.Is(err, storage.ErrCartLineNotFound) || errors.Is(err, storage.ErrProductNotFound) {
			state.reset()
			b.log.Warn("checkout referenced a stale cart line",
				slog.Int64("user_id", userID),
				slog.Int64("product_id", st.ProductID),
				slog.Any("error", err))
			msg := tgbotapi.NewMessage(chatID, "Этого товара больше нет в корзине. Заказ не оформлен.")
			msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
			b.send(ctx, msg)
			return
		}
		// Transient store failure: keep the form parked at the phone step so
		// the user can retry without re-entering everything.
		b.log.Error("failed to commit order",
			slog.Int64("user_id", userID),
			slog.Int64("product_id", st.ProductID),
			slog.Any("error", err))
		b.send(ctx, tgbotapi.NewMessage(chatID,
			"Не удалось оформить заказ, попробуйте отправить номер еще раз."))
		return
	}

	state.reset()
	b.notifyOrder(*order)

	msg := tgbotapi.NewMessage(chatID, "Заказ в обработке")
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.send(ctx, msg)
	b.sendMenu(ctx, chatID, media, kbds)
}

// showHome renders the home screen as a new message.
func (b *Bot) showHome(ctx context.Context, chatID, userID int64) {
	media, kbds, err := b.menu.Resolve(ctx, MenuCallback{Level: ScreenMain, MenuName: "main", Page: 1}, userID)
	if err != nil {
		b.log.Error("failed to resolve main menu", slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}
	b.sendMenu(ctx, chatID, media, kbds)
}

// handlePaymentRequest creates a payment intent for the viewed order and
// renders the invoice carrying its reference.
func (b *Bot) handlePaymentRequest(ctx context.Context, query *tgbotapi.CallbackQuery, cb *MenuCallback) {
	chatID := query.Message.Chat.ID

	order, err := b.store.GetOrder(ctx, cb.OrderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			b.answerCallbackQuery(query.ID, "Заказ больше не существует.")
			return
		}
		b.log.Error("failed to load order for payment",
			slog.Int64("order_id", cb.OrderID), slog.Any("error", err))
		b.answerCallbackQuery(query.ID, "Произошла ошибка, попробуйте позже.")
		return
	}
	if order.Paid {
		b.answerCallbackQuery(query.ID, "Заказ уже оплачен.")
		return
	}

	description := fmt.Sprintf("Оплата заказа #%d", order.ID)
	intent, err := b.payments.CreatePayment(ctx, order.TotalPrice, description)
	if err != nil {
		b.log.Error("failed to create payment",
			slog.Int64("order_id", order.ID),
			slog.Int64("user_id", query.From.ID),
			slog.Any("error", err))
		b.answerCallbackQuery(query.ID, "Не удалось создать платеж, попробуйте позже.")
		return
	}

	cents := int(order.TotalPrice.Mul(decimal.NewFromInt(100)).IntPart())
	invoice := tgbotapi.NewInvoice(chatID,
		"Оплата заказа", description,
		fmt.Sprintf("order_%d", order.ID),
		b.opts.ProviderToken, intent.ID, b.opts.Currency,
		[]tgbotapi.LabeledPrice{{Label: "Товар", Amount: cents}})
	b.send(ctx, invoice)
	b.answerCallbackQuery(query.ID, "")
}
