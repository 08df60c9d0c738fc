// Package bot implements the conversational storefront: a level-based menu
// navigation engine, checkout and product-authoring forms, and an admin
// panel, all driven by Telegram updates.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/iabalyuk/telemarket/payment"
	"github.com/iabalyuk/telemarket/storage"
)

// Options carries the bot's static configuration.
type Options struct {
	Token string
	// AdminIDs are always authorized for the admin panel.
	AdminIDs []int64
	// NotifyChatID receives new-order notifications; zero disables them.
	NotifyChatID int64
	// ProviderToken is the Telegram payments provider token for invoices.
	ProviderToken string
	Currency      string
	Debug         bool
}

// telegramAPI is the slice of the Bot API client the bot calls. Tests
// substitute a recording fake; production uses *tgbotapi.BotAPI.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
}

var _ telegramAPI = (*tgbotapi.BotAPI)(nil)

// Bot wires the Telegram transport to the navigation engine and the stores.
type Bot struct {
	api      telegramAPI
	username string
	store    storage.Store
	menu     *Menu
	payments *payment.Client
	validate *validator.Validate
	log      *slog.Logger
	opts     Options

	// userStates is only touched from the update loop goroutine; the
	// transport serializes one user's updates, so no lock is needed.
	userStates map[int64]*UserState

	// adminRoster caches chat id -> administrator ids, refreshed by /admin
	// in that chat.
	rosterMu    sync.RWMutex
	adminRoster map[int64]map[int64]struct{}

	// limiter throttles outbound API calls below Telegram's rate limits.
	limiter *rate.Limiter

	// notifyCh carries freshly created orders to the admin notifier.
	notifyCh chan storage.Order
}

// New creates a bot instance.
func New(opts Options, store storage.Store, payments *payment.Client, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = opts.Debug

	return &Bot{
		api:         api,
		username:    api.Self.UserName,
		store:       store,
		menu:        NewMenu(store, store, store, log),
		payments:    payments,
		validate:    validator.New(),
		log:         log,
		opts:        opts,
		userStates:  make(map[int64]*UserState),
		adminRoster: make(map[int64]map[int64]struct{}),
		limiter:     rate.NewLimiter(25, 5),
		notifyCh:    make(chan storage.Order, 100),
	}, nil
}

// Start runs the long-polling update loop until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.log.Info("bot started", slog.String("username", b.username))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// RunNotifier forwards new-order notifications to the configured admin chat.
// Failures are logged and swallowed: a misfiring notification must never
// affect the order that triggered it.
func (b *Bot) RunNotifier(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case order := <-b.notifyCh:
			if b.opts.NotifyChatID == 0 {
				continue
			}
			text := fmt.Sprintf(
				"🛒 <b>Новый заказ #%d</b>\n👤 Клиент: %s\n📞 Телефон: %s\n📍 Адрес: %s\n💰 Сумма: %s\n🕒 Время: %s",
				order.ID, order.FullName, order.Phone, order.Address,
				order.TotalPrice.StringFixed(2), order.Created.Format("02.01.2006 15:04"))
			msg := tgbotapi.NewMessage(b.opts.NotifyChatID, text)
			msg.ParseMode = tgbotapi.ModeHTML
			if _, err := b.sendChecked(ctx, msg); err != nil {
				b.log.Error("failed to notify admin about order",
					slog.Int64("order_id", order.ID), slog.Any("error", err))
			}
		}
	}
}

// notifyOrder queues an order for the admin notifier without ever blocking
// the commit path.
func (b *Bot) notifyOrder(order storage.Order) {
	select {
	case b.notifyCh <- order:
	default:
		b.log.Warn("notification queue full, dropping order notification",
			slog.Int64("order_id", order.ID))
	}
}

// state returns the session for a user, creating it on first contact.
func (b *Bot) state(userID int64) *UserState {
	st, ok := b.userStates[userID]
	if !ok {
		st = &UserState{}
		b.userStates[userID] = st
	}
	return st
}

// refreshAdminRoster recomputes the cached administrator set for one chat.
func (b *Bot) refreshAdminRoster(chatID int64) error {
	members, err := b.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return fmt.Errorf("failed to get chat administrators: %w", err)
	}

	admins := make(map[int64]struct{}, len(members))
	for _, m := range members {
		if m.Status == "creator" || m.Status == "administrator" {
			admins[m.User.ID] = struct{}{}
		}
	}

	b.rosterMu.Lock()
	b.adminRoster[chatID] = admins
	b.rosterMu.Unlock()
	b.log.Info("admin roster refreshed",
		slog.Int64("chat_id", chatID), slog.Int("admins", len(admins)))
	return nil
}

// isAdmin reports whether the user is in the configured admin list or in any
// cached chat roster.
func (b *Bot) isAdmin(userID int64) bool {
	for _, id := range b.opts.AdminIDs {
		if id == userID {
			return true
		}
	}
	b.rosterMu.RLock()
	defer b.rosterMu.RUnlock()
	for _, admins := range b.adminRoster {
		if _, ok := admins[userID]; ok {
			return true
		}
	}
	return false
}

// send performs a rate-limited API send, logging failures.
func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) {
	if _, err := b.sendChecked(ctx, c); err != nil {
		b.log.Error("failed to send message", slog.Any("error", err))
	}
}

func (b *Bot) sendChecked(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	return b.api.Send(c)
}

// answerCallbackQuery acknowledges a button press, optionally with a toast.
func (b *Bot) answerCallbackQuery(queryID string, text string) {
	callback := tgbotapi.NewCallback(queryID, text)
	if _, err := b.api.Request(callback); err != nil {
		b.log.Error("failed to answer callback query",
			slog.String("query_id", queryID), slog.Any("error", err))
	}
}
