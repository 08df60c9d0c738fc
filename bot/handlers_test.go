package bot

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userCallback(userID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "q1",
		From: &tgbotapi.User{ID: userID, FirstName: "Тест"},
		Message: &tgbotapi.Message{
			MessageID: 5,
			Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		},
		Data: data,
	}
}

func commandMessage(userID int64, command string) *tgbotapi.Message {
	msg := privateMessage(userID, command)
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}}
	return msg
}

func TestStartCommandSendsHomeScreen(t *testing.T) {
	b, api, _, _, _ := newTestBot()

	b.handleMessage(context.Background(), commandMessage(1, "/start"))

	// The home banner has a photo, so the screen goes out as one.
	require.NotEmpty(t, api.sent)
	photo, ok := api.sent[len(api.sent)-1].(tgbotapi.PhotoConfig)
	require.True(t, ok, "expected a photo message, got %T", api.sent[len(api.sent)-1])
	assert.Equal(t, "Добро пожаловать!", photo.Caption)
}

func TestMenuNavigationEditsInPlace(t *testing.T) {
	b, api, _, _, _ := newTestBot()

	cb := MenuCallback{Level: ScreenCatalog, MenuName: "catalog", Page: 1}
	b.handleCallbackQuery(context.Background(), userCallback(1, cb.Pack()))

	// The catalog banner has no photo, so the edit swaps the text.
	require.NotEmpty(t, api.sent)
	edit, ok := api.sent[len(api.sent)-1].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok, "expected a text edit, got %T", api.sent[len(api.sent)-1])
	assert.Equal(t, "Категории:", edit.Text)
}

func TestMenuCallbackBlockedDuringForm(t *testing.T) {
	b, api, _, _, _ := newTestBot()
	b.state(1).Checkout = &CheckoutState{Step: StepFullName}

	cb := MenuCallback{Level: ScreenMain, MenuName: "main", Page: 1}
	b.handleCallbackQuery(context.Background(), userCallback(1, cb.Pack()))

	assert.Empty(t, api.sent, "no screen may render while a form is in flight")
	require.Len(t, api.requests, 1)
	answer, ok := api.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Contains(t, answer.Text, "завершите")
}

func TestStalePageYieldsToast(t *testing.T) {
	b, api, catalog, _, _ := newTestBot()
	addProduct(catalog, "Пицца", "100.00", 1)

	cb := MenuCallback{Level: ScreenProducts, MenuName: "catalog", CategoryID: 1, Page: 5}
	b.handleCallbackQuery(context.Background(), userCallback(1, cb.Pack()))

	require.Len(t, api.requests, 1)
	answer, ok := api.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Contains(t, answer.Text, "Страница устарела")
}

func TestUnknownCommand(t *testing.T) {
	b, api, _, _, _ := newTestBot()

	b.handleMessage(context.Background(), commandMessage(1, "/frobnicate"))
	assert.Contains(t, api.lastMessageText(t), "Неизвестная команда")
}

func TestAdminCommandIgnoredForNonAdmin(t *testing.T) {
	b, api, _, _, _ := newTestBot()

	b.handleMessage(context.Background(), commandMessage(1, "/admin"))
	assert.Empty(t, api.sent)
}
