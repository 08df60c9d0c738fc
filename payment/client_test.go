package payment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreatePayment(t *testing.T) {
	var gotReq createPaymentRequest
	var gotIdempotenceKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "shop-1", user)
		assert.Equal(t, "secret", pass)

		gotIdempotenceKey = r.Header.Get("Idempotence-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(paymentResponse{
			ID:     "pay-123",
			Status: "pending",
			Confirmation: &confirmationBody{
				Type:            "redirect",
				ConfirmationURL: "https://pay.example/confirm/pay-123",
			},
		})
	}))
	defer srv.Close()

	c := NewClient("shop-1", "secret", "https://t.me/shopbot", "RUB", testLogger(),
		WithBaseURL(srv.URL))

	p, err := c.CreatePayment(context.Background(), decimal.RequireFromString("199.9"), "Оплата заказа #7")
	require.NoError(t, err)
	assert.Equal(t, "pay-123", p.ID)
	assert.Equal(t, "pending", p.Status)
	assert.Equal(t, "https://pay.example/confirm/pay-123", p.ConfirmationURL)

	assert.Equal(t, "199.90", gotReq.Amount.Value)
	assert.Equal(t, "RUB", gotReq.Amount.Currency)
	assert.Equal(t, "redirect", gotReq.Confirmation.Type)
	assert.Equal(t, "https://t.me/shopbot", gotReq.Confirmation.ReturnURL)
	assert.True(t, gotReq.Capture)
	assert.Equal(t, "Оплата заказа #7", gotReq.Description)

	// The idempotence key must be a valid, present UUID.
	_, err = uuid.Parse(gotIdempotenceKey)
	assert.NoError(t, err)
}

func TestCreatePaymentFreshIdempotenceKeys(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotence-Key"))
		_ = json.NewEncoder(w).Encode(paymentResponse{ID: "p", Status: "pending"})
	}))
	defer srv.Close()

	c := NewClient("shop-1", "secret", "", "RUB", testLogger(), WithBaseURL(srv.URL))
	for i := 0; i < 2; i++ {
		_, err := c.CreatePayment(context.Background(), decimal.NewFromInt(10), "x")
		require.NoError(t, err)
	}
	require.Len(t, keys, 2)
	assert.NotEqual(t, keys[0], keys[1])
}

func TestCreatePaymentProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"description":"invalid credentials"}`))
	}))
	defer srv.Close()

	c := NewClient("shop-1", "wrong", "", "RUB", testLogger(), WithBaseURL(srv.URL))
	_, err := c.CreatePayment(context.Background(), decimal.NewFromInt(10), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestCreatePaymentContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient("shop-1", "secret", "", "RUB", testLogger(), WithBaseURL(srv.URL))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CreatePayment(ctx, decimal.NewFromInt(10), "x")
	assert.ErrorIs(t, err, context.Canceled)
}
