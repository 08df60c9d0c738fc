// Package payment talks to a YooKassa-style payment provider over HTTP.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.yookassa.ru/v3"

// Client is a payment-provider API client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger

	baseURL   string
	shopID    string
	secretKey string
	returnURL string
	currency  string
}

// Payment is a created payment intent. ConfirmationURL is where the user
// completes the payment.
type Payment struct {
	ID              string
	Status          string
	ConfirmationURL string
}

type amountBody struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmationBody struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type createPaymentRequest struct {
	Amount       amountBody       `json:"amount"`
	Confirmation confirmationBody `json:"confirmation"`
	Capture      bool             `json:"capture"`
	Description  string           `json:"description"`
}

type paymentResponse struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Confirmation *confirmationBody `json:"confirmation"`
}

// Option tweaks the client, mostly for tests.
type Option func(*Client)

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// NewClient creates a payment client authenticated with the shop credentials.
func NewClient(shopID, secretKey, returnURL, currency string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		// The provider allows a modest request rate; stay well under it.
		limiter:   rate.NewLimiter(10, 5),
		log:       log,
		baseURL:   defaultBaseURL,
		shopID:    shopID,
		secretKey: secretKey,
		returnURL: returnURL,
		currency:  currency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreatePayment registers a payment intent for the given amount and returns
// its id and confirmation reference. The request carries a fresh idempotence
// key, so a transport-level retry cannot double-charge.
func (c *Client) CreatePayment(ctx context.Context, amount decimal.Decimal, description string) (*Payment, error) {
	body := createPaymentRequest{
		Amount:       amountBody{Value: amount.StringFixed(2), Currency: c.currency},
		Confirmation: confirmationBody{Type: "redirect", ReturnURL: c.returnURL},
		Capture:      true,
		Description:  description,
	}

	var resp paymentResponse
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/payments", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	p := &Payment{ID: resp.ID, Status: resp.Status}
	if resp.Confirmation != nil {
		p.ConfirmationURL = resp.Confirmation.ConfirmationURL
	}
	c.log.Info("created payment",
		slog.String("payment_id", p.ID),
		slog.String("amount", amount.StringFixed(2)),
		slog.String("status", p.Status))
	return p, nil
}

// doRequest handles the common logic for provider calls: rate limiting,
// auth, idempotence key, JSON encoding on both sides.
func (c *Client) doRequest(ctx context.Context, method, url string, payload, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error (%s %s): %w", method, url, err)
	}

	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("request context error (%s %s): %w", method, url, ctxErr)
		}
		return fmt.Errorf("failed to execute request (%s %s): %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status code %d for %s %s: %s", resp.StatusCode, method, url, body)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response for %s %s: %w", method, url, err)
		}
	}
	return nil
}
