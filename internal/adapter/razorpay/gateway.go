// Package razorpay implements the payment gateway port against the Razorpay
// Orders API.
package razorpay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/port/payment"
	"github.com/Strob0t/Studio/internal/resilience"
)

const providerName = "razorpay"

// Config configures the gateway. KeySecret is read on every call so a vault
// reload takes effect without a restart.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret func() string
	Timeout   time.Duration
}

// Gateway creates orders over the Razorpay REST API. Each CreateOrder makes
// exactly one attempt.
type Gateway struct {
	client  *resty.Client
	keyID   string
	secret  func() string
	breaker *resilience.Breaker
}

var _ payment.Gateway = (*Gateway)(nil)

// New creates a Gateway. breaker may be nil.
func New(cfg Config, breaker *resilience.Breaker) *Gateway {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Gateway{
		client:  client,
		keyID:   cfg.KeyID,
		secret:  cfg.KeySecret,
		breaker: breaker,
	}
}

// KeyID returns the public key id passed to the checkout widget.
func (g *Gateway) KeyID() string { return g.keyID }

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder opens an order for in.AmountMinor.
func (g *Gateway) CreateOrder(ctx context.Context, in payment.OrderInput) (*payment.Order, error) {
	if g.keyID == "" || g.secret == nil || g.secret() == "" {
		return nil, &domain.UpstreamError{Provider: providerName, Message: "payment gateway is not configured"}
	}

	var order *payment.Order
	call := func() error {
		var err error
		order, err = g.createOrder(ctx, in)
		return err
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Execute(call)
	} else {
		err = call()
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: payment provider unavailable for %s", domain.ErrRetryLater, g.breaker.RetryIn().Round(time.Second))
	}
	return order, err
}

func (g *Gateway) createOrder(ctx context.Context, in payment.OrderInput) (*payment.Order, error) {
	var (
		result payment.Order
		failed apiError
	)
	resp, err := g.client.R().
		SetContext(ctx).
		SetBasicAuth(g.keyID, g.secret()).
		SetBody(orderRequest{
			Amount:   in.AmountMinor,
			Currency: in.Currency,
			Receipt:  in.Receipt,
			Notes:    in.Notes,
		}).
		SetResult(&result).
		SetError(&failed).
		Post("/orders")
	if err != nil {
		return nil, &domain.UpstreamError{Provider: providerName, Message: err.Error()}
	}

	if resp.IsError() {
		msg := failed.Error.Description
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return nil, &domain.UpstreamError{Provider: providerName, StatusCode: resp.StatusCode(), Message: msg}
	}
	if result.ID == "" {
		return nil, &domain.UpstreamError{Provider: providerName, StatusCode: resp.StatusCode(), Message: "order response has no id"}
	}
	return &result, nil
}
