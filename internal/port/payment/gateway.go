// Package payment defines the payment gateway port.
package payment

import "context"

// OrderInput is what the gateway needs to open an order.
type OrderInput struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// Order is the gateway's view of a created order.
type Order struct {
	ID          string            `json:"id"`
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Status      string            `json:"status"`
	Notes       map[string]string `json:"notes"`
}

// Gateway creates orders with an external payment provider. Implementations
// make exactly one attempt; failures are returned as *domain.UpstreamError
// carrying the provider's message.
type Gateway interface {
	CreateOrder(ctx context.Context, in OrderInput) (*Order, error)
	// KeyID is the public key the checkout widget needs.
	KeyID() string
}
