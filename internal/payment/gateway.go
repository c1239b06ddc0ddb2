// Package payment adapts third-party payment gateways to a single capability
// the booking services can drive. Gateways never mutate bookings.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"carbooking-backend/internal/domain"
)

var (
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrUnknownProvider  = errors.New("unknown payment provider")
)

type EventType string

const (
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentFailed    EventType = "payment.failed"
	EventPaymentPending   EventType = "payment.pending"
	EventIgnored          EventType = "ignored"
)

// Order is a gateway-side payment order correlated to one booking.
type Order struct {
	ID           string `json:"order_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// Callback is the payload a client posts back after completing checkout.
type Callback struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// Event is a normalized gateway signal.
type Event struct {
	ID            string
	Type          EventType
	OrderID       string
	TransactionID string
	Amount        int64
	FailureReason string
}

type RefundResult struct {
	ID     string
	Status string
}

// Gateway is the capability each payment provider implements.
type Gateway interface {
	Provider() domain.PaymentProvider
	CreateOrder(ctx context.Context, amount int64, currency string, meta map[string]string) (*Order, error)
	// VerifyCallback authenticates a synchronous checkout callback and reports the payment it proves.
	VerifyCallback(ctx context.Context, cb Callback) (*Event, error)
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*Event, error)
	FetchStatus(ctx context.Context, orderID string) (*Event, error)
	Refund(ctx context.Context, transactionID string, amount int64) (*RefundResult, error)
}

// Registry resolves gateways by provider.
type Registry struct {
	gateways map[domain.PaymentProvider]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[domain.PaymentProvider]Gateway)}
	for _, g := range gateways {
		if g != nil {
			r.gateways[g.Provider()] = g
		}
	}
	return r
}

func (r *Registry) Get(provider domain.PaymentProvider) (Gateway, error) {
	g, ok := r.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return g, nil
}

func (r *Registry) Providers() []domain.PaymentProvider {
	out := make([]domain.PaymentProvider, 0, len(r.gateways))
	for p := range r.gateways {
		out = append(out, p)
	}
	return out
}
