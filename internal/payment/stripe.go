package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"carbooking-backend/internal/domain"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// minorUnits converts whole currency amounts to the gateways' smallest unit.
const minorUnits = 100

// StripeGateway settles bookings with PaymentIntents. The intent id is both
// the order id and the transaction id.
type StripeGateway struct {
	client        *stripe.Client
	webhookSecret string
}

func NewStripeGateway(apiKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{
		client:        stripe.NewClient(apiKey),
		webhookSecret: webhookSecret,
	}
}

// NewStripeGatewayWithClient wires a preconfigured client, for example one
// pointed at stripe-mock.
func NewStripeGatewayWithClient(client *stripe.Client, webhookSecret string) *StripeGateway {
	return &StripeGateway{client: client, webhookSecret: webhookSecret}
}

func (g *StripeGateway) Provider() domain.PaymentProvider { return domain.PaymentProviderStripe }

func (g *StripeGateway) CreateOrder(ctx context.Context, amount int64, currency string, meta map[string]string) (*Order, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(amount * minorUnits),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: meta,
	}
	pi, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return &Order{
		ID:           pi.ID,
		Amount:       amount,
		Currency:     currency,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// VerifyCallback trusts nothing from the client except the intent id and
// reads the intent's state back from Stripe.
func (g *StripeGateway) VerifyCallback(ctx context.Context, cb Callback) (*Event, error) {
	return g.FetchStatus(ctx, cb.OrderID)
}

func (g *StripeGateway) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, header.Get("Stripe-Signature"), g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled", "payment_intent.processing":
	default:
		return &Event{ID: event.ID, Type: EventIgnored}, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("stripe: parse payment intent: %w", err)
	}
	ev := stripeIntentEvent(&pi)
	ev.ID = event.ID
	return ev, nil
}

func (g *StripeGateway) FetchStatus(ctx context.Context, orderID string) (*Event, error) {
	pi, err := g.client.V1PaymentIntents.Retrieve(ctx, orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe: retrieve payment intent %s: %w", orderID, err)
	}
	return stripeIntentEvent(pi), nil
}

func (g *StripeGateway) Refund(ctx context.Context, transactionID string, amount int64) (*RefundResult, error) {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(transactionID),
		Amount:        stripe.Int64(amount * minorUnits),
	}
	r, err := g.client.V1Refunds.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: refund %s: %w", transactionID, err)
	}
	return &RefundResult{ID: r.ID, Status: string(r.Status)}, nil
}

func stripeIntentEvent(pi *stripe.PaymentIntent) *Event {
	ev := &Event{
		Type:          EventPaymentPending,
		OrderID:       pi.ID,
		TransactionID: pi.ID,
		Amount:        pi.AmountReceived / minorUnits,
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		ev.Type = EventPaymentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		ev.Type = EventPaymentFailed
		ev.FailureReason = "payment cancelled"
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			ev.Type = EventPaymentFailed
			ev.FailureReason = pi.LastPaymentError.Msg
		}
	}
	return ev
}
