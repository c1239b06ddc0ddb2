package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"carbooking-backend/internal/domain"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/tidwall/gjson"
)

// RazorpayGateway settles bookings with Razorpay orders. The order id is the
// correlation id and the captured payment id is the transaction id.
type RazorpayGateway struct {
	client        *razorpay.Client
	keySecret     string
	webhookSecret string
}

func NewRazorpayGateway(keyID, keySecret, webhookSecret string) *RazorpayGateway {
	return &RazorpayGateway{
		client:        razorpay.NewClient(keyID, keySecret),
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
	}
}

func (g *RazorpayGateway) Provider() domain.PaymentProvider { return domain.PaymentProviderRazorpay }

// The razorpay client is synchronous; ctx bounds only the caller's wait.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency string, meta map[string]string) (*Order, error) {
	notes := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":   amount * minorUnits,
		"currency": strings.ToUpper(currency),
		"receipt":  meta["reference"],
		"notes":    notes,
	}
	body, err := callWithContext(ctx, func() (map[string]interface{}, error) {
		return g.client.Order.Create(data, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay: create order: %w", err)
	}
	res := jsonResult(body)
	id := res.Get("id").String()
	if id == "" {
		return nil, fmt.Errorf("razorpay: create order: response has no id")
	}
	return &Order{ID: id, Amount: amount, Currency: currency}, nil
}

// VerifyCallback checks the checkout signature, an HMAC of "order_id|payment_id" under the key secret.
func (g *RazorpayGateway) VerifyCallback(ctx context.Context, cb Callback) (*Event, error) {
	if cb.PaymentID == "" || cb.Signature == "" {
		return nil, ErrInvalidSignature
	}
	attrs := map[string]interface{}{
		"razorpay_order_id":   cb.OrderID,
		"razorpay_payment_id": cb.PaymentID,
	}
	if !utils.VerifyPaymentSignature(attrs, cb.Signature, g.keySecret) {
		return nil, ErrInvalidSignature
	}
	return &Event{
		Type:          EventPaymentSucceeded,
		OrderID:       cb.OrderID,
		TransactionID: cb.PaymentID,
	}, nil
}

func (g *RazorpayGateway) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*Event, error) {
	sig := header.Get("X-Razorpay-Signature")
	if sig == "" || !utils.VerifyWebhookSignature(string(payload), sig, g.webhookSecret) {
		return nil, ErrInvalidSignature
	}

	doc := gjson.ParseBytes(payload)
	entity := doc.Get("payload.payment.entity")
	ev := &Event{
		ID:            header.Get("X-Razorpay-Event-Id"),
		OrderID:       entity.Get("order_id").String(),
		TransactionID: entity.Get("id").String(),
		Amount:        entity.Get("amount").Int() / minorUnits,
	}
	if ev.ID == "" {
		ev.ID = doc.Get("event").String() + ":" + ev.TransactionID
	}

	switch doc.Get("event").String() {
	case "payment.captured", "order.paid":
		ev.Type = EventPaymentSucceeded
	case "payment.failed":
		ev.Type = EventPaymentFailed
		ev.FailureReason = entity.Get("error_description").String()
	default:
		ev.Type = EventIgnored
	}
	return ev, nil
}

// FetchStatus reports success if any payment on the order is captured.
func (g *RazorpayGateway) FetchStatus(ctx context.Context, orderID string) (*Event, error) {
	body, err := callWithContext(ctx, func() (map[string]interface{}, error) {
		return g.client.Order.Payments(orderID, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay: fetch payments for %s: %w", orderID, err)
	}
	return razorpayOrderEvent(orderID, jsonResult(body)), nil
}

func (g *RazorpayGateway) Refund(ctx context.Context, transactionID string, amount int64) (*RefundResult, error) {
	body, err := callWithContext(ctx, func() (map[string]interface{}, error) {
		return g.client.Payment.Refund(transactionID, int(amount*minorUnits), nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay: refund %s: %w", transactionID, err)
	}
	res := jsonResult(body)
	return &RefundResult{ID: res.Get("id").String(), Status: res.Get("status").String()}, nil
}

func razorpayOrderEvent(orderID string, payments gjson.Result) *Event {
	ev := &Event{Type: EventPaymentPending, OrderID: orderID}
	var failed gjson.Result
	for _, item := range payments.Get("items").Array() {
		switch item.Get("status").String() {
		case "captured":
			ev.Type = EventPaymentSucceeded
			ev.TransactionID = item.Get("id").String()
			ev.Amount = item.Get("amount").Int() / minorUnits
			return ev
		case "failed":
			failed = item
		}
	}
	if failed.Exists() {
		ev.Type = EventPaymentFailed
		ev.TransactionID = failed.Get("id").String()
		ev.FailureReason = failed.Get("error_description").String()
	}
	return ev
}

func jsonResult(body map[string]interface{}) gjson.Result {
	raw, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}
	}
	return gjson.ParseBytes(raw)
}

func callWithContext(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.body, r.err
	}
}
