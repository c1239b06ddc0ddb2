package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"carbooking-backend/internal/domain"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"
)

func signedStripePayload(t *testing.T, secret, eventType, intent string) ([]byte, http.Header) {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"object": "event",
		"api_version": %q,
		"type": %q,
		"data": {"object": %s}
	}`, stripe.APIVersion, eventType, intent))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	header := http.Header{}
	header.Set("Stripe-Signature", signed.Header)
	return signed.Payload, header
}

func TestStripeGateway_ParseWebhook(t *testing.T) {
	ctx := context.Background()
	g := NewStripeGateway("sk_test_unused", "whsec_test")

	t.Run("Succeeded intent", func(t *testing.T) {
		payload, header := signedStripePayload(t, "whsec_test", "payment_intent.succeeded",
			`{"id": "pi_1", "object": "payment_intent", "status": "succeeded", "amount_received": 200000}`)
		ev, err := g.ParseWebhook(ctx, payload, header)
		require.NoError(t, err)
		assert.Equal(t, "evt_test_1", ev.ID)
		assert.Equal(t, EventPaymentSucceeded, ev.Type)
		assert.Equal(t, "pi_1", ev.OrderID)
		assert.Equal(t, "pi_1", ev.TransactionID)
		assert.Equal(t, int64(2000), ev.Amount)
	})

	t.Run("Failed intent carries the decline message", func(t *testing.T) {
		payload, header := signedStripePayload(t, "whsec_test", "payment_intent.payment_failed",
			`{"id": "pi_2", "object": "payment_intent", "status": "requires_payment_method", "last_payment_error": {"message": "Your card was declined."}}`)
		ev, err := g.ParseWebhook(ctx, payload, header)
		require.NoError(t, err)
		assert.Equal(t, EventPaymentFailed, ev.Type)
		assert.Equal(t, "Your card was declined.", ev.FailureReason)
	})

	t.Run("Unrelated event is ignored", func(t *testing.T) {
		payload, header := signedStripePayload(t, "whsec_test", "customer.created", `{"id": "cus_1", "object": "customer"}`)
		ev, err := g.ParseWebhook(ctx, payload, header)
		require.NoError(t, err)
		assert.Equal(t, EventIgnored, ev.Type)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		payload, header := signedStripePayload(t, "whsec_other", "payment_intent.succeeded", `{"id": "pi_1", "object": "payment_intent"}`)
		_, err := g.ParseWebhook(ctx, payload, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestStripeIntentEvent(t *testing.T) {
	ev := stripeIntentEvent(&stripe.PaymentIntent{ID: "pi_3", Status: stripe.PaymentIntentStatusProcessing})
	assert.Equal(t, EventPaymentPending, ev.Type)

	ev = stripeIntentEvent(&stripe.PaymentIntent{ID: "pi_4", Status: stripe.PaymentIntentStatusCanceled})
	assert.Equal(t, EventPaymentFailed, ev.Type)

	ev = stripeIntentEvent(&stripe.PaymentIntent{ID: "pi_5", Status: stripe.PaymentIntentStatusRequiresPaymentMethod})
	assert.Equal(t, EventPaymentPending, ev.Type, "a fresh intent has not failed yet")
}

func hmacHex(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRazorpayGateway_VerifyCallback(t *testing.T) {
	ctx := context.Background()
	g := NewRazorpayGateway("rzp_test_key", "key_secret", "hook_secret")

	t.Run("Valid signature", func(t *testing.T) {
		cb := Callback{OrderID: "order_1", PaymentID: "pay_1", Signature: hmacHex("key_secret", "order_1|pay_1")}
		ev, err := g.VerifyCallback(ctx, cb)
		require.NoError(t, err)
		assert.Equal(t, EventPaymentSucceeded, ev.Type)
		assert.Equal(t, "pay_1", ev.TransactionID)
	})

	t.Run("Tampered payment id", func(t *testing.T) {
		cb := Callback{OrderID: "order_1", PaymentID: "pay_2", Signature: hmacHex("key_secret", "order_1|pay_1")}
		_, err := g.VerifyCallback(ctx, cb)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("Missing signature", func(t *testing.T) {
		_, err := g.VerifyCallback(ctx, Callback{OrderID: "order_1", PaymentID: "pay_1"})
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestRazorpayGateway_ParseWebhook(t *testing.T) {
	ctx := context.Background()
	g := NewRazorpayGateway("rzp_test_key", "key_secret", "hook_secret")

	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","amount":200000,"status":"captured"}}}}`)

	t.Run("Captured payment", func(t *testing.T) {
		header := http.Header{}
		header.Set("X-Razorpay-Signature", hmacHex("hook_secret", string(payload)))
		header.Set("X-Razorpay-Event-Id", "evt_rzp_1")
		ev, err := g.ParseWebhook(ctx, payload, header)
		require.NoError(t, err)
		assert.Equal(t, "evt_rzp_1", ev.ID)
		assert.Equal(t, EventPaymentSucceeded, ev.Type)
		assert.Equal(t, "order_1", ev.OrderID)
		assert.Equal(t, "pay_1", ev.TransactionID)
		assert.Equal(t, int64(2000), ev.Amount)
	})

	t.Run("Failed payment", func(t *testing.T) {
		failed := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_2","order_id":"order_1","error_description":"Payment was declined by the bank"}}}}`)
		header := http.Header{}
		header.Set("X-Razorpay-Signature", hmacHex("hook_secret", string(failed)))
		ev, err := g.ParseWebhook(ctx, failed, header)
		require.NoError(t, err)
		assert.Equal(t, EventPaymentFailed, ev.Type)
		assert.Equal(t, "payment.failed:pay_2", ev.ID)
		assert.Equal(t, "Payment was declined by the bank", ev.FailureReason)
	})

	t.Run("Bad signature", func(t *testing.T) {
		header := http.Header{}
		header.Set("X-Razorpay-Signature", hmacHex("other", string(payload)))
		_, err := g.ParseWebhook(ctx, payload, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestRazorpayOrderEvent(t *testing.T) {
	captured := gjson.Parse(`{"items":[{"id":"pay_1","status":"failed","error_description":"declined"},{"id":"pay_2","status":"captured","amount":150000}]}`)
	ev := razorpayOrderEvent("order_1", captured)
	assert.Equal(t, EventPaymentSucceeded, ev.Type)
	assert.Equal(t, "pay_2", ev.TransactionID)
	assert.Equal(t, int64(1500), ev.Amount)

	onlyFailed := gjson.Parse(`{"items":[{"id":"pay_1","status":"failed","error_description":"declined"}]}`)
	ev = razorpayOrderEvent("order_1", onlyFailed)
	assert.Equal(t, EventPaymentFailed, ev.Type)
	assert.Equal(t, "declined", ev.FailureReason)

	ev = razorpayOrderEvent("order_1", gjson.Parse(`{"items":[]}`))
	assert.Equal(t, EventPaymentPending, ev.Type)
}

func TestRedisDeduper(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	d := NewRedisDeduper(db, time.Hour)

	mock.ExpectSetNX("webhook:stripe:evt_1", "1", time.Hour).SetVal(true)
	mock.ExpectSetNX("webhook:stripe:evt_1", "1", time.Hour).SetVal(false)
	mock.ExpectDel("webhook:stripe:evt_1").SetVal(1)

	first, err := d.Claim(ctx, "webhook:stripe:evt_1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := d.Claim(ctx, "webhook:stripe:evt_1")
	require.NoError(t, err)
	assert.False(t, second)

	require.NoError(t, d.Release(ctx, "webhook:stripe:evt_1"))
	assert.NoError(t, mock.ExpectationsWereMet())

	var disabled *RedisDeduper
	ok, err := disabled.Claim(ctx, "any")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewRazorpayGateway("k", "s", "w"), nil)
	g, err := r.Get(domain.PaymentProviderRazorpay)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentProviderRazorpay, g.Provider())

	_, err = r.Get(domain.PaymentProviderStripe)
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.Len(t, r.Providers(), 1)
}
