package service_test

import (
	"context"
	"net/http"
	"sync"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/payment"

	"github.com/stretchr/testify/mock"
)

// MockNotifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Emit(ctx context.Context, userID int32, message string, category domain.NotificationCategory, bookingID *int32) error {
	args := m.Called(ctx, userID, message, category, bookingID)
	return args.Error(0)
}

func (m *MockNotifier) countCategory(category domain.NotificationCategory) int {
	n := 0
	for _, c := range m.Calls {
		if c.Method == "Emit" && c.Arguments.Get(3) == category {
			n++
		}
	}
	return n
}

// MockPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event domain.BookingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockGateway
type MockGateway struct {
	mock.Mock
	provider domain.PaymentProvider
}

func (m *MockGateway) Provider() domain.PaymentProvider { return m.provider }

func (m *MockGateway) CreateOrder(ctx context.Context, amount int64, currency string, meta map[string]string) (*payment.Order, error) {
	args := m.Called(ctx, amount, currency, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Order), args.Error(1)
}

func (m *MockGateway) VerifyCallback(ctx context.Context, cb payment.Callback) (*payment.Event, error) {
	args := m.Called(ctx, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Event), args.Error(1)
}

func (m *MockGateway) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*payment.Event, error) {
	args := m.Called(ctx, payload, header)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Event), args.Error(1)
}

func (m *MockGateway) FetchStatus(ctx context.Context, orderID string) (*payment.Event, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Event), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, transactionID string, amount int64) (*payment.RefundResult, error) {
	args := m.Called(ctx, transactionID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.RefundResult), args.Error(1)
}

// setDeduper is an in-process Deduper.
type setDeduper struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newSetDeduper() *setDeduper {
	return &setDeduper{keys: make(map[string]bool)}
}

func (d *setDeduper) Claim(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys[key] {
		return false, nil
	}
	d.keys[key] = true
	return true, nil
}

func (d *setDeduper) Release(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}
