package http

import (
	"context"
	"net/http"
	"time"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/payment"
	"carbooking-backend/internal/pricing"
	"carbooking-backend/internal/service"

	"github.com/stretchr/testify/mock"
)

func bookingResult(args mock.Arguments) (*domain.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

// MockBookingService
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) Quote(ctx context.Context, carID int32, req pricing.QuoteRequest) (*pricing.Quote, error) {
	args := m.Called(ctx, carID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.Quote), args.Error(1)
}

func (m *MockBookingService) Submit(ctx context.Context, customerID int32, in service.SubmitInput) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, customerID, in))
}

func (m *MockBookingService) Accept(ctx context.Context, adminID, bookingID int32, note string) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, adminID, bookingID, note))
}

func (m *MockBookingService) Decline(ctx context.Context, adminID, bookingID int32, reason string) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, adminID, bookingID, reason))
}

func (m *MockBookingService) AttachOrder(ctx context.Context, bookingID int32, provider domain.PaymentProvider, orderID string) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, bookingID, provider, orderID))
}

func (m *MockBookingService) ConfirmPayment(ctx context.Context, bookingID int32, conf service.PaymentConfirmation) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, bookingID, conf))
}

func (m *MockBookingService) FailPayment(ctx context.Context, bookingID int32, reason string) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, bookingID, reason))
}

func (m *MockBookingService) Start(ctx context.Context, adminID, bookingID int32, in service.HandoverInput) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, adminID, bookingID, in))
}

func (m *MockBookingService) Complete(ctx context.Context, adminID, bookingID int32, in service.ReturnInput) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, adminID, bookingID, in))
}

func (m *MockBookingService) Cancel(ctx context.Context, actor service.Actor, bookingID int32, reason string) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, actor, bookingID, reason))
}

func (m *MockBookingService) RecordRefund(ctx context.Context, bookingID int32, refundID string, amount int64) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, bookingID, refundID, amount))
}

func (m *MockBookingService) Get(ctx context.Context, actor service.Actor, bookingID int32) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, actor, bookingID))
}

func (m *MockBookingService) ListForCustomer(ctx context.Context, customerID int32, page, pageSize int32) ([]domain.Booking, int32, error) {
	args := m.Called(ctx, customerID, page, pageSize)
	return args.Get(0).([]domain.Booking), args.Get(1).(int32), args.Error(2)
}

func (m *MockBookingService) ListForCar(ctx context.Context, carID int32) ([]domain.Booking, error) {
	args := m.Called(ctx, carID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingService) ListAwaitingPayment(ctx context.Context, page, pageSize int32) ([]domain.Booking, int32, error) {
	args := m.Called(ctx, page, pageSize)
	return args.Get(0).([]domain.Booking), args.Get(1).(int32), args.Error(2)
}

func (m *MockBookingService) ListOverdue(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

// MockPaymentService
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreateOrder(ctx context.Context, customerID, bookingID int32, provider domain.PaymentProvider) (*payment.Order, error) {
	args := m.Called(ctx, customerID, bookingID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Order), args.Error(1)
}

func (m *MockPaymentService) VerifyCallback(ctx context.Context, provider domain.PaymentProvider, cb payment.Callback) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, provider, cb))
}

func (m *MockPaymentService) HandleWebhook(ctx context.Context, provider domain.PaymentProvider, payload []byte, header http.Header) error {
	args := m.Called(ctx, provider, payload, header)
	return args.Error(0)
}

func (m *MockPaymentService) Reconcile(ctx context.Context, bookingID int32) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, bookingID))
}

func (m *MockPaymentService) Refund(ctx context.Context, adminID, bookingID int32, amount int64) (*domain.Booking, error) {
	return bookingResult(m.Called(ctx, adminID, bookingID, amount))
}

// MockAvailabilityService
type MockAvailabilityService struct {
	mock.Mock
}

func (m *MockAvailabilityService) IsAvailable(ctx context.Context, carID int32, start, end time.Time, excludeBookingID *int32) (bool, error) {
	args := m.Called(ctx, carID, start, end, excludeBookingID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAvailabilityService) ListConflicts(ctx context.Context, carID int32, start, end time.Time) ([]domain.Window, error) {
	args := m.Called(ctx, carID, start, end)
	return args.Get(0).([]domain.Window), args.Error(1)
}

// MockNotificationService
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) GetNotifications(ctx context.Context, userID int32, page, pageSize int32) ([]domain.Notification, int32, error) {
	args := m.Called(ctx, userID, page, pageSize)
	return args.Get(0).([]domain.Notification), args.Get(1).(int32), args.Error(2)
}

func (m *MockNotificationService) MarkAsRead(ctx context.Context, userID, notificationID int32) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}
