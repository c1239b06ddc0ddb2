package service

import (
	"context"
	"net/http"
	"time"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/payment"
	"carbooking-backend/internal/pricing"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID int32
	Role   domain.UserRole
}

func (a Actor) IsAdmin() bool { return a.Role == domain.UserRoleAdmin }

type SubmitInput struct {
	CarID              int32
	StartTime          time.Time
	DurationHours      int
	Verification       domain.Verification
	DepositMethod      domain.DepositMethod
	DepositDetail      string
	WithDriver         bool
	HomeDelivery       bool
	DeliveryAddress    string
	DeliveryDistanceKm float64
}

type PaymentConfirmation struct {
	Provider      domain.PaymentProvider
	TransactionID string
	Amount        int64
}

type HandoverInput struct {
	VehicleName   string
	PlateNumber   string
	StartOdometer int64
}

type ReturnInput struct {
	EndOdometer  int64
	ActualReturn time.Time
}

type AvailabilityService interface {
	IsAvailable(ctx context.Context, carID int32, start, end time.Time, excludeBookingID *int32) (bool, error)
	ListConflicts(ctx context.Context, carID int32, start, end time.Time) ([]domain.Window, error)
}

type BookingService interface {
	Quote(ctx context.Context, carID int32, req pricing.QuoteRequest) (*pricing.Quote, error)
	Submit(ctx context.Context, customerID int32, in SubmitInput) (*domain.Booking, error)
	Accept(ctx context.Context, adminID, bookingID int32, note string) (*domain.Booking, error)
	Decline(ctx context.Context, adminID, bookingID int32, reason string) (*domain.Booking, error)
	AttachOrder(ctx context.Context, bookingID int32, provider domain.PaymentProvider, orderID string) (*domain.Booking, error)
	ConfirmPayment(ctx context.Context, bookingID int32, conf PaymentConfirmation) (*domain.Booking, error)
	FailPayment(ctx context.Context, bookingID int32, reason string) (*domain.Booking, error)
	Start(ctx context.Context, adminID, bookingID int32, in HandoverInput) (*domain.Booking, error)
	Complete(ctx context.Context, adminID, bookingID int32, in ReturnInput) (*domain.Booking, error)
	Cancel(ctx context.Context, actor Actor, bookingID int32, reason string) (*domain.Booking, error)
	RecordRefund(ctx context.Context, bookingID int32, refundID string, amount int64) (*domain.Booking, error)
	Get(ctx context.Context, actor Actor, bookingID int32) (*domain.Booking, error)
	ListForCustomer(ctx context.Context, customerID int32, page, pageSize int32) ([]domain.Booking, int32, error)
	ListForCar(ctx context.Context, carID int32) ([]domain.Booking, error)
	ListAwaitingPayment(ctx context.Context, page, pageSize int32) ([]domain.Booking, int32, error)
	ListOverdue(ctx context.Context) ([]domain.Booking, error)
}

type PaymentService interface {
	CreateOrder(ctx context.Context, customerID, bookingID int32, provider domain.PaymentProvider) (*payment.Order, error)
	VerifyCallback(ctx context.Context, provider domain.PaymentProvider, cb payment.Callback) (*domain.Booking, error)
	HandleWebhook(ctx context.Context, provider domain.PaymentProvider, payload []byte, header http.Header) error
	Reconcile(ctx context.Context, bookingID int32) (*domain.Booking, error)
	Refund(ctx context.Context, adminID, bookingID int32, amount int64) (*domain.Booking, error)
}

type NotificationService interface {
	GetNotifications(ctx context.Context, userID int32, page, pageSize int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, userID, notificationID int32) error
}

// Notifier delivers a lifecycle message to a user. Callers treat failures as best-effort.
type Notifier interface {
	Emit(ctx context.Context, userID int32, message string, category domain.NotificationCategory, bookingID *int32) error
}

// EventPublisher forwards committed transitions to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.BookingEvent) error
}

// Deduper claims webhook event ids so retries are processed once.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
