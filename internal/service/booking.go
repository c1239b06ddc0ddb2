package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/logger"
	"carbooking-backend/internal/pricing"
	"carbooking-backend/internal/repository"

	"github.com/google/uuid"
)

// publishTimeout bounds the event hook that runs after a committed transition.
const publishTimeout = 3 * time.Second

// BookingOptions carries the booking policy knobs loaded from configuration.
type BookingOptions struct {
	DurationUnitHours  int
	MaxDurationHours   int
	LateFeePerHour     int64
	Currency           string
	EnforceRefundBound bool // reject refunds that would exceed the captured amount
	Now                func() time.Time
}

type bookingService struct {
	bookingRepo repository.BookingRepository
	carRepo     repository.CarRepository
	pricing     *pricing.Engine
	notifier    Notifier
	publisher   EventPublisher
	opts        BookingOptions
}

func NewBookingService(
	bookingRepo repository.BookingRepository,
	carRepo repository.CarRepository,
	pricingEngine *pricing.Engine,
	notifier Notifier,
	publisher EventPublisher,
	opts BookingOptions,
) BookingService {
	if opts.DurationUnitHours <= 0 {
		opts.DurationUnitHours = 12
	}
	if opts.MaxDurationHours <= 0 {
		opts.MaxDurationHours = 720
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &bookingService{
		bookingRepo: bookingRepo,
		carRepo:     carRepo,
		pricing:     pricingEngine,
		notifier:    notifier,
		publisher:   publisher,
		opts:        opts,
	}
}

func (s *bookingService) Quote(ctx context.Context, carID int32, req pricing.QuoteRequest) (*pricing.Quote, error) {
	car, err := s.carRepo.GetByID(ctx, carID)
	if err != nil {
		return nil, err
	}
	q, err := s.pricing.Quote(car, req)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *bookingService) Submit(ctx context.Context, customerID int32, in SubmitInput) (*domain.Booking, error) {
	logger.EnterMethod("bookingService.Submit", "customerID", customerID, "carID", in.CarID, "durationHours", in.DurationHours)

	if err := s.validateDuration(in.DurationHours); err != nil {
		logger.ExitMethodWithError("bookingService.Submit", err)
		return nil, err
	}
	if in.StartTime.IsZero() {
		return nil, domain.NewValidationError("start_time", "is required")
	}
	if in.StartTime.Before(s.opts.Now()) {
		return nil, domain.NewValidationError("start_time", "must not be in the past")
	}

	car, err := s.carRepo.GetByID(ctx, in.CarID)
	if err != nil {
		logger.ExitMethodWithError("bookingService.Submit", err, "carID", in.CarID)
		return nil, err
	}
	if !car.Available {
		return nil, domain.NewValidationError("car_id", fmt.Sprintf("car %d is not available", car.ID))
	}
	if in.WithDriver && !car.DriverAvailable {
		return nil, domain.NewValidationError("with_driver", fmt.Sprintf("car %d does not offer a driver", car.ID))
	}
	if missing := in.Verification.Documents.Missing(); len(missing) > 0 {
		return nil, domain.NewValidationError("documents", "missing "+strings.Join(missing, ", "))
	}
	if err := validateVerification(in.Verification); err != nil {
		return nil, err
	}
	if err := validateDeposit(in.DepositMethod, in.DepositDetail); err != nil {
		return nil, err
	}
	if in.HomeDelivery && strings.TrimSpace(in.DeliveryAddress) == "" {
		return nil, domain.NewValidationError("delivery_address", "is required for home delivery")
	}

	quote, err := s.pricing.Quote(car, pricing.QuoteRequest{
		DurationHours:      in.DurationHours,
		WithDriver:         in.WithDriver,
		HomeDelivery:       in.HomeDelivery,
		DeliveryDistanceKm: in.DeliveryDistanceKm,
	})
	if err != nil {
		logger.ExitMethodWithError("bookingService.Submit", err)
		return nil, err
	}

	end := in.StartTime.Add(time.Duration(in.DurationHours) * time.Hour)
	conflicts, err := s.bookingRepo.FindConflicting(ctx, car.ID, in.StartTime, end, nil, domain.CommittedStatuses)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, domain.NewValidationError("start_time", "car is already booked for this window")
	}

	b := &domain.Booking{
		Reference:     uuid.NewString(),
		CustomerID:    customerID,
		CarID:         car.ID,
		StartTime:     in.StartTime,
		DurationHours: in.DurationHours,
		EndTime:       end,
		Verification:  in.Verification,
		Deposit: domain.Deposit{
			Method: in.DepositMethod,
			Detail: in.DepositDetail,
			Amount: car.SecurityDeposit,
			Status: domain.DepositStatusPending,
		},
		WithDriver:   in.WithDriver,
		DriverCharge: quote.DriverCharge,
		HomeDelivery: in.HomeDelivery,
		DeliveryFee:  quote.DeliveryFee,
		BasePrice:    quote.BasePrice,
		Status:       domain.BookingStatusPending,
		Payment:      domain.Payment{Status: domain.PaymentStatusPending},
	}
	if in.HomeDelivery {
		b.DeliveryAddress = in.DeliveryAddress
		b.DeliveryDistanceKm = in.DeliveryDistanceKm
	}
	b.RecomputeTotal()

	// pending requests may overlap each other; only committed claims block the insert
	if err := s.bookingRepo.Create(ctx, b, &repository.ConflictGuard{Statuses: domain.CommittedStatuses}); err != nil {
		logger.ExitMethodWithError("bookingService.Submit", err, "carID", car.ID)
		return nil, err
	}

	logger.Info("Booking submitted", "bookingID", b.ID, "reference", b.Reference, "carID", car.ID, "total", b.TotalPrice)
	s.emit(ctx, b.CustomerID, b.ID, domain.NotificationCategoryBooking,
		fmt.Sprintf("Your booking request %s for %s has been received and is awaiting review. Total: %s.", b.Reference, car.Name, s.money(b.TotalPrice)))
	s.publish(ctx, domain.ActionSubmit, b)

	logger.ExitMethod("bookingService.Submit", "bookingID", b.ID)
	return b, nil
}

func (s *bookingService) Accept(ctx context.Context, adminID, bookingID int32, note string) (*domain.Booking, error) {
	b, err := s.transition(ctx, bookingID, domain.ActionAccept, repository.TransitionSpec{
		Guard: &repository.ConflictGuard{Statuses: domain.CommittedStatuses},
		Mutate: func(b *domain.Booking) error {
			b.AdminNote = note
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Your booking %s has been accepted. Please complete the payment of %s.", b.Reference, s.money(b.TotalPrice))
	if note != "" {
		msg += " Note: " + note
	}
	s.emit(ctx, b.CustomerID, b.ID, domain.NotificationCategoryBooking, msg)
	logger.Info("Booking accepted", "bookingID", b.ID, "adminID", adminID)
	return b, nil
}

func (s *bookingService) Decline(ctx context.Context, adminID, bookingID int32, reason string) (*domain.Booking, error) {
	available := true
	b, err := s.transition(ctx, bookingID, domain.ActionDecline, repository.TransitionSpec{
		SetCarAvailable: &available,
		Mutate: func(b *domain.Booking) error {
			b.AdminNote = reason
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Your booking %s has been declined.", b.Reference)
	if reason != "" {
		msg += " Reason: " + reason
	}
	s.emit(ctx, b.CustomerID, b.ID, domain.NotificationCategoryBooking, msg)
	logger.Info("Booking declined", "bookingID", b.ID, "adminID", adminID)
	return b, nil
}

func (s *bookingService) AttachOrder(ctx context.Context, bookingID int32, provider domain.PaymentProvider, orderID string) (*domain.Booking, error) {
	if orderID == "" {
		return nil, domain.NewValidationError("order_id", "is required")
	}
	return s.transition(ctx, bookingID, domain.ActionCreateOrder, repository.TransitionSpec{
		Mutate: func(b *domain.Booking) error {
			b.Payment.Provider = provider
			b.Payment.OrderID = orderID
			b.Payment.Status = domain.PaymentStatusPending
			b.Payment.FailureReason = ""
			return nil
		},
	})
}

// ConfirmPayment is idempotent: a repeated confirmation carrying the stored
// transaction id returns the booking unchanged.
func (s *bookingService) ConfirmPayment(ctx context.Context, bookingID int32, conf PaymentConfirmation) (*domain.Booking, error) {
	logger.EnterMethod("bookingService.ConfirmPayment", "bookingID", bookingID, "transactionID", conf.TransactionID)
	if conf.TransactionID == "" {
		return nil, domain.NewValidationError("transaction_id", "is required")
	}

	now := s.opts.Now()
	unavailable := false
	b, err := s.bookingRepo.ConditionalUpdate(ctx, bookingID, repository.TransitionSpec{
		Expected:        domain.AllowedFrom(domain.ActionConfirmPayment),
		Guard:           &repository.ConflictGuard{Statuses: domain.SettledStatuses},
		SetCarAvailable: &unavailable,
		Mutate: func(b *domain.Booking) error {
			next, err := domain.NextStatus(b.Status, domain.ActionConfirmPayment)
			if err != nil {
				return err
			}
			if conf.Provider != "" {
				b.Payment.Provider = conf.Provider
			}
			b.Payment.Status = domain.PaymentStatusCompleted
			b.Payment.TransactionID = conf.TransactionID
			b.Payment.FailureReason = ""
			b.Payment.PaidAmount = conf.Amount
			if b.Payment.PaidAmount <= 0 {
				b.Payment.PaidAmount = b.TotalPrice
			}
			b.Payment.PaidAt = &now
			b.Status = next
			return nil
		},
	})
	if errors.Is(err, repository.ErrPreconditionFailed) {
		if alreadyConfirmed(b, conf.TransactionID) {
			logger.Info("Duplicate payment confirmation ignored", "bookingID", bookingID, "transactionID", conf.TransactionID)
			logger.ExitMethod("bookingService.ConfirmPayment", "bookingID", bookingID, "result", "noop")
			return b, nil
		}
		err = s.invalidTransition(ctx, bookingID, domain.ActionConfirmPayment, b)
	}
	if err != nil {
		logger.ExitMethodWithError("bookingService.ConfirmPayment", err, "bookingID", bookingID)
		return nil, err
	}

	logger.Transition(b.ID, domain.ActionConfirmPayment, domain.BookingStatusPaymentPending, b.Status)
	s.emit(ctx, b.CustomerID, b.ID, domain.NotificationCategoryPayment,
		fmt.Sprintf("Payment of %s received for booking %s. Your car is reserved.", s.money(b.Payment.PaidAmount), b.Reference))
	s.publish(ctx, domain.ActionConfirmPayment, b)
	logger.ExitMethod("bookingService.ConfirmPayment", "bookingID", b.ID)
	return b, nil
}

func alreadyConfirmed(b *domain.Booking, transactionID string) bool {
	if b == nil || b.Payment.TransactionID != transactionID {
		return false
	}
	return b.Payment.Status == domain.PaymentStatusCompleted || b.Payment.Status == domain.PaymentStatusRefunded
}

// FailPayment records a failed attempt. The booking stays payable.
func (s *bookingService) FailPayment(ctx context.Context, bookingID int32, reason string) (*domain.Booking, error) {
	current, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.BookingStatusPaymentPending && current.Payment.Status == domain.PaymentStatusFailed && current.Payment.FailureReason == reason {
		return current, nil
	}

	b, err := s.transition(ctx, bookingID, domain.ActionFailPayment, repository.TransitionSpec{
		Mutate: func(b *domain.Booking) error {
			b.Payment.Status = domain.PaymentStatusFailed
			b.Payment.FailureReason = reason
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Payment for booking %s failed.", b.Reference)
	if reason != "" {
		msg += " Reason: " + reason + "."
	}
	msg += " You can retry the payment."
	s.emit(ctx, b.CustomerID, b.ID, domain.NotificationCategoryPayment, msg)
	return b, nil
}

func (s *bookingService) Start(ctx context.Context, adminID, bookingID int32, in HandoverInput) (*domain.Booking, error) {
	if in.StartOdometer < 0 {
		return nil, domain.NewValidationError("start_odometer", "must not be negative")
	}
	now := s.opts.Now()
	b, err := s.transition(ctx, bookingID, domain.ActionStart, repository.TransitionSpec{
		Mutate: func(b *domain.Booking) error {
			b.Handover.VehicleName = in.VehicleName
			b.Handover.PlateNumber = in.PlateNumber
			b.Handover.StartOdometer = in.StartOdometer
			b.Handover.StartedAt = &now
			b.Deposit.Status = domain.DepositStatusReceived
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, b.CustomerID, b.ID, domain.NotificationCategoryRental,
		fmt.Sprintf("Your rental for booking %s has started. Please return the vehicle by %s.", b.Reference, b.EndTime.Format(time.RFC1123)))
	logger.Info("Rental started", "bookingID", b.ID, "adminID", adminID, "odometer", in.StartOdometer)
	return b, nil
}

func (s *bookingService) Complete(ctx context.Context, adminID, bookingID int32, in ReturnInput) (*domain.Booking, error) {
	actualReturn := in.ActualReturn
	if actualReturn.IsZero() {
		actualReturn = s.opts.Now()
	}
	available := true
	b, err := s.transition(ctx, bookingID, domain.ActionComplete, repository.TransitionSpec{
		SetCarAvailable: &available,
		Mutate: func(b *domain.Booking) error {
			if in.EndOdometer < b.Handover.StartOdometer {
				return domain.NewValidationError("end_odometer", fmt.Sprintf("must be at least the start reading %d", b.Handover.StartOdometer))
			}
			endOdometer := in.EndOdometer
			b.Handover.EndOdometer = &endOdometer
			b.Handover.ActualReturn = &actualReturn
			b.LateHours = domain.LateHours(b.EndTime, actualReturn)
			b.LateReturnFee = pricing.LateFee(b.LateHours, s.opts.LateFeePerHour)
			b.RecomputeTotal()
			b.Deposit.Status = domain.DepositStatusRefunded
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Your rental for booking %s is complete.", b.Reference)
	if b.LateReturnFee > 0 {
		msg += fmt.Sprintf(" A late return fee of %s was charged for %d hour(s).", s.money(b.LateReturnFee), b.LateHours)
	}
	msg += fmt.Sprintf(" Final total: %s. Your deposit will be refunded.", s.money(b.TotalPrice))
	s.emit(ctx, b.CustomerID, b.ID, domain.NotificationCategoryRental, msg)
	logger.Info("Rental completed", "bookingID", b.ID, "adminID", adminID, "lateHours", b.LateHours, "total", b.TotalPrice)
	return b, nil
}

// Cancel lets a customer withdraw an unpaid booking and an admin cancel any
// open one. Cancelling a paid or active booking releases the car.
func (s *bookingService) Cancel(ctx context.Context, actor Actor, bookingID int32, reason string) (*domain.Booking, error) {
	current, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		if current.CustomerID != actor.UserID {
			return nil, domain.ErrForbidden
		}
		switch current.Status {
		case domain.BookingStatusPending, domain.BookingStatusAccepted, domain.BookingStatusPaymentPending:
		default:
			return nil, &domain.InvalidTransitionError{Action: domain.ActionCancel, Current: current.Status}
		}
	}
	if _, err := domain.NextStatus(current.Status, domain.ActionCancel); err != nil {
		return nil, err
	}

	spec := repository.TransitionSpec{
		Expected: []domain.BookingStatus{current.Status},
		Mutate: func(b *domain.Booking) error {
			b.CancelReason = reason
			return nil
		},
	}
	if current.Status == domain.BookingStatusPaid || current.Status == domain.BookingStatusActive {
		available := true
		spec.SetCarAvailable = &available
	}

	b, err := s.transition(ctx, bookingID, domain.ActionCancel, spec)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Booking %s has been cancelled.", b.Reference)
	if reason != "" {
		msg += " Reason: " + reason
	}
	s.emit(ctx, b.CustomerID, b.ID, domain.NotificationCategoryBooking, msg)
	logger.Info("Booking cancelled", "bookingID", b.ID, "actorID", actor.UserID, "role", actor.Role)
	return b, nil
}

func (s *bookingService) RecordRefund(ctx context.Context, bookingID int32, refundID string, amount int64) (*domain.Booking, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("amount", "must be positive")
	}
	b, err := s.transition(ctx, bookingID, domain.ActionRefund, repository.TransitionSpec{
		Mutate: func(b *domain.Booking) error {
			if b.Payment.TransactionID == "" {
				return domain.NewValidationError("booking_id", "booking has no captured payment")
			}
			if s.opts.EnforceRefundBound && b.Payment.RefundedAmount+amount > b.Payment.PaidAmount {
				return domain.NewValidationError("amount", fmt.Sprintf("exceeds refundable balance %d", b.Payment.PaidAmount-b.Payment.RefundedAmount))
			}
			b.Payment.RefundedAmount += amount
			b.Payment.RefundID = refundID
			if b.Payment.RefundedAmount >= b.Payment.PaidAmount {
				b.Payment.Status = domain.PaymentStatusRefunded
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, b.CustomerID, b.ID, domain.NotificationCategoryPayment,
		fmt.Sprintf("A refund of %s has been issued for booking %s.", s.money(amount), b.Reference))
	return b, nil
}

func (s *bookingService) Get(ctx context.Context, actor Actor, bookingID int32) (*domain.Booking, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && b.CustomerID != actor.UserID {
		return nil, domain.ErrForbidden
	}
	return b, nil
}

func (s *bookingService) ListForCustomer(ctx context.Context, customerID int32, page, pageSize int32) ([]domain.Booking, int32, error) {
	return s.bookingRepo.ListByCustomer(ctx, customerID, page, pageSize)
}

func (s *bookingService) ListForCar(ctx context.Context, carID int32) ([]domain.Booking, error) {
	return s.bookingRepo.ListByCar(ctx, carID, nil)
}

func (s *bookingService) ListAwaitingPayment(ctx context.Context, page, pageSize int32) ([]domain.Booking, int32, error) {
	return s.bookingRepo.ListByStatus(ctx, []domain.BookingStatus{domain.BookingStatusPaymentPending}, page, pageSize)
}

func (s *bookingService) ListOverdue(ctx context.Context) ([]domain.Booking, error) {
	return s.bookingRepo.ListOverdue(ctx, s.opts.Now())
}

// transition runs action through the transition table inside one conditional update.
func (s *bookingService) transition(ctx context.Context, bookingID int32, action domain.BookingAction, spec repository.TransitionSpec) (*domain.Booking, error) {
	logger.EnterMethod("bookingService.transition", "bookingID", bookingID, "action", action)

	if spec.Expected == nil {
		spec.Expected = domain.AllowedFrom(action)
	}
	mutate := spec.Mutate
	var from domain.BookingStatus
	spec.Mutate = func(b *domain.Booking) error {
		from = b.Status
		next, err := domain.NextStatus(b.Status, action)
		if err != nil {
			return err
		}
		if mutate != nil {
			if err := mutate(b); err != nil {
				return err
			}
		}
		b.Status = next
		return nil
	}

	b, err := s.bookingRepo.ConditionalUpdate(ctx, bookingID, spec)
	if errors.Is(err, repository.ErrPreconditionFailed) {
		err = s.invalidTransition(ctx, bookingID, action, b)
	}
	if err != nil {
		logger.ExitMethodWithError("bookingService.transition", err, "bookingID", bookingID, "action", action)
		return nil, err
	}

	logger.Transition(b.ID, action, from, b.Status)
	s.publish(ctx, action, b)
	logger.ExitMethod("bookingService.transition", "bookingID", b.ID, "status", b.Status)
	return b, nil
}

// invalidTransition reports the status the booking is actually in, re-reading it when the store did not return it.
func (s *bookingService) invalidTransition(ctx context.Context, bookingID int32, action domain.BookingAction, current *domain.Booking) error {
	if current == nil {
		fresh, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		current = fresh
	}
	return &domain.InvalidTransitionError{Action: action, Current: current.Status}
}

func (s *bookingService) validateDuration(hours int) error {
	unit := s.opts.DurationUnitHours
	if hours <= 0 {
		return domain.NewValidationError("duration_hours", "must be positive")
	}
	if hours%unit != 0 {
		return domain.NewValidationError("duration_hours", fmt.Sprintf("must be a multiple of %d hours", unit))
	}
	if hours > s.opts.MaxDurationHours {
		return domain.NewValidationError("duration_hours", fmt.Sprintf("must not exceed %d hours", s.opts.MaxDurationHours))
	}
	return nil
}

func validateVerification(v domain.Verification) error {
	switch {
	case strings.TrimSpace(v.FullName) == "":
		return domain.NewValidationError("verification.full_name", "is required")
	case strings.TrimSpace(v.Phone) == "":
		return domain.NewValidationError("verification.phone", "is required")
	case strings.TrimSpace(v.Email) == "":
		return domain.NewValidationError("verification.email", "is required")
	case strings.TrimSpace(v.LicenseNumber) == "":
		return domain.NewValidationError("verification.license_number", "is required")
	}
	for i, ref := range v.References {
		if strings.TrimSpace(ref.Name) == "" || strings.TrimSpace(ref.Phone) == "" {
			return domain.NewValidationError(fmt.Sprintf("verification.references[%d]", i), "name and phone are required")
		}
	}
	return nil
}

func validateDeposit(method domain.DepositMethod, detail string) error {
	switch method {
	case domain.DepositMethodCash, domain.DepositMethodOnline:
		return nil
	case domain.DepositMethodAsset:
		if strings.TrimSpace(detail) == "" {
			return domain.NewValidationError("deposit_detail", "describe the asset left as deposit")
		}
		return nil
	default:
		return domain.NewValidationError("deposit_method", fmt.Sprintf("unsupported method %q", method))
	}
}

func (s *bookingService) emit(ctx context.Context, userID, bookingID int32, category domain.NotificationCategory, message string) {
	if s.notifier == nil {
		return
	}
	id := bookingID
	if err := s.notifier.Emit(ctx, userID, message, category, &id); err != nil {
		logger.Warn("Failed to emit notification", "userID", userID, "bookingID", bookingID, "error", err)
	}
}

func (s *bookingService) publish(ctx context.Context, action domain.BookingAction, b *domain.Booking) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, domain.NewBookingEvent(action, b, s.opts.Now())); err != nil {
		logger.Warn("Failed to publish booking event", "bookingID", b.ID, "action", action, "error", err)
	}
}

func (s *bookingService) money(amount int64) string {
	if s.opts.Currency == "" {
		return fmt.Sprintf("%d", amount)
	}
	return fmt.Sprintf("%s %d", s.opts.Currency, amount)
}
