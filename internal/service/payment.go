package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/logger"
	"carbooking-backend/internal/payment"
	"carbooking-backend/internal/repository"
)

type PaymentOptions struct {
	Currency           string
	VerifyTimeout      time.Duration
	EnforceRefundBound bool
}

type paymentService struct {
	gateways    *payment.Registry
	bookingRepo repository.BookingRepository
	bookings    BookingService
	deduper     Deduper
	opts        PaymentOptions
}

func NewPaymentService(
	gateways *payment.Registry,
	bookingRepo repository.BookingRepository,
	bookings BookingService,
	deduper Deduper,
	opts PaymentOptions,
) PaymentService {
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = 10 * time.Second
	}
	if opts.Currency == "" {
		opts.Currency = "inr"
	}
	return &paymentService{
		gateways:    gateways,
		bookingRepo: bookingRepo,
		bookings:    bookings,
		deduper:     deduper,
		opts:        opts,
	}
}

// CreateOrder opens a gateway order for the booking total and records it on the booking.
func (s *paymentService) CreateOrder(ctx context.Context, customerID, bookingID int32, provider domain.PaymentProvider) (*payment.Order, error) {
	logger.EnterMethod("paymentService.CreateOrder", "customerID", customerID, "bookingID", bookingID, "provider", provider)

	gw, err := s.gateways.Get(provider)
	if err != nil {
		return nil, domain.NewValidationError("provider", err.Error())
	}
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != customerID {
		return nil, domain.ErrForbidden
	}
	if _, err := domain.NextStatus(b.Status, domain.ActionCreateOrder); err != nil {
		return nil, err
	}

	logger.ExternalServiceCall(string(provider), "CreateOrder", "bookingID", b.ID, "amount", b.TotalPrice)
	order, err := gw.CreateOrder(ctx, b.TotalPrice, s.opts.Currency, map[string]string{
		"booking_id": strconv.Itoa(int(b.ID)),
		"reference":  b.Reference,
	})
	logger.ExternalServiceResult(string(provider), "CreateOrder", err, "bookingID", b.ID)
	if err != nil {
		logger.ExitMethodWithError("paymentService.CreateOrder", err, "bookingID", b.ID)
		return nil, fmt.Errorf("failed to create %s order: %w", provider, err)
	}

	if _, err := s.bookings.AttachOrder(ctx, b.ID, provider, order.ID); err != nil {
		logger.ExitMethodWithError("paymentService.CreateOrder", err, "bookingID", b.ID, "orderID", order.ID)
		return nil, err
	}

	logger.ExitMethod("paymentService.CreateOrder", "bookingID", b.ID, "orderID", order.ID)
	return order, nil
}

// VerifyCallback authenticates a checkout callback with the gateway. Any
// verification error or timeout fails closed and leaves the booking untouched.
func (s *paymentService) VerifyCallback(ctx context.Context, provider domain.PaymentProvider, cb payment.Callback) (*domain.Booking, error) {
	logger.EnterMethod("paymentService.VerifyCallback", "provider", provider, "orderID", cb.OrderID)

	gw, err := s.gateways.Get(provider)
	if err != nil {
		return nil, domain.NewValidationError("provider", err.Error())
	}
	if cb.OrderID == "" {
		return nil, domain.NewValidationError("order_id", "is required")
	}
	b, err := s.bookingRepo.GetByOrderID(ctx, cb.OrderID)
	if err != nil {
		return nil, err
	}

	vctx, cancel := context.WithTimeout(ctx, s.opts.VerifyTimeout)
	defer cancel()

	logger.ExternalServiceCall(string(provider), "VerifyCallback", "orderID", cb.OrderID)
	ev, err := gw.VerifyCallback(vctx, cb)
	if err == nil && vctx.Err() != nil {
		err = vctx.Err()
	}
	logger.ExternalServiceResult(string(provider), "VerifyCallback", err, "orderID", cb.OrderID)
	if err != nil {
		logger.ExitMethodWithError("paymentService.VerifyCallback", err, "bookingID", b.ID)
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentVerificationFailed, err)
	}

	updated, err := s.apply(ctx, provider, b, ev)
	if err != nil {
		logger.ExitMethodWithError("paymentService.VerifyCallback", err, "bookingID", b.ID)
		return nil, err
	}
	logger.ExitMethod("paymentService.VerifyCallback", "bookingID", updated.ID, "status", updated.Status)
	return updated, nil
}

// HandleWebhook authenticates and applies one asynchronous gateway event.
// Each event id is processed once; a failed attempt releases its claim so the
// gateway's retry can succeed.
func (s *paymentService) HandleWebhook(ctx context.Context, provider domain.PaymentProvider, payload []byte, header http.Header) error {
	logger.EnterMethod("paymentService.HandleWebhook", "provider", provider, "bytes", len(payload))

	gw, err := s.gateways.Get(provider)
	if err != nil {
		return domain.NewValidationError("provider", err.Error())
	}
	ev, err := gw.ParseWebhook(ctx, payload, header)
	if err != nil {
		logger.ExitMethodWithError("paymentService.HandleWebhook", err, "provider", provider)
		return err
	}
	if ev.Type == payment.EventIgnored || ev.OrderID == "" {
		logger.Debug("Ignoring webhook event", "provider", provider, "eventID", ev.ID, "type", ev.Type)
		return nil
	}

	key := fmt.Sprintf("webhook:%s:%s", provider, ev.ID)
	if s.deduper != nil && ev.ID != "" {
		claimed, err := s.deduper.Claim(ctx, key)
		if err != nil {
			// transitions are idempotent, so a dedup outage only costs a repeated no-op
			logger.Warn("Webhook dedup unavailable", "key", key, "error", err)
		} else if !claimed {
			logger.Info("Duplicate webhook event skipped", "provider", provider, "eventID", ev.ID)
			return nil
		}
	}

	err = s.processEvent(ctx, provider, ev)
	if err != nil && s.deduper != nil && ev.ID != "" {
		if rerr := s.deduper.Release(ctx, key); rerr != nil {
			logger.Warn("Failed to release webhook claim", "key", key, "error", rerr)
		}
	}
	if err != nil {
		logger.ExitMethodWithError("paymentService.HandleWebhook", err, "eventID", ev.ID)
		return err
	}
	logger.ExitMethod("paymentService.HandleWebhook", "eventID", ev.ID)
	return nil
}

func (s *paymentService) processEvent(ctx context.Context, provider domain.PaymentProvider, ev *payment.Event) error {
	b, err := s.bookingRepo.GetByOrderID(ctx, ev.OrderID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("Webhook references unknown order", "provider", provider, "orderID", ev.OrderID)
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.apply(ctx, provider, b, ev)
	if errors.Is(err, domain.ErrInvalidTransition) {
		// retrying cannot change the outcome
		logger.Error("Webhook event does not apply to booking", "bookingID", b.ID, "status", b.Status, "type", ev.Type, "error", err)
		return nil
	}
	return err
}

// Reconcile asks the gateway for the final state of an unsettled order.
func (s *paymentService) Reconcile(ctx context.Context, bookingID int32) (*domain.Booking, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BookingStatusPaymentPending || b.Payment.OrderID == "" {
		return b, nil
	}
	gw, err := s.gateways.Get(b.Payment.Provider)
	if err != nil {
		return nil, err
	}

	vctx, cancel := context.WithTimeout(ctx, s.opts.VerifyTimeout)
	defer cancel()

	logger.ExternalServiceCall(string(b.Payment.Provider), "FetchStatus", "orderID", b.Payment.OrderID)
	ev, err := gw.FetchStatus(vctx, b.Payment.OrderID)
	logger.ExternalServiceResult(string(b.Payment.Provider), "FetchStatus", err, "orderID", b.Payment.OrderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentVerificationFailed, err)
	}
	return s.apply(ctx, b.Payment.Provider, b, ev)
}

// Refund returns money through the gateway that captured it. A non-positive
// amount refunds the remaining balance.
func (s *paymentService) Refund(ctx context.Context, adminID, bookingID int32, amount int64) (*domain.Booking, error) {
	logger.EnterMethod("paymentService.Refund", "adminID", adminID, "bookingID", bookingID, "amount", amount)

	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if _, err := domain.NextStatus(b.Status, domain.ActionRefund); err != nil {
		return nil, err
	}
	if b.Payment.TransactionID == "" {
		return nil, domain.NewValidationError("booking_id", "booking has no captured payment")
	}
	remaining := b.Payment.PaidAmount - b.Payment.RefundedAmount
	if amount <= 0 {
		amount = remaining
	}
	if amount <= 0 {
		return nil, domain.NewValidationError("amount", "nothing left to refund")
	}
	if s.opts.EnforceRefundBound && amount > remaining {
		return nil, domain.NewValidationError("amount", fmt.Sprintf("exceeds refundable balance %d", remaining))
	}

	gw, err := s.gateways.Get(b.Payment.Provider)
	if err != nil {
		return nil, err
	}
	logger.ExternalServiceCall(string(b.Payment.Provider), "Refund", "transactionID", b.Payment.TransactionID, "amount", amount)
	res, err := gw.Refund(ctx, b.Payment.TransactionID, amount)
	logger.ExternalServiceResult(string(b.Payment.Provider), "Refund", err, "transactionID", b.Payment.TransactionID)
	if err != nil {
		logger.ExitMethodWithError("paymentService.Refund", err, "bookingID", b.ID)
		return nil, fmt.Errorf("failed to refund booking %d: %w", b.ID, err)
	}

	updated, err := s.bookings.RecordRefund(ctx, b.ID, res.ID, amount)
	if err != nil {
		logger.ExitMethodWithError("paymentService.Refund", err, "bookingID", b.ID, "refundID", res.ID)
		return nil, err
	}
	logger.ExitMethod("paymentService.Refund", "bookingID", b.ID, "refundID", res.ID)
	return updated, nil
}

func (s *paymentService) apply(ctx context.Context, provider domain.PaymentProvider, b *domain.Booking, ev *payment.Event) (*domain.Booking, error) {
	switch ev.Type {
	case payment.EventPaymentSucceeded:
		return s.bookings.ConfirmPayment(ctx, b.ID, PaymentConfirmation{
			Provider:      provider,
			TransactionID: ev.TransactionID,
			Amount:        ev.Amount,
		})
	case payment.EventPaymentFailed:
		if b.Status != domain.BookingStatusPaymentPending {
			logger.Info("Late payment failure ignored", "bookingID", b.ID, "status", b.Status)
			return b, nil
		}
		return s.bookings.FailPayment(ctx, b.ID, ev.FailureReason)
	default:
		return b, nil
	}
}
