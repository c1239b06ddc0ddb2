package jobs

import (
	"context"
	"time"

	"carbooking-backend/internal/logger"
)

const reconcilePageSize = 100

// ReconcilePendingPayments asks the gateway about payment_pending bookings whose
// order has been open longer than the stale threshold. It covers lost webhooks.
func (jr *JobRunner) ReconcilePendingPayments() {
	jr.runWithRecovery("ReconcilePendingPayments", func() {
		reconciled, failed := jr.reconcilePendingPayments(context.Background())
		logger.Info("Pending payments reconciled", "checked", reconciled+failed, "failed", failed)
	})
}

func (jr *JobRunner) reconcilePendingPayments(ctx context.Context) (reconciled, failed int) {
	stale := jr.now().Add(-time.Duration(jr.config.Scheduler.StalePaymentMinutes) * time.Minute)

	// Collect first: reconciling moves bookings out of the listing and would shift pages.
	var candidates []int32
	for page := int32(1); ; page++ {
		bookings, total, err := jr.services.Booking.ListAwaitingPayment(ctx, page, reconcilePageSize)
		if err != nil {
			logger.Error("Failed to list bookings awaiting payment", "page", page, "error", err)
			break
		}
		for _, b := range bookings {
			if b.Payment.OrderID != "" && b.UpdatedAt.Before(stale) {
				candidates = append(candidates, b.ID)
			}
		}
		if len(bookings) < reconcilePageSize || page*reconcilePageSize >= total {
			break
		}
	}

	for _, id := range candidates {
		b, err := jr.services.Payment.Reconcile(ctx, id)
		if err != nil {
			logger.Error("Failed to reconcile payment", "bookingID", id, "error", err)
			failed++
			continue
		}
		reconciled++
		logger.Debug("Reconciled payment", "bookingID", id, "status", b.Status, "paymentStatus", b.Payment.Status)
	}
	return reconciled, failed
}
