package jobs

import (
	"context"
	"fmt"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/logger"
)

// SendOverdueReminders notifies customers whose active rental is past its end time
func (jr *JobRunner) SendOverdueReminders() {
	jr.runWithRecovery("SendOverdueReminders", func() {
		sent := jr.sendOverdueReminders(context.Background())
		logger.Info("Overdue reminders sent", "count", sent)
	})
}

func (jr *JobRunner) sendOverdueReminders(ctx context.Context) int {
	now := jr.now()
	overdue, err := jr.services.Booking.ListOverdue(ctx)
	if err != nil {
		logger.Error("Failed to query overdue bookings", "error", err)
		return 0
	}

	count := 0
	for _, b := range overdue {
		if jr.services.Deduper != nil {
			key := fmt.Sprintf("reminder:overdue:%d:%s", b.ID, now.UTC().Format("2006-01-02"))
			claimed, err := jr.services.Deduper.Claim(ctx, key)
			if err != nil {
				logger.Warn("Reminder dedup unavailable, sending anyway", "bookingID", b.ID, "error", err)
			} else if !claimed {
				continue
			}
		}

		lateHours := domain.LateHours(b.EndTime, now)
		msg := fmt.Sprintf("Your rental %s was due back at %s and is %d hour(s) late. Late fees accrue per started hour.",
			b.Reference, b.EndTime.UTC().Format("2006-01-02 15:04 MST"), lateHours)
		id := b.ID
		if err := jr.services.Notifier.Emit(ctx, b.CustomerID, msg, domain.NotificationCategoryRental, &id); err != nil {
			logger.Error("Failed to send overdue reminder",
				"bookingID", b.ID,
				"customerID", b.CustomerID,
				"error", err)
			continue
		}

		count++
		logger.Debug("Sent overdue reminder", "bookingID", b.ID, "customerID", b.CustomerID, "lateHours", lateHours)
	}
	return count
}
