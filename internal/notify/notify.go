// Package notify delivers booking lifecycle messages. Every message is stored
// in the user's inbox first; email and push are extra channels on top.
package notify

import (
	"context"
	"errors"
	"fmt"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/logger"
	"carbooking-backend/internal/repository"
)

// Channel pushes a stored notification to the user outside the app.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, user *domain.User, n *domain.Notification) error
}

// Dispatcher implements the service Notifier.
type Dispatcher struct {
	noteRepo repository.NotificationRepository
	userRepo repository.UserRepository
	channels []Channel
}

func NewDispatcher(noteRepo repository.NotificationRepository, userRepo repository.UserRepository, channels ...Channel) *Dispatcher {
	d := &Dispatcher{noteRepo: noteRepo, userRepo: userRepo}
	for _, c := range channels {
		if c != nil {
			d.channels = append(d.channels, c)
		}
	}
	return d
}

// Emit stores the notification and fans it out to the configured channels.
// A failed channel does not stop the others; all failures are returned joined.
func (d *Dispatcher) Emit(ctx context.Context, userID int32, message string, category domain.NotificationCategory, bookingID *int32) error {
	n := &domain.Notification{
		UserID:    userID,
		BookingID: bookingID,
		Message:   message,
		Category:  category,
	}
	if err := d.noteRepo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	if len(d.channels) == 0 {
		return nil
	}

	user, err := d.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load recipient %d: %w", userID, err)
	}

	var errs []error
	for _, c := range d.channels {
		if err := c.Deliver(ctx, user, n); err != nil {
			logger.Warn("Notification channel failed", "channel", c.Name(), "userID", userID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func subject(category domain.NotificationCategory) string {
	switch category {
	case domain.NotificationCategoryPayment:
		return "Payment update for your booking"
	case domain.NotificationCategoryRental:
		return "Your rental"
	default:
		return "Booking update"
	}
}
