package repository

import (
	"context"
	"time"

	"carbooking-backend/internal/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.User, error)
}

// CarRepository exposes the catalog entry and the one flag bookings may toggle.
type CarRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Car, error)
	SetAvailable(ctx context.Context, id int32, available bool) error
}

// ConflictGuard asks the store to re-check the booking window against other
// bookings in Statuses while holding the car's lock.
type ConflictGuard struct {
	Statuses []domain.BookingStatus
}

// TransitionSpec describes one atomic read-modify-write on a booking.
type TransitionSpec struct {
	// Expected lists the statuses the stored booking must be in.
	Expected []domain.BookingStatus
	Guard    *ConflictGuard
	// SetCarAvailable, when set, is written to the booking's car in the same transaction.
	SetCarAvailable *bool
	Mutate          func(b *domain.Booking) error
}

type BookingRepository interface {
	// Create inserts b. With a guard the window check and the insert happen under the car lock.
	Create(ctx context.Context, b *domain.Booking, guard *ConflictGuard) error
	GetByID(ctx context.Context, id int32) (*domain.Booking, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Booking, error)
	FindConflicting(ctx context.Context, carID int32, start, end time.Time, excludeID *int32, statuses []domain.BookingStatus) ([]domain.Booking, error)
	// ConditionalUpdate applies spec atomically. When the stored status is not
	// expected it returns the stored booking together with ErrPreconditionFailed.
	ConditionalUpdate(ctx context.Context, id int32, spec TransitionSpec) (*domain.Booking, error)
	ListByCustomer(ctx context.Context, customerID int32, page, pageSize int32) ([]domain.Booking, int32, error)
	ListByCar(ctx context.Context, carID int32, statuses []domain.BookingStatus) ([]domain.Booking, error)
	ListByStatus(ctx context.Context, statuses []domain.BookingStatus, page, pageSize int32) ([]domain.Booking, int32, error)
	ListOverdue(ctx context.Context, now time.Time) ([]domain.Booking, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id, userID int32) error
}

func ContainsStatus(statuses []domain.BookingStatus, s domain.BookingStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}
