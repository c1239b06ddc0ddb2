package service

import (
	"context"
	"time"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/repository"
)

type availabilityService struct {
	bookingRepo repository.BookingRepository
}

func NewAvailabilityService(bookingRepo repository.BookingRepository) AvailabilityService {
	return &availabilityService{bookingRepo: bookingRepo}
}

// IsAvailable reports whether no claim-holding booking overlaps [start, end).
func (s *availabilityService) IsAvailable(ctx context.Context, carID int32, start, end time.Time, excludeBookingID *int32) (bool, error) {
	if err := validateWindow(start, end); err != nil {
		return false, err
	}
	conflicts, err := s.bookingRepo.FindConflicting(ctx, carID, start, end, excludeBookingID, domain.ClaimStatuses)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

func (s *availabilityService) ListConflicts(ctx context.Context, carID int32, start, end time.Time) ([]domain.Window, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	conflicts, err := s.bookingRepo.FindConflicting(ctx, carID, start, end, nil, domain.ClaimStatuses)
	if err != nil {
		return nil, err
	}
	windows := make([]domain.Window, 0, len(conflicts))
	for _, b := range conflicts {
		w := b.Window()
		w.BookingID = b.ID
		windows = append(windows, w)
	}
	return windows, nil
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return domain.NewValidationError("window", "start and end are required")
	}
	if !start.Before(end) {
		return domain.NewValidationError("window", "start must be before end")
	}
	return nil
}
