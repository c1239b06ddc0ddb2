package domain

import "time"

// BookingEvent is published after a transition commits.
type BookingEvent struct {
	Action     BookingAction `json:"action"`
	BookingID  int32         `json:"booking_id"`
	Reference  string        `json:"reference"`
	CarID      int32         `json:"car_id"`
	CustomerID int32         `json:"customer_id"`
	Status     BookingStatus `json:"status"`
	TotalPrice int64         `json:"total_price"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func NewBookingEvent(action BookingAction, b *Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Action:     action,
		BookingID:  b.ID,
		Reference:  b.Reference,
		CarID:      b.CarID,
		CustomerID: b.CustomerID,
		Status:     b.Status,
		TotalPrice: b.TotalPrice,
		OccurredAt: at,
	}
}
