package domain

import "time"

type NotificationCategory string

const (
	NotificationCategoryBooking NotificationCategory = "booking"
	NotificationCategoryPayment NotificationCategory = "payment"
	NotificationCategoryRental  NotificationCategory = "rental"
)

type Notification struct {
	ID        int32                `json:"id"`
	UserID    int32                `json:"user_id"`
	BookingID *int32               `json:"booking_id,omitempty"`
	Message   string               `json:"message"`
	Category  NotificationCategory `json:"category"`
	IsRead    bool                 `json:"is_read"`
	CreatedOn time.Time            `json:"created_on"`
}
