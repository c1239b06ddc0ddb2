package domain

import (
	"fmt"
	"time"
)

// BookingAction is an event that drives the booking state machine.
type BookingAction string

const (
	ActionAccept         BookingAction = "accept"
	ActionDecline        BookingAction = "decline"
	ActionCreateOrder    BookingAction = "create_order"
	ActionConfirmPayment BookingAction = "confirm_payment"
	ActionFailPayment    BookingAction = "fail_payment"
	ActionStart          BookingAction = "start"
	ActionComplete       BookingAction = "complete"
	ActionCancel         BookingAction = "cancel"
	ActionRefund         BookingAction = "refund"

	// ActionSubmit names the creation event; it is not a transition.
	ActionSubmit BookingAction = "submit"
)

// transitions maps action -> current status -> next status.
// accepted is a legacy label: it holds a claim and can still be paid for or cancelled.
var transitions = map[BookingAction]map[BookingStatus]BookingStatus{
	ActionAccept: {
		BookingStatusPending: BookingStatusPaymentPending,
	},
	ActionDecline: {
		BookingStatusPending: BookingStatusDeclined,
	},
	ActionCreateOrder: {
		BookingStatusAccepted:       BookingStatusPaymentPending,
		BookingStatusPaymentPending: BookingStatusPaymentPending,
	},
	ActionConfirmPayment: {
		BookingStatusPaymentPending: BookingStatusPaid,
	},
	ActionFailPayment: {
		BookingStatusPaymentPending: BookingStatusPaymentPending,
	},
	ActionStart: {
		BookingStatusPaid: BookingStatusActive,
	},
	ActionComplete: {
		BookingStatusActive: BookingStatusCompleted,
	},
	ActionCancel: {
		BookingStatusPending:        BookingStatusCancelled,
		BookingStatusAccepted:       BookingStatusCancelled,
		BookingStatusPaymentPending: BookingStatusCancelled,
		BookingStatusPaid:           BookingStatusCancelled,
		BookingStatusActive:         BookingStatusCancelled,
	},
	ActionRefund: {
		BookingStatusPaid:      BookingStatusPaid,
		BookingStatusActive:    BookingStatusActive,
		BookingStatusCompleted: BookingStatusCompleted,
		BookingStatusCancelled: BookingStatusCancelled,
	},
}

// NextStatus returns the status reached by applying action in current, or an
// InvalidTransitionError when the table has no such edge.
func NextStatus(current BookingStatus, action BookingAction) (BookingStatus, error) {
	next, ok := transitions[action][current]
	if !ok {
		return "", &InvalidTransitionError{Action: action, Current: current}
	}
	return next, nil
}

// AllowedFrom lists the statuses action may be applied in.
func AllowedFrom(action BookingAction) []BookingStatus {
	var out []BookingStatus
	for _, s := range AllStatuses {
		if _, ok := transitions[action][s]; ok {
			out = append(out, s)
		}
	}
	return out
}

var AllStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusAccepted,
	BookingStatusPaymentPending,
	BookingStatusPaid,
	BookingStatusActive,
	BookingStatusCompleted,
	BookingStatusDeclined,
	BookingStatusCancelled,
}

// ClaimStatuses still hold a claim on the car for their window.
var ClaimStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusAccepted,
	BookingStatusPaymentPending,
	BookingStatusPaid,
	BookingStatusActive,
}

// CommittedStatuses are the claims an acceptance must not overlap.
var CommittedStatuses = []BookingStatus{
	BookingStatusAccepted,
	BookingStatusPaymentPending,
	BookingStatusPaid,
	BookingStatusActive,
}

// SettledStatuses are the claims a payment confirmation must not overlap.
var SettledStatuses = []BookingStatus{
	BookingStatusPaid,
	BookingStatusActive,
}

func (s BookingStatus) IsValid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s BookingStatus) HoldsClaim() bool {
	for _, v := range ClaimStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusDeclined || s == BookingStatusCancelled
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// Window is a half-open interval [Start, End).
type Window struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	BookingID int32     `json:"booking_id,omitempty"`
}

func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && w.End.After(o.Start)
}

// LateHours rounds the delay past scheduledEnd up to whole hours.
func LateHours(scheduledEnd, actualReturn time.Time) int {
	delay := actualReturn.Sub(scheduledEnd)
	if delay <= 0 {
		return 0
	}
	hours := int(delay / time.Hour)
	if delay%time.Hour != 0 {
		hours++
	}
	return hours
}
