package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		current BookingStatus
		action  BookingAction
		want    BookingStatus
	}{
		{BookingStatusPending, ActionAccept, BookingStatusPaymentPending},
		{BookingStatusPending, ActionDecline, BookingStatusDeclined},
		{BookingStatusAccepted, ActionCreateOrder, BookingStatusPaymentPending},
		{BookingStatusPaymentPending, ActionConfirmPayment, BookingStatusPaid},
		{BookingStatusPaymentPending, ActionFailPayment, BookingStatusPaymentPending},
		{BookingStatusPaid, ActionStart, BookingStatusActive},
		{BookingStatusActive, ActionComplete, BookingStatusCompleted},
		{BookingStatusAccepted, ActionCancel, BookingStatusCancelled},
		{BookingStatusActive, ActionCancel, BookingStatusCancelled},
	}
	for _, tt := range tests {
		t.Run(string(tt.action)+"_from_"+string(tt.current), func(t *testing.T) {
			got, err := NextStatus(tt.current, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextStatusRejects(t *testing.T) {
	tests := []struct {
		current BookingStatus
		action  BookingAction
	}{
		{BookingStatusPending, ActionStart},
		{BookingStatusPending, ActionConfirmPayment},
		{BookingStatusPaid, ActionAccept},
		{BookingStatusActive, ActionDecline},
		{BookingStatusCompleted, ActionCancel},
		{BookingStatusDeclined, ActionAccept},
		{BookingStatusPaid, ActionComplete},
	}
	for _, tt := range tests {
		_, err := NextStatus(tt.current, tt.action)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidTransition))

		var itErr *InvalidTransitionError
		require.ErrorAs(t, err, &itErr)
		assert.Equal(t, tt.action, itErr.Action)
		assert.Equal(t, tt.current, itErr.Current)
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	for _, s := range []BookingStatus{BookingStatusCompleted, BookingStatusDeclined} {
		for action := range transitions {
			if action == ActionRefund {
				continue
			}
			_, err := NextStatus(s, action)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s from %s", action, s)
		}
	}
}

func TestWindowOverlaps(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	w := Window{Start: base, End: base.Add(24 * time.Hour)}

	assert.True(t, w.Overlaps(Window{Start: base.Add(23 * time.Hour), End: base.Add(30 * time.Hour)}))
	assert.True(t, w.Overlaps(Window{Start: base.Add(-time.Hour), End: base.Add(time.Minute)}))
	assert.True(t, w.Overlaps(Window{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)}))
	// half-open: touching ends do not overlap
	assert.False(t, w.Overlaps(Window{Start: base.Add(24 * time.Hour), End: base.Add(36 * time.Hour)}))
	assert.False(t, w.Overlaps(Window{Start: base.Add(-12 * time.Hour), End: base}))
}

func TestLateHours(t *testing.T) {
	end := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, LateHours(end, end))
	assert.Equal(t, 0, LateHours(end, end.Add(-3*time.Hour)))
	assert.Equal(t, 2, LateHours(end, end.Add(2*time.Hour)))
	assert.Equal(t, 3, LateHours(end, end.Add(2*time.Hour+10*time.Minute)))
	assert.Equal(t, 1, LateHours(end, end.Add(time.Second)))
}

func TestStatusClassification(t *testing.T) {
	for _, s := range ClaimStatuses {
		assert.True(t, s.HoldsClaim())
		assert.False(t, s.IsTerminal())
	}
	for _, s := range []BookingStatus{BookingStatusCompleted, BookingStatusDeclined, BookingStatusCancelled} {
		assert.False(t, s.HoldsClaim())
		assert.True(t, s.IsTerminal())
	}

	_, err := ParseBookingStatus("bogus")
	assert.Error(t, err)
}
