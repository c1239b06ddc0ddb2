package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingService_ConcurrentConfirmations(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(t)

	b, err := f.svc.Submit(ctx, customerID, submitInput(testNow.Add(24*time.Hour), 24))
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, adminID, b.ID, "")
	require.NoError(t, err)
	_, err = f.svc.AttachOrder(ctx, b.ID, domain.PaymentProviderStripe, "pi_"+b.Reference)
	require.NoError(t, err)

	conf := service.PaymentConfirmation{Provider: domain.PaymentProviderStripe, TransactionID: "ch_" + b.Reference, Amount: b.TotalPrice}
	errs := make([]error, 32)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ConfirmPayment(ctx, b.ID, conf)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	stored, err := f.store.Bookings().GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPaid, stored.Status)
	assert.Equal(t, conf.TransactionID, stored.Payment.TransactionID)
	assert.Equal(t, 1, f.notifier.countCategory(domain.NotificationCategoryPayment))
	assert.False(t, f.carAvailable(t))
}

func TestBookingService_ConcurrentOverlappingAccepts(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(t)
	start := testNow.Add(48 * time.Hour)

	first, err := f.svc.Submit(ctx, customerID, submitInput(start, 24))
	require.NoError(t, err)
	second, err := f.svc.Submit(ctx, otherID, submitInput(start.Add(12*time.Hour), 24))
	require.NoError(t, err)

	ids := []int32{first.ID, second.ID}
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int32) {
			defer wg.Done()
			_, errs[i] = f.svc.Accept(ctx, adminID, id, "")
		}(i, id)
	}
	wg.Wait()

	var won, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, domain.ErrConcurrentBookingConflict):
			conflicted++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, conflicted)

	windows, err := service.NewAvailabilityService(f.store.Bookings()).ListConflicts(ctx, carID, start, start.Add(36*time.Hour))
	require.NoError(t, err)
	var committed int
	for _, w := range windows {
		stored, err := f.store.Bookings().GetByID(ctx, w.BookingID)
		require.NoError(t, err)
		if stored.Status == domain.BookingStatusPaymentPending {
			committed++
		}
	}
	assert.Equal(t, 1, committed)
}
