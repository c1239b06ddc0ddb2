package pricing

import (
	"testing"

	"carbooking-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tieredCar() *domain.Car {
	return &domain.Car{
		ID:            1,
		PricingScheme: domain.PricingSchemeTiered,
		TierPrices: map[int]int64{
			12: 1200,
			24: 2000,
			36: 2800,
			48: 3600,
			60: 4400,
			72: 5000,
		},
		DriverAvailable:    true,
		DriverChargePerDay: 500,
		SecurityDeposit:    10000,
	}
}

func TestTieredPolicy(t *testing.T) {
	engine := NewEngine(DeliveryPolicy{FlatFee: 300}, nil)
	car := tieredCar()

	t.Run("Exact tier", func(t *testing.T) {
		q, err := engine.Quote(car, QuoteRequest{DurationHours: 36})
		require.NoError(t, err)
		assert.Equal(t, int64(2800), q.BasePrice)
		assert.Equal(t, int64(2800), q.Total)
	})

	t.Run("30h falls back to two 24h units", func(t *testing.T) {
		q, err := engine.Quote(car, QuoteRequest{DurationHours: 30})
		require.NoError(t, err)
		assert.Equal(t, int64(4000), q.BasePrice) // 2 * 2000
	})

	t.Run("Beyond largest tier rounds up", func(t *testing.T) {
		q, err := engine.Quote(car, QuoteRequest{DurationHours: 84})
		require.NoError(t, err)
		assert.Equal(t, int64(8000), q.BasePrice) // ceil(84/24)=4
	})

	t.Run("Missing unit tier", func(t *testing.T) {
		c := &domain.Car{ID: 2, PricingScheme: domain.PricingSchemeTiered, TierPrices: map[int]int64{12: 1000}}
		_, err := engine.Quote(c, QuoteRequest{DurationHours: 30})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestHourlyPolicy(t *testing.T) {
	engine := NewEngine(DeliveryPolicy{}, nil)
	car := &domain.Car{ID: 3, PricingScheme: domain.PricingSchemeHourly, HourlyRate: 150}

	q, err := engine.Quote(car, QuoteRequest{DurationHours: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), q.BasePrice)

	car.HourlyRate = 0
	_, err = engine.Quote(car, QuoteRequest{DurationHours: 10})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDriverCharge(t *testing.T) {
	engine := NewEngine(DeliveryPolicy{}, nil)

	t.Run("Per started day", func(t *testing.T) {
		q, err := engine.Quote(tieredCar(), QuoteRequest{DurationHours: 36, WithDriver: true})
		require.NoError(t, err)
		assert.Equal(t, int64(1000), q.DriverCharge) // 2 days * 500
		assert.Equal(t, int64(3800), q.Total)
	})

	t.Run("Not requested", func(t *testing.T) {
		q, err := engine.Quote(tieredCar(), QuoteRequest{DurationHours: 24})
		require.NoError(t, err)
		assert.Zero(t, q.DriverCharge)
	})

	t.Run("Car without driver", func(t *testing.T) {
		car := tieredCar()
		car.DriverAvailable = false
		_, err := engine.Quote(car, QuoteRequest{DurationHours: 24, WithDriver: true})
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "with_driver", vErr.Field)
	})
}

func TestDeliveryFee(t *testing.T) {
	t.Run("Within radius", func(t *testing.T) {
		engine := NewEngine(DeliveryPolicy{FlatFee: 300}, nil)
		q, err := engine.Quote(tieredCar(), QuoteRequest{DurationHours: 24, HomeDelivery: true, DeliveryDistanceKm: 5})
		require.NoError(t, err)
		assert.Equal(t, int64(300), q.DeliveryFee)
		assert.Equal(t, int64(2300), q.Total)
	})

	t.Run("Beyond radius is free", func(t *testing.T) {
		engine := NewEngine(DeliveryPolicy{FlatFee: 300}, nil)
		q, err := engine.Quote(tieredCar(), QuoteRequest{DurationHours: 24, HomeDelivery: true, DeliveryDistanceKm: 5.5})
		require.NoError(t, err)
		assert.Zero(t, q.DeliveryFee)
	})

	t.Run("Beyond radius rejected when configured", func(t *testing.T) {
		engine := NewEngine(DeliveryPolicy{FlatFee: 300, RejectBeyondRadius: true}, nil)
		_, err := engine.Quote(tieredCar(), QuoteRequest{DurationHours: 24, HomeDelivery: true, DeliveryDistanceKm: 8})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Negative distance", func(t *testing.T) {
		engine := NewEngine(DeliveryPolicy{FlatFee: 300}, nil)
		_, err := engine.Quote(tieredCar(), QuoteRequest{DurationHours: 24, HomeDelivery: true, DeliveryDistanceKm: -1})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestQuoteRejectsBadDuration(t *testing.T) {
	engine := NewEngine(DeliveryPolicy{}, nil)
	_, err := engine.Quote(tieredCar(), QuoteRequest{DurationHours: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLateFee(t *testing.T) {
	assert.Equal(t, int64(0), LateFee(0, 100))
	assert.Equal(t, int64(200), LateFee(2, 100))
	assert.Equal(t, int64(300), LateFee(3, 100))
}
