package bootstrap

import (
	"context"
	"errors"
	"testing"

	"carbooking-backend/internal/config"
	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Database.Driver = "memory"
	cfg.Booking.Currency = "INR"
	return cfg
}

func TestNew_MemoryStore(t *testing.T) {
	app, err := New(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.Bookings)
	require.NotNil(t, app.Payments)
	require.NotNil(t, app.Availability)
	require.NotNil(t, app.Notifications)
	assert.Nil(t, app.Deduper)
	assert.NoError(t, app.Repos.Ping(context.Background()))

	_, err = app.Bookings.Get(context.Background(), service.Actor{UserID: 1, Role: domain.UserRoleAdmin}, 99)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = app.Payments.CreateOrder(context.Background(), 1, 99, domain.PaymentProviderStripe)
	assert.Error(t, err)
}

func TestNew_PostgresUnreachable(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database = config.DatabaseConfig{Driver: "postgres", Host: "127.0.0.1", Port: 1, User: "app", Database: "cars", SSLMode: "disable"}

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to ping database")
}
