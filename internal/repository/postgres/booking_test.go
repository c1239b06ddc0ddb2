package postgres

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func bookingColumnNames() []string {
	var cols []string
	for _, c := range strings.Split(bookingColumns, ",") {
		cols = append(cols, strings.TrimSpace(c))
	}
	return cols
}

func bookingRow(id, carID int32, status domain.BookingStatus) []driver.Value {
	return []driver.Value{
		id, "ref-1", int32(7), carID, testStart, 24, testStart.Add(24 * time.Hour), []byte(`{"full_name":"Jane Doe"}`),
		"cash", "", int64(10000), "pending",
		false, int64(0), false, "", 0.0, int64(0),
		int64(2000), 0, int64(0), int64(2000),
		string(status), "", "",
		"stripe", "pending", "pi_123", "", int64(0), int64(0), "", "", nil,
		"", "", int64(0), nil, nil, nil,
		testStart, testStart,
	}
}

func TestBookingRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewBookingRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(bookingColumnNames()).AddRow(bookingRow(1, 3, domain.BookingStatusPending)...)
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1").
			WithArgs(int32(1)).
			WillReturnRows(rows)

		b, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int32(1), b.ID)
		assert.Equal(t, domain.BookingStatusPending, b.Status)
		assert.Equal(t, "Jane Doe", b.Verification.FullName)
		assert.Equal(t, "pi_123", b.Payment.OrderID)
		assert.Nil(t, b.Payment.PaidAt)
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1").
			WithArgs(int32(2)).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames()))

		_, err := repo.GetByID(ctx, 2)
		assert.ErrorIs(t, err, domain.ErrBookingNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewBookingRepository(db)
	ctx := context.Background()
	guard := &repository.ConflictGuard{Statuses: domain.ClaimStatuses}

	newBooking := func() *domain.Booking {
		return &domain.Booking{
			Reference:     "ref-9",
			CustomerID:    7,
			CarID:         3,
			StartTime:     testStart,
			DurationHours: 24,
			EndTime:       testStart.Add(24 * time.Hour),
			Status:        domain.BookingStatusPending,
			BasePrice:     2000,
			TotalPrice:    2000,
		}
	}

	t.Run("Success under car lock", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM bookings\\s+WHERE car_id = \\$1").
			WillReturnRows(sqlmock.NewRows(bookingColumnNames()))
		mock.ExpectQuery("INSERT INTO bookings").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
		mock.ExpectCommit()

		b := newBooking()
		err := repo.Create(ctx, b, guard)
		require.NoError(t, err)
		assert.Equal(t, int32(11), b.ID)
		assert.False(t, b.CreatedAt.IsZero())
	})

	t.Run("Conflict rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM bookings\\s+WHERE car_id = \\$1").
			WillReturnRows(sqlmock.NewRows(bookingColumnNames()).AddRow(bookingRow(5, 3, domain.BookingStatusPaid)...))
		mock.ExpectRollback()

		err := repo.Create(ctx, newBooking(), guard)
		assert.ErrorIs(t, err, domain.ErrConcurrentBookingConflict)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_ConditionalUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewBookingRepository(db)
	ctx := context.Background()

	t.Run("Applies mutation and releases car", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1 FOR UPDATE").
			WithArgs(int32(1)).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames()).AddRow(bookingRow(1, 3, domain.BookingStatusPaymentPending)...))
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM bookings\\s+WHERE car_id = \\$1").
			WillReturnRows(sqlmock.NewRows(bookingColumnNames()))
		mock.ExpectExec("UPDATE bookings SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE cars SET available").
			WithArgs(false, sqlmock.AnyArg(), int32(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		unavailable := false
		b, err := repo.ConditionalUpdate(ctx, 1, repository.TransitionSpec{
			Expected:        []domain.BookingStatus{domain.BookingStatusPaymentPending},
			Guard:           &repository.ConflictGuard{Statuses: domain.SettledStatuses},
			SetCarAvailable: &unavailable,
			Mutate: func(b *domain.Booking) error {
				b.Status = domain.BookingStatusPaid
				b.Payment.TransactionID = "ch_1"
				return nil
			},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusPaid, b.Status)
		assert.Equal(t, "ch_1", b.Payment.TransactionID)
	})

	t.Run("Precondition failed returns stored booking", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1 FOR UPDATE").
			WithArgs(int32(1)).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames()).AddRow(bookingRow(1, 3, domain.BookingStatusPaid)...))
		mock.ExpectRollback()

		b, err := repo.ConditionalUpdate(ctx, 1, repository.TransitionSpec{
			Expected: []domain.BookingStatus{domain.BookingStatusPending},
		})
		assert.ErrorIs(t, err, repository.ErrPreconditionFailed)
		require.NotNil(t, b)
		assert.Equal(t, domain.BookingStatusPaid, b.Status)
	})

	t.Run("Conflict leaves booking untouched", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1 FOR UPDATE").
			WithArgs(int32(1)).
			WillReturnRows(sqlmock.NewRows(bookingColumnNames()).AddRow(bookingRow(1, 3, domain.BookingStatusPending)...))
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM bookings\\s+WHERE car_id = \\$1").
			WillReturnRows(sqlmock.NewRows(bookingColumnNames()).AddRow(bookingRow(2, 3, domain.BookingStatusPaymentPending)...))
		mock.ExpectRollback()

		_, err := repo.ConditionalUpdate(ctx, 1, repository.TransitionSpec{
			Expected: []domain.BookingStatus{domain.BookingStatusPending},
			Guard:    &repository.ConflictGuard{Statuses: domain.CommittedStatuses},
			Mutate: func(b *domain.Booking) error {
				b.Status = domain.BookingStatusPaymentPending
				return nil
			},
		})
		assert.ErrorIs(t, err, domain.ErrConcurrentBookingConflict)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_ListOverdue(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewBookingRepository(db)
	now := testStart.Add(30 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM bookings WHERE status = \\$1 AND end_time < \\$2").
		WithArgs(domain.BookingStatusActive, now).
		WillReturnRows(sqlmock.NewRows(bookingColumnNames()).AddRow(bookingRow(4, 3, domain.BookingStatusActive)...))

	bookings, err := repo.ListOverdue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, int32(4), bookings[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
