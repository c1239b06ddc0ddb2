package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/logger"
	"carbooking-backend/internal/repository"

	"github.com/lib/pq"
)

const bookingColumns = `id, reference, customer_id, car_id, start_time, duration_hours, end_time, verification,
	deposit_method, deposit_detail, deposit_amount, deposit_status,
	with_driver, driver_charge, home_delivery, delivery_address, delivery_distance_km, delivery_fee,
	base_price, late_hours, late_return_fee, total_price,
	status, admin_note, cancel_reason,
	payment_provider, payment_status, payment_order_id, payment_transaction_id, paid_amount, refunded_amount, refund_id, payment_failure_reason, paid_at,
	vehicle_name, vehicle_plate, start_odometer, started_at, end_odometer, actual_return,
	created_at, updated_at`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) repository.BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, b *domain.Booking, guard *repository.ConflictGuard) error {
	logger.EnterMethod("bookingRepository.Create", "carID", b.CarID, "customerID", b.CustomerID)

	verification, err := json.Marshal(b.Verification)
	if err != nil {
		logger.ExitMethodWithError("bookingRepository.Create", err, "reason", "failed to marshal verification")
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if guard != nil {
		if err := lockCar(ctx, tx, b.CarID); err != nil {
			return err
		}
		conflicts, err := findConflicting(ctx, tx, b.CarID, b.StartTime, b.EndTime, nil, guard.Statuses)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			logger.ExitMethodWithError("bookingRepository.Create", domain.ErrConcurrentBookingConflict, "carID", b.CarID, "conflicts", len(conflicts))
			return domain.ErrConcurrentBookingConflict
		}
	}

	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	query := `INSERT INTO bookings (reference, customer_id, car_id, start_time, duration_hours, end_time, verification,
		deposit_method, deposit_detail, deposit_amount, deposit_status,
		with_driver, driver_charge, home_delivery, delivery_address, delivery_distance_km, delivery_fee,
		base_price, late_hours, late_return_fee, total_price,
		status, admin_note, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26) RETURNING id`
	logger.DatabaseCall("INSERT", "bookings", "carID", b.CarID)
	err = tx.QueryRowContext(ctx, query,
		b.Reference, b.CustomerID, b.CarID, b.StartTime, b.DurationHours, b.EndTime, verification,
		b.Deposit.Method, b.Deposit.Detail, b.Deposit.Amount, b.Deposit.Status,
		b.WithDriver, b.DriverCharge, b.HomeDelivery, b.DeliveryAddress, b.DeliveryDistanceKm, b.DeliveryFee,
		b.BasePrice, b.LateHours, b.LateReturnFee, b.TotalPrice,
		b.Status, b.AdminNote, b.Payment.Status, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
	logger.DatabaseResult("INSERT", 1, err, "bookingID", b.ID)
	if err != nil {
		logger.ExitMethodWithError("bookingRepository.Create", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logger.ExitMethod("bookingRepository.Create", "bookingID", b.ID)
	return nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id int32) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	return b, err
}

func (r *bookingRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_order_id = $1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	return b, err
}

func (r *bookingRepository) FindConflicting(ctx context.Context, carID int32, start, end time.Time, excludeID *int32, statuses []domain.BookingStatus) ([]domain.Booking, error) {
	return findConflicting(ctx, r.db, carID, start, end, excludeID, statuses)
}

func findConflicting(ctx context.Context, q querier, carID int32, start, end time.Time, excludeID *int32, statuses []domain.BookingStatus) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE car_id = $1 AND start_time < $3 AND end_time > $2 AND status = ANY($4)
		AND ($5::int IS NULL OR id <> $5)
		ORDER BY start_time`
	var exclude sql.NullInt32
	if excludeID != nil {
		exclude = sql.NullInt32{Int32: *excludeID, Valid: true}
	}
	rows, err := q.QueryContext(ctx, query, carID, start, end, pq.Array(statusStrings(statuses)), exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// lockCar serializes window checks for one car until the transaction ends.
func lockCar(ctx context.Context, tx *sql.Tx, carID int32) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(carID))
	return err
}

func (r *bookingRepository) ConditionalUpdate(ctx context.Context, id int32, spec repository.TransitionSpec) (*domain.Booking, error) {
	logger.EnterMethod("bookingRepository.ConditionalUpdate", "bookingID", id, "expected", spec.Expected)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}

	if !repository.ContainsStatus(spec.Expected, b.Status) {
		logger.ExitMethod("bookingRepository.ConditionalUpdate", "bookingID", id, "status", b.Status, "result", "precondition failed")
		return b, repository.ErrPreconditionFailed
	}
	previous := b.Status

	if spec.Guard != nil {
		if err := lockCar(ctx, tx, b.CarID); err != nil {
			return nil, err
		}
		conflicts, err := findConflicting(ctx, tx, b.CarID, b.StartTime, b.EndTime, &b.ID, spec.Guard.Statuses)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			logger.ExitMethodWithError("bookingRepository.ConditionalUpdate", domain.ErrConcurrentBookingConflict, "bookingID", id, "conflictWith", conflicts[0].ID)
			return nil, domain.ErrConcurrentBookingConflict
		}
	}

	if spec.Mutate != nil {
		if err := spec.Mutate(b); err != nil {
			return nil, err
		}
	}
	b.UpdatedAt = time.Now().UTC()

	if err := updateBooking(ctx, tx, b, previous); err != nil {
		logger.ExitMethodWithError("bookingRepository.ConditionalUpdate", err, "bookingID", id)
		return nil, err
	}

	if spec.SetCarAvailable != nil {
		if err := setCarAvailable(ctx, tx, b.CarID, *spec.SetCarAvailable); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	logger.ExitMethod("bookingRepository.ConditionalUpdate", "bookingID", id, "status", b.Status)
	return b, nil
}

func updateBooking(ctx context.Context, tx *sql.Tx, b *domain.Booking, previous domain.BookingStatus) error {
	query := `UPDATE bookings SET deposit_status=$1, late_hours=$2, late_return_fee=$3, total_price=$4,
		status=$5, admin_note=$6, cancel_reason=$7,
		payment_provider=$8, payment_status=$9, payment_order_id=$10, payment_transaction_id=$11,
		paid_amount=$12, refunded_amount=$13, refund_id=$14, payment_failure_reason=$15, paid_at=$16,
		vehicle_name=$17, vehicle_plate=$18, start_odometer=$19, started_at=$20, end_odometer=$21, actual_return=$22,
		updated_at=$23
		WHERE id=$24 AND status=$25`
	logger.DatabaseCall("UPDATE", "bookings", "bookingID", b.ID, "status", b.Status)
	result, err := tx.ExecContext(ctx, query,
		b.Deposit.Status, b.LateHours, b.LateReturnFee, b.TotalPrice,
		b.Status, b.AdminNote, b.CancelReason,
		b.Payment.Provider, b.Payment.Status, nullString(b.Payment.OrderID), b.Payment.TransactionID,
		b.Payment.PaidAmount, b.Payment.RefundedAmount, b.Payment.RefundID, b.Payment.FailureReason, nullTime(b.Payment.PaidAt),
		b.Handover.VehicleName, b.Handover.PlateNumber, b.Handover.StartOdometer, nullTime(b.Handover.StartedAt), nullInt64(b.Handover.EndOdometer), nullTime(b.Handover.ActualReturn),
		b.UpdatedAt,
		b.ID, previous,
	)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return err
	}
	rows, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, err, "bookingID", b.ID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrPreconditionFailed
	}
	return nil
}

func (r *bookingRepository) ListByCustomer(ctx context.Context, customerID int32, page, pageSize int32) ([]domain.Booking, int32, error) {
	var count int32
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM bookings WHERE customer_id = $1`, customerID).Scan(&count); err != nil {
		return nil, 0, err
	}
	limit, offset := pageBounds(page, pageSize)
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, customerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	bookings, err := scanBookings(rows)
	return bookings, count, err
}

func (r *bookingRepository) ListByCar(ctx context.Context, carID int32, statuses []domain.BookingStatus) ([]domain.Booking, error) {
	sqlStr := `SELECT ` + bookingColumns + ` FROM bookings WHERE car_id = $1`
	args := []interface{}{carID}
	if len(statuses) > 0 {
		sqlStr += " AND status = ANY($2)"
		args = append(args, pq.Array(statusStrings(statuses)))
	}
	sqlStr += " ORDER BY start_time"
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (r *bookingRepository) ListByStatus(ctx context.Context, statuses []domain.BookingStatus, page, pageSize int32) ([]domain.Booking, int32, error) {
	filter := pq.Array(statusStrings(statuses))
	var count int32
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM bookings WHERE status = ANY($1)`, filter).Scan(&count); err != nil {
		return nil, 0, err
	}
	limit, offset := pageBounds(page, pageSize)
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE status = ANY($1) ORDER BY updated_at LIMIT $2 OFFSET $3`, bookingColumns)
	rows, err := r.db.QueryContext(ctx, query, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	bookings, err := scanBookings(rows)
	return bookings, count, err
}

func (r *bookingRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = $1 AND end_time < $2 ORDER BY end_time`
	rows, err := r.db.QueryContext(ctx, query, domain.BookingStatusActive, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func scanBookings(rows *sql.Rows) ([]domain.Booking, error) {
	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	b := &domain.Booking{}
	var (
		verification []byte
		orderID      sql.NullString
		paidAt       sql.NullTime
		startedAt    sql.NullTime
		endOdometer  sql.NullInt64
		actualReturn sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.Reference, &b.CustomerID, &b.CarID, &b.StartTime, &b.DurationHours, &b.EndTime, &verification,
		&b.Deposit.Method, &b.Deposit.Detail, &b.Deposit.Amount, &b.Deposit.Status,
		&b.WithDriver, &b.DriverCharge, &b.HomeDelivery, &b.DeliveryAddress, &b.DeliveryDistanceKm, &b.DeliveryFee,
		&b.BasePrice, &b.LateHours, &b.LateReturnFee, &b.TotalPrice,
		&b.Status, &b.AdminNote, &b.CancelReason,
		&b.Payment.Provider, &b.Payment.Status, &orderID, &b.Payment.TransactionID, &b.Payment.PaidAmount, &b.Payment.RefundedAmount, &b.Payment.RefundID, &b.Payment.FailureReason, &paidAt,
		&b.Handover.VehicleName, &b.Handover.PlateNumber, &b.Handover.StartOdometer, &startedAt, &endOdometer, &actualReturn,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(verification) > 0 {
		if err := json.Unmarshal(verification, &b.Verification); err != nil {
			return nil, err
		}
	}
	b.Payment.OrderID = orderID.String
	if paidAt.Valid {
		b.Payment.PaidAt = &paidAt.Time
	}
	if startedAt.Valid {
		b.Handover.StartedAt = &startedAt.Time
	}
	if endOdometer.Valid {
		b.Handover.EndOdometer = &endOdometer.Int64
	}
	if actualReturn.Valid {
		b.Handover.ActualReturn = &actualReturn.Time
	}
	return b, nil
}

func statusStrings(statuses []domain.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func pageBounds(page, pageSize int32) (int32, int32) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page < 1 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
