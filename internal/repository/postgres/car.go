package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/logger"
	"carbooking-backend/internal/repository"
)

type carRepository struct {
	db *sql.DB
}

func NewCarRepository(db *sql.DB) repository.CarRepository {
	return &carRepository{db: db}
}

func (r *carRepository) GetByID(ctx context.Context, id int32) (*domain.Car, error) {
	c := &domain.Car{}
	var tiers []byte
	query := `SELECT id, name, plate_number, class, pricing_scheme, tier_prices, hourly_rate, security_deposit,
	          driver_available, driver_charge_per_day, available, created_at, updated_at FROM cars WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.PlateNumber, &c.Class, &c.PricingScheme, &tiers,
		&c.HourlyRate, &c.SecurityDeposit, &c.DriverAvailable, &c.DriverChargePerDay, &c.Available, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCarNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &c.TierPrices); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (r *carRepository) SetAvailable(ctx context.Context, id int32, available bool) error {
	return setCarAvailable(ctx, r.db, id, available)
}

func setCarAvailable(ctx context.Context, q querier, id int32, available bool) error {
	logger.DatabaseCall("UPDATE", "cars", "carID", id, "available", available)
	result, err := q.ExecContext(ctx, `UPDATE cars SET available = $1, updated_at = $2 WHERE id = $3`, available, time.Now().UTC(), id)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return err
	}
	rows, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, err, "carID", id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrCarNotFound
	}
	return nil
}
