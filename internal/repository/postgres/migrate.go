package postgres

import (
	"context"
	"database/sql"
	_ "embed"

	"carbooking-backend/internal/logger"
)

//go:embed schema.sql
var schema string

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, db *sql.DB) error {
	logger.DatabaseCall("EXEC", "schema")
	_, err := db.ExecContext(ctx, schema)
	logger.DatabaseResult("EXEC", 0, err)
	return err
}
