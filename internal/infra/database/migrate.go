package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate creates the subscriber, lesson and ledger tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	name := "migrations/postgres.sql"
	if driver == DriverSQLite {
		name = "migrations/sqlite.sql"
	}
	b, err := migrationsFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if _, err := db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("apply %s: %w", name, err)
	}
	return nil
}
