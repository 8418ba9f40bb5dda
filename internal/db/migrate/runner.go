// Package migrate applies the embedded SQL schema migrations with
// golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"tenantauth/backend/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrNoChange is returned when the schema is already at the target version.
var ErrNoChange = migrate.ErrNoChange

// Run migrates the database at dsn in the given direction ("up" or "down").
// ErrNoChange is swallowed: an up-to-date schema is success.
func Run(dsn string, direction string) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	var step func(*migrate.Migrate) error
	switch direction {
	case "up":
		step = (*migrate.Migrate).Up
	case "down":
		step = (*migrate.Migrate).Down
	default:
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
