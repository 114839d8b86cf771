package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	checkoutdomain "github.com/smallbiznis/creditgate/internal/checkout/domain"
	generationdomain "github.com/smallbiznis/creditgate/internal/generation/domain"
	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
	"github.com/smallbiznis/creditgate/internal/ratelimit"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres schema and returns the
// resulting schema version.
func RunMigrations(db *sql.DB) (uint, error) {
	if db == nil {
		return 0, errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return 0, fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return 0, fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return 0, fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	// migrator.Close would close the shared *sql.DB.

	version, dirty, err := migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// Models lists every table owned by the relational store.
func Models() []any {
	return []any{
		&paymentdomain.PaymentRecord{},
		&paymentdomain.EventRecord{},
		&checkoutdomain.User{},
		&ratelimit.UsageRecord{},
		&generationdomain.Generation{},
		&generationdomain.TrainingSample{},
		&generationdomain.ProviderUsage{},
	}
}

// AutoMigrate creates the schema from the models on dialects without embedded SQL.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
