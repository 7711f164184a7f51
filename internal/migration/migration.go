package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/tka-invoice/internal/audit/domain"
	bankaccountdomain "github.com/smallbiznis/tka-invoice/internal/bankaccount/domain"
	companydomain "github.com/smallbiznis/tka-invoice/internal/company/domain"
	invoicedomain "github.com/smallbiznis/tka-invoice/internal/invoice/domain"
	jobdescriptiondomain "github.com/smallbiznis/tka-invoice/internal/jobdescription/domain"
	workerdomain "github.com/smallbiznis/tka-invoice/internal/worker/domain"
	"gorm.io/gorm"
)

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&companydomain.Company{},
		&jobdescriptiondomain.JobDescription{},
		&workerdomain.Worker{},
		&bankaccountdomain.BankAccount{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
		&invoicedomain.InvoiceSequence{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate builds the schema from the models. It serves sqlite, mysql
// and tests; postgres uses the versioned SQL files.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	return conn.AutoMigrate(Models()...)
}

// Run applies the schema for the connection's dialect.
func Run(conn *gorm.DB, dbType string) error {
	if dbType != "postgres" {
		return AutoMigrate(conn)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}
