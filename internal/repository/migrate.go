package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/hartwell/standwatch/internal/database"
	"github.com/hartwell/standwatch/internal/support/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsTable names the schema-version bookkeeping table.
const migrationsTable = "standwatch_schema_migrations"

// databaseDriver builds a migrate driver for the connection's dialect.
func databaseDriver(dbType string, sqlDB *sql.DB) (migratedb.Driver, error) {
	switch dbType {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: migrationsTable})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: migrationsTable})
	case "sqlite":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: migrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", dbType)
	}
}

// RunMigrations applies all pending migrations for the run repository schema
// on the given connection.
func RunMigrations(ctx context.Context, conn database.Connection) error {
	sqlDB, err := conn.SQLDB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB for migration: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver: %w", err)
	}

	dbDriver, err := databaseDriver(conn.Type(), sqlDB)
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, conn.Type(), dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	logger.Infof("Applying run repository migrations (connection: %s, type: %s).", conn.Name(), conn.Type())
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed (DB: %s): %w", conn.Type(), err)
	}
	logger.Infof("Run repository schema is up to date.")
	return nil
}
