// Package database defines the connection, provider and resolver abstractions
// for the training-run repository's relational backends.
package database

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	dbconfig "github.com/hartwell/standwatch/internal/database/config"
)

// Connection represents an abstraction of a database connection.
type Connection interface {
	// Type returns the database type (e.g., "postgres", "mysql", "sqlite").
	Type() string
	// Name returns the name of this connection.
	Name() string
	// Close releases the underlying connection.
	Close() error
	// DB returns the GORM handle.
	DB() *gorm.DB
	// SQLDB returns the underlying *sql.DB connection.
	SQLDB() (*sql.DB, error)
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
}

// Provider is responsible for providing database connections based on
// configuration.
type Provider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (Connection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider.
	Type() string
	// ForceReconnect forces the closure and re-establishment of an existing
	// connection with the specified name.
	ForceReconnect(name string) (Connection, error)
}

// ConnectionResolver resolves a database connection instance by name,
// re-establishing it when the connection has gone stale.
type ConnectionResolver interface {
	ResolveConnection(ctx context.Context, name string) (Connection, error)
}

// ProviderGroup is the Fx group name collecting all Provider implementations.
const ProviderGroup = "db_providers"
