// Package postgres provides a GORM Provider implementation for PostgreSQL
// databases.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/database"
	dbconfig "github.com/hartwell/standwatch/internal/database/config"
	gormadapter "github.com/hartwell/standwatch/internal/database/gorm"
)

// init registers the PostgreSQL dialector factory with the gorm adapter.
func init() {
	gormadapter.RegisterDialector("postgres", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the DSN for PostgreSQL connections in the format
// expected by gorm.io/driver/postgres.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.Sslmode)
}

// PostgresProvider implements database.Provider for PostgreSQL connections.
type PostgresProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates a new PostgreSQL Provider. Intended for use with
// fx.Provide.
func NewProvider(cfg *appConfig.Config) database.Provider {
	return &PostgresProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "postgres")}
}
