// Package sqlite provides a GORM Provider implementation for SQLite
// databases. SQLite is the default backend: the training-run history lives
// in a single local file next to the rest of the application data.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/database"
	dbconfig "github.com/hartwell/standwatch/internal/database/config"
	gormadapter "github.com/hartwell/standwatch/internal/database/gorm"
)

// init registers the SQLite dialector factory with the gorm adapter.
func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		// The SQLite dialector takes the file path directly.
		return sqlite.Open(cfg.Database), nil
	})
}

// SQLiteProvider implements database.Provider for SQLite connections.
type SQLiteProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates a new SQLite Provider. Intended for use with fx.Provide.
func NewProvider(cfg *appConfig.Config) database.Provider {
	return &SQLiteProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "sqlite")}
}
