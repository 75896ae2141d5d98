// Package mysql provides a GORM Provider implementation for MySQL databases.
package mysql

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/database"
	dbconfig "github.com/hartwell/standwatch/internal/database/config"
	gormadapter "github.com/hartwell/standwatch/internal/database/gorm"
)

// init registers the MySQL dialector factory with the gorm adapter.
func init() {
	gormadapter.RegisterDialector("mysql", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the DSN for MySQL connections in the format
// expected by gorm.io/driver/mysql.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	var authPart string
	if c.User != "" {
		authPart = c.User
		if c.Password != "" {
			authPart = fmt.Sprintf("%s:%s", c.User, c.Password)
		}
		authPart += "@"
	}
	return fmt.Sprintf("%stcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		authPart, c.Host, c.Port, c.Database)
}

// MySQLProvider implements database.Provider for MySQL connections.
type MySQLProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates a new MySQL Provider. Intended for use with fx.Provide.
func NewProvider(cfg *appConfig.Config) database.Provider {
	return &MySQLProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "mysql")}
}
