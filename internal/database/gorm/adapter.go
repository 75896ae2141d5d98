// Package gorm provides the GORM-backed implementation of the database
// connection and provider interfaces, with per-dialect providers registered
// through a dialector factory registry.
package gorm

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/hartwell/standwatch/internal/database"
	dbconfig "github.com/hartwell/standwatch/internal/database/config"
	"github.com/hartwell/standwatch/internal/support/logger"
)

// gormConnection implements database.Connection over a *gorm.DB.
type gormConnection struct {
	db     *gorm.DB
	cfg    dbconfig.DatabaseConfig
	dbType string
	name   string
}

var _ database.Connection = (*gormConnection)(nil)

// NewGormConnection wraps an opened GORM handle as a database.Connection.
func NewGormConnection(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) database.Connection {
	return &gormConnection{db: db, cfg: cfg, dbType: cfg.Type, name: name}
}

// Type returns the database type of this connection.
func (c *gormConnection) Type() string {
	return c.dbType
}

// Name returns the name of this connection.
func (c *gormConnection) Name() string {
	return c.name
}

// DB returns the GORM handle.
func (c *gormConnection) DB() *gorm.DB {
	return c.db
}

// SQLDB returns the underlying *sql.DB connection.
func (c *gormConnection) SQLDB() (*sql.DB, error) {
	return c.db.DB()
}

// Config returns the configuration this connection was opened with.
func (c *gormConnection) Config() dbconfig.DatabaseConfig {
	return c.cfg
}

// Close releases the underlying sql.DB.
func (c *gormConnection) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB for '%s': %w", c.name, err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close connection '%s': %w", c.name, err)
	}
	logger.Debugf("Closed DB connection '%s' (%s).", c.name, c.dbType)
	return nil
}

// NewGormLogger creates a gorm logger instance at the given level, routed
// through the application logger.
func NewGormLogger(level string) gormLogger.Interface {
	var gormLevel gormLogger.LogLevel
	switch strings.ToUpper(level) {
	case "SILENT":
		gormLevel = gormLogger.Silent
	case "ERROR":
		gormLevel = gormLogger.Error
	case "WARN":
		gormLevel = gormLogger.Warn
	case "INFO":
		gormLevel = gormLogger.Info
	default:
		gormLevel = gormLogger.Silent
	}

	return gormLogger.New(
		&gormWriter{},
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// gormWriter redirects GORM log output to the application logger. SQL
// statements go to DEBUG, everything else to INFO.
type gormWriter struct{}

// Printf implements gormLogger.Writer.
func (w *gormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if strings.Contains(msg, "SELECT") || strings.Contains(msg, "INSERT") ||
		strings.Contains(msg, "UPDATE") || strings.Contains(msg, "DELETE") {
		logger.Debugf("[GORM] %s", msg)
	} else {
		logger.Infof("[GORM] %s", msg)
	}
}
