package database

import (
	"fmt"

	appConfig "github.com/hartwell/standwatch/internal/config"
	dbconfig "github.com/hartwell/standwatch/internal/database/config"
	"github.com/hartwell/standwatch/internal/support/configbinder"
)

// DecodeConfig extracts and decodes the named database configuration from the
// application configuration.
func DecodeConfig(cfg *appConfig.Config, name string) (dbconfig.DatabaseConfig, error) {
	var dbCfg dbconfig.DatabaseConfig

	raw, ok := cfg.Standwatch.Database[name].(map[string]interface{})
	if !ok {
		return dbCfg, fmt.Errorf("database configuration '%s' not found under 'standwatch.database'", name)
	}

	if err := configbinder.BindProperties(raw, &dbCfg); err != nil {
		return dbCfg, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}
	return dbCfg, nil
}
