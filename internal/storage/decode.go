package storage

import (
	"fmt"

	appConfig "github.com/hartwell/standwatch/internal/config"
	storageConfig "github.com/hartwell/standwatch/internal/storage/config"
	"github.com/hartwell/standwatch/internal/support/configbinder"
)

// DecodeConfig extracts and decodes the named storage connection
// configuration from the application config tree.
func DecodeConfig(cfg *appConfig.Config, name string) (storageConfig.StorageConfig, error) {
	var storageCfg storageConfig.StorageConfig

	storageConfigMap, ok := cfg.Standwatch.AdapterConfigs["storage"].(map[string]interface{})
	if !ok {
		return storageCfg, fmt.Errorf("invalid 'storage' configuration format: expected map[string]interface{}")
	}
	namedConfig, ok := storageConfigMap[name].(map[string]interface{})
	if !ok {
		return storageCfg, fmt.Errorf("storage configuration for name '%s' not found", name)
	}

	if err := configbinder.BindProperties(namedConfig, &storageCfg); err != nil {
		return storageCfg, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	return storageCfg, nil
}
