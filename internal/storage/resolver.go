package storage

import (
	"context"
	"fmt"

	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/support/configbinder"
	"github.com/hartwell/standwatch/internal/support/logger"
)

// Resolver routes connection names to the provider whose type the
// connection's configuration declares.
type Resolver struct {
	providers map[string]Provider
	cfg       *appConfig.Config
}

var _ ConnectionResolver = (*Resolver)(nil)

// NewResolver creates a Resolver over a map of providers keyed by type.
func NewResolver(providers map[string]Provider, cfg *appConfig.Config) *Resolver {
	return &Resolver{
		providers: providers,
		cfg:       cfg,
	}
}

// ResolveConnection resolves a connection by name: it reads the connection's
// declared backend type from configuration and asks the matching provider.
func (r *Resolver) ResolveConnection(ctx context.Context, name string) (Connection, error) {
	storageConfigMap, ok := r.cfg.Standwatch.AdapterConfigs["storage"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid 'storage' configuration format: expected map[string]interface{}")
	}
	namedConfig, ok := storageConfigMap[name].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("storage connection '%s' not found in configuration", name)
	}

	var tempCfg struct {
		Type string `yaml:"type"`
	}
	if err := configbinder.BindProperties(namedConfig, &tempCfg); err != nil {
		return nil, fmt.Errorf("failed to decode storage type for '%s': %w", name, err)
	}

	provider, ok := r.providers[tempCfg.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", tempCfg.Type, name)
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage connection '%s' from provider '%s': %w", name, tempCfg.Type, err)
	}
	logger.Debugf("Resolved storage connection '%s' (type '%s').", name, tempCfg.Type)
	return conn, nil
}
