package gorm

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/database"
	"github.com/hartwell/standwatch/internal/support/logger"
)

// Resolver is the GORM implementation of database.ConnectionResolver. It
// routes a named configuration to the provider matching its type and
// revalidates the connection with a ping before handing it out.
type Resolver struct {
	providers map[string]database.Provider
	cfg       *appConfig.Config
}

// ResolverParams collects the grouped providers for NewResolver.
type ResolverParams struct {
	fx.In
	Providers []database.Provider `group:"db_providers"`
	Cfg       *appConfig.Config
}

// NewResolver creates a Resolver over all registered providers.
func NewResolver(p ResolverParams) *Resolver {
	providerMap := make(map[string]database.Provider, len(p.Providers))
	for _, provider := range p.Providers {
		providerMap[provider.Type()] = provider
	}
	return &Resolver{providers: providerMap, cfg: p.Cfg}
}

var _ database.ConnectionResolver = (*Resolver)(nil)

// ResolveConnection resolves a database connection with the specified name,
// reconnecting when the pooled connection no longer answers a ping.
func (r *Resolver) ResolveConnection(ctx context.Context, name string) (database.Connection, error) {
	dbCfg, err := database.DecodeConfig(r.cfg, name)
	if err != nil {
		return nil, err
	}

	provider, ok := r.providers[dbCfg.Type]
	if !ok {
		return nil, fmt.Errorf("no database provider for type '%s' (connection '%s')", dbCfg.Type, name)
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection '%s': %w", name, err)
	}

	sqlDB, err := conn.SQLDB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB for connection '%s': %w", name, err)
	}
	if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
		logger.Warnf("Connection '%s' is invalid (%v). Attempting to reconnect.", name, pingErr)
		reconnected, reconnectErr := provider.ForceReconnect(name)
		if reconnectErr != nil {
			return nil, fmt.Errorf("failed to reconnect connection '%s': %w", name, reconnectErr)
		}
		logger.Infof("Successfully reconnected connection '%s'.", name)
		return reconnected, nil
	}

	return conn, nil
}
