package repository

import (
	"go.uber.org/fx"

	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/trainer"
)

// Module exports the run repository for dependency injection. With no
// run_repository_db_ref configured the trainer receives a nil repository
// and runs without persistence.
var Module = fx.Options(
	fx.Provide(
		NewRunRepository,
		func(cfg *appConfig.Config, r *GormRunRepository) trainer.RunRepository {
			if cfg.Standwatch.Training.RunRepositoryDBRef == "" {
				return nil
			}
			return r
		},
	),
)
