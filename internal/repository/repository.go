package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/database"
	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/support/logger"
	"github.com/hartwell/standwatch/internal/trainer"
)

// ErrRunNotFound is returned when no run matches the query.
var ErrRunNotFound = errors.New("training run not found")

// GormRunRepository implements trainer.RunRepository over a resolved GORM
// connection. Updates are guarded by an optimistic version check.
type GormRunRepository struct {
	resolver database.ConnectionResolver
	connName string
}

var _ trainer.RunRepository = (*GormRunRepository)(nil)

// NewRunRepository creates the repository over the connection named by
// standwatch.training.run_repository_db_ref.
func NewRunRepository(cfg *appConfig.Config, resolver database.ConnectionResolver) *GormRunRepository {
	return &GormRunRepository{
		resolver: resolver,
		connName: cfg.Standwatch.Training.RunRepositoryDBRef,
	}
}

// db resolves the GORM handle for each call so stale connections recover.
func (r *GormRunRepository) db(ctx context.Context) (*gorm.DB, error) {
	conn, err := r.resolver.ResolveConnection(ctx, r.connName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve run repository connection '%s': %w", r.connName, err)
	}
	return conn.DB().WithContext(ctx), nil
}

// SaveRun inserts a new run record at version 0.
func (r *GormRunRepository) SaveRun(ctx context.Context, run *trainer.TrainingRun) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}

	rec := recordFromRun(run)
	rec.Version = 0
	if err := db.Create(rec).Error; err != nil {
		return exception.NewAppError("repository",
			fmt.Sprintf("failed to save training run (ID: %s)", run.ID), err, false, true)
	}
	run.Version = 0
	logger.Debugf("Saved training run (ID: %s, status: %s).", run.ID, run.Status)
	return nil
}

// UpdateRun updates a run record if its stored version still matches the
// run's version, then bumps the version. A version mismatch reports
// ErrOptimisticLock.
func (r *GormRunRepository) UpdateRun(ctx context.Context, run *trainer.TrainingRun) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&TrainingRunRecord{}).
		Where("id = ? AND version = ?", run.ID, run.Version).
		Updates(map[string]interface{}{
			"status":       run.Status.String(),
			"failures":     run.Failures,
			"end_time":     run.EndTime,
			"last_updated": run.LastUpdated,
			"version":      run.Version + 1,
		})
	if result.Error != nil {
		return exception.NewAppError("repository",
			fmt.Sprintf("failed to update training run (ID: %s)", run.ID), result.Error, false, true)
	}
	if result.RowsAffected == 0 {
		return exception.NewAppError("repository",
			fmt.Sprintf("concurrent modification of training run (ID: %s, version: %d)", run.ID, run.Version),
			exception.ErrOptimisticLock, false, false)
	}
	run.Version++
	return nil
}

// FindByID loads one run by its identifier.
func (r *GormRunRepository) FindByID(ctx context.Context, id string) (*trainer.TrainingRun, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var rec TrainingRunRecord
	if err := db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, exception.NewAppError("repository",
			fmt.Sprintf("failed to load training run (ID: %s)", id), err, false, true)
	}
	return runFromRecord(&rec), nil
}

// FindLatestByName loads the most recently started run for a model name.
func (r *GormRunRepository) FindLatestByName(ctx context.Context, name string) (*trainer.TrainingRun, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var rec TrainingRunRecord
	if err := db.Where("name = ?", name).Order("start_time DESC").First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, exception.NewAppError("repository",
			fmt.Sprintf("failed to load latest training run for '%s'", name), err, false, true)
	}
	return runFromRecord(&rec), nil
}

// PruneOlderThan deletes finished runs whose end time is before the cutoff.
func (r *GormRunRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := r.db(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Where("end_time IS NOT NULL AND end_time < ?", cutoff).Delete(&TrainingRunRecord{})
	if result.Error != nil {
		return 0, exception.NewAppError("repository",
			"failed to prune old training runs", result.Error, false, true)
	}
	if result.RowsAffected > 0 {
		logger.Infof("Pruned %d training runs finished before %s.", result.RowsAffected, cutoff.Format(time.RFC3339))
	}
	return result.RowsAffected, nil
}
