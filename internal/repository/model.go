// Package repository persists training runs to a relational backend through
// the database connection resolver, with schema management via embedded
// migrations.
package repository

import (
	"time"

	"github.com/hartwell/standwatch/internal/trainer"
)

// TrainingRunRecord is the relational representation of a training run.
type TrainingRunRecord struct {
	ID          string              `gorm:"column:id;primaryKey"`
	Name        string              `gorm:"column:name;index"`
	Species     string              `gorm:"column:species"`
	Status      string              `gorm:"column:status"`
	Failures    trainer.FailureList `gorm:"column:failures;type:text"`
	StartTime   time.Time           `gorm:"column:start_time"`
	EndTime     *time.Time          `gorm:"column:end_time"`
	LastUpdated time.Time           `gorm:"column:last_updated"`
	Version     int                 `gorm:"column:version"`
}

// TableName returns the table name for GORM.
func (TrainingRunRecord) TableName() string {
	return "training_runs"
}

// recordFromRun maps a run to its relational record.
func recordFromRun(run *trainer.TrainingRun) *TrainingRunRecord {
	return &TrainingRunRecord{
		ID:          run.ID,
		Name:        run.Name,
		Species:     run.Species,
		Status:      run.Status.String(),
		Failures:    run.Failures,
		StartTime:   run.StartTime,
		EndTime:     run.EndTime,
		LastUpdated: run.LastUpdated,
		Version:     run.Version,
	}
}

// runFromRecord maps a relational record back to a run.
func runFromRecord(rec *TrainingRunRecord) *trainer.TrainingRun {
	return &trainer.TrainingRun{
		ID:          rec.ID,
		Name:        rec.Name,
		Species:     rec.Species,
		Status:      trainer.RunStatus(rec.Status),
		Failures:    rec.Failures,
		StartTime:   rec.StartTime,
		EndTime:     rec.EndTime,
		LastUpdated: rec.LastUpdated,
		Version:     rec.Version,
	}
}
