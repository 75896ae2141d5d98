// Package trainer implements the asynchronous model-training pipeline: a
// five-stage run (dependency load, data gather, parameter build, train,
// post-train) driven through a validated status state machine.
package trainer

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/support/logger"
	"github.com/hartwell/standwatch/internal/support/serialization"
)

// RunStatus represents the state of a training run.
type RunStatus string

const (
	StatusIdle                  RunStatus = "IDLE"
	StatusLoadingDependencies   RunStatus = "LOADING_DEPENDENCIES"
	StatusWaitingOnDependencies RunStatus = "WAITING_ON_DEPENDENCIES"
	StatusGatheringData         RunStatus = "GATHERING_DATA"
	StatusBuildingParameters    RunStatus = "BUILDING_PARAMETERS"
	StatusTraining              RunStatus = "TRAINING"
	StatusPostTraining          RunStatus = "POST_TRAINING"
	StatusDone                  RunStatus = "DONE"
	StatusFailed                RunStatus = "FAILED"
)

// String returns the string representation of the RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// IsFinished checks if the RunStatus represents a terminal state.
func (s RunStatus) IsFinished() bool {
	switch s {
	case StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

// isValidTransition checks if the state transition for a training run is
// valid. Every non-terminal state may fail; the forward path is strictly
// ordered, with the dependency wait skippable when everything is already
// loaded.
func isValidTransition(current, next RunStatus) bool {
	if next == StatusFailed {
		return !current.IsFinished()
	}
	switch current {
	case StatusIdle:
		return next == StatusLoadingDependencies
	case StatusLoadingDependencies:
		return next == StatusWaitingOnDependencies || next == StatusGatheringData
	case StatusWaitingOnDependencies:
		return next == StatusGatheringData
	case StatusGatheringData:
		return next == StatusBuildingParameters
	case StatusBuildingParameters:
		return next == StatusTraining
	case StatusTraining:
		return next == StatusPostTraining
	case StatusPostTraining:
		return next == StatusDone
	default:
		return false
	}
}

// FailureList holds error messages accumulated during a run. It serializes
// to JSON for relational persistence.
type FailureList []string

// Value implements driver.Valuer.
func (fl FailureList) Value() (driver.Value, error) {
	b, err := serialization.MarshalFailures(fl)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (fl *FailureList) Scan(value interface{}) error {
	if value == nil {
		*fl = FailureList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for FailureList: %T", value)
	}
	return serialization.UnmarshalFailures(data, (*[]string)(fl))
}

// TrainingRun tracks one execution of the training pipeline.
type TrainingRun struct {
	ID          string
	Name        string
	Species     string
	Status      RunStatus
	Failures    FailureList
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Version     int

	// CancelFunc aborts the run's goroutine. Not persisted.
	CancelFunc context.CancelFunc
}

// NewTrainingRun creates a new TrainingRun in the idle state.
func NewTrainingRun(name, species string) *TrainingRun {
	now := time.Now()
	return &TrainingRun{
		ID:          uuid.NewString(),
		Name:        name,
		Species:     species,
		Status:      StatusIdle,
		Failures:    make(FailureList, 0),
		StartTime:   now,
		LastUpdated: now,
	}
}

// TransitionTo safely transitions the state of the run.
func (r *TrainingRun) TransitionTo(next RunStatus) error {
	if !isValidTransition(r.Status, next) {
		return fmt.Errorf("TrainingRun (ID: %s): invalid state transition: %s -> %s", r.ID, r.Status, next)
	}
	r.Status = next
	r.LastUpdated = time.Now()
	return nil
}

// MarkAsStage moves the run to the given pipeline stage status.
func (r *TrainingRun) MarkAsStage(status RunStatus) {
	if err := r.TransitionTo(status); err != nil {
		logger.Warnf("Could not update TrainingRun (ID: %s) status to %s: %v", r.ID, status, err)
		r.Status = status
		r.LastUpdated = time.Now()
	}
}

// MarkAsDone updates the run status to DONE.
func (r *TrainingRun) MarkAsDone() {
	if err := r.TransitionTo(StatusDone); err != nil {
		logger.Warnf("Could not update TrainingRun (ID: %s) status to DONE: %v", r.ID, err)
		r.Status = StatusDone
	}
	now := time.Now()
	r.EndTime = &now
	r.LastUpdated = now
}

// MarkAsFailed updates the run status to FAILED and adds error information.
func (r *TrainingRun) MarkAsFailed(err error) {
	if terr := r.TransitionTo(StatusFailed); terr != nil {
		logger.Warnf("Could not update TrainingRun (ID: %s) status to FAILED: %v", r.ID, terr)
		r.Status = StatusFailed
	}
	now := time.Now()
	r.EndTime = &now
	r.LastUpdated = now
	if err != nil {
		r.AddFailureException(err)
	}
}

// AddFailureException adds error information to the run, skipping duplicates.
func (r *TrainingRun) AddFailureException(err error) {
	if err == nil {
		return
	}
	errMsg := exception.ExtractErrorMessage(err)
	for _, existing := range r.Failures {
		if existing == errMsg {
			logger.Debugf("Skipped adding duplicate error '%s' to TrainingRun (ID: %s).", errMsg, r.ID)
			return
		}
	}
	r.Failures = append(r.Failures, errMsg)
	r.LastUpdated = time.Now()
}
