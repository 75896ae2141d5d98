package trainer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/metrics"
	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/support/logger"
)

// Options configures a Trainer.
type Options struct {
	// Species names what the model is trained for; recorded on each run.
	Species string
	// Repository persists runs. Nil disables persistence.
	Repository RunRepository
	// Recorder receives run and stage telemetry. Nil means no telemetry.
	Recorder metrics.Recorder
	// PollInterval is the dependency poll and training heartbeat interval.
	PollInterval time.Duration
	// DependencyWaitTimeout bounds the dependency wait. Zero waits forever.
	DependencyWaitTimeout time.Duration
}

// OptionsFromConfig builds Options from the application configuration.
func OptionsFromConfig(cfg *appConfig.Config, repo RunRepository, recorder metrics.Recorder) Options {
	return Options{
		Species:               cfg.Standwatch.Training.Species,
		Repository:            repo,
		Recorder:              recorder,
		PollInterval:          time.Duration(cfg.Standwatch.Training.PollIntervalSeconds) * time.Second,
		DependencyWaitTimeout: time.Duration(cfg.Standwatch.Training.DependencyWaitTimeoutSeconds) * time.Second,
	}
}

// Trainer drives the five-stage training pipeline for one model. Start is
// non-blocking: the pipeline runs on its own goroutine while callers poll
// IsLoading. A Trainer executes at most one run at a time.
type Trainer struct {
	name   string
	stages Stages
	opts   Options

	mu  sync.Mutex
	run *TrainingRun
}

// NewTrainer creates a Trainer for the named model over the given stages.
func NewTrainer(name string, stages Stages, opts Options) *Trainer {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Trainer{name: name, stages: stages, opts: opts}
}

// Name returns the model name this trainer serves.
func (t *Trainer) Name() string {
	return t.name
}

// IsLoading reports whether a run is currently in flight.
func (t *Trainer) IsLoading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.run != nil && !t.run.Status.IsFinished()
}

// Status returns the status of the current run, or StatusIdle when the
// trainer has never started.
func (t *Trainer) Status() RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run == nil {
		return StatusIdle
	}
	return t.run.Status
}

// CurrentRun returns a snapshot of the current run, or nil before the first
// start.
func (t *Trainer) CurrentRun() *TrainingRun {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run == nil {
		return nil
	}
	snapshot := *t.run
	snapshot.Failures = append(FailureList(nil), t.run.Failures...)
	return &snapshot
}

// Start launches the pipeline asynchronously and returns the new run. An
// error is returned when a run is already in flight; the error reported here
// concerns the launch only, never the run's outcome.
func (t *Trainer) Start(ctx context.Context) (*TrainingRun, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.run != nil && !t.run.Status.IsFinished() {
		return nil, exception.NewAppErrorf("trainer",
			"'%s': a run (ID: %s, status: %s) is already in flight", t.name, t.run.ID, t.run.Status,
			exception.ErrRunInFlight)
	}

	run := NewTrainingRun(t.name, t.opts.Species)
	runCtx, cancel := context.WithCancel(ctx)
	run.CancelFunc = cancel
	t.run = run

	t.persist(runCtx, run, true)
	logger.Infof("Trainer '%s': starting run (ID: %s).", t.name, run.ID)

	go t.execute(runCtx, run)

	snapshot := *run
	return &snapshot, nil
}

// Stop cancels the in-flight run, if any.
func (t *Trainer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run != nil && t.run.CancelFunc != nil && !t.run.Status.IsFinished() {
		logger.Infof("Trainer '%s': cancelling run (ID: %s).", t.name, t.run.ID)
		t.run.CancelFunc()
	}
}

// execute runs the pipeline to a terminal state. Any stage error, including
// post-train, routes the run to FAILED.
func (t *Trainer) execute(ctx context.Context, run *TrainingRun) {
	defer run.CancelFunc()

	t.opts.Recorder.RecordRunStart(ctx, run.Name)
	began := time.Now()

	err := t.runPipeline(ctx, run)

	t.mu.Lock()
	if err != nil {
		run.MarkAsFailed(err)
		logger.Errorf("Trainer '%s': run (ID: %s) failed: %v", t.name, run.ID, err)
	} else {
		run.MarkAsDone()
		logger.Infof("Trainer '%s': run (ID: %s) completed in %s.", t.name, run.ID, time.Since(began).Round(time.Millisecond))
	}
	t.mu.Unlock()

	t.persist(ctx, run, false)
	t.opts.Recorder.RecordRunEnd(ctx, run.Name, run.Status.String(), time.Since(began))
}

// runPipeline executes the stages in order.
func (t *Trainer) runPipeline(ctx context.Context, run *TrainingRun) error {
	var deps []Dependency

	err := t.stage(ctx, run, StatusLoadingDependencies, func(ctx context.Context) error {
		var loadErr error
		deps, loadErr = t.stages.LoadDependencies(ctx)
		if loadErr != nil {
			return exception.NewAppErrorf("trainer",
				"dependency load failed for run '%s'", run.ID,
				errors.Join(exception.ErrDependencyLoad, loadErr))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if anyLoading(deps) {
		err = t.stage(ctx, run, StatusWaitingOnDependencies, func(ctx context.Context) error {
			return t.waitForDependencies(ctx, deps)
		})
		if err != nil {
			return err
		}
	}

	if err := t.stage(ctx, run, StatusGatheringData, t.stages.GatherData); err != nil {
		return err
	}
	if err := t.stage(ctx, run, StatusBuildingParameters, t.stages.BuildParameters); err != nil {
		return err
	}
	if err := t.stage(ctx, run, StatusTraining, func(ctx context.Context) error {
		return t.train(ctx, run)
	}); err != nil {
		return err
	}
	return t.stage(ctx, run, StatusPostTraining, func(ctx context.Context) error {
		if postErr := t.stages.PostTrain(ctx); postErr != nil {
			return exception.NewAppErrorf("trainer",
				"post-train failed for run '%s'", run.ID,
				errors.Join(exception.ErrPostTrain, postErr))
		}
		return nil
	})
}

// stage transitions the run, executes fn, and records the outcome.
func (t *Trainer) stage(ctx context.Context, run *TrainingRun, status RunStatus, fn func(context.Context) error) error {
	t.mu.Lock()
	run.MarkAsStage(status)
	t.mu.Unlock()
	t.persist(ctx, run, false)
	logger.Debugf("Trainer '%s': run (ID: %s) entered stage %s.", t.name, run.ID, status)

	began := time.Now()
	err := fn(ctx)
	t.opts.Recorder.RecordStage(ctx, run.Name, status.String(), time.Since(began), err)
	return err
}

// waitForDependencies polls until every dependency finished loading, the
// context is cancelled, or the configured timeout elapses.
func (t *Trainer) waitForDependencies(ctx context.Context, deps []Dependency) error {
	if t.opts.DependencyWaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.DependencyWaitTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("dependency wait aborted for %s: %w", pendingNames(deps), ctx.Err())
		case <-ticker.C:
			if !anyLoading(deps) {
				return nil
			}
			logger.Debugf("Trainer '%s': still waiting on dependencies: %s.", t.name, pendingNames(deps))
		}
	}
}

// train runs the fit on a worker goroutine, ticking a heartbeat so long fits
// stay visible in the log, and honors cancellation.
func (t *Trainer) train(ctx context.Context, run *TrainingRun) error {
	done := make(chan error, 1)
	go func() {
		done <- t.stages.Train(ctx)
	}()

	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()
	began := time.Now()

	for {
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			// The worker sees the same ctx; drain its result so the
			// goroutine does not leak.
			<-done
			return fmt.Errorf("training cancelled for run '%s': %w", run.ID, ctx.Err())
		case <-ticker.C:
			logger.Debugf("Trainer '%s': training in progress (%s elapsed).", t.name, time.Since(began).Round(time.Second))
		}
	}
}

// persist saves or updates the run, tolerating a nil repository. Persistence
// failures are logged and never fail the run itself.
func (t *Trainer) persist(ctx context.Context, run *TrainingRun, initial bool) {
	if t.opts.Repository == nil {
		return
	}
	var err error
	if initial {
		err = t.opts.Repository.SaveRun(ctx, run)
	} else {
		err = t.opts.Repository.UpdateRun(ctx, run)
	}
	if err != nil {
		logger.Warnf("Trainer '%s': failed to persist run (ID: %s): %v", t.name, run.ID, err)
	}
}

func anyLoading(deps []Dependency) bool {
	for _, d := range deps {
		if d.IsLoading() {
			return true
		}
	}
	return false
}

func pendingNames(deps []Dependency) string {
	names := ""
	for _, d := range deps {
		if !d.IsLoading() {
			continue
		}
		if names != "" {
			names += ", "
		}
		names += d.Name()
	}
	if names == "" {
		return "(none)"
	}
	return names
}
