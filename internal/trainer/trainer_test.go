package trainer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/trainer"
)

// stageRecorder implements trainer.Stages, recording the execution order and
// failing on demand.
type stageRecorder struct {
	mu    sync.Mutex
	order []string

	deps      []trainer.Dependency
	loadErr   error
	gatherErr error
	buildErr  error
	trainErr  error
	postErr   error
	trainFn   func(ctx context.Context) error
}

func (s *stageRecorder) record(name string) {
	s.mu.Lock()
	s.order = append(s.order, name)
	s.mu.Unlock()
}

func (s *stageRecorder) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

func (s *stageRecorder) LoadDependencies(ctx context.Context) ([]trainer.Dependency, error) {
	s.record("load")
	return s.deps, s.loadErr
}

func (s *stageRecorder) GatherData(ctx context.Context) error {
	s.record("gather")
	return s.gatherErr
}

func (s *stageRecorder) BuildParameters(ctx context.Context) error {
	s.record("build")
	return s.buildErr
}

func (s *stageRecorder) Train(ctx context.Context) error {
	s.record("train")
	if s.trainFn != nil {
		return s.trainFn(ctx)
	}
	return s.trainErr
}

func (s *stageRecorder) PostTrain(ctx context.Context) error {
	s.record("post")
	return s.postErr
}

// timedDependency reports loading until its deadline passes.
type timedDependency struct {
	name  string
	until time.Time
}

func (d *timedDependency) Name() string    { return d.name }
func (d *timedDependency) IsLoading() bool { return time.Now().Before(d.until) }

// runRecorder implements trainer.RunRepository, counting calls.
type runRecorder struct {
	mu         sync.Mutex
	saves      int
	updates    int
	lastStatus trainer.RunStatus
	err        error
}

func (r *runRecorder) SaveRun(ctx context.Context, run *trainer.TrainingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.lastStatus = run.Status
	return r.err
}

func (r *runRecorder) UpdateRun(ctx context.Context, run *trainer.TrainingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	r.lastStatus = run.Status
	return r.err
}

func testOptions() trainer.Options {
	return trainer.Options{
		Species:      "Deer",
		PollInterval: 5 * time.Millisecond,
	}
}

func waitFinished(t *testing.T, tr *trainer.Trainer) {
	t.Helper()
	require.Eventually(t, func() bool {
		return tr.Status().IsFinished()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTrainer_SuccessfulRun(t *testing.T) {
	stages := &stageRecorder{}
	tr := trainer.NewTrainer("finder", stages, testOptions())

	run, err := tr.Start(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "Deer", run.Species)

	waitFinished(t, tr)
	assert.Equal(t, trainer.StatusDone, tr.Status())
	assert.False(t, tr.IsLoading())

	// No dependency reported loading, so the wait stage is skipped entirely.
	assert.Equal(t, []string{"load", "gather", "build", "train", "post"}, stages.Order())

	current := tr.CurrentRun()
	require.NotNil(t, current)
	assert.Empty(t, current.Failures)
	assert.NotNil(t, current.EndTime)
}

func TestTrainer_WaitsForLoadingDependency(t *testing.T) {
	dep := &timedDependency{name: "detector", until: time.Now().Add(40 * time.Millisecond)}
	stages := &stageRecorder{deps: []trainer.Dependency{dep}}
	tr := trainer.NewTrainer("finder", stages, testOptions())

	began := time.Now()
	_, err := tr.Start(context.Background())
	require.NoError(t, err)

	waitFinished(t, tr)
	assert.Equal(t, trainer.StatusDone, tr.Status())
	// The pipeline cannot have finished before the dependency was ready.
	assert.GreaterOrEqual(t, time.Since(began), 40*time.Millisecond)
	assert.Equal(t, []string{"load", "gather", "build", "train", "post"}, stages.Order())
}

func TestTrainer_DependencyWaitTimeout(t *testing.T) {
	dep := &timedDependency{name: "detector", until: time.Now().Add(time.Hour)}
	stages := &stageRecorder{deps: []trainer.Dependency{dep}}
	opts := testOptions()
	opts.DependencyWaitTimeout = 30 * time.Millisecond
	tr := trainer.NewTrainer("finder", stages, opts)

	_, err := tr.Start(context.Background())
	require.NoError(t, err)

	waitFinished(t, tr)
	assert.Equal(t, trainer.StatusFailed, tr.Status())

	current := tr.CurrentRun()
	require.NotNil(t, current)
	require.NotEmpty(t, current.Failures)
	assert.Contains(t, current.Failures[0], "detector")

	// The pipeline never advanced past the wait.
	assert.Equal(t, []string{"load"}, stages.Order())
}

func TestTrainer_StageFailureRoutesToFailed(t *testing.T) {
	stages := &stageRecorder{gatherErr: errors.New("no camera produced any training samples")}
	tr := trainer.NewTrainer("finder", stages, testOptions())

	_, err := tr.Start(context.Background())
	require.NoError(t, err)

	waitFinished(t, tr)
	assert.Equal(t, trainer.StatusFailed, tr.Status())
	// Later stages never ran.
	assert.Equal(t, []string{"load", "gather"}, stages.Order())

	current := tr.CurrentRun()
	require.NotEmpty(t, current.Failures)
	assert.Contains(t, current.Failures[0], "no camera produced")
}

func TestTrainer_PostTrainFailureRoutesToFailed(t *testing.T) {
	// A post-train failure is a failure like any other, even though the
	// model itself trained.
	stages := &stageRecorder{postErr: errors.New("artifact upload refused")}
	tr := trainer.NewTrainer("finder", stages, testOptions())

	_, err := tr.Start(context.Background())
	require.NoError(t, err)

	waitFinished(t, tr)
	assert.Equal(t, trainer.StatusFailed, tr.Status())
	assert.Equal(t, []string{"load", "gather", "build", "train", "post"}, stages.Order())

	current := tr.CurrentRun()
	require.NotEmpty(t, current.Failures)
	assert.Contains(t, current.Failures[0], "post-train")
}

func TestTrainer_RejectsConcurrentRuns(t *testing.T) {
	release := make(chan struct{})
	stages := &stageRecorder{trainFn: func(ctx context.Context) error {
		<-release
		return nil
	}}
	tr := trainer.NewTrainer("finder", stages, testOptions())

	first, err := tr.Start(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return tr.Status() == trainer.StatusTraining
	}, 2*time.Second, 5*time.Millisecond)

	_, err = tr.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrRunInFlight)
	assert.Contains(t, err.Error(), "already in flight")
	assert.Contains(t, err.Error(), first.ID)

	close(release)
	waitFinished(t, tr)
	assert.Equal(t, trainer.StatusDone, tr.Status())

	// A finished trainer accepts a fresh run.
	_, err = tr.Start(context.Background())
	assert.NoError(t, err)
	waitFinished(t, tr)
}

func TestTrainer_StopCancelsTraining(t *testing.T) {
	stages := &stageRecorder{trainFn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	tr := trainer.NewTrainer("finder", stages, testOptions())

	_, err := tr.Start(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return tr.Status() == trainer.StatusTraining
	}, 2*time.Second, 5*time.Millisecond)

	tr.Stop()
	waitFinished(t, tr)
	assert.Equal(t, trainer.StatusFailed, tr.Status())

	current := tr.CurrentRun()
	require.NotEmpty(t, current.Failures)
	assert.Contains(t, current.Failures[0], "cancelled")
}

func TestTrainer_PersistsRunLifecycle(t *testing.T) {
	repo := &runRecorder{}
	stages := &stageRecorder{}
	opts := testOptions()
	opts.Repository = repo
	tr := trainer.NewTrainer("finder", stages, opts)

	_, err := tr.Start(context.Background())
	require.NoError(t, err)
	waitFinished(t, tr)

	// The terminal persist lands just after the status flips; poll for it.
	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.lastStatus == trainer.StatusDone
	}, 2*time.Second, 5*time.Millisecond)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, 1, repo.saves)
	// One update per stage plus the terminal update.
	assert.GreaterOrEqual(t, repo.updates, 5)
}

func TestTrainer_PersistenceFailureDoesNotFailRun(t *testing.T) {
	repo := &runRecorder{err: errors.New("connection refused")}
	stages := &stageRecorder{}
	opts := testOptions()
	opts.Repository = repo
	tr := trainer.NewTrainer("finder", stages, opts)

	_, err := tr.Start(context.Background())
	require.NoError(t, err)
	waitFinished(t, tr)
	assert.Equal(t, trainer.StatusDone, tr.Status())
}
