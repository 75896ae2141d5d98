package trainer

import "context"

// Dependency is a component the pipeline needs before gathering data.
// Dependencies load asynchronously; IsLoading reports whether the load is
// still in flight.
type Dependency interface {
	Name() string
	IsLoading() bool
}

// Stages is the typed contract a model implements to be trained by the
// pipeline. The trainer invokes the stages strictly in declaration order;
// any error fails the run.
type Stages interface {
	// LoadDependencies kicks off loading of everything the later stages need
	// and returns the dependencies to wait on. An empty slice means the
	// pipeline proceeds immediately.
	LoadDependencies(ctx context.Context) ([]Dependency, error)
	// GatherData assembles the training samples.
	GatherData(ctx context.Context) error
	// BuildParameters derives the model parameters from the gathered data.
	BuildParameters(ctx context.Context) error
	// Train fits the model. This is the long-running stage; it runs on its
	// own goroutine and must honor ctx cancellation.
	Train(ctx context.Context) error
	// PostTrain persists artifacts and finalizes the model.
	PostTrain(ctx context.Context) error
}

// RunRepository persists training runs. Implementations live in the
// repository package; the trainer tolerates a nil repository.
type RunRepository interface {
	SaveRun(ctx context.Context, run *TrainingRun) error
	UpdateRun(ctx context.Context, run *TrainingRun) error
}
