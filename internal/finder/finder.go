package finder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hartwell/standwatch/internal/artifact"
	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/markers"
	"github.com/hartwell/standwatch/internal/photo"
	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/support/logger"
	"github.com/hartwell/standwatch/internal/trainer"
	"github.com/hartwell/standwatch/internal/weather"
)

// WeatherService is the slice of the weather facade the finder needs.
type WeatherService interface {
	EnsureCoverage(ctx context.Context, start, end time.Time, timezone string) error
	Data(at time.Time, fields []string) ([]weather.Value, error)
}

// DetectionSource classifies photos; the detector adapter implements it.
type DetectionSource interface {
	trainer.Dependency
	Start(ctx context.Context, retrain bool) error
	DetectLabels(ctx context.Context, imagePath string, threshold float64) ([]string, error)
}

// Point is one prediction sample.
type Point struct {
	At    time.Time
	Score float64
}

// CameraSeries is the prediction series for one camera.
type CameraSeries struct {
	Camera string
	Points []Point
}

// sample is one gathered training observation.
type sample struct {
	features []float64
	count    int
}

// Finder predicts per-camera sighting likelihood for the configured species.
// Training runs through the standard pipeline with the detector as an async
// dependency; trained estimators persist as JSON artifacts keyed
// "<camera> <species>".
type Finder struct {
	weatherSvc WeatherService
	detections DetectionSource
	registry   *markers.Registry
	store      *artifact.Store
	trainer    *trainer.Trainer

	species     string
	timezone    string
	location    *time.Location
	photosDir   string
	threshold   float64
	sundayFirst bool
	interval    time.Duration
	retrain     bool

	mu         sync.RWMutex
	estimators map[string]Estimator
	samples    map[string][]sample
	positives  map[string][][]float64
}

// New creates a Finder over its collaborators. The store may be nil, which
// disables artifact persistence.
func New(
	cfg *appConfig.Config,
	weatherSvc WeatherService,
	detections DetectionSource,
	registry *markers.Registry,
	store *artifact.Store,
	opts trainer.Options,
) (*Finder, error) {
	loc, err := time.LoadLocation(cfg.Standwatch.System.Timezone)
	if err != nil {
		return nil, fmt.Errorf("finder: invalid timezone '%s': %w", cfg.Standwatch.System.Timezone, err)
	}

	f := &Finder{
		weatherSvc:  weatherSvc,
		detections:  detections,
		registry:    registry,
		store:       store,
		species:     cfg.Standwatch.Training.Species,
		timezone:    cfg.Standwatch.System.Timezone,
		location:    loc,
		photosDir:   cfg.Standwatch.Storage.PhotosDir,
		threshold:   cfg.Standwatch.Training.DetectorThreshold,
		sundayFirst: strings.EqualFold(cfg.Standwatch.Training.FirstWeekDay, "sunday"),
		interval:    time.Duration(cfg.Standwatch.Training.PredictIntervalMinutes) * time.Minute,
		retrain:     cfg.Standwatch.Training.Retrain,
		estimators:  make(map[string]Estimator),
	}
	if f.interval <= 0 {
		f.interval = 15 * time.Minute
	}
	f.trainer = trainer.NewTrainer("finder", (*finderStages)(f), opts)
	return f, nil
}

// Name identifies the finder as a pipeline dependency.
func (f *Finder) Name() string {
	return "finder"
}

// IsLoading reports whether the finder is not yet ready to predict.
func (f *Finder) IsLoading() bool {
	f.mu.RLock()
	ready := len(f.estimators) > 0
	f.mu.RUnlock()
	if ready {
		return false
	}
	return f.trainer.IsLoading() || !f.trainer.Status().IsFinished()
}

var _ trainer.Dependency = (*Finder)(nil)

// Start makes the finder ready: persisted estimator artifacts covering every
// camera are installed directly; otherwise a training run is launched. With
// retrain configured the artifacts are ignored.
func (f *Finder) Start(ctx context.Context) error {
	if !f.retrain && f.loadArtifacts(ctx) {
		return nil
	}
	if _, err := f.trainer.Start(ctx); err != nil {
		return fmt.Errorf("finder: failed to start training: %w", err)
	}
	return nil
}

// Stop cancels an in-flight training run.
func (f *Finder) Stop() {
	f.trainer.Stop()
}

// CurrentRun exposes the finder's training run for monitoring.
func (f *Finder) CurrentRun() *trainer.TrainingRun {
	return f.trainer.CurrentRun()
}

// loadArtifacts installs persisted estimators when every camera has one.
func (f *Finder) loadArtifacts(ctx context.Context) bool {
	if f.store == nil {
		return false
	}

	cameras := f.registry.Cameras()
	if len(cameras) == 0 {
		return false
	}

	loaded := make(map[string]Estimator, len(cameras))
	for _, cam := range cameras {
		est := NewCentroidEstimator()
		found, err := f.store.Load(ctx, artifact.Key(cam.Name, f.species), est)
		if err != nil {
			logger.Warnf("Finder: failed to load artifact for camera '%s': %v", cam.Name, err)
			return false
		}
		if !found {
			logger.Debugf("Finder: no artifact for camera '%s', training required.", cam.Name)
			return false
		}
		loaded[cam.Name] = est
	}

	f.mu.Lock()
	f.estimators = loaded
	f.mu.Unlock()
	logger.Infof("Finder: installed %d persisted estimators.", len(loaded))
	return true
}

// Predict evaluates every trained camera estimator at fixed increments over
// [start, start+hours). Forecast coverage is ensured first. When no estimator
// was ever fitted (for example after a failed run) the error wraps
// exception.ErrNotTrained.
func (f *Finder) Predict(ctx context.Context, start time.Time, hours int) ([]CameraSeries, error) {
	if f.IsLoading() {
		return nil, exception.NewAppError("finder",
			"prediction requested while the finder is still loading", nil, false, true)
	}
	if hours <= 0 {
		return nil, fmt.Errorf("finder: prediction window must be positive, got %d hours", hours)
	}

	f.mu.RLock()
	trained := len(f.estimators)
	f.mu.RUnlock()
	if trained == 0 {
		return nil, exception.NewAppErrorf("finder",
			"no trained estimators are available for '%s'; the last training run produced none", f.species,
			exception.ErrNotTrained)
	}

	start = start.In(f.location)
	end := start.Add(time.Duration(hours) * time.Hour)
	if err := f.weatherSvc.EnsureCoverage(ctx, start, end, f.timezone); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	series := make([]CameraSeries, 0, len(f.estimators))
	for camera, est := range f.estimators {
		var points []Point
		for at := start; at.Before(end); at = at.Add(f.interval) {
			values, err := f.weatherSvc.Data(at, nil)
			if err != nil {
				return nil, err
			}
			features := Features(at, numbers(values), f.sundayFirst)
			points = append(points, Point{At: at, Score: est.Score(features)})
		}
		series = append(series, CameraSeries{Camera: camera, Points: points})
	}
	return series, nil
}

// numbers extracts the numeric column of weather values in field order.
func numbers(values []weather.Value) []float64 {
	nums := make([]float64, len(values))
	for i, v := range values {
		nums[i] = v.Number
	}
	return nums
}

// finderStages adapts the Finder to the training pipeline.
type finderStages Finder

var _ trainer.Stages = (*finderStages)(nil)

// LoadDependencies starts the detector when it is not yet loading or loaded,
// and reports it as the dependency to wait on.
func (s *finderStages) LoadDependencies(ctx context.Context) ([]trainer.Dependency, error) {
	if s.detections == nil {
		return nil, nil
	}
	if s.detections.IsLoading() {
		if err := s.detections.Start(ctx, s.retrain); err != nil {
			// An already-running detector load is fine; anything else is not.
			if !errors.Is(err, exception.ErrRunInFlight) {
				return nil, err
			}
		}
	}
	return []trainer.Dependency{s.detections}, nil
}

// GatherData walks every camera's photos, classifies them, ensures weather
// coverage over the photo span, and builds one sample per photo.
func (s *finderStages) GatherData(ctx context.Context) error {
	cameras := s.registry.Cameras()
	if len(cameras) == 0 {
		return fmt.Errorf("no camera markers are registered")
	}

	gathered := make(map[string][]sample, len(cameras))
	for _, cam := range cameras {
		dir := filepath.Join(s.photosDir, cam.Name)
		photos, err := photo.List(dir, s.location)
		if err != nil {
			logger.Warnf("Finder: skipping camera '%s': %v", cam.Name, err)
			continue
		}
		if len(photos) == 0 {
			logger.Warnf("Finder: camera '%s' has no photos.", cam.Name)
			continue
		}

		first := photos[0].TakenAt
		last := photos[len(photos)-1].TakenAt
		if err := s.weatherSvc.EnsureCoverage(ctx, first, last, s.timezone); err != nil {
			return err
		}

		var samples []sample
		for _, p := range photos {
			labels, err := s.detections.DetectLabels(ctx, p.Path, s.threshold)
			if err != nil {
				return err
			}
			count := 0
			for _, label := range labels {
				if strings.EqualFold(label, s.species) {
					count++
				}
			}

			values, err := s.weatherSvc.Data(p.TakenAt, nil)
			if err != nil {
				return err
			}
			samples = append(samples, sample{
				features: Features(p.TakenAt, numbers(values), s.sundayFirst),
				count:    count,
			})
		}
		gathered[cam.Name] = samples
		logger.Infof("Finder: gathered %d samples for camera '%s'.", len(samples), cam.Name)
	}

	if len(gathered) == 0 {
		return fmt.Errorf("no camera produced any training samples")
	}

	s.mu.Lock()
	s.samples = gathered
	s.mu.Unlock()
	return nil
}

// BuildParameters keeps only the positive-count samples per camera. A
// camera without positives is skipped with a warning, never a failure.
func (s *finderStages) BuildParameters(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	positives := make(map[string][][]float64, len(s.samples))
	for camera, samples := range s.samples {
		var matrix [][]float64
		for _, smp := range samples {
			if smp.count > 0 {
				matrix = append(matrix, smp.features)
			}
		}
		if len(matrix) == 0 {
			logger.Warnf("Finder: camera '%s' has no %s sightings, skipping its estimator.", camera, s.species)
			continue
		}
		positives[camera] = matrix
	}

	if len(positives) == 0 {
		return exception.NewAppErrorf("finder",
			"no camera has positive %s samples, nothing to train", s.species,
			exception.ErrNoPositiveSamples)
	}

	s.positives = positives
	s.samples = nil
	return nil
}

// Train fits one estimator per camera with positive samples.
func (s *finderStages) Train(ctx context.Context) error {
	s.mu.Lock()
	positives := s.positives
	s.positives = nil
	s.mu.Unlock()

	fitted := make(map[string]Estimator, len(positives))
	for camera, matrix := range positives {
		if err := ctx.Err(); err != nil {
			return err
		}
		est := NewCentroidEstimator()
		if err := est.Fit(matrix); err != nil {
			return fmt.Errorf("failed to fit estimator for camera '%s': %w", camera, err)
		}
		fitted[camera] = est
		logger.Debugf("Finder: fitted estimator for camera '%s' on %d positive samples.", camera, len(matrix))
	}

	s.mu.Lock()
	s.estimators = fitted
	s.mu.Unlock()
	return nil
}

// PostTrain persists every fitted estimator.
func (s *finderStages) PostTrain(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for camera, est := range s.estimators {
		if err := s.store.Save(ctx, artifact.Key(camera, s.species), est); err != nil {
			return err
		}
	}
	return nil
}
