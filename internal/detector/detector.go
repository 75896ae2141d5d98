package detector

import (
	"context"
	"fmt"
	"sync"

	"github.com/hartwell/standwatch/internal/artifact"
	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/support/logger"
	"github.com/hartwell/standwatch/internal/trainer"
)

// artifactKey names the detector's persisted index artifact.
const artifactKey = "detector"

// indexArtifact is the persisted form of the annotation index.
type indexArtifact struct {
	Index map[string][]Detection `json:"index"`
}

// Detector answers which classes appear in an image above a confidence
// threshold. The classifier loads asynchronously through a training run;
// callers poll IsLoading before querying.
type Detector struct {
	classifier       *AnnotationClassifier
	store            *artifact.Store
	trainer          *trainer.Trainer
	annotationsDir   string
	defaultThreshold float64

	mu      sync.Mutex
	raw     map[string][]Detection // gathered, pre-validation
	pending map[string][]Detection // built, awaiting install
}

// New creates a Detector. The store may be nil, which disables artifact
// persistence (useful in tests).
func New(cfg *appConfig.Config, store *artifact.Store, opts trainer.Options) *Detector {
	d := &Detector{
		classifier:       NewAnnotationClassifier(),
		store:            store,
		annotationsDir:   cfg.Standwatch.Storage.AnnotationsDir,
		defaultThreshold: cfg.Standwatch.Training.DetectorThreshold,
	}
	d.trainer = trainer.NewTrainer("detector", (*detectorStages)(d), opts)
	return d
}

// Name identifies the detector as a pipeline dependency.
func (d *Detector) Name() string {
	return "detector"
}

// IsLoading reports whether the detector is not yet ready to serve queries.
func (d *Detector) IsLoading() bool {
	if d.classifier.Ready() {
		return false
	}
	return d.trainer.IsLoading() || !d.trainer.Status().IsFinished()
}

var _ trainer.Dependency = (*Detector)(nil)

// Start makes the detector ready: a persisted index artifact is installed
// directly; otherwise a training run builds one. With retrain set the
// artifact is ignored.
func (d *Detector) Start(ctx context.Context, retrain bool) error {
	if !retrain && d.store != nil {
		var art indexArtifact
		found, err := d.store.Load(ctx, artifactKey, &art)
		if err != nil {
			logger.Warnf("Detector: failed to load index artifact, retraining: %v", err)
		} else if found {
			d.classifier.Install(art.Index)
			logger.Infof("Detector: installed persisted index (%d annotated images).", len(art.Index))
			return nil
		}
	}

	if _, err := d.trainer.Start(ctx); err != nil {
		return fmt.Errorf("detector: failed to start training: %w", err)
	}
	return nil
}

// Stop cancels an in-flight training run.
func (d *Detector) Stop() {
	d.trainer.Stop()
}

// CurrentRun exposes the detector's training run for monitoring.
func (d *Detector) CurrentRun() *trainer.TrainingRun {
	return d.trainer.CurrentRun()
}

// Detect returns the class IDs present in the image with confidence at or
// above the threshold. A non-positive threshold uses the configured default.
func (d *Detector) Detect(ctx context.Context, imagePath string, threshold float64) ([]int, error) {
	if !d.classifier.Ready() {
		return nil, exception.NewAppError("detector",
			fmt.Sprintf("detection requested for '%s' while the classifier is still loading", imagePath),
			nil, false, true)
	}
	if threshold <= 0 {
		threshold = d.defaultThreshold
	}

	detections, err := d.classifier.Classify(ctx, imagePath)
	if err != nil {
		return nil, exception.NewAppError("detector",
			fmt.Sprintf("classification failed for '%s'", imagePath), err, false, false)
	}

	var classIDs []int
	for _, det := range detections {
		if det.Confidence >= threshold {
			classIDs = append(classIDs, det.ClassID)
		}
	}
	return classIDs, nil
}

// DetectLabels is Detect with labels resolved instead of class IDs.
func (d *Detector) DetectLabels(ctx context.Context, imagePath string, threshold float64) ([]string, error) {
	if !d.classifier.Ready() {
		return nil, exception.NewAppError("detector",
			fmt.Sprintf("detection requested for '%s' while the classifier is still loading", imagePath),
			nil, false, true)
	}
	if threshold <= 0 {
		threshold = d.defaultThreshold
	}

	detections, err := d.classifier.Classify(ctx, imagePath)
	if err != nil {
		return nil, exception.NewAppError("detector",
			fmt.Sprintf("classification failed for '%s'", imagePath), err, false, false)
	}

	var labels []string
	for _, det := range detections {
		if det.Confidence >= threshold {
			labels = append(labels, det.Label)
		}
	}
	return labels, nil
}

// detectorStages adapts the Detector to the training pipeline.
type detectorStages Detector

var _ trainer.Stages = (*detectorStages)(nil)

// LoadDependencies: the detector has none.
func (s *detectorStages) LoadDependencies(ctx context.Context) ([]trainer.Dependency, error) {
	return nil, nil
}

// GatherData scans the annotation sidecar files.
func (s *detectorStages) GatherData(ctx context.Context) error {
	raw, err := scanAnnotations(s.annotationsDir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
	logger.Infof("Detector: gathered annotations for %d images.", len(raw))
	return nil
}

// BuildParameters validates the gathered annotations into an index.
func (s *detectorStages) BuildParameters(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[string][]Detection, len(s.raw))
	for key, detections := range s.raw {
		var valid []Detection
		for _, det := range detections {
			if det.Confidence < 0 || det.Confidence > 1 {
				logger.Warnf("Detector: dropping annotation with confidence %.3f for '%s'.", det.Confidence, key)
				continue
			}
			valid = append(valid, det)
		}
		index[key] = valid
	}
	s.pending = index
	s.raw = nil
	return nil
}

// Train installs the built index.
func (s *detectorStages) Train(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending == nil {
		return fmt.Errorf("no index was built before training")
	}
	s.classifier.Install(pending)
	return nil
}

// PostTrain persists the installed index as an artifact.
func (s *detectorStages) PostTrain(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Save(ctx, artifactKey, indexArtifact{Index: s.classifier.Index()})
}
