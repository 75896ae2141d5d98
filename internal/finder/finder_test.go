package finder_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/finder"
	"github.com/hartwell/standwatch/internal/markers"
	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/trainer"
	"github.com/hartwell/standwatch/internal/weather"
)

// stubWeather answers every instant with fixed numbers and records the
// ensured ranges.
type stubWeather struct {
	mu      sync.Mutex
	ensured [][2]time.Time
}

func (w *stubWeather) EnsureCoverage(ctx context.Context, start, end time.Time, timezone string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ensured = append(w.ensured, [2]time.Time{start, end})
	return nil
}

func (w *stubWeather) Data(at time.Time, fields []string) ([]weather.Value, error) {
	return []weather.Value{
		{Field: "Temperature", Number: 40 + float64(at.Hour())},
		{Field: "Wind Speed", Number: 5},
	}, nil
}

// stubDetections labels any photo whose name contains "deer" as a Deer
// sighting. It reports loading until shortly after Start.
type stubDetections struct {
	loading atomic.Bool
	started atomic.Bool
}

func newStubDetections() *stubDetections {
	d := &stubDetections{}
	d.loading.Store(true)
	return d
}

func (d *stubDetections) Name() string    { return "detector" }
func (d *stubDetections) IsLoading() bool { return d.loading.Load() }

func (d *stubDetections) Start(ctx context.Context, retrain bool) error {
	d.started.Store(true)
	time.AfterFunc(20*time.Millisecond, func() { d.loading.Store(false) })
	return nil
}

func (d *stubDetections) DetectLabels(ctx context.Context, imagePath string, threshold float64) ([]string, error) {
	if strings.Contains(strings.ToLower(filepath.Base(imagePath)), "deer") {
		return []string{"Deer"}, nil
	}
	return nil, nil
}

func finderConfig(t *testing.T, photosDir string) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Standwatch.System.Timezone = "UTC"
	cfg.Standwatch.Storage.PhotosDir = photosDir
	cfg.Standwatch.Training.Species = "Deer"
	cfg.Standwatch.Training.FirstWeekDay = "monday"
	cfg.Standwatch.Training.PredictIntervalMinutes = 60
	cfg.Standwatch.Training.Retrain = true
	return cfg
}

func cameraRegistry(t *testing.T) *markers.Registry {
	t.Helper()
	reg, err := markers.Parse(strings.NewReader(
		"name,latitude,longitude,kind\n" +
			"North Cam,38.58,-92.17,camera\n" +
			"Food Plot,38.59,-92.16,stand\n"))
	require.NoError(t, err)
	return reg
}

func writeCameraPhotos(t *testing.T, photosDir, camera string, names []string) {
	t.Helper()
	dir := filepath.Join(photosDir, camera)
	require.NoError(t, os.MkdirAll(dir, 0755))
	base := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC)
	for i, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("image"), 0644))
		mtime := base.Add(time.Duration(i) * 12 * time.Hour)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func testTrainerOptions() trainer.Options {
	return trainer.Options{Species: "Deer", PollInterval: 5 * time.Millisecond}
}

func waitReady(t *testing.T, f *finder.Finder) {
	t.Helper()
	require.Eventually(t, func() bool { return !f.IsLoading() }, 5*time.Second, 10*time.Millisecond)
}

func TestFinder_TrainAndPredict(t *testing.T) {
	photosDir := t.TempDir()
	writeCameraPhotos(t, photosDir, "North Cam", []string{"deer1.jpg", "deer2.jpg", "empty.jpg"})

	weatherSvc := &stubWeather{}
	detections := newStubDetections()
	f, err := finder.New(finderConfig(t, photosDir), weatherSvc, detections, cameraRegistry(t), nil, testTrainerOptions())
	require.NoError(t, err)

	require.NoError(t, f.Start(context.Background()))
	waitReady(t, f)

	// The detector was started as a dependency and the run completed.
	assert.True(t, detections.started.Load())
	current := f.CurrentRun()
	require.NotNil(t, current)
	assert.Equal(t, trainer.StatusDone, current.Status)
	assert.Empty(t, current.Failures)

	start := time.Date(2026, 11, 7, 6, 0, 0, 0, time.UTC)
	series, err := f.Predict(context.Background(), start, 3)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "North Cam", series[0].Camera)

	// One point per configured interval across the window.
	require.Len(t, series[0].Points, 3)
	for i, p := range series[0].Points {
		assert.True(t, p.At.Equal(start.Add(time.Duration(i)*time.Hour)))
		assert.Greater(t, p.Score, 0.0)
		assert.LessOrEqual(t, p.Score, 1.0)
	}

	// Prediction ensured forecast coverage for the window.
	weatherSvc.mu.Lock()
	last := weatherSvc.ensured[len(weatherSvc.ensured)-1]
	weatherSvc.mu.Unlock()
	assert.True(t, last[0].Equal(start))
	assert.True(t, last[1].Equal(start.Add(3*time.Hour)))
}

func TestFinder_PredictWhileLoading(t *testing.T) {
	photosDir := t.TempDir()
	writeCameraPhotos(t, photosDir, "North Cam", []string{"deer1.jpg"})

	f, err := finder.New(finderConfig(t, photosDir), &stubWeather{}, newStubDetections(), cameraRegistry(t), nil, testTrainerOptions())
	require.NoError(t, err)

	// Never started: the finder is still loading and refuses, retryably.
	_, err = f.Predict(context.Background(), time.Now(), 3)
	require.Error(t, err)
	assert.True(t, exception.IsTemporary(err))
}

func TestFinder_NoPositiveSamplesFailsRun(t *testing.T) {
	photosDir := t.TempDir()
	writeCameraPhotos(t, photosDir, "North Cam", []string{"empty1.jpg", "empty2.jpg"})

	f, err := finder.New(finderConfig(t, photosDir), &stubWeather{}, newStubDetections(), cameraRegistry(t), nil, testTrainerOptions())
	require.NoError(t, err)

	require.NoError(t, f.Start(context.Background()))
	require.Eventually(t, func() bool {
		current := f.CurrentRun()
		return current != nil && current.Status.IsFinished()
	}, 5*time.Second, 10*time.Millisecond)

	current := f.CurrentRun()
	assert.Equal(t, trainer.StatusFailed, current.Status)
	require.NotEmpty(t, current.Failures)
	assert.Contains(t, current.Failures[0], "no camera has positive")
}

// busyDetections reports an in-flight load when started but finishes loading
// on its own.
type busyDetections struct {
	stubDetections
}

func (d *busyDetections) Start(ctx context.Context, retrain bool) error {
	d.started.Store(true)
	time.AfterFunc(20*time.Millisecond, func() { d.loading.Store(false) })
	return exception.NewAppErrorf("trainer",
		"'detector': a run is already in flight", exception.ErrRunInFlight)
}

func TestFinder_ToleratesDetectorRunInFlight(t *testing.T) {
	photosDir := t.TempDir()
	writeCameraPhotos(t, photosDir, "North Cam", []string{"deer1.jpg"})

	detections := &busyDetections{}
	detections.loading.Store(true)
	f, err := finder.New(finderConfig(t, photosDir), &stubWeather{}, detections, cameraRegistry(t), nil, testTrainerOptions())
	require.NoError(t, err)

	// The detector rejecting a second start is not a load failure.
	require.NoError(t, f.Start(context.Background()))
	waitReady(t, f)
	assert.Equal(t, trainer.StatusDone, f.CurrentRun().Status)
}

func TestFinder_SkipsCamerasWithoutSightings(t *testing.T) {
	photosDir := t.TempDir()
	writeCameraPhotos(t, photosDir, "North Cam", []string{"deer1.jpg", "deer2.jpg"})
	writeCameraPhotos(t, photosDir, "South Cam", []string{"empty1.jpg", "empty2.jpg"})

	reg, err := markers.Parse(strings.NewReader(
		"name,latitude,longitude,kind\n" +
			"North Cam,38.58,-92.17,camera\n" +
			"South Cam,38.57,-92.18,camera\n"))
	require.NoError(t, err)

	f, err := finder.New(finderConfig(t, photosDir), &stubWeather{}, newStubDetections(), reg, nil, testTrainerOptions())
	require.NoError(t, err)

	require.NoError(t, f.Start(context.Background()))
	waitReady(t, f)

	// A camera without sightings is skipped, not a failure.
	current := f.CurrentRun()
	require.NotNil(t, current)
	assert.Equal(t, trainer.StatusDone, current.Status)
	assert.Empty(t, current.Failures)

	// Only the trained camera predicts.
	start := time.Date(2026, 11, 7, 6, 0, 0, 0, time.UTC)
	series, err := f.Predict(context.Background(), start, 2)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "North Cam", series[0].Camera)
}

func TestFinder_PredictAfterFailedRun(t *testing.T) {
	photosDir := t.TempDir()
	writeCameraPhotos(t, photosDir, "North Cam", []string{"empty1.jpg", "empty2.jpg"})

	f, err := finder.New(finderConfig(t, photosDir), &stubWeather{}, newStubDetections(), cameraRegistry(t), nil, testTrainerOptions())
	require.NoError(t, err)

	require.NoError(t, f.Start(context.Background()))
	require.Eventually(t, func() bool {
		current := f.CurrentRun()
		return current != nil && current.Status.IsFinished()
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, trainer.StatusFailed, f.CurrentRun().Status)

	// No estimator was fitted, so prediction reports that instead of an
	// empty series.
	_, err = f.Predict(context.Background(), time.Now(), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrNotTrained)
}

func TestFinder_PredictValidatesWindow(t *testing.T) {
	photosDir := t.TempDir()
	writeCameraPhotos(t, photosDir, "North Cam", []string{"deer1.jpg"})

	f, err := finder.New(finderConfig(t, photosDir), &stubWeather{}, newStubDetections(), cameraRegistry(t), nil, testTrainerOptions())
	require.NoError(t, err)

	require.NoError(t, f.Start(context.Background()))
	waitReady(t, f)

	_, err = f.Predict(context.Background(), time.Now(), 0)
	assert.Error(t, err)
}
