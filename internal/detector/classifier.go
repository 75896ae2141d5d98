// Package detector provides the object-detection adapter: a classifier
// behind a strategy interface, trained through the standard pipeline and
// queried per image with a confidence threshold.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Detection is one classified object in an image.
type Detection struct {
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier scores class detections for an image.
type Classifier interface {
	// Classify returns every detection for the image, unfiltered.
	Classify(ctx context.Context, imagePath string) ([]Detection, error)
	// Ready reports whether the classifier can serve queries.
	Ready() bool
}

// AnnotationClassifier serves detections from a per-image annotation index:
// sidecar JSON files written by an external labeling pass, keyed by the
// photo's base name. The index is built during the detector's training run.
type AnnotationClassifier struct {
	mu    sync.RWMutex
	index map[string][]Detection
}

var _ Classifier = (*AnnotationClassifier)(nil)

// NewAnnotationClassifier creates an empty classifier; Install populates it.
func NewAnnotationClassifier() *AnnotationClassifier {
	return &AnnotationClassifier{}
}

// Install atomically replaces the index.
func (c *AnnotationClassifier) Install(index map[string][]Detection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = index
}

// Index returns the current index, for artifact persistence.
func (c *AnnotationClassifier) Index() map[string][]Detection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

// Ready reports whether an index has been installed.
func (c *AnnotationClassifier) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index != nil
}

// Classify looks up the image's detections by base name. An unannotated
// image yields no detections.
func (c *AnnotationClassifier) Classify(ctx context.Context, imagePath string) ([]Detection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.index == nil {
		return nil, fmt.Errorf("classifier index is not loaded")
	}
	return c.index[indexKey(imagePath)], nil
}

// indexKey normalizes an image path to its index key.
func indexKey(imagePath string) string {
	base := filepath.Base(imagePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// scanAnnotations reads every sidecar JSON file under dir into raw entries
// keyed by image base name.
func scanAnnotations(dir string) (map[string][]Detection, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read annotations directory '%s': %w", dir, err)
	}

	raw := make(map[string][]Detection)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read annotation '%s': %w", path, err)
		}
		var detections []Detection
		if err := json.Unmarshal(data, &detections); err != nil {
			return nil, fmt.Errorf("failed to decode annotation '%s': %w", path, err)
		}
		raw[strings.TrimSuffix(entry.Name(), ".json")] = detections
	}
	return raw, nil
}
