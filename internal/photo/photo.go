// Package photo enumerates trail camera photos and extracts their capture
// timestamps from EXIF metadata.
package photo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hartwell/standwatch/internal/support/logger"
)

// Photo is one camera image with its capture time.
type Photo struct {
	Path    string
	TakenAt time.Time
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
}

// List enumerates the photos under a camera's directory, sorted by capture
// time. The capture time comes from EXIF DateTimeOriginal when present,
// otherwise the file modification time, both interpreted in loc.
func List(dir string, loc *time.Location) ([]Photo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo directory '%s': %w", dir, err)
	}

	var photos []Photo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		takenAt, err := CaptureTime(path, loc)
		if err != nil {
			logger.Warnf("Skipping photo '%s': %v", path, err)
			continue
		}
		photos = append(photos, Photo{Path: path, TakenAt: takenAt})
	}

	sort.Slice(photos, func(i, j int) bool { return photos[i].TakenAt.Before(photos[j].TakenAt) })
	return photos, nil
}

// CaptureTime returns the photo's capture timestamp. EXIF DateTimeOriginal
// wins; a photo without usable EXIF falls back to its modification time.
func CaptureTime(path string, loc *time.Location) (time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read photo '%s': %w", path, err)
	}

	if ts, ok := exifDateTimeOriginal(data, loc); ok {
		return ts, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat photo '%s': %w", path, err)
	}
	logger.Debugf("Photo '%s' has no EXIF capture time, using modification time.", path)
	return info.ModTime().In(loc), nil
}
