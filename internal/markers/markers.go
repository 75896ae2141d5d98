// Package markers loads the property marker registry: named map points with
// coordinates, of which the camera markers drive photo gathering and
// prediction.
package markers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/support/logger"
)

// KindCamera marks a trail camera location.
const KindCamera = "camera"

// Marker is one named point on the property.
type Marker struct {
	Name      string
	Latitude  float64
	Longitude float64
	Kind      string
}

// Registry holds the loaded markers.
type Registry struct {
	markers []Marker
}

// Load reads the marker CSV file. Expected columns: name, latitude,
// longitude, kind; a header row is detected and skipped.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, exception.NewAppError("markers",
			fmt.Sprintf("failed to open marker file '%s'", path), err, false, false)
	}
	defer f.Close()

	reg, err := Parse(f)
	if err != nil {
		return nil, exception.NewAppError("markers",
			fmt.Sprintf("failed to parse marker file '%s'", path), err, false, false)
	}
	logger.Debugf("Loaded %d markers from '%s' (%d cameras).", len(reg.markers), path, len(reg.Cameras()))
	return reg, nil
}

// Parse reads markers from CSV data.
func Parse(r io.Reader) (*Registry, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	var markers []Marker
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV read error at line %d: %w", line+1, err)
		}
		line++

		if len(record) < 4 {
			return nil, fmt.Errorf("line %d: expected 4 columns (name, latitude, longitude, kind), got %d", line, len(record))
		}

		// Skip a header row.
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "name") {
			continue
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid latitude '%s': %w", line, record[1], err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid longitude '%s': %w", line, record[2], err)
		}

		markers = append(markers, Marker{
			Name:      strings.TrimSpace(record[0]),
			Latitude:  lat,
			Longitude: lon,
			Kind:      strings.ToLower(strings.TrimSpace(record[3])),
		})
	}

	return &Registry{markers: markers}, nil
}

// All returns every marker.
func (r *Registry) All() []Marker {
	return append([]Marker(nil), r.markers...)
}

// Cameras returns the camera markers only.
func (r *Registry) Cameras() []Marker {
	var cams []Marker
	for _, m := range r.markers {
		if m.Kind == KindCamera {
			cams = append(cams, m)
		}
	}
	return cams
}
