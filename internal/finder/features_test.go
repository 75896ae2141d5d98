package finder_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hartwell/standwatch/internal/finder"
)

func TestFeatures_Layout(t *testing.T) {
	// 2026-08-31 is a Monday.
	at := time.Date(2026, 8, 31, 6, 45, 0, 0, time.UTC)

	features := finder.Features(at, []float64{70, 55}, false)
	assert.Equal(t, []float64{243, 6*60 + 45, 0, 70, 55}, features)
}

func TestFeatures_WeekdayRotation(t *testing.T) {
	monday := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 9, 6, 12, 0, 0, 0, time.UTC)

	// Monday-first numbering: Monday 0 .. Sunday 6.
	assert.Equal(t, 0.0, finder.Features(monday, nil, false)[2])
	assert.Equal(t, 6.0, finder.Features(sunday, nil, false)[2])

	// Sunday-first numbering rotates forward by one: Sunday 0, Monday 1.
	assert.Equal(t, 1.0, finder.Features(monday, nil, true)[2])
	assert.Equal(t, 0.0, finder.Features(sunday, nil, true)[2])
}

func TestFeatures_NoWeatherNumbers(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	features := finder.Features(at, nil, false)
	assert.Len(t, features, 3)
	assert.Equal(t, 1.0, features[0])
	assert.Equal(t, 0.0, features[1])
}
