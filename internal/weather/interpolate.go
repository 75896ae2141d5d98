package weather

import (
	"math"
	"time"

	"github.com/hartwell/standwatch/internal/support/exception"
)

// Interpolate computes the value of a field at an arbitrary sub-hour instant.
// Continuous fields interpolate linearly between the floor hour and the next
// hour, weighted by the two sub-intervals, and round to the field's
// presentation precision. The weather code field returns the floor hour's raw
// value verbatim.
//
// Both bracketing hours must be present in the table; a missing hour is a
// coverage-contract violation reported as ErrMissingData.
func Interpolate(t *Table, field string, at time.Time) (float64, error) {
	prev := FloorHour(at)
	next := prev.Add(time.Hour)

	y0, ok := t.Value(field, prev)
	if !ok {
		return 0, exception.NewAppErrorf("weather",
			"no %q entry at %s", field, prev, exception.ErrMissingData)
	}

	if field == FieldWeatherCode {
		return y0, nil
	}

	y1, ok := t.Value(field, next)
	if !ok {
		return 0, exception.NewAppErrorf("weather",
			"no %q entry at %s", field, next, exception.ErrMissingData)
	}

	untilNext := next.Sub(at).Seconds()
	sincePrev := at.Sub(prev).Seconds()
	value := (y0*untilNext + y1*sincePrev) / 3600

	return roundTo(value, FieldDecimals(field)), nil
}

// roundTo rounds v to n decimal places.
func roundTo(v float64, n int) float64 {
	p := math.Pow10(n)
	return math.Round(v*p) / p
}
