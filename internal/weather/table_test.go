package weather_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartwell/standwatch/internal/weather"
)

var testFields = []string{"Temperature", "Humidity"}

// buildTable fills a table with `hours` contiguous rows starting at start.
// Temperature carries the hour-of-day, Humidity a constant.
func buildTable(t *testing.T, start time.Time, hours int) *weather.Table {
	t.Helper()
	table := weather.NewTable(testFields)
	for i := 0; i < hours; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		err := table.Append(ts, map[string]float64{
			"Temperature": float64(ts.Hour()),
			"Humidity":    55,
		})
		require.NoError(t, err)
	}
	return table
}

func TestTable_Append(t *testing.T) {
	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	table := buildTable(t, start, 3)
	assert.Equal(t, 3, table.Len())

	earliest, ok := table.Earliest()
	require.True(t, ok)
	assert.True(t, earliest.Equal(start))

	latest, ok := table.Latest()
	require.True(t, ok)
	assert.True(t, latest.Equal(start.Add(2*time.Hour)))

	// Misaligned timestamps are rejected.
	err := table.Append(start.Add(3*time.Hour+30*time.Minute), map[string]float64{"Temperature": 1, "Humidity": 1})
	assert.Error(t, err)

	// A gap breaks contiguity.
	err = table.Append(start.Add(5*time.Hour), map[string]float64{"Temperature": 1, "Humidity": 1})
	assert.Error(t, err)

	// A row missing a field is rejected.
	err = table.Append(start.Add(3*time.Hour), map[string]float64{"Temperature": 1})
	assert.Error(t, err)

	// The next contiguous hour is accepted.
	err = table.Append(start.Add(3*time.Hour), map[string]float64{"Temperature": 1, "Humidity": 1})
	assert.NoError(t, err)
}

func TestTable_ValueAndRow(t *testing.T) {
	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	table := buildTable(t, start, 2)

	v, ok := table.Value("Temperature", start.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, 11.0, v)

	_, ok = table.Value("Temperature", start.Add(2*time.Hour))
	assert.False(t, ok)

	_, ok = table.Value("Wind Speed", start)
	assert.False(t, ok)

	row, ok := table.Row(start)
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"Temperature": 10, "Humidity": 55}, row)
}

func TestTable_Covers(t *testing.T) {
	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	table := buildTable(t, start, 4)

	assert.True(t, table.Covers(start, start.Add(3*time.Hour)))
	// Sub-hour bounds floor to their containing hour.
	assert.True(t, table.Covers(start.Add(30*time.Minute), start.Add(3*time.Hour)))
	assert.False(t, table.Covers(start, start.Add(4*time.Hour)))
	assert.False(t, table.Covers(start.Add(-time.Hour), start))
}

func TestTable_Concat(t *testing.T) {
	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	table := buildTable(t, start, 3)

	// Overlapping rows are skipped, newer rows appended.
	other := buildTable(t, start.Add(time.Hour), 4)
	require.NoError(t, table.Concat(other))
	assert.Equal(t, 5, table.Len())
	assert.True(t, table.Covers(start, start.Add(4*time.Hour)))

	// A nil argument is a no-op.
	require.NoError(t, table.Concat(nil))
	assert.Equal(t, 5, table.Len())

	// Mismatched field sets are rejected.
	mismatched := weather.NewTable([]string{"Temperature"})
	assert.Error(t, table.Concat(mismatched))
}

func TestFloorHour(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	at := time.Date(2026, 11, 1, 10, 45, 12, 99, loc)
	floored := weather.FloorHour(at)
	assert.True(t, floored.Equal(time.Date(2026, 11, 1, 10, 0, 0, 0, loc)))
	assert.Equal(t, loc, floored.Location())

	// An already-aligned timestamp is unchanged.
	aligned := time.Date(2026, 11, 1, 10, 0, 0, 0, loc)
	assert.True(t, weather.FloorHour(aligned).Equal(aligned))
}
