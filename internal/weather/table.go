package weather

import (
	"fmt"
	"time"
)

// Table is an hourly weather table: strictly increasing hour-aligned
// timestamps, each carrying a value for a fixed set of fields. Within one
// table the hours are contiguous at 1-hour spacing.
type Table struct {
	fields []string
	times  []time.Time
	index  map[int64]int
	values map[string][]float64
}

// NewTable creates an empty table for the given field set.
func NewTable(fields []string) *Table {
	values := make(map[string][]float64, len(fields))
	for _, f := range fields {
		values[f] = nil
	}
	return &Table{
		fields: append([]string(nil), fields...),
		index:  make(map[int64]int),
		values: values,
	}
}

// Fields returns the field set of the table.
func (t *Table) Fields() []string {
	return t.fields
}

// Len returns the number of hourly rows.
func (t *Table) Len() int {
	return len(t.times)
}

// Times returns the row timestamps in order.
func (t *Table) Times() []time.Time {
	return t.times
}

// Earliest returns the first timestamp, or false when the table is empty.
func (t *Table) Earliest() (time.Time, bool) {
	if len(t.times) == 0 {
		return time.Time{}, false
	}
	return t.times[0], true
}

// Latest returns the last timestamp, or false when the table is empty.
func (t *Table) Latest() (time.Time, bool) {
	if len(t.times) == 0 {
		return time.Time{}, false
	}
	return t.times[len(t.times)-1], true
}

// Append adds one hourly row. The timestamp must be hour-aligned and exactly
// one hour after the current latest row (any hour is accepted for the first
// row). The row must carry every field of the table.
func (t *Table) Append(ts time.Time, row map[string]float64) error {
	if !ts.Equal(FloorHour(ts)) {
		return fmt.Errorf("timestamp %s is not hour-aligned", ts)
	}
	if last, ok := t.Latest(); ok {
		if !ts.Equal(last.Add(time.Hour)) {
			return fmt.Errorf("timestamp %s breaks hourly contiguity after %s", ts, last)
		}
	}
	for _, f := range t.fields {
		v, ok := row[f]
		if !ok {
			return fmt.Errorf("row at %s is missing field %q", ts, f)
		}
		t.values[f] = append(t.values[f], v)
	}
	t.index[ts.Unix()] = len(t.times)
	t.times = append(t.times, ts)
	return nil
}

// Value returns the value of a field at an exact hourly timestamp.
func (t *Table) Value(field string, ts time.Time) (float64, bool) {
	i, ok := t.index[ts.Unix()]
	if !ok {
		return 0, false
	}
	col, ok := t.values[field]
	if !ok {
		return 0, false
	}
	return col[i], true
}

// Row returns all field values at an exact hourly timestamp.
func (t *Table) Row(ts time.Time) (map[string]float64, bool) {
	i, ok := t.index[ts.Unix()]
	if !ok {
		return nil, false
	}
	row := make(map[string]float64, len(t.fields))
	for _, f := range t.fields {
		row[f] = t.values[f][i]
	}
	return row, true
}

// Covers reports whether the table contains every hour of [start, end].
func (t *Table) Covers(start, end time.Time) bool {
	for ts := FloorHour(start); !ts.After(end); ts = ts.Add(time.Hour) {
		if _, ok := t.index[ts.Unix()]; !ok {
			return false
		}
	}
	return true
}

// Concat appends the rows of other that fall after this table's latest hour.
// Rows at or before the latest hour are skipped, so overlapping fetches merge
// cleanly. Field sets must match.
func (t *Table) Concat(other *Table) error {
	if other == nil {
		return nil
	}
	if len(other.fields) != len(t.fields) {
		return fmt.Errorf("field set mismatch: %d vs %d fields", len(t.fields), len(other.fields))
	}
	for i, ts := range other.times {
		if last, ok := t.Latest(); ok && !ts.After(last) {
			continue
		}
		row := make(map[string]float64, len(other.fields))
		for _, f := range other.fields {
			row[f] = other.values[f][i]
		}
		if err := t.Append(ts, row); err != nil {
			return err
		}
	}
	return nil
}

// FloorHour truncates a timestamp down to the start of its containing hour,
// preserving the location.
func FloorHour(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, ts.Location())
}
