package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartwell/standwatch/internal/support/exception"
)

// fakeRangeProvider records requests and answers them with a contiguous table.
type fakeRangeProvider struct {
	name string
	reqs []Request
	err  error
}

func (f *fakeRangeProvider) Name() string { return f.name }

func (f *fakeRangeProvider) FetchRange(ctx context.Context, req Request) (*Table, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	table := NewTable(req.Fields)
	for ts := FloorHour(req.Start); !ts.After(FloorHour(req.End)); ts = ts.Add(time.Hour) {
		row := make(map[string]float64, len(req.Fields))
		for _, field := range req.Fields {
			row[field] = float64(ts.Hour())
		}
		if err := table.Append(ts, row); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// newTestSplitter pins now so the historical/forecast cut is deterministic:
// now = 2026-11-20 13:30 UTC, cutoff 5 days, cut = 2026-11-15 13:00 UTC.
func newTestSplitter() (*Splitter, *fakeRangeProvider, *fakeRangeProvider) {
	historical := &fakeRangeProvider{name: "archive"}
	forecast := &fakeRangeProvider{name: "forecast"}
	s := NewSplitter(historical, forecast, 5)
	s.now = func() time.Time {
		return time.Date(2026, 11, 20, 13, 30, 0, 0, time.UTC)
	}
	return s, historical, forecast
}

func baseRequest(start, end time.Time) Request {
	return Request{
		Location: Location{Latitude: 38.5, Longitude: -92.1},
		Start:    start,
		End:      end,
		Fields:   []string{"Temperature"},
		Units:    "imperial",
		Timezone: "UTC",
	}
}

func TestSplitter_HistoricalOnly(t *testing.T) {
	s, historical, forecast := newTestSplitter()

	start := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)

	table, err := s.FetchRange(context.Background(), baseRequest(start, end))
	require.NoError(t, err)

	require.Len(t, historical.reqs, 1)
	assert.Empty(t, forecast.reqs)
	assert.True(t, historical.reqs[0].Start.Equal(start))
	assert.True(t, historical.reqs[0].End.Equal(end))
	assert.True(t, table.Covers(start, end))
}

func TestSplitter_ForecastOnly(t *testing.T) {
	s, historical, forecast := newTestSplitter()

	start := time.Date(2026, 11, 16, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 11, 18, 0, 0, 0, 0, time.UTC)

	table, err := s.FetchRange(context.Background(), baseRequest(start, end))
	require.NoError(t, err)

	assert.Empty(t, historical.reqs)
	require.Len(t, forecast.reqs, 1)
	assert.True(t, forecast.reqs[0].Start.Equal(start))
	assert.True(t, forecast.reqs[0].End.Equal(end))
	assert.True(t, table.Covers(start, end))
}

func TestSplitter_SpanningRangeSplitsAtCut(t *testing.T) {
	s, historical, forecast := newTestSplitter()

	start := time.Date(2026, 11, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 11, 17, 0, 0, 0, 0, time.UTC)
	cut := time.Date(2026, 11, 15, 13, 0, 0, 0, time.UTC)

	table, err := s.FetchRange(context.Background(), baseRequest(start, end))
	require.NoError(t, err)

	// Historical serves strictly before the cut, forecast from the cut on;
	// the two sub-ranges are contiguous and non-overlapping.
	require.Len(t, historical.reqs, 1)
	require.Len(t, forecast.reqs, 1)
	assert.True(t, historical.reqs[0].Start.Equal(start))
	assert.True(t, historical.reqs[0].End.Equal(cut.Add(-time.Hour)))
	assert.True(t, forecast.reqs[0].Start.Equal(cut))
	assert.True(t, forecast.reqs[0].End.Equal(end))

	assert.True(t, table.Covers(start, end))
	assert.Equal(t, int(end.Sub(start).Hours())+1, table.Len())
}

func TestSplitter_StartAtCutGoesToForecast(t *testing.T) {
	s, historical, forecast := newTestSplitter()

	cut := time.Date(2026, 11, 15, 13, 0, 0, 0, time.UTC)

	_, err := s.FetchRange(context.Background(), baseRequest(cut, cut.Add(6*time.Hour)))
	require.NoError(t, err)

	assert.Empty(t, historical.reqs)
	require.Len(t, forecast.reqs, 1)
}

func TestSplitter_ProviderFailure(t *testing.T) {
	s, historical, _ := newTestSplitter()
	historical.err = exception.NewAppError("openmeteo", "upstream returned status 503", errors.New("unexpected status"), false, true)

	start := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.FetchRange(context.Background(), baseRequest(start, start.Add(6*time.Hour)))
	require.Error(t, err)

	assert.ErrorIs(t, err, exception.ErrWeatherFetch)
	// The retryability of the provider failure carries through.
	assert.True(t, exception.IsTemporary(err))
	assert.Contains(t, err.Error(), "archive")
}
