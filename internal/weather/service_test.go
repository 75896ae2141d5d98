package weather_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/weather"
)

// hourProvider answers every request with a contiguous table. Temperature
// carries the hour-of-day so interpolation results are predictable.
type hourProvider struct {
	reqs []weather.Request
	err  error
}

func (p *hourProvider) Name() string { return "fake" }

func (p *hourProvider) FetchRange(ctx context.Context, req weather.Request) (*weather.Table, error) {
	p.reqs = append(p.reqs, req)
	if p.err != nil {
		return nil, p.err
	}
	table := weather.NewTable(req.Fields)
	for ts := weather.FloorHour(req.Start); !ts.After(weather.FloorHour(req.End)); ts = ts.Add(time.Hour) {
		row := make(map[string]float64, len(req.Fields))
		for _, field := range req.Fields {
			if field == weather.FieldWeatherCode {
				row[field] = 3
				continue
			}
			row[field] = float64(ts.Hour())
		}
		if err := table.Append(ts, row); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// memoryStore is an in-memory CacheStore with injectable load behavior.
type memoryStore struct {
	table   *weather.Table
	loadErr error
	saveErr error
	saves   int
}

func (s *memoryStore) Load(ctx context.Context, fields []string, loc *time.Location) (*weather.Table, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.table, nil
}

func (s *memoryStore) Save(ctx context.Context, table *weather.Table) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.table = table
	s.saves++
	return nil
}

func serviceConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Standwatch.Property.Latitude = 38.5
	cfg.Standwatch.Property.Longitude = -92.1
	cfg.Standwatch.Weather.Fields = []string{"Temperature", weather.FieldWeatherCode}
	return cfg
}

func TestService_EnsureCoverageThenData(t *testing.T) {
	provider := &hourProvider{}
	store := &memoryStore{}
	svc := weather.NewService(serviceConfig(), provider, store, nil)

	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	require.NoError(t, svc.EnsureCoverage(context.Background(), start, end, "UTC"))

	// One fetch, padded one hour past the range end for the interpolation
	// bracket, and one cache write.
	require.Len(t, provider.reqs, 1)
	assert.True(t, provider.reqs[0].Start.Equal(start))
	assert.True(t, provider.reqs[0].End.Equal(end.Add(time.Hour)))
	assert.Equal(t, 1, store.saves)

	values, err := svc.Data(start.Add(30*time.Minute), nil)
	require.NoError(t, err)
	require.Len(t, values, 2)

	assert.Equal(t, "Temperature", values[0].Field)
	assert.Equal(t, 10.5, values[0].Number)
	assert.Empty(t, values[0].Label)

	assert.Equal(t, weather.FieldWeatherCode, values[1].Field)
	assert.Equal(t, 3.0, values[1].Number)
	assert.Equal(t, "Overcast", values[1].Label)

	// The end of the range itself interpolates thanks to the padding hour.
	values, err = svc.Data(end.Add(45*time.Minute), []string{"Temperature"})
	require.NoError(t, err)
	require.Len(t, values, 1)
}

func TestService_CoveredRangeSkipsFetch(t *testing.T) {
	provider := &hourProvider{}
	store := &memoryStore{}
	svc := weather.NewService(serviceConfig(), provider, store, nil)

	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, svc.EnsureCoverage(context.Background(), start, start.Add(4*time.Hour), "UTC"))
	require.Len(t, provider.reqs, 1)

	// A sub-range of ensured coverage fetches nothing.
	require.NoError(t, svc.EnsureCoverage(context.Background(), start.Add(time.Hour), start.Add(2*time.Hour), "UTC"))
	assert.Len(t, provider.reqs, 1)
}

func TestService_GapFetchExtendsForward(t *testing.T) {
	provider := &hourProvider{}
	store := &memoryStore{}
	svc := weather.NewService(serviceConfig(), provider, store, nil)

	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, svc.EnsureCoverage(context.Background(), start, start.Add(2*time.Hour), "UTC"))
	require.Len(t, provider.reqs, 1)

	// Extending the range forward fetches only past the cached latest hour.
	require.NoError(t, svc.EnsureCoverage(context.Background(), start, start.Add(6*time.Hour), "UTC"))
	require.Len(t, provider.reqs, 2)
	assert.True(t, provider.reqs[1].Start.Equal(start.Add(4*time.Hour)))
	assert.True(t, provider.reqs[1].End.Equal(start.Add(7*time.Hour)))

	// Data across the merged table works.
	_, err := svc.Data(start.Add(5*time.Hour+15*time.Minute), nil)
	assert.NoError(t, err)
}

func TestService_EarlierStartRefetchesFullRange(t *testing.T) {
	provider := &hourProvider{}
	store := &memoryStore{}
	svc := weather.NewService(serviceConfig(), provider, store, nil)

	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, svc.EnsureCoverage(context.Background(), start, start.Add(2*time.Hour), "UTC"))
	require.Len(t, provider.reqs, 1)

	// A request starting before the cached earliest hour replaces the table
	// with one full refetch.
	earlier := start.Add(-3 * time.Hour)
	require.NoError(t, svc.EnsureCoverage(context.Background(), earlier, start.Add(2*time.Hour), "UTC"))
	require.Len(t, provider.reqs, 2)
	assert.True(t, provider.reqs[1].Start.Equal(earlier))
	assert.True(t, provider.reqs[1].End.Equal(start.Add(3*time.Hour)))

	_, err := svc.Data(earlier.Add(30*time.Minute), nil)
	assert.NoError(t, err)
}

func TestService_CachePrimingAvoidsFetch(t *testing.T) {
	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)

	// Prime the store with a table covering the request.
	primer := &hourProvider{}
	cached, err := primer.FetchRange(context.Background(), weather.Request{
		Start:  start,
		End:    start.Add(5 * time.Hour),
		Fields: []string{"Temperature", weather.FieldWeatherCode},
	})
	require.NoError(t, err)

	provider := &hourProvider{}
	store := &memoryStore{table: cached}
	svc := weather.NewService(serviceConfig(), provider, store, nil)

	require.NoError(t, svc.EnsureCoverage(context.Background(), start, start.Add(4*time.Hour), "UTC"))
	assert.Empty(t, provider.reqs)

	values, err := svc.Data(start.Add(90*time.Minute), []string{"Temperature"})
	require.NoError(t, err)
	assert.Equal(t, 11.5, values[0].Number)
}

func TestService_CorruptCacheDegradesToRefetch(t *testing.T) {
	provider := &hourProvider{}
	store := &memoryStore{
		loadErr: exception.NewAppError("cache", "failed to open cache parquet",
			errors.Join(exception.ErrCacheCorruption, errors.New("bad magic")), false, false),
	}
	svc := weather.NewService(serviceConfig(), provider, store, nil)

	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, svc.EnsureCoverage(context.Background(), start, start.Add(2*time.Hour), "UTC"))
	require.Len(t, provider.reqs, 1)
	assert.True(t, provider.reqs[0].Start.Equal(start))
}

func TestService_CacheWriteFailureIsNotFatal(t *testing.T) {
	provider := &hourProvider{}
	store := &memoryStore{saveErr: errors.New("disk full")}
	svc := weather.NewService(serviceConfig(), provider, store, nil)

	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	assert.NoError(t, svc.EnsureCoverage(context.Background(), start, start.Add(time.Hour), "UTC"))
}

func TestService_DataBeforeEnsureFails(t *testing.T) {
	svc := weather.NewService(serviceConfig(), &hourProvider{}, &memoryStore{}, nil)

	_, err := svc.Data(time.Date(2026, 11, 1, 10, 30, 0, 0, time.UTC), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrCoverageNotEnsured)
}

func TestService_FetchErrorPropagates(t *testing.T) {
	provider := &hourProvider{err: exception.NewAppError("weather", "fetch failed",
		errors.Join(exception.ErrWeatherFetch, errors.New("503")), false, true)}
	svc := weather.NewService(serviceConfig(), provider, &memoryStore{}, nil)

	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	err := svc.EnsureCoverage(context.Background(), start, start.Add(time.Hour), "UTC")
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrWeatherFetch)

	// Coverage was never ensured, so point queries still refuse.
	_, err = svc.Data(start, nil)
	assert.ErrorIs(t, err, exception.ErrCoverageNotEnsured)
}
