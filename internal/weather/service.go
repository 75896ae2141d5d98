package weather

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/metrics"
	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/support/logger"
)

// Value is one field reading at an instant. Label is set only for the
// weather code field, carrying its display name.
type Value struct {
	Field  string
	Number float64
	Label  string
}

// CacheStore persists the hourly table between sessions.
type CacheStore interface {
	Load(ctx context.Context, fields []string, loc *time.Location) (*Table, error)
	Save(ctx context.Context, table *Table) error
}

// Service is the weather facade. It holds the in-memory hourly table, keeps
// it covering the requested ranges through cache and upstream fetches, and
// answers point queries by interpolation. All methods are safe for
// concurrent use; the facade serializes access with a single mutex.
type Service struct {
	mu sync.Mutex

	provider RangeProvider
	store    CacheStore
	recorder metrics.Recorder

	location Location
	units    string
	fields   []string

	table       *Table
	cacheLoaded bool
	ensured     bool
}

// NewService creates the facade over a composite range provider and a cache
// store. Location, units and the field set come from configuration.
func NewService(cfg *config.Config, provider RangeProvider, store CacheStore, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Service{
		provider: provider,
		store:    store,
		recorder: recorder,
		location: Location{
			Latitude:  cfg.Standwatch.Property.Latitude,
			Longitude: cfg.Standwatch.Property.Longitude,
		},
		units:  cfg.Standwatch.Property.Units,
		fields: append([]string(nil), cfg.Standwatch.Weather.Fields...),
	}
}

// Fields returns the configured field set.
func (s *Service) Fields() []string {
	return append([]string(nil), s.fields...)
}

// EnsureCoverage guarantees the in-memory table covers every hour of
// [start, end] plus the following hour, so any instant in the range can be
// interpolated afterwards. The cache is consulted first; only the uncovered
// portion is fetched upstream, except when the cached data starts after the
// requested start, in which case the whole range is refetched and replaces
// the table. A corrupt cache is logged and treated as empty.
func (s *Service) EnsureCoverage(ctx context.Context, start, end time.Time, timezone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc := start.Location()
	first := FloorHour(start)
	// One extra hour past the range end keeps the interpolation bracket whole.
	last := FloorHour(end).Add(time.Hour)

	if err := s.loadCacheOnce(ctx, loc); err != nil {
		return err
	}

	if s.table != nil && s.table.Covers(first, last) {
		s.recorder.RecordCacheHit(ctx)
		s.ensured = true
		return nil
	}
	s.recorder.RecordCacheMiss(ctx)

	fetchStart := first
	replace := true

	if s.table != nil && s.table.Len() > 0 {
		earliest, _ := s.table.Earliest()
		latest, _ := s.table.Latest()
		if !earliest.After(first) {
			// Cached data reaches back far enough: only the forward gap
			// (latest+1h, last] is missing.
			fetchStart = latest.Add(time.Hour)
			replace = false
		} else {
			logger.Warnf("Weather cache starts at %s, after requested %s; refetching the full range.", earliest, first)
		}
	}

	req := Request{
		Location: s.location,
		Start:    fetchStart,
		End:      last,
		Fields:   s.fields,
		Units:    s.units,
		Timezone: timezone,
	}

	began := time.Now()
	fetched, err := s.provider.FetchRange(ctx, req)
	s.recorder.RecordFetch(ctx, s.provider.Name(), time.Since(began), err)
	if err != nil {
		return err
	}

	if replace {
		s.table = fetched
	} else if err := s.table.Concat(fetched); err != nil {
		return exception.NewAppError("weather", "failed to merge fetched range into table", err, false, false)
	}

	if err := s.store.Save(ctx, s.table); err != nil {
		// A failed cache write costs a refetch next session, nothing more.
		logger.Warnf("Failed to persist weather cache: %v", err)
	}

	s.ensured = true
	return nil
}

// Data returns the value of each requested field at the given instant. A nil
// or empty field list means the configured field set. EnsureCoverage must
// have succeeded for a range containing the instant first.
func (s *Service) Data(at time.Time, fields []string) ([]Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ensured || s.table == nil {
		return nil, exception.NewAppErrorf("weather",
			"weather data requested at %s before coverage was ensured", at,
			exception.ErrCoverageNotEnsured)
	}

	if len(fields) == 0 {
		fields = s.fields
	}

	values := make([]Value, 0, len(fields))
	for _, field := range fields {
		number, err := Interpolate(s.table, field, at)
		if err != nil {
			return nil, err
		}
		v := Value{Field: field, Number: number}
		if field == FieldWeatherCode {
			v.Label = CodeLabel(int(number))
		}
		values = append(values, v)
	}
	return values, nil
}

// loadCacheOnce populates the table from the cache store on the first
// coverage request. Corruption degrades to an empty table so the session
// recovers with a full refetch.
func (s *Service) loadCacheOnce(ctx context.Context, loc *time.Location) error {
	if s.cacheLoaded {
		return nil
	}
	s.cacheLoaded = true

	table, err := s.store.Load(ctx, s.fields, loc)
	if err != nil {
		if errors.Is(err, exception.ErrCacheCorruption) {
			logger.Warnf("Weather cache is corrupt, refetching from scratch: %v", err)
			return nil
		}
		return err
	}
	s.table = table
	return nil
}
