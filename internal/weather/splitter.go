package weather

import (
	"context"
	"errors"
	"time"

	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/support/logger"
)

// Location identifies a point for provider requests.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Request describes one provider fetch.
type Request struct {
	Location Location
	// Start and End are inclusive hour-aligned bounds.
	Start time.Time
	End   time.Time
	// Fields are display names; providers translate them to API variables.
	Fields []string
	// Units is "imperial" or "metric".
	Units string
	// Timezone is the IANA zone the response timestamps are expressed in.
	Timezone string
}

// RangeProvider fetches an hourly table covering a request.
type RangeProvider interface {
	FetchRange(ctx context.Context, req Request) (*Table, error)
	Name() string
}

// Splitter partitions a requested time range at the historical/forecast
// boundary and dispatches each side to its provider. The archive provider
// only serves data older than the cutoff; the forecast provider serves the
// cutoff onward.
type Splitter struct {
	historical RangeProvider
	forecast   RangeProvider
	cutoff     time.Duration
	now        func() time.Time
}

// NewSplitter creates a Splitter with the given providers and cutoff in days
// before now.
func NewSplitter(historical, forecast RangeProvider, cutoffDays int) *Splitter {
	if cutoffDays <= 0 {
		cutoffDays = 5
	}
	return &Splitter{
		historical: historical,
		forecast:   forecast,
		cutoff:     time.Duration(cutoffDays) * 24 * time.Hour,
		now:        time.Now,
	}
}

// FetchRange fetches [req.Start, req.End], splitting at
// floor_hour(now) - cutoff: hours before the cut go to the historical
// provider, hours at or after it to the forecast provider. The two
// sub-ranges are contiguous and non-overlapping; either may be empty.
// Provider failures surface as ErrWeatherFetch naming the failed sub-range;
// retry policy belongs to the caller.
func (s *Splitter) FetchRange(ctx context.Context, req Request) (*Table, error) {
	start := FloorHour(req.Start)
	end := FloorHour(req.End)
	cut := FloorHour(s.now().In(req.Start.Location())).Add(-s.cutoff)

	merged := NewTable(req.Fields)

	if start.Before(cut) {
		histEnd := end
		if !histEnd.Before(cut) {
			histEnd = cut.Add(-time.Hour)
		}
		histReq := req
		histReq.Start = start
		histReq.End = histEnd
		logger.Debugf("Fetching historical range [%s, %s] from provider '%s'.", histReq.Start, histReq.End, s.historical.Name())
		table, err := s.historical.FetchRange(ctx, histReq)
		if err != nil {
			return nil, exception.NewAppErrorf("weather",
				"historical fetch [%s, %s] failed via provider '%s'", histReq.Start, histReq.End, s.historical.Name(),
				exception.IsTemporary(err), wrapFetch(err))
		}
		if err := merged.Concat(table); err != nil {
			return nil, exception.NewAppError("weather", "failed to merge historical range", err, false, false)
		}
	}

	if !end.Before(cut) {
		fcStart := start
		if fcStart.Before(cut) {
			fcStart = cut
		}
		fcReq := req
		fcReq.Start = fcStart
		fcReq.End = end
		logger.Debugf("Fetching forecast range [%s, %s] from provider '%s'.", fcReq.Start, fcReq.End, s.forecast.Name())
		table, err := s.forecast.FetchRange(ctx, fcReq)
		if err != nil {
			return nil, exception.NewAppErrorf("weather",
				"forecast fetch [%s, %s] failed via provider '%s'", fcReq.Start, fcReq.End, s.forecast.Name(),
				exception.IsTemporary(err), wrapFetch(err))
		}
		if err := merged.Concat(table); err != nil {
			return nil, exception.NewAppError("weather", "failed to merge forecast range", err, false, false)
		}
	}

	return merged, nil
}

// Name identifies the composite provider by its two halves.
func (s *Splitter) Name() string {
	return s.historical.Name() + "+" + s.forecast.Name()
}

// wrapFetch joins the sentinel with a provider error so callers can match
// the category with errors.Is.
func wrapFetch(err error) error {
	if errors.Is(err, exception.ErrWeatherFetch) {
		return err
	}
	return errors.Join(exception.ErrWeatherFetch, err)
}
