package openmeteo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/weather"
	"github.com/hartwell/standwatch/internal/weather/openmeteo"
)

func testRequest(start, end time.Time) weather.Request {
	return weather.Request{
		Location: weather.Location{Latitude: 38.5767, Longitude: -92.1735},
		Start:    start,
		End:      end,
		Fields:   []string{"Temperature", "Weather Code"},
		Units:    "imperial",
		Timezone: "UTC",
	}
}

// hourlyPayload builds an Open-Meteo style hourly response for the given
// timestamps.
func hourlyPayload(times []string, temps []*float64, codes []*float64) map[string]interface{} {
	return map[string]interface{}{
		"hourly": map[string]interface{}{
			"time":           times,
			"temperature_2m": temps,
			"weather_code":   codes,
		},
	}
}

func f(v float64) *float64 { return &v }

func TestClient_FetchRange(t *testing.T) {
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		// The provider answers whole days; the client trims to the window.
		payload := hourlyPayload(
			[]string{"2026-08-30T09:00", "2026-08-30T10:00", "2026-08-30T11:00", "2026-08-30T12:00", "2026-08-30T13:00"},
			[]*float64{f(68), f(70), f(72), f(74), f(76)},
			[]*float64{f(0), f(1), f(2), f(3), f(45)},
		)
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
	defer server.Close()

	client := openmeteo.NewClient("archive", server.URL, 5*time.Second)
	table, err := client.FetchRange(context.Background(), testRequest(start, end))
	require.NoError(t, err)

	// Rows outside [start, end] are dropped.
	require.Equal(t, 3, table.Len())
	assert.True(t, table.Covers(start, end))
	v, ok := table.Value("Temperature", start.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, 72.0, v)

	// Field names are translated to API variables and imperial units requested.
	assert.Equal(t, "temperature_2m,weather_code", gotQuery["hourly"][0])
	assert.Equal(t, "fahrenheit", gotQuery["temperature_unit"][0])
	assert.Equal(t, "2026-08-30", gotQuery["start_date"][0])
	assert.Equal(t, "UTC", gotQuery["timezone"][0])
}

func TestClient_NullCellsSubstituteZero(t *testing.T) {
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := hourlyPayload(
			[]string{"2026-08-30T10:00", "2026-08-30T11:00"},
			[]*float64{f(70), nil},
			[]*float64{f(1), f(2)},
		)
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
	defer server.Close()

	client := openmeteo.NewClient("archive", server.URL, 5*time.Second)
	table, err := client.FetchRange(context.Background(), testRequest(start, start.Add(time.Hour)))
	require.NoError(t, err)

	v, ok := table.Value("Temperature", start.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestClient_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	client := openmeteo.NewClient("forecast", server.URL, 5*time.Second)
	_, err := client.FetchRange(context.Background(), testRequest(start, start.Add(time.Hour)))
	require.Error(t, err)
	assert.True(t, exception.IsTemporary(err))
}

func TestClient_ClientErrorIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad parameters", http.StatusBadRequest)
	}))
	defer server.Close()

	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	client := openmeteo.NewClient("forecast", server.URL, 5*time.Second)
	_, err := client.FetchRange(context.Background(), testRequest(start, start.Add(time.Hour)))
	require.Error(t, err)
	assert.False(t, exception.IsTemporary(err))
}

func TestClient_RejectsUnknownField(t *testing.T) {
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	client := openmeteo.NewClient("archive", "http://unused.invalid", 5*time.Second)

	req := testRequest(start, start.Add(time.Hour))
	req.Fields = []string{"Barometric Whimsy"}
	_, err := client.FetchRange(context.Background(), req)
	assert.Error(t, err)
}

func TestClient_RejectsMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hourly": {"time": ["2026-08-30T10:00"]}}`))
	}))
	defer server.Close()

	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	client := openmeteo.NewClient("archive", server.URL, 5*time.Second)
	_, err := client.FetchRange(context.Background(), testRequest(start, start.Add(time.Hour)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temperature_2m")
}
