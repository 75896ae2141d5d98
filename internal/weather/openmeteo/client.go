// Package openmeteo implements weather.RangeProvider against the Open-Meteo
// archive and forecast HTTP APIs.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/support/logger"
	"github.com/hartwell/standwatch/internal/weather"
)

const timeLayout = "2006-01-02T15:04"

// Client fetches hourly ranges from one Open-Meteo endpoint (archive or
// forecast). Calls go through a circuit breaker so a failing upstream is not
// hammered while it recovers.
type Client struct {
	name       string
	endpoint   string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
}

// Verify that Client implements weather.RangeProvider.
var _ weather.RangeProvider = (*Client)(nil)

// NewClient creates a Client for the given endpoint. name distinguishes the
// archive and forecast instances in logs and breaker state.
func NewClient(name, endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		name:       name,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		circuit:    cb,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// FetchRange fetches the hourly table for [req.Start, req.End]. The response
// is trimmed to the requested window. Upstream 5xx and 429 responses are
// classified retryable; other non-2xx responses are not.
func (c *Client) FetchRange(ctx context.Context, req weather.Request) (*weather.Table, error) {
	variables := make([]string, 0, len(req.Fields))
	for _, field := range req.Fields {
		v, ok := weather.APIVariable(field)
		if !ok {
			return nil, exception.NewAppErrorf("openmeteo", "unsupported weather field %q", field)
		}
		variables = append(variables, v)
	}

	u, err := c.buildURL(req, variables)
	if err != nil {
		return nil, exception.NewAppError("openmeteo", "failed to build request URL", err, false, false)
	}

	body, err := c.circuit.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	return c.decodeTable(body.([]byte), req, variables)
}

func (c *Client) buildURL(req weather.Request, variables []string) (string, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%.6f", req.Location.Latitude))
	values.Set("longitude", fmt.Sprintf("%.6f", req.Location.Longitude))
	values.Set("hourly", strings.Join(variables, ","))
	values.Set("start_date", req.Start.Format("2006-01-02"))
	values.Set("end_date", req.End.Format("2006-01-02"))
	if req.Timezone != "" {
		values.Set("timezone", req.Timezone)
	}
	if req.Units != "metric" {
		values.Set("temperature_unit", "fahrenheit")
		values.Set("wind_speed_unit", "mph")
		values.Set("precipitation_unit", "inch")
	}
	return c.endpoint + "?" + values.Encode(), nil
}

func (c *Client) doRequest(ctx context.Context, u string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, exception.NewAppError("openmeteo", "failed to create HTTP request", err, false, false)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, exception.NewAppErrorf("openmeteo", "HTTP request to '%s' failed", c.name, true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, exception.NewAppErrorf("openmeteo",
			"provider '%s' returned status %d", c.name, resp.StatusCode, retryable,
			fmt.Errorf("unexpected status: %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, exception.NewAppErrorf("openmeteo", "failed to read response body from '%s'", c.name, true, err)
	}
	return body, nil
}

// decodeTable parses the hourly payload into a table trimmed to the
// requested window.
func (c *Client) decodeTable(body []byte, req weather.Request, variables []string) (*weather.Table, error) {
	var payload struct {
		Hourly map[string]json.RawMessage `json:"hourly"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, exception.NewAppErrorf("openmeteo", "failed to decode response from '%s'", c.name, err)
	}
	if payload.Hourly == nil {
		return nil, exception.NewAppErrorf("openmeteo", "response from '%s' has no hourly block", c.name)
	}

	rawTimes, ok := payload.Hourly["time"]
	if !ok {
		return nil, exception.NewAppErrorf("openmeteo", "response from '%s' has no hourly time axis", c.name)
	}
	var timeStrings []string
	if err := json.Unmarshal(rawTimes, &timeStrings); err != nil {
		return nil, exception.NewAppErrorf("openmeteo", "failed to decode time axis from '%s'", c.name, err)
	}

	columns := make(map[string][]*float64, len(variables))
	for i, v := range variables {
		raw, ok := payload.Hourly[v]
		if !ok {
			return nil, exception.NewAppErrorf("openmeteo",
				"response from '%s' is missing variable %q for field %q", c.name, v, req.Fields[i])
		}
		var col []*float64
		if err := json.Unmarshal(raw, &col); err != nil {
			return nil, exception.NewAppErrorf("openmeteo", "failed to decode variable %q from '%s'", v, c.name, err)
		}
		if len(col) != len(timeStrings) {
			return nil, exception.NewAppErrorf("openmeteo",
				"variable %q length %d does not match time axis length %d", v, len(col), len(timeStrings))
		}
		columns[v] = col
	}

	loc := req.Start.Location()
	table := weather.NewTable(req.Fields)
	for i, ts := range timeStrings {
		parsed, err := time.ParseInLocation(timeLayout, ts, loc)
		if err != nil {
			return nil, exception.NewAppErrorf("openmeteo", "failed to parse hourly timestamp %q", ts, err)
		}
		if parsed.Before(req.Start) || parsed.After(req.End) {
			continue
		}
		row := make(map[string]float64, len(req.Fields))
		for j, field := range req.Fields {
			cell := columns[variables[j]][i]
			if cell == nil {
				logger.Warnf("Provider '%s' returned null for %q at %s; substituting 0.", c.name, field, ts)
				row[field] = 0
				continue
			}
			row[field] = *cell
		}
		if err := table.Append(parsed, row); err != nil {
			return nil, exception.NewAppError("openmeteo", "response rows are not hourly-contiguous", err, false, false)
		}
	}

	logger.Debugf("Provider '%s' returned %d hourly rows for [%s, %s].", c.name, table.Len(), req.Start, req.End)
	return table, nil
}
