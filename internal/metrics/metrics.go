// Package metrics defines the telemetry recorder used by the weather layer
// and the training pipeline, with Prometheus and OpenTelemetry backends.
package metrics

import (
	"context"
	"time"
)

// Recorder receives telemetry events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// RecordFetch records one upstream weather fetch.
	RecordFetch(ctx context.Context, provider string, duration time.Duration, err error)
	// RecordCacheHit records a weather request fully served from cache.
	RecordCacheHit(ctx context.Context)
	// RecordCacheMiss records a weather request that needed an upstream fetch.
	RecordCacheMiss(ctx context.Context)
	// RecordRunStart records the start of a training run.
	RecordRunStart(ctx context.Context, runName string)
	// RecordRunEnd records a finished training run with its terminal status.
	RecordRunEnd(ctx context.Context, runName, status string, duration time.Duration)
	// RecordStage records one completed pipeline stage.
	RecordStage(ctx context.Context, runName, stage string, duration time.Duration, err error)
}

// NoopRecorder discards all events. Used when metrics are disabled and in tests.
type NoopRecorder struct{}

func (NoopRecorder) RecordFetch(context.Context, string, time.Duration, error)      {}
func (NoopRecorder) RecordCacheHit(context.Context)                                 {}
func (NoopRecorder) RecordCacheMiss(context.Context)                                {}
func (NoopRecorder) RecordRunStart(context.Context, string)                         {}
func (NoopRecorder) RecordRunEnd(context.Context, string, string, time.Duration)    {}
func (NoopRecorder) RecordStage(context.Context, string, string, time.Duration, error) {}

var _ Recorder = NoopRecorder{}
