package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hartwell/standwatch/internal/support/logger"
)

// PrometheusRecorder is a Prometheus implementation of Recorder.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	fetchDurationSeconds *prometheus.HistogramVec
	fetchCounter         *prometheus.CounterVec
	cacheCounter         *prometheus.CounterVec

	runDurationSeconds   *prometheus.HistogramVec
	runStatusCounter     *prometheus.CounterVec
	stageDurationSeconds *prometheus.HistogramVec
	stageStatusCounter   *prometheus.CounterVec
}

// NewPrometheusRecorder creates a new PrometheusRecorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		fetchDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weather_fetch_duration_seconds",
			Help:    "Duration of upstream weather provider fetches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "outcome"}),
		fetchCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_fetch_total",
			Help: "Total upstream weather fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		cacheCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_cache_requests_total",
			Help: "Total weather cache lookups by result.",
		}, []string{"result"}),
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "training_run_duration_seconds",
			Help:    "Duration of training runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"run_name", "status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "training_run_status_total",
			Help: "Total training runs by terminal status.",
		}, []string{"run_name", "status"}),
		stageDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "training_stage_duration_seconds",
			Help:    "Duration of training pipeline stages.",
			Buckets: prometheus.DefBuckets,
		}, []string{"run_name", "stage", "outcome"}),
		stageStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "training_stage_total",
			Help: "Total executed pipeline stages by outcome.",
		}, []string{"run_name", "stage", "outcome"}),
	}

	registry.MustRegister(r.fetchDurationSeconds)
	registry.MustRegister(r.fetchCounter)
	registry.MustRegister(r.cacheCounter)
	registry.MustRegister(r.runDurationSeconds)
	registry.MustRegister(r.runStatusCounter)
	registry.MustRegister(r.stageDurationSeconds)
	registry.MustRegister(r.stageStatusCounter)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordFetch records one upstream weather fetch.
func (r *PrometheusRecorder) RecordFetch(ctx context.Context, provider string, duration time.Duration, err error) {
	outcome := outcomeLabel(err)
	r.fetchDurationSeconds.WithLabelValues(provider, outcome).Observe(duration.Seconds())
	r.fetchCounter.WithLabelValues(provider, outcome).Inc()
	logger.Debugf("Metrics: fetch via '%s' took %.3fs (%s).", provider, duration.Seconds(), outcome)
}

// RecordCacheHit records a request served from cache.
func (r *PrometheusRecorder) RecordCacheHit(ctx context.Context) {
	r.cacheCounter.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a request that needed an upstream fetch.
func (r *PrometheusRecorder) RecordCacheMiss(ctx context.Context) {
	r.cacheCounter.WithLabelValues("miss").Inc()
}

// RecordRunStart records the start of a training run.
func (r *PrometheusRecorder) RecordRunStart(ctx context.Context, runName string) {
	logger.Debugf("Metrics: run '%s' started.", runName)
}

// RecordRunEnd records a finished training run.
func (r *PrometheusRecorder) RecordRunEnd(ctx context.Context, runName, status string, duration time.Duration) {
	r.runDurationSeconds.WithLabelValues(runName, status).Observe(duration.Seconds())
	r.runStatusCounter.WithLabelValues(runName, status).Inc()
	logger.Debugf("Metrics: run '%s' ended with status %s after %.3fs.", runName, status, duration.Seconds())
}

// RecordStage records one completed pipeline stage.
func (r *PrometheusRecorder) RecordStage(ctx context.Context, runName, stage string, duration time.Duration, err error) {
	outcome := outcomeLabel(err)
	r.stageDurationSeconds.WithLabelValues(runName, stage, outcome).Observe(duration.Seconds())
	r.stageStatusCounter.WithLabelValues(runName, stage, outcome).Inc()
}

var _ Recorder = (*PrometheusRecorder)(nil)
