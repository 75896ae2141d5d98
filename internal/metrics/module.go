package metrics

import (
	"go.uber.org/fx"

	"github.com/hartwell/standwatch/internal/config"
)

// NewRecorder selects the Recorder implementation from configuration.
func NewRecorder(cfg *config.Config) Recorder {
	if cfg.Standwatch.Observability.MetricsEnabled {
		return NewPrometheusRecorder()
	}
	return NoopRecorder{}
}

// Module provides the telemetry recorder.
var Module = fx.Options(
	fx.Provide(NewRecorder),
)
