// Package config provides the standwatch configuration tree and its loader.
package config

// EmbeddedConfig holds the raw bytes of the default configuration file,
// typically embedded from cmd/standwatch.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "America/Chicago").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// PropertyConfig describes the hunting property the application serves.
type PropertyConfig struct {
	// Name is a display name for the property.
	Name string `yaml:"name"`
	// Latitude and Longitude locate the property for weather requests.
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	// Units is "imperial" or "metric". Imperial is the default so trained
	// models stay consistent with historical samples.
	Units string `yaml:"units"`
}

// WeatherConfig holds the weather layer configuration.
type WeatherConfig struct {
	// Fields is the list of weather field display names requested from the providers.
	Fields []string `yaml:"fields"`
	// ArchiveEndpoint is the historical provider base URL.
	ArchiveEndpoint string `yaml:"archive_endpoint"`
	// ForecastEndpoint is the forecast provider base URL.
	ForecastEndpoint string `yaml:"forecast_endpoint"`
	// HistoricalCutoffDays is the archive/forecast boundary in days before now.
	HistoricalCutoffDays int `yaml:"historical_cutoff_days"`
	// RequestTimeoutSeconds bounds a single provider HTTP call.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	// CacheRef is the storage connection name holding the weather cache.
	CacheRef string `yaml:"cache_ref"`
	// CacheObject is the object name of the cache file within the connection.
	CacheObject string `yaml:"cache_object"`
	// CompressionType is the parquet compression for the cache ("SNAPPY", "GZIP", "NONE").
	CompressionType string `yaml:"compression_type"`
}

// TrainingConfig holds the training pipeline configuration.
type TrainingConfig struct {
	// Species is the animal the finder models predict for.
	Species string `yaml:"species"`
	// PollIntervalSeconds is the stage polling period (dependency wait and
	// training heartbeat).
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	// DependencyWaitTimeoutSeconds bounds the dependency wait; 0 waits forever.
	DependencyWaitTimeoutSeconds int `yaml:"dependency_wait_timeout_seconds"`
	// DetectorThreshold is the detection confidence threshold.
	DetectorThreshold float64 `yaml:"detector_threshold"`
	// FirstWeekDay rotates the weekday feature when set to "sunday".
	FirstWeekDay string `yaml:"first_week_day"`
	// PredictIntervalMinutes is the sampling increment for predictions.
	PredictIntervalMinutes int `yaml:"predict_interval_minutes"`
	// Retrain forces retraining even when artifacts exist.
	Retrain bool `yaml:"retrain"`
	// RunRepositoryDBRef is the DB connection name for run persistence;
	// empty disables persistence.
	RunRepositoryDBRef string `yaml:"run_repository_db_ref"`
}

// StoragePathsConfig names every durable location the pipeline touches.
// Paths are explicit configuration, never ambient lookup.
type StoragePathsConfig struct {
	// MarkersFile is the CSV file of property markers.
	MarkersFile string `yaml:"markers_file"`
	// PhotosDir is the root directory of per-camera photo directories.
	PhotosDir string `yaml:"photos_dir"`
	// ModelsRef is the storage connection name holding model artifacts.
	ModelsRef string `yaml:"models_ref"`
	// ModelsDir is the artifact directory within the models connection.
	ModelsDir string `yaml:"models_dir"`
	// AnnotationsDir is the directory of detection annotation files.
	AnnotationsDir string `yaml:"annotations_dir"`
}

// ObservabilityConfig holds metrics and tracing configuration.
type ObservabilityConfig struct {
	// MetricsEnabled turns the Prometheus recorder on.
	MetricsEnabled bool `yaml:"metrics_enabled"`
	// OTLPEndpoint is the collector endpoint for traces and metrics;
	// empty disables the OpenTelemetry exporters.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// ServiceName labels exported telemetry.
	ServiceName string `yaml:"service_name"`
}

// StandwatchConfig holds all configuration under the "standwatch" top-level key.
type StandwatchConfig struct {
	System        SystemConfig       `yaml:"system"`
	Property      PropertyConfig     `yaml:"property"`
	Weather       WeatherConfig      `yaml:"weather"`
	Training      TrainingConfig     `yaml:"training"`
	Storage       StoragePathsConfig `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	// Database holds named database connection configurations.
	Database map[string]interface{} `yaml:"database"`
	// AdapterConfigs holds adapter configurations, e.g. the "storage" map of
	// named storage connections.
	AdapterConfigs map[string]interface{} `yaml:"adapter"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Standwatch StandwatchConfig `yaml:"standwatch"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new Config populated with default values.
func NewConfig() *Config {
	cfg := &Config{
		Standwatch: StandwatchConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Property: PropertyConfig{
				Units: "imperial",
			},
			Weather: WeatherConfig{
				Fields: []string{
					"Temperature",
					"Humidity",
					"Wind Speed",
					"Precipitation",
					"Weather Code",
				},
				ArchiveEndpoint:       "https://archive-api.open-meteo.com/v1/archive",
				ForecastEndpoint:      "https://api.open-meteo.com/v1/forecast",
				HistoricalCutoffDays:  5,
				RequestTimeoutSeconds: 10,
				CacheRef:              "weatherCache",
				CacheObject:           "weather/history.parquet",
				CompressionType:       "SNAPPY",
			},
			Training: TrainingConfig{
				Species:                "Deer",
				PollIntervalSeconds:    1,
				DetectorThreshold:      0.5,
				FirstWeekDay:           "sunday",
				PredictIntervalMinutes: 15,
			},
			Storage: StoragePathsConfig{
				MarkersFile:    "data/markers.csv",
				PhotosDir:      "data/photos",
				ModelsRef:      "modelStore",
				ModelsDir:      "models",
				AnnotationsDir: "data/annotations",
			},
			Observability: ObservabilityConfig{
				MetricsEnabled: true,
				ServiceName:    "standwatch",
			},
		},
	}

	cfg.Standwatch.Database = map[string]interface{}{}
	cfg.Standwatch.AdapterConfigs = map[string]interface{}{}
	return cfg
}
