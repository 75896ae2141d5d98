package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/support/logger"

	"go.uber.org/fx"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// loadConfig loads configuration from the embedded YAML, an optional .env
// file, and environment variable overrides, in that order of precedence.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	var yamlConfig Config
	if err := yaml.Unmarshal(embeddedConfig, &yamlConfig); err != nil {
		return nil, exception.NewAppError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}

	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewAppError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It also sets the global log level from the loaded configuration.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Standwatch.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Standwatch.System.Logging.Level)

	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML and the environment.
// Expected to be called once during application startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Non-zero source values overwrite the defaults.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeStandwatchConfig(&destConfig.Standwatch, &sourceConfig.Standwatch)
}

func mergeStandwatchConfig(dest, source *StandwatchConfig) {
	mergeSystemConfig(&dest.System, &source.System)
	mergePropertyConfig(&dest.Property, &source.Property)
	mergeWeatherConfig(&dest.Weather, &source.Weather)
	mergeTrainingConfig(&dest.Training, &source.Training)
	mergeStorageConfig(&dest.Storage, &source.Storage)
	mergeObservabilityConfig(&dest.Observability, &source.Observability)

	if source.Database != nil {
		if dest.Database == nil {
			dest.Database = make(map[string]interface{})
		}
		for key, value := range source.Database {
			dest.Database[key] = value
		}
	}

	if source.AdapterConfigs != nil {
		if dest.AdapterConfigs == nil {
			dest.AdapterConfigs = make(map[string]interface{})
		}
		for key, value := range source.AdapterConfigs {
			dest.AdapterConfigs[key] = value
		}
	}
}

func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Timezone != "" {
		dest.Timezone = source.Timezone
	}
	if source.Logging.Level != "" {
		dest.Logging.Level = source.Logging.Level
	}
}

func mergePropertyConfig(dest, source *PropertyConfig) {
	if source.Name != "" {
		dest.Name = source.Name
	}
	if source.Latitude != 0 {
		dest.Latitude = source.Latitude
	}
	if source.Longitude != 0 {
		dest.Longitude = source.Longitude
	}
	if source.Units != "" {
		dest.Units = source.Units
	}
}

func mergeWeatherConfig(dest, source *WeatherConfig) {
	if source.Fields != nil {
		dest.Fields = source.Fields
	}
	if source.ArchiveEndpoint != "" {
		dest.ArchiveEndpoint = source.ArchiveEndpoint
	}
	if source.ForecastEndpoint != "" {
		dest.ForecastEndpoint = source.ForecastEndpoint
	}
	if source.HistoricalCutoffDays != 0 {
		dest.HistoricalCutoffDays = source.HistoricalCutoffDays
	}
	if source.RequestTimeoutSeconds != 0 {
		dest.RequestTimeoutSeconds = source.RequestTimeoutSeconds
	}
	if source.CacheRef != "" {
		dest.CacheRef = source.CacheRef
	}
	if source.CacheObject != "" {
		dest.CacheObject = source.CacheObject
	}
	if source.CompressionType != "" {
		dest.CompressionType = source.CompressionType
	}
}

func mergeTrainingConfig(dest, source *TrainingConfig) {
	if source.Species != "" {
		dest.Species = source.Species
	}
	if source.PollIntervalSeconds != 0 {
		dest.PollIntervalSeconds = source.PollIntervalSeconds
	}
	if source.DependencyWaitTimeoutSeconds != 0 {
		dest.DependencyWaitTimeoutSeconds = source.DependencyWaitTimeoutSeconds
	}
	if source.DetectorThreshold != 0 {
		dest.DetectorThreshold = source.DetectorThreshold
	}
	if source.FirstWeekDay != "" {
		dest.FirstWeekDay = source.FirstWeekDay
	}
	if source.PredictIntervalMinutes != 0 {
		dest.PredictIntervalMinutes = source.PredictIntervalMinutes
	}
	if source.Retrain {
		dest.Retrain = source.Retrain
	}
	if source.RunRepositoryDBRef != "" {
		dest.RunRepositoryDBRef = source.RunRepositoryDBRef
	}
}

func mergeStorageConfig(dest, source *StoragePathsConfig) {
	if source.MarkersFile != "" {
		dest.MarkersFile = source.MarkersFile
	}
	if source.PhotosDir != "" {
		dest.PhotosDir = source.PhotosDir
	}
	if source.ModelsRef != "" {
		dest.ModelsRef = source.ModelsRef
	}
	if source.ModelsDir != "" {
		dest.ModelsDir = source.ModelsDir
	}
	if source.AnnotationsDir != "" {
		dest.AnnotationsDir = source.AnnotationsDir
	}
}

func mergeObservabilityConfig(dest, source *ObservabilityConfig) {
	if source.MetricsEnabled {
		dest.MetricsEnabled = source.MetricsEnabled
	}
	if source.OTLPEndpoint != "" {
		dest.OTLPEndpoint = source.OTLPEndpoint
	}
	if source.ServiceName != "" {
		dest.ServiceName = source.ServiceName
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from
// environment variables, using the "yaml" tag to derive the variable name.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets a reflect.Value field from a string, handling string, int,
// float, and bool kinds.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
