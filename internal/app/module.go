package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/hartwell/standwatch/internal/artifact"
	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/database"
	"github.com/hartwell/standwatch/internal/detector"
	"github.com/hartwell/standwatch/internal/finder"
	"github.com/hartwell/standwatch/internal/markers"
	"github.com/hartwell/standwatch/internal/metrics"
	"github.com/hartwell/standwatch/internal/storage"
	"github.com/hartwell/standwatch/internal/storage/gcs"
	"github.com/hartwell/standwatch/internal/storage/local"
	"github.com/hartwell/standwatch/internal/support/logger"
	"github.com/hartwell/standwatch/internal/trainer"
	"github.com/hartwell/standwatch/internal/weather"
	"github.com/hartwell/standwatch/internal/weather/cache"
	"github.com/hartwell/standwatch/internal/weather/openmeteo"
)

// NewStorageProviders builds the storage provider map, keyed by backend type.
func NewStorageProviders(cfg *appConfig.Config) map[string]storage.Provider {
	return map[string]storage.Provider{
		local.ProviderType: local.NewLocalProvider(cfg),
		gcs.ProviderType:   gcs.NewGCSProvider(cfg),
	}
}

// WeatherServiceParams defines the dependencies for NewWeatherService.
type WeatherServiceParams struct {
	fx.In
	Cfg      *appConfig.Config
	Recorder metrics.Recorder
	Resolver storage.ConnectionResolver
	AppCtx   context.Context `name:"appCtx"`
}

// NewWeatherService assembles the weather facade: archive and forecast
// clients behind the cutoff splitter, backed by the parquet cache store on
// the configured storage connection.
func NewWeatherService(p WeatherServiceParams) (*weather.Service, error) {
	wc := p.Cfg.Standwatch.Weather
	timeout := time.Duration(wc.RequestTimeoutSeconds) * time.Second

	archive := openmeteo.NewClient("archive", wc.ArchiveEndpoint, timeout)
	forecast := openmeteo.NewClient("forecast", wc.ForecastEndpoint, timeout)
	splitter := weather.NewSplitter(archive, forecast, wc.HistoricalCutoffDays)

	conn, err := p.Resolver.ResolveConnection(p.AppCtx, wc.CacheRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve weather cache connection '%s': %w", wc.CacheRef, err)
	}
	store := cache.NewStore(conn, wc.CacheObject, wc.CompressionType)

	return weather.NewService(p.Cfg, splitter, store, p.Recorder), nil
}

// ArtifactStoreParams defines the dependencies for NewArtifactStore.
type ArtifactStoreParams struct {
	fx.In
	Cfg      *appConfig.Config
	Resolver storage.ConnectionResolver
	AppCtx   context.Context `name:"appCtx"`
}

// NewArtifactStore opens the model artifact store. An empty models_ref
// disables artifact persistence and yields a nil store.
func NewArtifactStore(p ArtifactStoreParams) (*artifact.Store, error) {
	ref := p.Cfg.Standwatch.Storage.ModelsRef
	if ref == "" {
		logger.Warnf("No model store connection configured; trained models will not persist.")
		return nil, nil
	}
	conn, err := p.Resolver.ResolveConnection(p.AppCtx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve model store connection '%s': %w", ref, err)
	}
	return artifact.NewStore(conn, p.Cfg.Standwatch.Storage.ModelsDir), nil
}

// NewMarkerRegistry loads the property markers CSV.
func NewMarkerRegistry(cfg *appConfig.Config) (*markers.Registry, error) {
	return markers.Load(cfg.Standwatch.Storage.MarkersFile)
}

// NewDetectorAdapter builds the detector over the shared artifact store.
func NewDetectorAdapter(
	cfg *appConfig.Config,
	store *artifact.Store,
	repo trainer.RunRepository,
	recorder metrics.Recorder,
) *detector.Detector {
	return detector.New(cfg, store, trainer.OptionsFromConfig(cfg, repo, recorder))
}

// NewFinderAdapter builds the finder with the detector as its detection source.
func NewFinderAdapter(
	cfg *appConfig.Config,
	weatherSvc *weather.Service,
	det *detector.Detector,
	registry *markers.Registry,
	store *artifact.Store,
	repo trainer.RunRepository,
	recorder metrics.Recorder,
) (*finder.Finder, error) {
	return finder.New(cfg, weatherSvc, det, registry, store, trainer.OptionsFromConfig(cfg, repo, recorder))
}

// ProviderShutdownParams collects every connection provider that must close
// on application shutdown.
type ProviderShutdownParams struct {
	fx.In
	Lc               fx.Lifecycle
	StorageProviders map[string]storage.Provider
	DBProviders      []database.Provider `group:"db_providers"`
}

// registerProviderShutdown closes all storage and database providers
// concurrently when the application stops.
func registerProviderShutdown(p ProviderShutdownParams) {
	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			var wg sync.WaitGroup
			for backend, provider := range p.StorageProviders {
				wg.Add(1)
				go func(backend string, provider storage.Provider) {
					defer wg.Done()
					if err := provider.CloseAll(); err != nil {
						logger.Errorf("Failed to close storage provider '%s': %v", backend, err)
					}
				}(backend, provider)
			}
			for _, provider := range p.DBProviders {
				wg.Add(1)
				go func(provider database.Provider) {
					defer wg.Done()
					if err := provider.CloseAll(); err != nil {
						logger.Errorf("Failed to close database provider '%s': %v", provider.Type(), err)
					}
				}(provider)
			}
			wg.Wait()
			logger.Infof("All connection providers closed.")
			return nil
		},
	})
}

// registerTelemetry starts the OpenTelemetry exporters on startup and
// flushes them on shutdown.
func registerTelemetry(lc fx.Lifecycle, cfg *appConfig.Config) {
	var shutdown metrics.ShutdownFunc
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = metrics.InitTelemetry(ctx,
				cfg.Standwatch.Observability.ServiceName,
				cfg.Standwatch.Observability.OTLPEndpoint)
			return err
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(ctx)
		},
	})
}

// Module wires the application-level components: storage, the weather
// facade, the model artifact store, markers, and the two model adapters.
var Module = fx.Options(
	fx.Provide(
		NewStorageProviders,
		fx.Annotate(
			storage.NewResolver,
			fx.As(new(storage.ConnectionResolver)),
		),
		NewWeatherService,
		NewArtifactStore,
		NewMarkerRegistry,
		NewDetectorAdapter,
		NewFinderAdapter,
	),
	fx.Invoke(
		registerTelemetry,
		registerProviderShutdown,
	),
)
