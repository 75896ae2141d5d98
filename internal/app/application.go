// Package app assembles the standwatch application with uber-fx: storage and
// database providers, the weather facade, the detector and finder adapters,
// and the prediction run that drives them.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"

	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/database"
	dbGorm "github.com/hartwell/standwatch/internal/database/gorm"
	dbMysql "github.com/hartwell/standwatch/internal/database/gorm/mysql"
	dbPostgres "github.com/hartwell/standwatch/internal/database/gorm/postgres"
	dbSqlite "github.com/hartwell/standwatch/internal/database/gorm/sqlite"
	"github.com/hartwell/standwatch/internal/finder"
	"github.com/hartwell/standwatch/internal/metrics"
	"github.com/hartwell/standwatch/internal/repository"
	"github.com/hartwell/standwatch/internal/support/logger"
)

// RunParams carries the prediction request from the command line.
type RunParams struct {
	// Start is the beginning of the prediction window.
	Start time.Time
	// Hours is the window length.
	Hours int
}

// RunApplication sets up and runs the application using uber-fx.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig appConfig.EmbeddedConfig, run RunParams) {
	app := fx.New(
		fx.Supply(
			embeddedConfig,
			run,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),

		logger.Module,
		appConfig.Module,
		metrics.Module,

		dbGorm.Module,
		dbMysql.Module,
		dbPostgres.Module,
		dbSqlite.Module,
		repository.Module,

		Module,

		fx.Invoke(fx.Annotate(startPrediction, fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // fdr *finder.Finder
			"",              // dbResolver database.ConnectionResolver
			"",              // cfg *appConfig.Config
			"",              // run RunParams
			`name:"appCtx"`, // appCtx context.Context
		))),
	)

	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Application run failed: %v", app.Err())
	}
}

// startPrediction is invoked by Fx to begin the prediction run.
func startPrediction(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	fdr *finder.Finder,
	dbResolver database.ConnectionResolver,
	cfg *appConfig.Config,
	run RunParams,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: onStartPrediction(fdr, dbResolver, cfg, run, shutdowner, appCtx),
		OnStop:  onStopApplication(),
	})
}

// onStartPrediction launches model loading in the background, monitors it
// until the finder is ready, then evaluates and prints the prediction window.
func onStartPrediction(
	fdr *finder.Finder,
	dbResolver database.ConnectionResolver,
	cfg *appConfig.Config,
	run RunParams,
	shutdowner fx.Shutdowner,
	appCtx context.Context,
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Panic recovered in prediction run: %v", r)
				}
				logger.Infof("Requesting application shutdown after prediction run.")

				if err := shutdowner.Shutdown(); err != nil {
					logger.Errorf("Failed to shutdown application: %v", err)
				}
			}()

			if ref := cfg.Standwatch.Training.RunRepositoryDBRef; ref != "" {
				conn, err := dbResolver.ResolveConnection(appCtx, ref)
				if err != nil {
					logger.Errorf("Failed to resolve run repository connection '%s': %v", ref, err)
					return
				}
				if err := repository.RunMigrations(appCtx, conn); err != nil {
					logger.Errorf("Failed to run schema migrations: %v", err)
					return
				}
			}

			logger.Infof("Starting finder for species '%s'...", cfg.Standwatch.Training.Species)
			if err := fdr.Start(appCtx); err != nil {
				logger.Errorf("Failed to start finder: %v", err)
				return
			}

			pollingInterval := time.Duration(cfg.Standwatch.Training.PollIntervalSeconds) * time.Second
			if pollingInterval == 0 {
				pollingInterval = time.Second
			}
			logger.Infof("Monitoring finder readiness with polling interval %v...", pollingInterval)

			for fdr.IsLoading() {
				select {
				case <-ctx.Done():
					logger.Warnf("Application context cancelled. Stopping finder training.")
					fdr.Stop()
					return
				case <-time.After(pollingInterval):
					if current := fdr.CurrentRun(); current != nil {
						logger.Debugf("Finder run (ID: %s) is still in progress. Current status: %s", current.ID, current.Status)
					}
				}
			}

			if current := fdr.CurrentRun(); current != nil {
				logger.Infof("Finder run (ID: %s) finished with status: %s", current.ID, current.Status)
				for _, failure := range current.Failures {
					logger.Errorf("Finder run failure: %s", failure)
				}
			}

			series, err := fdr.Predict(appCtx, run.Start, run.Hours)
			if err != nil {
				logger.Errorf("Prediction failed: %v", err)
				return
			}
			printSeries(series, run)
		}()
		return nil
	}
}

// printSeries writes the prediction series to stdout, one block per camera,
// with the best time of the window called out first.
func printSeries(series []finder.CameraSeries, run RunParams) {
	fmt.Fprintf(os.Stdout, "Predictions for %s (+%dh):\n",
		run.Start.Format("2006-01-02 15:04 MST"), run.Hours)

	for _, cs := range series {
		best := -1
		for i, p := range cs.Points {
			if best < 0 || p.Score > cs.Points[best].Score {
				best = i
			}
		}
		fmt.Fprintf(os.Stdout, "\n%s", cs.Camera)
		if best >= 0 {
			fmt.Fprintf(os.Stdout, " (best: %s, score %.3f)",
				cs.Points[best].At.Format("Mon 15:04"), cs.Points[best].Score)
		}
		fmt.Fprintln(os.Stdout)
		for _, p := range cs.Points {
			fmt.Fprintf(os.Stdout, "  %s  %.3f\n", p.At.Format("Mon 15:04"), p.Score)
		}
	}
}

// onStopApplication logs application shutdown.
func onStopApplication() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger.Infof("Application is shutting down.")
		return nil
	}
}
