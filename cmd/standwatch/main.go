package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "embed"

	"github.com/hartwell/standwatch/internal/app"
	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/support/logger"
)

// embeddedConfig holds the default YAML configuration.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// main parses the prediction window from flags and runs the application.
func main() {
	hours := flag.Int("hours", 24, "length of the prediction window in hours")
	startArg := flag.String("start", "", "prediction window start in RFC 3339; defaults to now")
	flag.Parse()

	start := time.Now()
	if *startArg != "" {
		parsed, err := time.Parse(time.RFC3339, *startArg)
		if err != nil {
			logger.Fatalf("Invalid -start value '%s': %v", *startArg, err)
		}
		start = parsed
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the run...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app.RunApplication(ctx, envFilePath, appConfig.EmbeddedConfig(embeddedConfig), app.RunParams{
		Start: start,
		Hours: *hours,
	})
	os.Exit(0)
}
