package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"syscall"

	"github.com/tigerroll/chunkbatch/example/customercopy/internal/app"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// embeddedConfig is the application configuration, loaded at startup.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// main copies customer_tmp into customer batch.runs times and exits with a non-zero code
// when a run does not complete.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	// DB_ADAPTERS selects the database providers, e.g. "sqlite" or "postgres,mysql".
	dbProviders := app.SelectDBProviders(os.Getenv("DB_ADAPTERS"))

	code := app.RunApplication(ctx, envFilePath, embeddedConfig, dbProviders)
	cancel()
	os.Exit(code)
}
