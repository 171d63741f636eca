package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rkamradt/vehicleevent/vehicleevent/app"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/config"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/logging"
)

const telemetryShutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Printf("vehicleevent failed: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	telemetry, err := config.NewTelemetry(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()

		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err.Error())
		}
	}()

	logger.Info("starting vehicleevent",
		"engine", cfg.EventStoreEngine,
		"projection_store", cfg.ProjectionStore,
		"otel_exporter", cfg.OTelExporter,
	)

	service, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer service.Close()

	return service.Run(ctx)
}
