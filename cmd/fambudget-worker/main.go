package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fambudget/internal/cli"
	"fambudget/internal/config"
	applog "fambudget/internal/log"
	"fambudget/internal/sheets"
	gsheet "fambudget/internal/sheets/google"
	"fambudget/internal/sheets/memory"
	"fambudget/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	logger.Info("Starting fambudget-worker")

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	store := cli.OpenStore(ctx, logger, cfg)
	defer store.Close()

	var sink sheets.MovementExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		sink = client
	} else {
		logger.Info("Google Sheets disabled - exporting to memory", "sheet", cfg.GoogleSheetName)
		sink = memory.New(cfg.GoogleSheetName)
	}

	exporter := worker.NewExporter(store, sink, cfg.ExportBatchSize)

	// Catch up on anything written while the worker was down.
	if n, err := exporter.ProcessPending(ctx); err != nil {
		logger.Error("Startup export failed", applog.FieldError, err)
	} else {
		logger.Info("Startup export finished", "exported", n)
	}

	sweeper := worker.NewSweeper(exporter, cfg.ExportInterval)
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start export sweeper", applog.FieldError, err)
		os.Exit(1)
	}

	reconciler, err := worker.NewReconciler(store).Schedule(ctx, cfg.ReconcileSchedule)
	if err != nil {
		logger.Error("Failed to schedule reconciliation", applog.FieldError, err)
		os.Exit(1)
	}
	reconciler.Start()

	g, gctx := errgroup.WithContext(ctx)
	if amqpClient := cli.ConnectAMQP(logger, cfg); amqpClient != nil {
		defer amqpClient.Close()
		g.Go(func() error {
			return amqpClient.Consume(gctx, exporter.HandleEvent)
		})
	} else {
		logger.Info("Skipping event consumption, relying on the export sweep")
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption failed", applog.FieldError, err)
	}

	logger.Info("Shutting down worker...")
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sweeper.Stop(stopCtx); err != nil {
		logger.Warn("Export sweeper did not stop cleanly", applog.FieldError, err)
	}
	<-reconciler.Stop().Done()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
