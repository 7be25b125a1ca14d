// Command registro-worker keeps the exported ledger sheets current. It
// exports every configured account on startup and again whenever a ledger
// event names it.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"registri/internal/amqp"
	"registri/internal/cli"
	"registri/internal/config"
	"registri/internal/log"
	"registri/internal/sheets"
	gsheet "registri/internal/sheets/google"
	"registri/internal/sheets/memory"
	"registri/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker, os.Stdout)
	logger.Info("Starting registro-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	res := cli.InitBackend(context.Background(), logger, cfg)

	exporter := newExporter(logger, cfg)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close failed", log.FieldError, err)
			}
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", log.FieldError, err)
			}
		}
	})

	w := worker.NewExportWorker(res.Backend, exporter, cfg.Scope(),
		worker.WithAccounts(cfg.ExportAccounts...),
		worker.WithCategorySource(res.Categories))

	// Don't exit on failure: the next event retries the failed accounts.
	logger.Info("Performing startup export...")
	if err := w.StartupExport(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err)
	}

	if amqpClient == nil {
		logger.Info("No AMQP_URL configured, exiting after startup export")
		return
	}

	go func() {
		err := amqpClient.ConsumeLedgerEvents(ctx, w.HandleLedgerEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("registro-worker stopped")
}

// newExporter writes to Google Sheets when a spreadsheet is configured and
// keeps grids in memory otherwise.
func newExporter(logger *log.Logger, cfg *config.Config) sheets.ViewExporter {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
		return memory.New()
	}
	client, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client
}
