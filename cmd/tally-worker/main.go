package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tally/internal/amqp"
	"tally/internal/backend"
	"tally/internal/cli"
	"tally/internal/config"
	"tally/internal/services"
	"tally/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting tally-worker")

	cli.MustValidateConfig(logger, cfg)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build the export backend selected by EXPORT_BACKEND.
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid export backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to create export backend", "error", err, "backend", cfg.ExportBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	exportWorker := worker.NewExportWorker(sqliteRepo, result.Backend, result.Backend, cfg.SyncBatchSize, cfg.SyncMaxRetries)

	// On startup, export any entries that were queued while the worker was down
	logger.Info("Performing startup sync check...")
	if err := exportWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
		// Don't exit - continue with normal operation
	}

	// Initialize AMQP client for consuming entry change notifications
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	go func() {
		handler := func(msg *amqp.EntrySyncMessage) error {
			return exportWorker.HandleSyncMessage(ctx, msg)
		}
		if err := amqpClient.ConsumeEntrySync(ctx, handler); err != nil {
			if err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	// The poll loop catches anything the broker dropped and retries
	// failed exports.
	procCfg := services.DefaultSyncProcessorConfig()
	procCfg.PollInterval = cfg.SyncInterval
	procCfg.BatchSize = cfg.SyncBatchSize
	procCfg.MaxRetries = cfg.SyncMaxRetries

	processor := services.NewSyncProcessor(sqliteRepo, exportWorker, procCfg)
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down worker...")
	if err := processor.Stop(shutdownCtx); err != nil {
		logger.Error("Failed to stop sync processor", "error", err)
	}
	cancel()

	// Wait for shutdown or timeout
	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(5 * time.Second):
		logger.Info("Worker shutdown complete")
	}
}
