package main

import (
	"time"

	"tally/internal/amqp"
	"tally/internal/cli"
	"tally/internal/config"
	"tally/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting recurring-worker")

	cli.MustValidateConfig(logger, cfg)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// Initialize AMQP client for publishing entry change notifications.
	// tally-worker consumes these and exports the generated entries.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", "error", err)
		} else {
			amqpClient = client
			logger.Info("AMQP client initialized - generated entries will notify tally-worker")
		}
	} else {
		logger.Info("AMQP disabled - generated entries sync via worker polling")
	}

	// The ledger service creates entries and publishes AMQP notifications
	ledger := services.NewLedgerService(sqliteRepo, amqpClient)
	defer ledger.Close()

	processor := services.NewRecurringProcessor(sqliteRepo, ledger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Recurring rule processor configured",
		"interval", cfg.RecurringInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()

	// Run initial processing on startup
	logger.Info("Running initial recurring rule processing...")
	if count, err := processor.ProcessDueRules(ctx, time.Now()); err != nil {
		logger.Error("Initial processing failed", "error", err)
	} else {
		logger.Info("Initial processing complete", "entries_created", count)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				logger.Info("Processing due recurring rules...")
				count, err := processor.ProcessDueRules(ctx, now)
				if err != nil {
					logger.Error("Periodic processing failed", "error", err)
				} else {
					logger.Info("Periodic processing complete",
						"entries_created", count,
						"next_check", now.Add(cfg.RecurringInterval).Format("15:04:05"))
				}
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
