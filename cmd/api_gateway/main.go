package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/household-ledger/internal/api_gateway"
	"github.com/household-ledger/internal/api_gateway/service"
	"github.com/household-ledger/internal/balance"
	"github.com/household-ledger/internal/config"
	"github.com/household-ledger/internal/data/mongo"
	"github.com/household-ledger/internal/data/postgres"
	"github.com/household-ledger/internal/importer"
	"github.com/household-ledger/internal/logger"
	"github.com/household-ledger/internal/platform/messaging/producers"
	"github.com/household-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for asynchronous imports
	kafkaProducer, err := producers.NewImportJobProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize import job Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	ledgerRepo := mongo.NewLedgerRepository(log, mongoDB.Database())
	if err := ledgerRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create ledger indexes", "error", err)
		os.Exit(1)
	}
	jobRepo := mongo.NewImportJobRepository(log, mongoDB.Database())

	// Initialize services
	importSvc := importer.NewService(log, accountRepo, ledgerRepo)
	services := api_gateway.Services{
		Accounts:     service.NewAccountService(log, accountRepo),
		Balances:     balance.NewService(log, accountRepo, ledgerRepo),
		Transactions: service.NewTransactionService(log, ledgerRepo),
		Imports:      service.NewImportService(log, importSvc, jobRepo, kafkaProducer),
	}

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, services, map[string]api_gateway.Pinger{
		"postgres": postgresDB,
		"mongodb":  mongoDB,
	})
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before closing the stores they use
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = kafkaProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
