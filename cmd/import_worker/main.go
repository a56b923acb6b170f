package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/household-ledger/internal/config"
	"github.com/household-ledger/internal/data/mongo"
	"github.com/household-ledger/internal/data/postgres"
	"github.com/household-ledger/internal/import_worker/consumer"
	"github.com/household-ledger/internal/import_worker/service"
	"github.com/household-ledger/internal/importer"
	"github.com/household-ledger/internal/logger"
	"github.com/household-ledger/internal/platform/messaging/consumers"
	"github.com/household-ledger/internal/platform/messaging/producers"
	"github.com/household-ledger/internal/platform/persistence"
)

// drainTimeout bounds how long in-flight imports may run after a shutdown signal
const drainTimeout = 30 * time.Second

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("import_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Import Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	ledgerRepo := mongo.NewLedgerRepository(log, mongoDB.Database())
	if err := ledgerRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create ledger indexes", "error", err)
		os.Exit(1)
	}
	jobRepo := mongo.NewImportJobRepository(log, mongoDB.Database())

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer; nil when no DLQ topic is configured
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	// Initialize processing service behind the worker pool
	baseService := service.NewProcessingService(
		importer.NewService(log, accountRepo, ledgerRepo),
		jobRepo,
		cfg.Import.JobTimeout,
		log,
	)
	processingService, err := service.NewWorkerPoolProcessingService(
		baseService,
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize import job handler
	importJobHandler := consumer.NewImportJobHandler(log, processingService, deadLetters)
	kafkaConsumer.OnExhausted(importJobHandler.HandleExhausted)

	// Start consuming; the consumer runs its fetch loop in the background
	log.Info("Starting Kafka consumer",
		"topic", cfg.Kafka.ImportTopic,
		"group", cfg.Kafka.ConsumerGroup,
		"workers", processingService.Capacity(),
	)
	if err := kafkaConsumer.Subscribe(appCtx, importJobHandler.HandleMessage); err != nil {
		log.Error("Failed to start Kafka consumer", "error", err)
		os.Exit(1)
	}

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info("Shutdown signal received")

	// Cancel the application context; in-flight handlers observe it and return
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	consumerClosed := make(chan error, 1)
	go func() {
		consumerClosed <- kafkaConsumer.Close()
	}()

	select {
	case err = <-consumerClosed:
		if err != nil {
			log.Error("Error closing Kafka consumer", "error", err)
		}
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	log.Info("Shutting down worker pool", "running_workers", processingService.Running())
	processingService.Shutdown()

	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if err != nil {
		log.Error("Import Worker shutdown completed with errors")
	} else {
		log.Info("Import Worker shutdown completed successfully")
	}
}
