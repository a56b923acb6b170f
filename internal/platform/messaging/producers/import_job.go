package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/household-ledger/internal/config"
)

// ImportJobProducer publishes asynchronous import requests. Writes are synchronous so a caller
// only acknowledges a job once the broker has it.
type ImportJobProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewImportJobProducer ensures the import topic exists and creates a writer for it
func NewImportJobProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*ImportJobProducer, error) {
	if cfg.ImportTopic == "" {
		return nil, fmt.Errorf("kafka import topic is not configured")
	}

	if err := dialAndEnsureTopic(cfg.Brokers, cfg.ImportTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure import topic %s exists: %w", cfg.ImportTopic, err)
	}

	writer := &kafka.Writer{
		Addr:  kafka.TCP(cfg.Brokers),
		Topic: cfg.ImportTopic,
		// Jobs are keyed by user, so one user's imports stay ordered on one partition
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.MaxWait,
	}

	return &ImportJobProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.ImportTopic,
	}, nil
}

// Publish encodes value as JSON and writes it under key
func (p *ImportJobProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal import job: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish import job",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish import job to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published import job", "topic", p.topic, "key", key, "bytes", len(jsonValue))
	return nil
}

func (p *ImportJobProducer) Close() error {
	p.logger.Info("Closing import job producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
