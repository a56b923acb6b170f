package consumers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/household-ledger/internal/config"
)

// MessageHandler processes one message. A returned error leaves the message uncommitted and
// the consumer hands it to the handler again.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// ExhaustedHandler settles a message the handler failed maxAttempts times in a row, e.g. by
// parking it in a DLQ. The message is committed only when it returns nil.
type ExhaustedHandler func(ctx context.Context, key []byte, value []byte, cause error) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
	Close() error
}

// MessageReader wraps kafka.Reader methods for testing
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ MessageReader = (*kafka.Reader)(nil)

// fetchRetryDelay is the pause after a failed fetch
var fetchRetryDelay = time.Second

const (
	defaultMaxAttempts  = 5
	defaultRetryBackoff = 500 * time.Millisecond
	maxRetryBackoff     = 30 * time.Second
)

// KafkaConsumer implements Consumer using Kafka
type KafkaConsumer struct {
	reader       MessageReader
	logger       *slog.Logger
	topic        string
	groupID      string
	maxAttempts  int
	retryBackoff time.Duration
	exhausted    ExhaustedHandler
	wg           sync.WaitGroup
}

// NewKafkaConsumer creates a group reader for the import topic
func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	startOffset := cfg.StartOffset
	if startOffset == 0 {
		startOffset = kafka.FirstOffset
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}

	return &KafkaConsumer{
		logger:       logger,
		topic:        cfg.ImportTopic,
		groupID:      cfg.ConsumerGroup,
		maxAttempts:  maxAttempts,
		retryBackoff: retryBackoff,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       cfg.ImportTopic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: startOffset,
		}),
	}
}

// OnExhausted registers the handler for messages that keep failing. Without one a failing
// message is retried until it succeeds or the consumer stops.
func (c *KafkaConsumer) OnExhausted(handler ExhaustedHandler) {
	c.exhausted = handler
}

// Subscribe starts a goroutine that fetches messages, hands them to handler and commits the
// ones it accepted. A message is never committed past: a failing one is retried with backoff,
// so a group reader never acknowledges it implicitly. It stops when ctx is done.
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Subscribed to Kafka topic", "topic", c.topic, "group_id", c.groupID)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					c.logger.Info("Context canceled, stopping consumer", "topic", c.topic, "group_id", c.groupID)
					return
				}
				c.logger.Error("Failed to fetch message from Kafka", "topic", c.topic, "group_id", c.groupID, "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(fetchRetryDelay):
				}
				continue
			}

			c.logger.Debug("Received message from Kafka",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
			)

			if !c.settle(ctx, handler, msg) {
				c.logger.Info("Context canceled with message unsettled, stopping consumer",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
				)
				return
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("Failed to commit message after successful processing",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
			}
		}
	}()

	return nil
}

// settle runs handler until it accepts msg, or until the exhausted handler takes it after
// maxAttempts failures. It returns false when ctx ends first.
func (c *KafkaConsumer) settle(ctx context.Context, handler MessageHandler, msg kafka.Message) bool {
	delay := c.retryBackoff
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg.Key, msg.Value)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		c.logger.Error("Failed to process message, will retry",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"attempt", attempt,
			"error", err,
		)

		if attempt >= c.maxAttempts && c.exhausted != nil {
			exhaustedErr := c.exhausted(ctx, msg.Key, msg.Value, err)
			if exhaustedErr == nil {
				c.logger.Warn("Gave up on message",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"attempts", attempt,
				)
				return true
			}
			c.logger.Error("Failed to settle exhausted message", "offset", msg.Offset, "error", exhaustedErr)
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryBackoff)
	}
}

// Close waits for the fetch loop to exit and closes the reader
func (c *KafkaConsumer) Close() error {
	if c.reader == nil {
		return nil
	}
	err := c.reader.Close()
	c.wg.Wait()
	return err
}
