package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/household-ledger/internal/domain/importjob"
	"github.com/household-ledger/internal/import_worker/service"
	"github.com/household-ledger/internal/platform/messaging/producers"
)

// ImportJobHandler decodes import job messages and hands them to the processing service
type ImportJobHandler struct {
	processingService service.ProcessingService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewImportJobHandler creates a new handler. producer may be nil when the DLQ is disabled.
func NewImportJobHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	producer producers.DeadLetterPublisher,
) *ImportJobHandler {
	return &ImportJobHandler{
		processingService: processingService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes one Kafka message. Messages that can never be processed go to the DLQ
// and are acknowledged.
func (h *ImportJobHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request importjob.Request
	if err := json.Unmarshal(value, &request); err != nil {
		return h.reject(ctx, key, value, fmt.Errorf("failed to unmarshal import job: %w", err))
	}
	if err := validateRequest(&request); err != nil {
		return h.reject(ctx, key, value, err)
	}

	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}
	logger.Info("Received import job", "job_id", request.JobID.String(), "user_id", request.UserID)

	if err := h.processingService.ProcessImport(ctx, &request); err != nil {
		return fmt.Errorf("processing import job %s failed: %w", request.JobID, err)
	}
	return nil
}

// HandleExhausted settles a message whose processing failed on every attempt. The job is marked
// failed so its status resolves, and the message is copied to the DLQ when one is configured.
// An error keeps the message uncommitted.
func (h *ImportJobHandler) HandleExhausted(ctx context.Context, key []byte, value []byte, cause error) error {
	var request importjob.Request
	if err := json.Unmarshal(value, &request); err != nil || validateRequest(&request) != nil {
		h.logger.Error("Dropping unprocessable import job message", "message_key", string(key), "error", cause)
		h.publishToDLQ(ctx, key, value, cause)
		return nil
	}

	reason := "import abandoned after repeated failures: " + cause.Error()
	if err := h.processingService.AbandonImport(ctx, &request, reason); err != nil {
		return fmt.Errorf("failed to abandon import job %s: %w", request.JobID, err)
	}
	h.publishToDLQ(ctx, key, value, cause)
	return nil
}

func (h *ImportJobHandler) publishToDLQ(ctx context.Context, key, value []byte, cause error) {
	if h.producer == nil {
		return
	}
	if err := h.producer.PublishToDLQ(ctx, string(key), value, cause.Error()); err != nil {
		h.logger.Error("Failed to publish message to DLQ", "dlq_error", err, "message_key", string(key))
	}
}

func (h *ImportJobHandler) reject(ctx context.Context, key, value []byte, cause error) error {
	h.logger.Error("Unprocessable import job message", "message_key", string(key), "error", cause)

	if h.producer == nil {
		return cause
	}
	if err := h.producer.PublishToDLQ(ctx, string(key), value, cause.Error()); err != nil {
		h.logger.Error("Failed to publish message to DLQ", "dlq_error", err, "message_key", string(key))
		return cause
	}
	return nil
}

func validateRequest(r *importjob.Request) error {
	switch {
	case r.JobID == uuid.Nil:
		return errors.New("import job has no job_id")
	case r.UserID == "":
		return importjob.ErrEmptyUserID
	case len(r.CSV) == 0:
		return importjob.ErrEmptyCSV
	}
	return nil
}
