package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/household-ledger/internal/domain/importjob"
	"github.com/household-ledger/internal/importer"
)

// ProcessingServiceImpl runs an import job and records its terminal state
type ProcessingServiceImpl struct {
	importer Importer
	jobs     importjob.Repository
	timeout  time.Duration
	logger   *slog.Logger
}

func NewProcessingService(
	imp Importer,
	jobs importjob.Repository,
	timeout time.Duration,
	logger *slog.Logger,
) *ProcessingServiceImpl {
	return &ProcessingServiceImpl{
		importer: imp,
		jobs:     jobs,
		timeout:  timeout,
		logger:   logger,
	}
}

// ProcessImport imports the job's file once. Rejected files are recorded as failed jobs and
// acknowledged; store errors are returned so the message is not committed.
func (s *ProcessingServiceImpl) ProcessImport(ctx context.Context, request *importjob.Request) error {
	logger := s.logger.With("job_id", request.JobID.String(), "user_id", request.UserID)
	if request.CorrelationID != "" {
		logger = logger.With("correlation_id", request.CorrelationID)
	}

	// Redelivered messages for finished jobs are acknowledged without importing again
	job, err := s.jobs.GetByID(ctx, request.UserID, request.JobID)
	switch {
	case errors.Is(err, importjob.ErrJobNotFound{}):
		logger.Warn("Import job record missing, creating it")
		if err := s.jobs.Create(ctx, importjob.NewJob(request)); err != nil {
			return err
		}
	case err != nil:
		return err
	case job.Status != importjob.StatusPending:
		logger.Info("Import job already finished, skipping", "status", string(job.Status))
		return nil
	}

	importCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		importCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger.Info("Processing import job", "bytes", len(request.CSV))
	result, err := s.importer.Import(importCtx, request.UserID, request.CSV, request.AccountID)
	if err != nil {
		if importer.IsRejection(err) {
			logger.Info("Import job rejected", "reason", err.Error())
			if failErr := s.jobs.Fail(ctx, request.JobID, err.Error()); failErr != nil {
				logger.Error("Failed to record rejected import job", "error", failErr)
				return failErr
			}
			return nil
		}
		logger.Error("Import job failed", "error", err)
		return fmt.Errorf("import job %s failed: %w", request.JobID, err)
	}

	if err := s.jobs.Complete(ctx, request.JobID, OutcomeOf(result)); err != nil {
		logger.Error("Failed to record completed import job", "error", err)
		return err
	}

	logger.Info("Import job completed", "imported", result.Imported, "duplicates_skipped", result.DuplicatesSkipped)
	return nil
}

// AbandonImport marks a job failed after its message exhausted its attempts. A job that is
// missing or already finished is left as it is.
func (s *ProcessingServiceImpl) AbandonImport(ctx context.Context, request *importjob.Request, reason string) error {
	logger := s.logger.With("job_id", request.JobID.String(), "user_id", request.UserID)

	job, err := s.jobs.GetByID(ctx, request.UserID, request.JobID)
	switch {
	case errors.Is(err, importjob.ErrJobNotFound{}):
		logger.Warn("Abandoned import job has no record")
		return nil
	case err != nil:
		return err
	case job.Status != importjob.StatusPending:
		return nil
	}

	if err := s.jobs.Fail(ctx, request.JobID, reason); err != nil {
		logger.Error("Failed to record abandoned import job", "error", err)
		return err
	}
	logger.Warn("Import job abandoned", "reason", reason)
	return nil
}

// OutcomeOf converts an import result into the summary stored on its job
func OutcomeOf(result *importer.Result) importjob.Outcome {
	return importjob.Outcome{
		BatchID:           result.BatchID,
		Attempted:         result.Attempted,
		Imported:          result.Imported,
		DuplicatesSkipped: result.DuplicatesSkipped,
		Failed:            result.Failed,
		AccountAdjusted:   result.AccountAdjusted,
		BalanceDelta:      result.BalanceDelta,
	}
}
