package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/household-ledger/internal/domain/importjob"
	"github.com/household-ledger/internal/importer"
	"github.com/household-ledger/internal/platform/messaging/producers"
)

// ErrAsyncImportsDisabled is returned by SubmitImport when no job queue is configured
var ErrAsyncImportsDisabled = errors.New("asynchronous imports are not enabled")

// ImportServiceImpl implements the ImportService interface
type ImportServiceImpl struct {
	importer  Importer
	jobs      importjob.Repository
	publisher producers.MessagePublisher
	logger    *slog.Logger
}

// NewImportService creates a new import service. jobs and publisher may both be nil, in which
// case only inline imports are available.
func NewImportService(logger *slog.Logger, imp Importer, jobs importjob.Repository, publisher producers.MessagePublisher) ImportService {
	return &ImportServiceImpl{
		importer:  imp,
		jobs:      jobs,
		publisher: publisher,
		logger:    logger,
	}
}

// Import runs the import inline
func (s *ImportServiceImpl) Import(ctx context.Context, userID string, csv []byte, targetAccountID *uuid.UUID) (*importer.Result, error) {
	return s.importer.Import(ctx, userID, csv, targetAccountID)
}

// SubmitImport stores a pending job and publishes it keyed by user, so that the imports of one
// user are processed in submission order.
func (s *ImportServiceImpl) SubmitImport(ctx context.Context, userID string, csv []byte, targetAccountID *uuid.UUID, correlationID string) (*importjob.Job, error) {
	if s.jobs == nil || s.publisher == nil {
		return nil, ErrAsyncImportsDisabled
	}

	req, err := importjob.NewRequest(userID, targetAccountID, csv, correlationID)
	if err != nil {
		return nil, err
	}

	job := importjob.NewJob(req)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, userID, req); err != nil {
		s.logger.Error("Failed to publish import job",
			"job_id", job.ID.String(),
			"user_id", userID,
			"error", err,
		)
		if failErr := s.jobs.Fail(ctx, job.ID, "failed to enqueue import job"); failErr != nil {
			s.logger.Error("Failed to mark unpublished import job as failed", "job_id", job.ID.String(), "error", failErr)
		}
		return nil, fmt.Errorf("failed to enqueue import job: %w", err)
	}

	s.logger.Info("Import job published",
		"job_id", job.ID.String(),
		"user_id", userID,
		"bytes", len(csv),
	)
	return job, nil
}

// GetImportJob returns the status of a job submitted by userID
func (s *ImportServiceImpl) GetImportJob(ctx context.Context, userID string, id uuid.UUID) (*importjob.Job, error) {
	if s.jobs == nil {
		return nil, importjob.ErrJobNotFound{JobID: id}
	}
	return s.jobs.GetByID(ctx, userID, id)
}
