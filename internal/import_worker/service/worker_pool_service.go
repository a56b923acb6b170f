package service

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/household-ledger/internal/domain/importjob"
)

// WorkerPoolProcessingService bounds how many imports run at once
type WorkerPoolProcessingService struct {
	baseService ProcessingService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolProcessingService(
	baseService ProcessingService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProcessingService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProcessingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// ProcessImport runs the job on a pool worker and waits for its result
func (s *WorkerPoolProcessingService) ProcessImport(ctx context.Context, request *importjob.Request) error {
	logger := s.logger.With("job_id", request.JobID.String())
	if request.CorrelationID != "" {
		logger = logger.With("correlation_id", request.CorrelationID)
	}

	resultChan := make(chan error, 1)
	requestCopy := *request

	err := s.pool.Submit(func() {
		resultChan <- s.baseService.ProcessImport(ctx, &requestCopy)
	})
	if err != nil {
		logger.Error("Failed to submit import job to worker pool", "error", err)
		return err
	}

	logger.Debug("Submitted import job to worker pool", "running_workers", s.pool.Running())

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AbandonImport records the failure directly; it does not need a pool worker
func (s *WorkerPoolProcessingService) AbandonImport(ctx context.Context, request *importjob.Request, reason string) error {
	return s.baseService.AbandonImport(ctx, request, reason)
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolProcessingService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolProcessingService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolProcessingService) Capacity() int {
	return s.pool.Cap()
}
