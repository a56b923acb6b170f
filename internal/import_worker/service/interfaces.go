package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/household-ledger/internal/domain/importjob"
	"github.com/household-ledger/internal/importer"
)

// ProcessingService runs queued import jobs
type ProcessingService interface {
	ProcessImport(ctx context.Context, request *importjob.Request) error
	// AbandonImport records a job that kept failing as failed with reason
	AbandonImport(ctx context.Context, request *importjob.Request, reason string) error
}

// Importer performs a single CSV import
type Importer interface {
	Import(ctx context.Context, userID string, csv []byte, targetAccountID *uuid.UUID) (*importer.Result, error)
}
