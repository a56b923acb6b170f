package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/household-ledger/internal/domain/importjob"
)

// ImportJobCollectionName is the name of the import job collection in MongoDB
const ImportJobCollectionName = "import_jobs"

type outcomeDocument struct {
	BatchID           string                `bson:"batch_id"`
	Attempted         int                   `bson:"attempted"`
	Imported          int                   `bson:"imported"`
	DuplicatesSkipped int                   `bson:"duplicates_skipped"`
	Failed            int                   `bson:"failed"`
	AccountAdjusted   bool                  `bson:"account_adjusted"`
	BalanceDelta      *primitive.Decimal128 `bson:"balance_delta,omitempty"`
}

type importJobDocument struct {
	ID            string           `bson:"_id"`
	UserID        string           `bson:"user_id"`
	AccountID     *string          `bson:"account_id,omitempty"`
	Status        string           `bson:"status"`
	Outcome       *outcomeDocument `bson:"outcome,omitempty"`
	Error         string           `bson:"error,omitempty"`
	CorrelationID string           `bson:"correlation_id,omitempty"`
	SubmittedAt   time.Time        `bson:"submitted_at"`
	FinishedAt    *time.Time       `bson:"finished_at,omitempty"`
}

// ImportJobRepository implements the importjob.Repository interface for MongoDB
type ImportJobRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
	now        func() time.Time
}

// NewImportJobRepository creates a new MongoDB import job repository
func NewImportJobRepository(logger *slog.Logger, db *mongo.Database) *ImportJobRepository {
	return &ImportJobRepository{
		collection: db.Collection(ImportJobCollectionName),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new job record
func (r *ImportJobRepository) Create(ctx context.Context, job *importjob.Job) error {
	if _, err := r.collection.InsertOne(ctx, jobToDocument(job)); err != nil {
		r.logger.Error("Failed to create import job", "job_id", job.ID.String(), "error", err)
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

// GetByID retrieves a job of userID
func (r *ImportJobRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*importjob.Job, error) {
	var doc importJobDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String(), "user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, importjob.ErrJobNotFound{JobID: id}
		}
		r.logger.Error("Failed to get import job", "job_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}

	return jobFromDocument(&doc)
}

// Complete records the outcome of a finished import
func (r *ImportJobRepository) Complete(ctx context.Context, id uuid.UUID, outcome importjob.Outcome) error {
	return r.finish(ctx, id, bson.M{
		"status":  string(importjob.StatusCompleted),
		"outcome": outcomeToDocument(&outcome),
	})
}

// Fail records why an import did not run to completion
func (r *ImportJobRepository) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	return r.finish(ctx, id, bson.M{
		"status": string(importjob.StatusFailed),
		"error":  reason,
	})
}

func (r *ImportJobRepository) finish(ctx context.Context, id uuid.UUID, set bson.M) error {
	set["finished_at"] = r.now()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set})
	if err != nil {
		r.logger.Error("Failed to update import job", "job_id", id.String(), "status", set["status"], "error", err)
		return fmt.Errorf("failed to update import job: %w", err)
	}

	if result.MatchedCount == 0 {
		return importjob.ErrJobNotFound{JobID: id}
	}
	return nil
}

func jobToDocument(job *importjob.Job) *importJobDocument {
	return &importJobDocument{
		ID:            job.ID.String(),
		UserID:        job.UserID,
		AccountID:     uuidString(job.AccountID),
		Status:        string(job.Status),
		Outcome:       outcomeToDocument(job.Outcome),
		Error:         job.Error,
		CorrelationID: job.CorrelationID,
		SubmittedAt:   job.SubmittedAt.UTC(),
		FinishedAt:    job.FinishedAt,
	}
}

func jobFromDocument(doc *importJobDocument) (*importjob.Job, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid import job id %q: %w", doc.ID, err)
	}
	accountID, err := parseUUIDPtr(doc.AccountID)
	if err != nil {
		return nil, err
	}

	job := &importjob.Job{
		ID:            id,
		UserID:        doc.UserID,
		AccountID:     accountID,
		Status:        importjob.Status(doc.Status),
		Error:         doc.Error,
		CorrelationID: doc.CorrelationID,
		SubmittedAt:   doc.SubmittedAt.UTC(),
		FinishedAt:    doc.FinishedAt,
	}
	if doc.Outcome != nil {
		if job.Outcome, err = outcomeFromDocument(doc.Outcome); err != nil {
			return nil, err
		}
	}
	return job, nil
}

func outcomeToDocument(o *importjob.Outcome) *outcomeDocument {
	if o == nil {
		return nil
	}
	doc := &outcomeDocument{
		BatchID:           o.BatchID.String(),
		Attempted:         o.Attempted,
		Imported:          o.Imported,
		DuplicatesSkipped: o.DuplicatesSkipped,
		Failed:            o.Failed,
		AccountAdjusted:   o.AccountAdjusted,
	}
	if o.BalanceDelta != nil {
		if d, err := toDecimal128(*o.BalanceDelta); err == nil {
			doc.BalanceDelta = &d
		}
	}
	return doc
}

func outcomeFromDocument(doc *outcomeDocument) (*importjob.Outcome, error) {
	batchID, err := uuid.Parse(doc.BatchID)
	if err != nil {
		return nil, fmt.Errorf("invalid batch id %q: %w", doc.BatchID, err)
	}

	o := &importjob.Outcome{
		BatchID:           batchID,
		Attempted:         doc.Attempted,
		Imported:          doc.Imported,
		DuplicatesSkipped: doc.DuplicatesSkipped,
		Failed:            doc.Failed,
		AccountAdjusted:   doc.AccountAdjusted,
	}
	if doc.BalanceDelta != nil {
		delta, err := decimal.NewFromString(doc.BalanceDelta.String())
		if err != nil {
			return nil, fmt.Errorf("invalid balance delta %q: %w", doc.BalanceDelta.String(), err)
		}
		o.BalanceDelta = &delta
	}
	return o, nil
}
