// Package importjob models asynchronous CSV imports: the request published to the job queue
// and the status record clients poll.
package importjob

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrEmptyUserID = errors.New("user ID cannot be empty")
	ErrEmptyCSV    = errors.New("csv content cannot be empty")
)

// Status is the lifecycle state of an import job
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Request is the message carried by the import queue
type Request struct {
	JobID         uuid.UUID  `json:"job_id"`
	UserID        string     `json:"user_id"`
	AccountID     *uuid.UUID `json:"account_id,omitempty"`
	CSV           []byte     `json:"csv"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"`
}

// NewRequest creates a request with a fresh job ID
func NewRequest(userID string, accountID *uuid.UUID, csv []byte, correlationID string) (*Request, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if len(csv) == 0 {
		return nil, ErrEmptyCSV
	}

	return &Request{
		JobID:         uuid.New(),
		UserID:        userID,
		AccountID:     accountID,
		CSV:           csv,
		CorrelationID: correlationID,
		SubmittedAt:   time.Now().UTC(),
	}, nil
}

// Outcome is the summary of a completed import
type Outcome struct {
	BatchID           uuid.UUID        `json:"batch_id"`
	Attempted         int              `json:"attempted"`
	Imported          int              `json:"imported"`
	DuplicatesSkipped int              `json:"duplicates_skipped"`
	Failed            int              `json:"failed,omitempty"`
	AccountAdjusted   bool             `json:"account_adjusted"`
	BalanceDelta      *decimal.Decimal `json:"balance_delta,omitempty"`
}

// Job is the pollable status of an asynchronous import
type Job struct {
	ID            uuid.UUID  `json:"id"`
	UserID        string     `json:"user_id"`
	AccountID     *uuid.UUID `json:"account_id,omitempty"`
	Status        Status     `json:"status"`
	Outcome       *Outcome   `json:"result,omitempty"`
	Error         string     `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// NewJob returns the pending status record of req
func NewJob(req *Request) *Job {
	return &Job{
		ID:            req.JobID,
		UserID:        req.UserID,
		AccountID:     req.AccountID,
		Status:        StatusPending,
		CorrelationID: req.CorrelationID,
		SubmittedAt:   req.SubmittedAt,
	}
}

// Repository manages import job status records
type Repository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*Job, error)

	// Complete and Fail move a job to its terminal state
	Complete(ctx context.Context, id uuid.UUID, outcome Outcome) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error
}

// ErrJobNotFound indicates missing import job
type ErrJobNotFound struct {
	JobID uuid.UUID
}

func (e ErrJobNotFound) Error() string {
	return "import job not found: " + e.JobID.String()
}

// Is implements the errors.Is interface for ErrJobNotFound
func (e ErrJobNotFound) Is(target error) bool {
	t, ok := target.(ErrJobNotFound)
	if !ok {
		return false
	}
	if t.JobID == uuid.Nil {
		return true
	}
	return e.JobID == t.JobID
}
