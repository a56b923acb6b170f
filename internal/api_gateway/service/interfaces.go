package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/household-ledger/internal/balance"
	"github.com/household-ledger/internal/domain/account"
	"github.com/household-ledger/internal/domain/importjob"
	"github.com/household-ledger/internal/domain/ledger"
	"github.com/household-ledger/internal/importer"
)

// AccountService defines the interface for account operations
type AccountService interface {
	// CreateAccount validates params and stores a new account owned by userID
	CreateAccount(ctx context.Context, userID string, params AccountParams) (*account.Account, error)

	// GetAccountByID retrieves an account of userID.
	// Returns ErrAccountNotFound if it doesn't exist or belongs to someone else
	GetAccountByID(ctx context.Context, userID string, id uuid.UUID) (*account.Account, error)

	ListAccounts(ctx context.Context, userID string) ([]*account.Account, error)
}

// BalanceService answers derived balance queries. balance.Service implements it.
type BalanceService interface {
	GetBalance(ctx context.Context, userID string, accountID uuid.UUID, asOf *time.Time) (decimal.Decimal, error)
	GetBalances(ctx context.Context, userID string, accountIDs []uuid.UUID, asOf *time.Time) (map[uuid.UUID]decimal.Decimal, error)
	History(ctx context.Context, userID string, accountID uuid.UUID, asOf *time.Time) (*account.Account, []balance.Point, error)
}

// TransactionService defines the interface for editing stored ledger transactions
type TransactionService interface {
	GetTransaction(ctx context.Context, userID string, id uuid.UUID) (*ledger.Transaction, error)

	// UpdateTransaction applies patch and recomputes the transaction key.
	// Returns ErrDuplicateKey when the new key collides with another transaction
	UpdateTransaction(ctx context.Context, userID string, id uuid.UUID, patch TransactionPatch) (*ledger.Transaction, error)

	DeleteTransaction(ctx context.Context, userID string, id uuid.UUID) error
}

// ImportService defines the interface for CSV imports
type ImportService interface {
	// Import runs the import inline and returns its summary
	Import(ctx context.Context, userID string, csv []byte, targetAccountID *uuid.UUID) (*importer.Result, error)

	// SubmitImport records a pending job and queues it for the import worker
	SubmitImport(ctx context.Context, userID string, csv []byte, targetAccountID *uuid.UUID, correlationID string) (*importjob.Job, error)

	GetImportJob(ctx context.Context, userID string, id uuid.UUID) (*importjob.Job, error)
}

// Importer runs a CSV import. importer.Service implements it.
type Importer interface {
	Import(ctx context.Context, userID string, csv []byte, targetAccountID *uuid.UUID) (*importer.Result, error)
}

var (
	_ BalanceService = (*balance.Service)(nil)
	_ Importer       = (*importer.Service)(nil)
)
