package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/household-ledger/internal/domain/ledger"
)

// Common errors
var (
	ErrEmptyPatch     = errors.New("at least one of date, amount, description or category must be set")
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// TransactionPatch lists the editable fields of a transaction; nil fields are left unchanged
type TransactionPatch struct {
	Date        *time.Time
	Amount      *decimal.Decimal
	Description *string
	Category    *string
}

func (p TransactionPatch) empty() bool {
	return p.Date == nil && p.Amount == nil && p.Description == nil && p.Category == nil
}

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(logger *slog.Logger, ledgerRepo ledger.Repository) TransactionService {
	return &TransactionServiceImpl{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// GetTransaction retrieves a transaction of userID by its ID
func (s *TransactionServiceImpl) GetTransaction(ctx context.Context, userID string, id uuid.UUID) (*ledger.Transaction, error) {
	return s.ledgerRepo.GetByID(ctx, userID, id)
}

// UpdateTransaction edits a stored transaction. The key is recomputed so that an edited row
// keeps deduplicating correctly against future imports.
func (s *TransactionServiceImpl) UpdateTransaction(ctx context.Context, userID string, id uuid.UUID, patch TransactionPatch) (*ledger.Transaction, error) {
	if patch.empty() {
		return nil, ErrEmptyPatch
	}
	if patch.Amount != nil && patch.Amount.IsNegative() {
		return nil, ErrNegativeAmount
	}

	txn, err := s.ledgerRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Date != nil {
		txn.Date = ledger.TruncateDate(*patch.Date)
	}
	if patch.Amount != nil {
		txn.Amount = *patch.Amount
	}
	if patch.Description != nil {
		txn.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		txn.Category = strings.TrimSpace(*patch.Category)
	}

	previousKey := txn.TransactionKey
	txn.RefreshKey()

	if err := s.ledgerRepo.Update(ctx, txn); err != nil {
		if errors.Is(err, ledger.ErrDuplicateKey{}) {
			s.logger.Warn("Transaction edit collides with an existing transaction",
				"transaction_id", id.String(),
				"user_id", userID,
			)
		}
		return nil, err
	}

	s.logger.Info("Transaction updated",
		"transaction_id", id.String(),
		"user_id", userID,
		"key_changed", previousKey != txn.TransactionKey,
	)
	return txn, nil
}

// DeleteTransaction removes a transaction of userID
func (s *TransactionServiceImpl) DeleteTransaction(ctx context.Context, userID string, id uuid.UUID) error {
	if err := s.ledgerRepo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info("Transaction deleted", "transaction_id", id.String(), "user_id", userID)
	return nil
}
