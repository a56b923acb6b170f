package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines account persistence operations
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*Account, error)

	// FindByIDs returns the subset of ids that exist and belong to userID
	FindByIDs(ctx context.Context, userID string, ids []uuid.UUID) ([]*Account, error)
	ListByUser(ctx context.Context, userID string) ([]*Account, error)

	// IncrementOpeningBalance atomically adds delta to the account's opening balance
	IncrementOpeningBalance(ctx context.Context, id uuid.UUID, userID string, delta decimal.Decimal) error
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	AccountID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.AccountID.String()
}

// Is implements the errors.Is interface for ErrAccountNotFound
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil {
		return true
	}
	return e.AccountID == t.AccountID
}
