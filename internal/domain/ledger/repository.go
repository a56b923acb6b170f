package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Filter narrows a ledger query for a single user.
// DateIn and AmountIn are alternatives: a transaction matches when its date is in DateIn OR its
// amount is in AmountIn. Type, AccountIDs and Until further restrict the result.
type Filter struct {
	DateIn     []time.Time
	AmountIn   []decimal.Decimal
	Type       TransactionType
	AccountIDs []uuid.UUID // from or to references any of these
	Until      *time.Time  // date <= Until
}

// Matches reports whether txn satisfies the filter. Stores that cannot push the filter down to
// their query language evaluate it with Matches.
func (f Filter) Matches(txn *Transaction) bool {
	if len(f.DateIn) > 0 || len(f.AmountIn) > 0 {
		if !f.matchesDate(txn) && !f.matchesAmount(txn) {
			return false
		}
	}
	if f.Type != "" && txn.Type != f.Type {
		return false
	}
	if len(f.AccountIDs) > 0 {
		touches := false
		for _, id := range f.AccountIDs {
			if txn.Touches(id) {
				touches = true
				break
			}
		}
		if !touches {
			return false
		}
	}
	if f.Until != nil && TruncateDate(txn.Date).After(TruncateDate(*f.Until)) {
		return false
	}
	return true
}

func (f Filter) matchesDate(txn *Transaction) bool {
	day := TruncateDate(txn.Date)
	for _, d := range f.DateIn {
		if TruncateDate(d).Equal(day) {
			return true
		}
	}
	return false
}

func (f Filter) matchesAmount(txn *Transaction) bool {
	for _, a := range f.AmountIn {
		if a.Equal(txn.Amount) {
			return true
		}
	}
	return false
}

// InsertResult reports what a partial-failure tolerant bulk insert actually persisted
type InsertResult struct {
	InsertedCount int
	InsertedIDs   []uuid.UUID
	FailedCount   int
}

// Repository manages ledger transaction persistence.
// Find returns transactions ordered by date, then creation time.
type Repository interface {
	Find(ctx context.Context, userID string, filter Filter) ([]*Transaction, error)

	// InsertMany inserts every transaction it can, continuing past individual failures such
	// as unique key collisions. An error is returned only when the batch as a whole failed.
	InsertMany(ctx context.Context, txns []*Transaction) (*InsertResult, error)

	GetByID(ctx context.Context, userID string, id uuid.UUID) (*Transaction, error)

	// Update replaces a transaction. Returns ErrDuplicateKey when its key collides with a
	// different transaction of the same user.
	Update(ctx context.Context, txn *Transaction) error
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}

// ErrTransactionNotFound indicates missing ledger transaction
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	// If the target TransactionID is empty, consider it a match for any ErrTransactionNotFound
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}

// ErrDuplicateKey indicates a transaction key uniqueness violation
type ErrDuplicateKey struct {
	TransactionKey string
}

func (e ErrDuplicateKey) Error() string {
	return "duplicate transaction key: " + e.TransactionKey
}

// Is implements the errors.Is interface for ErrDuplicateKey
func (e ErrDuplicateKey) Is(target error) bool {
	t, ok := target.(ErrDuplicateKey)
	if !ok {
		return false
	}
	if t.TransactionKey == "" {
		return true
	}
	return e.TransactionKey == t.TransactionKey
}
