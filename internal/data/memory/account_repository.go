// Package memory provides in-process implementations of the domain repositories.
// They back the ledgerctl simulator and the service tests; state lives for the lifetime of the
// value and every operation is safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/household-ledger/internal/domain/account"
)

// AccountRepository implements account.Repository over a map
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*account.Account
}

// NewAccountRepository creates an empty repository
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[uuid.UUID]*account.Account)}
}

// Create stores a copy of acc. Its ID must be unique.
func (r *AccountRepository) Create(_ context.Context, acc *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[acc.ID]; exists {
		return fmt.Errorf("failed to create account: id %s already exists", acc.ID)
	}
	r.accounts[acc.ID] = cloneAccount(acc)
	return nil
}

// GetByID returns the account when it belongs to userID
func (r *AccountRepository) GetByID(_ context.Context, userID string, id uuid.UUID) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[id]
	if !ok || acc.UserID != userID {
		return nil, account.ErrAccountNotFound{AccountID: id}
	}
	return cloneAccount(acc), nil
}

// FindByIDs returns the accounts among ids owned by userID
func (r *AccountRepository) FindByIDs(_ context.Context, userID string, ids []uuid.UUID) ([]*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []*account.Account
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if acc, ok := r.accounts[id]; ok && acc.UserID == userID {
			found = append(found, cloneAccount(acc))
		}
	}
	return found, nil
}

// ListByUser returns every account of userID ordered by name
func (r *AccountRepository) ListByUser(_ context.Context, userID string) ([]*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var accounts []*account.Account
	for _, acc := range r.accounts {
		if acc.UserID == userID {
			accounts = append(accounts, cloneAccount(acc))
		}
	}
	slices.SortFunc(accounts, func(a, b *account.Account) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return accounts, nil
}

// IncrementOpeningBalance adds delta under the write lock
func (r *AccountRepository) IncrementOpeningBalance(_ context.Context, id uuid.UUID, userID string, delta decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok || acc.UserID != userID {
		return account.ErrAccountNotFound{AccountID: id}
	}
	acc.OpeningBalance = acc.OpeningBalance.Add(delta)
	acc.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneAccount(acc *account.Account) *account.Account {
	c := *acc
	return &c
}
