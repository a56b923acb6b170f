package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/household-ledger/internal/domain/ledger"
)

// LedgerRepository implements ledger.Repository and enforces the per-user transaction key
// uniqueness that the document store enforces with an index.
type LedgerRepository struct {
	mu   sync.RWMutex
	txns map[uuid.UUID]*ledger.Transaction
	keys map[string]uuid.UUID // userID + key -> transaction id
	seq  []uuid.UUID          // insertion order
}

// NewLedgerRepository creates an empty ledger
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{
		txns: make(map[uuid.UUID]*ledger.Transaction),
		keys: make(map[string]uuid.UUID),
	}
}

func uniqueKey(userID, transactionKey string) string {
	return userID + "\x00" + transactionKey
}

// Find returns matching transactions ordered by date, then creation time, then insertion
func (r *LedgerRepository) Find(_ context.Context, userID string, filter ledger.Filter) ([]*ledger.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*ledger.Transaction
	for _, id := range r.seq {
		txn := r.txns[id]
		if txn.UserID == userID && filter.Matches(txn) {
			out = append(out, cloneTransaction(txn))
		}
	}
	slices.SortStableFunc(out, func(a, b *ledger.Transaction) int {
		if c := ledger.TruncateDate(a.Date).Compare(ledger.TruncateDate(b.Date)); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// InsertMany stores every transaction whose key is still free; collisions are counted as failures
func (r *LedgerRepository) InsertMany(_ context.Context, txns []*ledger.Transaction) (*ledger.InsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := &ledger.InsertResult{}
	for _, txn := range txns {
		uk := uniqueKey(txn.UserID, txn.TransactionKey)
		if _, taken := r.keys[uk]; taken {
			result.FailedCount++
			continue
		}
		if _, taken := r.txns[txn.ID]; taken {
			result.FailedCount++
			continue
		}
		r.txns[txn.ID] = cloneTransaction(txn)
		r.keys[uk] = txn.ID
		r.seq = append(r.seq, txn.ID)
		result.InsertedCount++
		result.InsertedIDs = append(result.InsertedIDs, txn.ID)
	}
	return result, nil
}

// GetByID returns the transaction when it belongs to userID
func (r *LedgerRepository) GetByID(_ context.Context, userID string, id uuid.UUID) (*ledger.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	txn, ok := r.txns[id]
	if !ok || txn.UserID != userID {
		return nil, ledger.ErrTransactionNotFound{TransactionID: id}
	}
	return cloneTransaction(txn), nil
}

// Update replaces a stored transaction, moving its key reservation when the key changed
func (r *LedgerRepository) Update(_ context.Context, txn *ledger.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.txns[txn.ID]
	if !ok || current.UserID != txn.UserID {
		return ledger.ErrTransactionNotFound{TransactionID: txn.ID}
	}

	newKey := uniqueKey(txn.UserID, txn.TransactionKey)
	if owner, taken := r.keys[newKey]; taken && owner != txn.ID {
		return ledger.ErrDuplicateKey{TransactionKey: txn.TransactionKey}
	}

	delete(r.keys, uniqueKey(current.UserID, current.TransactionKey))
	r.keys[newKey] = txn.ID
	r.txns[txn.ID] = cloneTransaction(txn)
	return nil
}

// Delete removes a transaction and releases its key
func (r *LedgerRepository) Delete(_ context.Context, userID string, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	txn, ok := r.txns[id]
	if !ok || txn.UserID != userID {
		return ledger.ErrTransactionNotFound{TransactionID: id}
	}
	delete(r.txns, id)
	delete(r.keys, uniqueKey(txn.UserID, txn.TransactionKey))
	r.seq = slices.DeleteFunc(r.seq, func(v uuid.UUID) bool { return v == id })
	return nil
}

// Len returns the number of stored transactions
func (r *LedgerRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.txns)
}

func cloneTransaction(txn *ledger.Transaction) *ledger.Transaction {
	c := *txn
	if txn.FromAccountID != nil {
		id := *txn.FromAccountID
		c.FromAccountID = &id
	}
	if txn.ToAccountID != nil {
		id := *txn.ToAccountID
		c.ToAccountID = &id
	}
	if txn.Metadata != nil {
		c.Metadata = maps.Clone(txn.Metadata)
	}
	return &c
}
