// Package balance derives account balances by replaying ledger transactions against the
// account's opening balance. Nothing here reads or writes storage; every function is a pure
// fold over the snapshot it is given.
package balance

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/household-ledger/internal/domain/account"
	"github.com/household-ledger/internal/domain/ledger"
)

// Rule applies a single transaction to the running balance of accountID
type Rule func(balance decimal.Decimal, accountID uuid.UUID, txn *ledger.Transaction) decimal.Decimal

// RuleFor selects the sign convention of an account class
func RuleFor(class account.Class) Rule {
	if class == account.Liability {
		return liabilityRule
	}
	return assetRule
}

// assetRule: money arriving adds, money leaving subtracts, whatever the transaction type.
func assetRule(balance decimal.Decimal, accountID uuid.UUID, txn *ledger.Transaction) decimal.Decimal {
	if txn.IsTo(accountID) {
		balance = balance.Add(txn.Amount)
	}
	if txn.IsFrom(accountID) {
		balance = balance.Sub(txn.Amount)
	}
	return balance
}

// liabilityRule: only charges out of the account raise the debt and only payments into it
// lower the debt. Transfers, adjustments and income leave a liability untouched.
func liabilityRule(balance decimal.Decimal, accountID uuid.UUID, txn *ledger.Transaction) decimal.Decimal {
	if txn.IsFrom(accountID) && txn.Type == ledger.TypeExpense {
		balance = balance.Add(txn.Amount)
	}
	if txn.IsTo(accountID) && txn.Type == ledger.TypePayment {
		balance = balance.Sub(txn.Amount)
	}
	return balance
}

// Point is the balance of an account immediately after a transaction was applied
type Point struct {
	Transaction *ledger.Transaction `json:"transaction"`
	Balance     decimal.Decimal     `json:"balance"`
}

// Compute returns the balance of acc after replaying txns dated on or before asOf
// (all of them when asOf is nil). txns are expected to reference acc; others have no effect.
func Compute(acc *account.Account, txns []*ledger.Transaction, asOf *time.Time) decimal.Decimal {
	rule := RuleFor(acc.Class())
	bal := acc.OpeningBalance
	for _, txn := range replayOrder(txns, asOf) {
		bal = rule(bal, acc.ID, txn)
	}
	return bal
}

// History is Compute that also reports the running balance after every replayed transaction
func History(acc *account.Account, txns []*ledger.Transaction, asOf *time.Time) []Point {
	rule := RuleFor(acc.Class())
	bal := acc.OpeningBalance
	ordered := replayOrder(txns, asOf)

	points := make([]Point, 0, len(ordered))
	for _, txn := range ordered {
		bal = rule(bal, acc.ID, txn)
		points = append(points, Point{Transaction: txn, Balance: bal})
	}
	return points
}

// ComputeBatch computes the balances of many accounts from one transaction list.
// Transactions are partitioned into per-account buckets in a single pass.
func ComputeBatch(accounts []*account.Account, txns []*ledger.Transaction, asOf *time.Time) map[uuid.UUID]decimal.Decimal {
	buckets := make(map[uuid.UUID][]*ledger.Transaction, len(accounts))
	for _, acc := range accounts {
		buckets[acc.ID] = nil
	}

	for _, txn := range txns {
		if txn.FromAccountID != nil {
			if bucket, ok := buckets[*txn.FromAccountID]; ok {
				buckets[*txn.FromAccountID] = append(bucket, txn)
			}
		}
		if txn.ToAccountID != nil && !txn.IsFrom(*txn.ToAccountID) {
			if bucket, ok := buckets[*txn.ToAccountID]; ok {
				buckets[*txn.ToAccountID] = append(bucket, txn)
			}
		}
	}

	balances := make(map[uuid.UUID]decimal.Decimal, len(accounts))
	for _, acc := range accounts {
		balances[acc.ID] = Compute(acc, buckets[acc.ID], asOf)
	}
	return balances
}

// replayOrder drops transactions dated after asOf and sorts the rest by date, then creation
// time. Ties keep their input order. The input slice is left untouched.
func replayOrder(txns []*ledger.Transaction, asOf *time.Time) []*ledger.Transaction {
	var cutoff time.Time
	if asOf != nil {
		cutoff = ledger.TruncateDate(*asOf)
	}

	ordered := make([]*ledger.Transaction, 0, len(txns))
	for _, txn := range txns {
		if asOf != nil && ledger.TruncateDate(txn.Date).After(cutoff) {
			continue
		}
		ordered = append(ordered, txn)
	}

	slices.SortStableFunc(ordered, func(a, b *ledger.Transaction) int {
		if c := ledger.TruncateDate(a.Date).Compare(ledger.TruncateDate(b.Date)); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return ordered
}
