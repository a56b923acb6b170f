package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of a transaction date
const DateLayout = "2006-01-02"

// TransactionType defines the kind of money movement a transaction records
type TransactionType string

const (
	TypeIncome     TransactionType = "income"
	TypePayment    TransactionType = "payment"
	TypeExpense    TransactionType = "expense"
	TypeTransfer   TransactionType = "transfer"
	TypeAdjustment TransactionType = "adjustment"
)

var typeAliases = map[string]TransactionType{
	"deposit":        TypeIncome,
	"income_deposit": TypeIncome,
	"incomedeposit":  TypeIncome,
}

// ParseType normalizes a free-form type value. Blank values default to expense and
// unrecognised values are kept verbatim (lower-cased).
func ParseType(s string) TransactionType {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return TypeExpense
	}
	if alias, ok := typeAliases[v]; ok {
		return alias
	}
	return TransactionType(v)
}

// Common metadata keys
const (
	MetaRunningBalance = "runningBalance"
	MetaExpenseID      = "expenseId"
	MetaRefundFor      = "refundFor"
	MetaImportBatchID  = "importBatchId"
	MetaRaw            = "raw"
)

// Transaction is a single immutable entry of the ledger.
// Amount is always a non-negative magnitude; direction comes from Type and from which side
// (From or To) references the account being evaluated.
type Transaction struct {
	ID             uuid.UUID       `json:"id"`
	UserID         string          `json:"user_id"`
	Type           TransactionType `json:"type"`
	FromAccountID  *uuid.UUID      `json:"from_account_id,omitempty"`
	ToAccountID    *uuid.UUID      `json:"to_account_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"category,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	TransactionKey string          `json:"transaction_key"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RefreshKey recomputes the transaction key; call after editing date, amount or description
func (t *Transaction) RefreshKey() {
	t.TransactionKey = TransactionKey(t.UserID, FormatDate(t.Date), t.Amount, t.Description)
}

// Touches reports whether the transaction references the account on either side
func (t *Transaction) Touches(accountID uuid.UUID) bool {
	return (t.FromAccountID != nil && *t.FromAccountID == accountID) ||
		(t.ToAccountID != nil && *t.ToAccountID == accountID)
}

// IsFrom reports whether money leaves accountID in this transaction
func (t *Transaction) IsFrom(accountID uuid.UUID) bool {
	return t.FromAccountID != nil && *t.FromAccountID == accountID
}

// IsTo reports whether money arrives at accountID in this transaction
func (t *Transaction) IsTo(accountID uuid.UUID) bool {
	return t.ToAccountID != nil && *t.ToAccountID == accountID
}

// ParseDate parses an ISO calendar date into UTC midnight
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// FormatDate renders a date in the wire format
func FormatDate(d time.Time) string {
	return d.UTC().Format(DateLayout)
}

// TruncateDate drops the time of day, keeping the calendar date in UTC
func TruncateDate(d time.Time) time.Time {
	y, m, day := d.UTC().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
