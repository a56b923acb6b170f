package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionKey(t *testing.T) {
	base := TransactionKey("user-1", "2024-01-15", decimal.RequireFromString("42.5"), "Coffee")

	t.Run("FixedLengthHex", func(t *testing.T) {
		assert.Len(t, base, 64)
		assert.Regexp(t, "^[0-9a-f]{64}$", base)
	})

	t.Run("CanonicalizesIncidentalDifferences", func(t *testing.T) {
		assert.Equal(t, base, TransactionKey("user-1", " 2024-01-15 ", decimal.RequireFromString("42.50"), "  COFFEE "))
		assert.Equal(t, base, TransactionKey("user-1", "2024-01-15", decimal.RequireFromString("-42.500"), "coffee"))
	})

	t.Run("DistinguishesFields", func(t *testing.T) {
		assert.NotEqual(t, base, TransactionKey("user-2", "2024-01-15", decimal.RequireFromString("42.50"), "Coffee"))
		assert.NotEqual(t, base, TransactionKey("user-1", "2024-01-16", decimal.RequireFromString("42.50"), "Coffee"))
		assert.NotEqual(t, base, TransactionKey("user-1", "2024-01-15", decimal.RequireFromString("42.51"), "Coffee"))
		assert.NotEqual(t, base, TransactionKey("user-1", "2024-01-15", decimal.RequireFromString("42.50"), "Tea"))
	})

	t.Run("IgnoresSign", func(t *testing.T) {
		withdrawal := TransactionKey("user-1", "2024-01-05", decimal.RequireFromString("-20"), "ATM")
		deposit := TransactionKey("user-1", "2024-01-05", decimal.RequireFromString("20"), "ATM")
		assert.Equal(t, withdrawal, deposit)
		assert.Equal(t,
			CandidateKey("2024-01-05", decimal.RequireFromString("-20"), "ATM"),
			CandidateKey("2024-01-05", decimal.RequireFromString("20"), "ATM"))
	})

	t.Run("MissingDescription", func(t *testing.T) {
		assert.Equal(t,
			TransactionKey("user-1", "2024-01-15", decimal.RequireFromString("1"), ""),
			TransactionKey("user-1", "2024-01-15", decimal.RequireFromString("1.00"), "   "))
	})
}

func TestCandidateKey(t *testing.T) {
	assert.Equal(t, "2024-01-15|42.50|coffee", CandidateKey("2024-01-15", decimal.RequireFromString("-42.5"), " Coffee "))

	txn := &Transaction{
		Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("42.50"),
		Description: "COFFEE",
	}
	assert.Equal(t, "2024-01-15|42.50|coffee", CandidateKeyOf(txn))
}

func TestTransaction_RefreshKey(t *testing.T) {
	txn := &Transaction{
		UserID:      "user-1",
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("10"),
		Description: "Lunch",
	}
	txn.RefreshKey()
	first := txn.TransactionKey
	assert.Equal(t, TransactionKey("user-1", "2024-03-01", decimal.RequireFromString("10.00"), "lunch"), first)

	txn.Amount = decimal.RequireFromString("11")
	txn.RefreshKey()
	assert.NotEqual(t, first, txn.TransactionKey)
}

func TestTransaction_Sides(t *testing.T) {
	from, to, other := uuid.New(), uuid.New(), uuid.New()
	txn := &Transaction{FromAccountID: &from, ToAccountID: &to}

	assert.True(t, txn.IsFrom(from))
	assert.False(t, txn.IsFrom(to))
	assert.True(t, txn.IsTo(to))
	assert.True(t, txn.Touches(from))
	assert.True(t, txn.Touches(to))
	assert.False(t, txn.Touches(other))
	assert.False(t, (&Transaction{}).Touches(from))
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want TransactionType
	}{
		{"expense", TypeExpense},
		{" Payment ", TypePayment},
		{"", TypeExpense},
		{"deposit", TypeIncome},
		{"INCOME_DEPOSIT", TypeIncome},
		{"transfer", TypeTransfer},
		{"refund", TransactionType("refund")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseType(tt.in), "ParseType(%q)", tt.in)
	}
}

func TestDates(t *testing.T) {
	d, err := ParseDate(" 2024-02-29 ")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", FormatDate(d))

	_, err = ParseDate("02/29/2024")
	assert.Error(t, err)

	ts := time.Date(2024, 5, 6, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), TruncateDate(ts))
}

func TestErrors_Is(t *testing.T) {
	id := uuid.New()
	assert.True(t, errors.Is(ErrTransactionNotFound{TransactionID: id}, ErrTransactionNotFound{}))
	assert.False(t, errors.Is(ErrTransactionNotFound{TransactionID: id}, ErrTransactionNotFound{TransactionID: uuid.New()}))
	assert.True(t, errors.Is(ErrDuplicateKey{TransactionKey: "abc"}, ErrDuplicateKey{}))
	assert.False(t, errors.Is(ErrDuplicateKey{TransactionKey: "abc"}, ErrTransactionNotFound{}))
}
