package account

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	t.Run("SuccessfulCreation", func(t *testing.T) {
		beforeCreation := time.Now().UTC()
		acc, err := NewAccount("user-1", "  Everyday Checking ", "Checking", decimal.RequireFromString("100.00"))
		afterCreation := time.Now().UTC()

		require.NoError(t, err)
		require.NotNil(t, acc)

		assert.NotEqual(t, uuid.Nil, acc.ID, "Account ID should not be nil")
		assert.Equal(t, "user-1", acc.UserID)
		assert.Equal(t, "Everyday Checking", acc.Name)
		assert.Equal(t, TypeChecking, acc.Type)
		assert.True(t, acc.OpeningBalance.Equal(decimal.RequireFromString("100")))
		assert.WithinDuration(t, beforeCreation, acc.CreatedAt, afterCreation.Sub(beforeCreation)+time.Millisecond)
		assert.Equal(t, acc.CreatedAt, acc.UpdatedAt)
	})

	t.Run("EmptyName", func(t *testing.T) {
		_, err := NewAccount("user-1", " ", TypeSavings, decimal.Zero)
		assert.ErrorIs(t, err, ErrEmptyName)
	})

	t.Run("EmptyUser", func(t *testing.T) {
		_, err := NewAccount("", "Savings", TypeSavings, decimal.Zero)
		assert.ErrorIs(t, err, ErrEmptyUserID)
	})

	t.Run("InvalidType", func(t *testing.T) {
		_, err := NewAccount("user-1", "Brokerage", "brokerage", decimal.Zero)
		assert.ErrorIs(t, err, ErrInvalidType)
	})
}

func TestType_Class(t *testing.T) {
	tests := []struct {
		accountType Type
		want        Class
	}{
		{TypeChecking, Asset},
		{TypeSavings, Asset},
		{TypeCredit, Liability},
		{TypeLoan, Liability},
		{Type("unknown"), Asset},
	}
	for _, tt := range tests {
		t.Run(string(tt.accountType), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.accountType.Class())
			acc := &Account{Type: tt.accountType}
			assert.Equal(t, tt.want, acc.Class())
		})
	}
	assert.Equal(t, "asset", Asset.String())
	assert.Equal(t, "liability", Liability.String())
}

func TestAccount_Validate(t *testing.T) {
	day := func(d int) *int { return &d }

	assert.NoError(t, (&Account{Type: TypeCredit, DueDay: day(15)}).Validate())
	assert.NoError(t, (&Account{Type: TypeLoan}).Validate())
	assert.ErrorIs(t, (&Account{Type: TypeCredit, DueDay: day(0)}).Validate(), ErrInvalidDueDay)
	assert.ErrorIs(t, (&Account{Type: TypeCredit, DueDay: day(32)}).Validate(), ErrInvalidDueDay)
	assert.ErrorIs(t, (&Account{Type: "wallet"}).Validate(), ErrInvalidType)
}

func TestErrAccountNotFound_Is(t *testing.T) {
	id := uuid.New()
	err := error(ErrAccountNotFound{AccountID: id})

	assert.True(t, errors.Is(err, ErrAccountNotFound{}))
	assert.True(t, errors.Is(err, ErrAccountNotFound{AccountID: id}))
	assert.False(t, errors.Is(err, ErrAccountNotFound{AccountID: uuid.New()}))
	assert.Contains(t, err.Error(), id.String())
}
