package account

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrEmptyName     = errors.New("account name cannot be empty")
	ErrEmptyUserID   = errors.New("user ID cannot be empty")
	ErrInvalidType   = errors.New("account type must be one of checking, savings, credit, loan")
	ErrInvalidDueDay = errors.New("due day must be between 1 and 31")
)

// Type is the product kind of an account as chosen by the user
type Type string

const (
	TypeChecking Type = "checking"
	TypeSavings  Type = "savings"
	TypeCredit   Type = "credit"
	TypeLoan     Type = "loan"
)

// Class groups account types by how money movements affect their balance
type Class int

const (
	// Asset balances grow when money arrives and shrink when it leaves.
	Asset Class = iota
	// Liability balances represent debt: charges grow them, payments shrink them.
	Liability
)

func (c Class) String() string {
	if c == Liability {
		return "liability"
	}
	return "asset"
}

// ParseType normalizes a user supplied account type
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeChecking, TypeSavings, TypeCredit, TypeLoan:
		return t, nil
	}
	return "", ErrInvalidType
}

// Class returns the accounting class of the type.
// Anything that is not credit or loan is treated as an asset.
func (t Type) Class() Class {
	switch t {
	case TypeCredit, TypeLoan:
		return Liability
	default:
		return Asset
	}
}

// Account represents a tracked financial account.
// OpeningBalance is the baseline before any ledger transaction is replayed; the current
// balance is always derived and never stored.
type Account struct {
	ID             uuid.UUID        `json:"id"`
	UserID         string           `json:"user_id"`
	Name           string           `json:"name"`
	Type           Type             `json:"type"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	CreditLimit    *decimal.Decimal `json:"credit_limit,omitempty"`
	APR            *decimal.Decimal `json:"apr,omitempty"`
	MinPayment     *decimal.Decimal `json:"min_payment,omitempty"`
	DueDay         *int             `json:"due_day,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewAccount creates a new account with the given parameters
func NewAccount(userID, name string, accountType Type, openingBalance decimal.Decimal) (*Account, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	t, err := ParseType(string(accountType))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Account{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           strings.TrimSpace(name),
		Type:           t,
		OpeningBalance: openingBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Class returns the accounting class of the account
func (a *Account) Class() Class {
	return a.Type.Class()
}

// Validate checks the optional liability attributes
func (a *Account) Validate() error {
	if a.DueDay != nil && (*a.DueDay < 1 || *a.DueDay > 31) {
		return ErrInvalidDueDay
	}
	if _, err := ParseType(string(a.Type)); err != nil {
		return err
	}
	return nil
}
