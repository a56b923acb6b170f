package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/household-ledger/internal/domain/account"
)

// AccountParams carries the user supplied attributes of a new account
type AccountParams struct {
	Name           string
	Type           account.Type
	OpeningBalance decimal.Decimal
	CreditLimit    *decimal.Decimal
	APR            *decimal.Decimal
	MinPayment     *decimal.Decimal
	DueDay         *int
}

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	accountRepo account.Repository
	logger      *slog.Logger
}

// NewAccountService creates a new account service
func NewAccountService(logger *slog.Logger, accountRepo account.Repository) AccountService {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
		logger:      logger,
	}
}

// CreateAccount creates a new account, attaching the optional liability attributes
func (s *AccountServiceImpl) CreateAccount(ctx context.Context, userID string, params AccountParams) (*account.Account, error) {
	acc, err := account.NewAccount(userID, params.Name, params.Type, params.OpeningBalance)
	if err != nil {
		return nil, err
	}
	acc.CreditLimit = params.CreditLimit
	acc.APR = params.APR
	acc.MinPayment = params.MinPayment
	acc.DueDay = params.DueDay

	if err := acc.Validate(); err != nil {
		return nil, err
	}

	if err := s.accountRepo.Create(ctx, acc); err != nil {
		return nil, err
	}

	s.logger.Info("Account created", "account_id", acc.ID.String(), "user_id", userID, "type", string(acc.Type))
	return acc, nil
}

// GetAccountByID retrieves an account by its ID, returns ErrAccountNotFound if not found
func (s *AccountServiceImpl) GetAccountByID(ctx context.Context, userID string, id uuid.UUID) (*account.Account, error) {
	return s.accountRepo.GetByID(ctx, userID, id)
}

// ListAccounts returns every account of userID
func (s *AccountServiceImpl) ListAccounts(ctx context.Context, userID string) ([]*account.Account, error) {
	return s.accountRepo.ListByUser(ctx, userID)
}
