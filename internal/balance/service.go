package balance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/household-ledger/internal/domain/account"
	"github.com/household-ledger/internal/domain/ledger"
)

// Service answers balance queries by loading a snapshot of accounts and their transactions and
// replaying it. It never writes.
type Service struct {
	accounts account.Repository
	ledger   ledger.Repository
	logger   *slog.Logger
}

// NewService creates a balance service over the given stores
func NewService(logger *slog.Logger, accounts account.Repository, ledgerRepo ledger.Repository) *Service {
	return &Service{accounts: accounts, ledger: ledgerRepo, logger: logger}
}

// GetBalance returns the balance of one account as of asOf (now when nil)
func (s *Service) GetBalance(ctx context.Context, userID string, accountID uuid.UUID, asOf *time.Time) (decimal.Decimal, error) {
	acc, err := s.accounts.GetByID(ctx, userID, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	txns, err := s.ledger.Find(ctx, userID, ledger.Filter{AccountIDs: []uuid.UUID{accountID}, Until: asOf})
	if err != nil {
		s.logger.Error("Failed to load account transactions", "account_id", accountID.String(), "error", err)
		return decimal.Zero, fmt.Errorf("failed to load transactions of account %s: %w", accountID, err)
	}

	return Compute(acc, txns, asOf), nil
}

// GetBalances returns the balances of accountIDs, or of every account of userID when accountIDs
// is empty. Unknown ids are reported as ErrAccountNotFound.
func (s *Service) GetBalances(ctx context.Context, userID string, accountIDs []uuid.UUID, asOf *time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	var (
		accounts []*account.Account
		err      error
	)
	if len(accountIDs) == 0 {
		accounts, err = s.accounts.ListByUser(ctx, userID)
	} else {
		accounts, err = s.accounts.FindByIDs(ctx, userID, accountIDs)
	}
	if err != nil {
		return nil, err
	}

	found := make(map[uuid.UUID]struct{}, len(accounts))
	ids := make([]uuid.UUID, 0, len(accounts))
	for _, acc := range accounts {
		found[acc.ID] = struct{}{}
		ids = append(ids, acc.ID)
	}
	for _, id := range accountIDs {
		if _, ok := found[id]; !ok {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
	}
	if len(accounts) == 0 {
		return map[uuid.UUID]decimal.Decimal{}, nil
	}

	txns, err := s.ledger.Find(ctx, userID, ledger.Filter{AccountIDs: ids, Until: asOf})
	if err != nil {
		s.logger.Error("Failed to load transactions for balances", "user_id", userID, "accounts", len(ids), "error", err)
		return nil, fmt.Errorf("failed to load transactions for balances: %w", err)
	}

	return ComputeBatch(accounts, txns, asOf), nil
}

// History returns the account with its running balance after each transaction up to asOf
func (s *Service) History(ctx context.Context, userID string, accountID uuid.UUID, asOf *time.Time) (*account.Account, []Point, error) {
	acc, err := s.accounts.GetByID(ctx, userID, accountID)
	if err != nil {
		return nil, nil, err
	}

	txns, err := s.ledger.Find(ctx, userID, ledger.Filter{AccountIDs: []uuid.UUID{accountID}, Until: asOf})
	if err != nil {
		s.logger.Error("Failed to load account transactions", "account_id", accountID.String(), "error", err)
		return nil, nil, fmt.Errorf("failed to load transactions of account %s: %w", accountID, err)
	}

	return acc, History(acc, txns, asOf), nil
}
