// Package postgres provides the PostgreSQL implementation of the account repository.
// Money columns are NUMERIC; values cross the driver boundary as decimal strings so no amount
// ever passes through a float.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/household-ledger/internal/domain/account"
	"github.com/household-ledger/internal/platform/persistence"
)

const accountColumns = `id, user_id, name, type, opening_balance::text, credit_limit::text, apr::text, min_payment::text, due_day, created_at, updated_at`

const (
	insertAccountQuery = `
		INSERT INTO accounts (id, user_id, name, type, opening_balance, credit_limit, apr, min_payment, due_day, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11)
	`
	getAccountQuery = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1 AND user_id = $2
	`
	findAccountsQuery = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1 AND id = ANY($2::uuid[])
		ORDER BY name, id
	`
	listAccountsQuery = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1
		ORDER BY name, id
	`
	incrementOpeningBalanceQuery = `
		UPDATE accounts
		SET opening_balance = opening_balance + $1::numeric, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
	`
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) *AccountRepository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a new account
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	_, err := r.querier.Exec(ctx, insertAccountQuery,
		acc.ID,
		acc.UserID,
		acc.Name,
		string(acc.Type),
		acc.OpeningBalance.String(),
		decimalArg(acc.CreditLimit),
		decimalArg(acc.APR),
		decimalArg(acc.MinPayment),
		dueDayArg(acc.DueDay),
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create account", "id", acc.ID.String(), "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account of userID by its ID
func (r *AccountRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*account.Account, error) {
	acc, err := scanAccount(r.querier.QueryRow(ctx, getAccountQuery, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get account", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acc, nil
}

// FindByIDs returns the accounts among ids that belong to userID
func (r *AccountRepository) FindByIDs(ctx context.Context, userID string, ids []uuid.UUID) ([]*account.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := make([]string, len(ids))
	for i, id := range ids {
		params[i] = id.String()
	}

	return r.queryAccounts(ctx, "find accounts", findAccountsQuery, userID, params)
}

// ListByUser returns every account of userID
func (r *AccountRepository) ListByUser(ctx context.Context, userID string) ([]*account.Account, error) {
	return r.queryAccounts(ctx, "list accounts", listAccountsQuery, userID)
}

// IncrementOpeningBalance adds delta to the opening balance in a single UPDATE, so concurrent
// increments of the same account serialize on the row lock instead of losing updates.
func (r *AccountRepository) IncrementOpeningBalance(ctx context.Context, id uuid.UUID, userID string, delta decimal.Decimal) error {
	result, err := r.querier.Exec(ctx, incrementOpeningBalanceQuery, delta.String(), id, userID)
	if err != nil {
		r.logger.Error("Failed to increment opening balance", "id", id.String(), "delta", delta.String(), "error", err)
		return fmt.Errorf("failed to increment opening balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound{AccountID: id}
	}

	return nil
}

func (r *AccountRepository) queryAccounts(ctx context.Context, op, query string, args ...any) ([]*account.Account, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, "error", err)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			r.logger.Error("Failed to scan account", "error", err)
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Failed to iterate accounts", "error", err)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	return accounts, nil
}

// scanAccount reads one row selected with accountColumns
func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		acc                          account.Account
		accType, opening             string
		creditLimit, apr, minPayment *string
		dueDay                       *int32
	)
	err := row.Scan(
		&acc.ID,
		&acc.UserID,
		&acc.Name,
		&accType,
		&opening,
		&creditLimit,
		&apr,
		&minPayment,
		&dueDay,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	acc.Type = account.Type(accType)
	if acc.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
		return nil, fmt.Errorf("invalid opening balance %q: %w", opening, err)
	}
	if acc.CreditLimit, err = parseNullDecimal(creditLimit); err != nil {
		return nil, err
	}
	if acc.APR, err = parseNullDecimal(apr); err != nil {
		return nil, err
	}
	if acc.MinPayment, err = parseNullDecimal(minPayment); err != nil {
		return nil, err
	}
	if dueDay != nil {
		d := int(*dueDay)
		acc.DueDay = &d
	}

	return &acc, nil
}

func parseNullDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric value %q: %w", *s, err)
	}
	return &d, nil
}

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func dueDayArg(day *int) *int32 {
	if day == nil {
		return nil
	}
	d := int32(*day)
	return &d
}
