// Package importer turns statement CSV files into ledger transactions. It validates account
// references, skips rows already present in the ledger, inserts the rest and moves the net
// amount of the inserted rows into the target account's opening balance.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/household-ledger/internal/csvimport"
	"github.com/household-ledger/internal/domain/account"
	"github.com/household-ledger/internal/domain/ledger"
)

// rollbackTimeout bounds the cleanup of a batch whose balance adjustment failed
const rollbackTimeout = 10 * time.Second

// Result summarises one import
type Result struct {
	BatchID           uuid.UUID        `json:"batch_id"`
	Attempted         int              `json:"attempted"`
	Imported          int              `json:"imported"`
	DuplicatesSkipped int              `json:"duplicates_skipped"`
	Failed            int              `json:"failed,omitempty"`
	AccountAdjusted   bool             `json:"account_adjusted"`
	BalanceDelta      *decimal.Decimal `json:"balance_delta,omitempty"`
}

// Service runs CSV imports against the account and ledger stores
type Service struct {
	accounts   account.Repository
	ledger     ledger.Repository
	normalizer *csvimport.Normalizer
	logger     *slog.Logger
	now        func() time.Time
}

// Option customises a Service
type Option func(*Service)

// WithNormalizer replaces the default CSV normalizer, e.g. to extend the inference rules
func WithNormalizer(n *csvimport.Normalizer) Option {
	return func(s *Service) { s.normalizer = n }
}

// WithClock sets the time source used for creation timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an import service
func NewService(logger *slog.Logger, accounts account.Repository, ledgerRepo ledger.Repository, opts ...Option) *Service {
	s := &Service{
		accounts:   accounts,
		ledger:     ledgerRepo,
		normalizer: csvimport.NewNormalizer(nil),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import normalizes csv and persists the rows that are not yet in userID's ledger.
// When targetAccountID is set, rows without an explicit side are attached to it (negative
// amounts leave it, positive amounts arrive) and the signed sum of the inserted rows is added
// to its opening balance in one atomic increment.
func (s *Service) Import(ctx context.Context, userID string, csv []byte, targetAccountID *uuid.UUID) (result *Result, err error) {
	start := time.Now()
	defer func() {
		importDuration.Observe(time.Since(start).Seconds())
		importsTotal.WithLabelValues(outcomeOf(result, err)).Inc()
	}()

	parsed := s.normalizer.Inspect(string(csv))
	if len(parsed.Rows) == 0 {
		if parsed.HasHeader() && parsed.DataLines == 0 {
			return nil, ErrNoDataRows
		}
		return nil, ErrNoValidRows
	}
	importRowsTotal.WithLabelValues("dropped").Add(float64(parsed.DataLines - len(parsed.Rows)))

	refs, err := s.resolveAccounts(ctx, userID, parsed.Rows, targetAccountID)
	if err != nil {
		return nil, err
	}

	existing, err := s.existingCandidates(ctx, userID, parsed.Rows)
	if err != nil {
		return nil, err
	}

	result = &Result{BatchID: uuid.New(), Attempted: len(parsed.Rows)}
	logger := s.logger.With("user_id", userID, "batch_id", result.BatchID.String())

	txns, signed := s.buildTransactions(userID, result.BatchID, parsed.Rows, refs, existing, targetAccountID)
	result.DuplicatesSkipped = len(parsed.Rows) - len(txns)
	importRowsTotal.WithLabelValues("duplicate").Add(float64(result.DuplicatesSkipped))

	var (
		delta    decimal.Decimal
		inserted = &ledger.InsertResult{}
	)
	if len(txns) > 0 {
		inserted, err = s.ledger.InsertMany(ctx, txns)
		if err != nil {
			logger.Error("Failed to insert imported transactions", "count", len(txns), "error", err)
			return nil, fmt.Errorf("failed to insert imported transactions: %w", err)
		}
		result.Imported = inserted.InsertedCount
		result.Failed = len(txns) - inserted.InsertedCount
		for _, id := range inserted.InsertedIDs {
			delta = delta.Add(signed[id])
		}
		importRowsTotal.WithLabelValues("imported").Add(float64(result.Imported))
		importRowsTotal.WithLabelValues("failed").Add(float64(result.Failed))
		if result.Failed > 0 {
			logger.Warn("Some imported transactions were not persisted", "failed", result.Failed)
		}
	}

	if targetAccountID != nil {
		result.BalanceDelta = &delta
		if result.Imported > 0 && !delta.IsZero() {
			if err := s.accounts.IncrementOpeningBalance(ctx, *targetAccountID, userID, delta); err != nil {
				logger.Error("Failed to adjust target account opening balance",
					"account_id", targetAccountID.String(),
					"delta", delta.String(),
					"error", err)
				s.rollbackInserted(ctx, logger, userID, inserted.InsertedIDs)
				return nil, fmt.Errorf("failed to adjust opening balance of account %s: %w", targetAccountID, err)
			}
			result.AccountAdjusted = true
		}
	}

	logger.Info("CSV import completed",
		"attempted", result.Attempted,
		"imported", result.Imported,
		"duplicates_skipped", result.DuplicatesSkipped,
		"failed", result.Failed,
		"account_adjusted", result.AccountAdjusted,
	)
	return result, nil
}

// rollbackInserted deletes the rows of a batch whose balance adjustment failed, so that a retry
// of the same file inserts them again and applies their delta. It runs detached from ctx
// because the failure may be ctx expiring.
func (s *Service) rollbackInserted(ctx context.Context, logger *slog.Logger, userID string, ids []uuid.UUID) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	var left int
	for _, id := range ids {
		if err := s.ledger.Delete(cleanupCtx, userID, id); err != nil && !errors.Is(err, ledger.ErrTransactionNotFound{}) {
			logger.Error("Failed to roll back imported transaction", "transaction_id", id.String(), "error", err)
			left++
		}
	}
	importRowsTotal.WithLabelValues("rolled_back").Add(float64(len(ids) - left))
	if left > 0 {
		logger.Error("Imported transactions left without balance adjustment", "count", left)
	}
}

// resolveAccounts parses every account reference in rows and checks that each one, plus the
// target, belongs to userID. It fails listing every reference that does not.
func (s *Service) resolveAccounts(ctx context.Context, userID string, rows []csvimport.NormalizedRow, target *uuid.UUID) (map[string]uuid.UUID, error) {
	refs := make(map[string]uuid.UUID)
	missing := make(map[string]struct{})
	var ids []uuid.UUID

	add := func(raw string) {
		if raw == "" {
			return
		}
		if _, seen := refs[raw]; seen {
			return
		}
		if _, seen := missing[raw]; seen {
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			missing[raw] = struct{}{}
			return
		}
		refs[raw] = id
		ids = append(ids, id)
	}

	for _, row := range rows {
		add(row.FromAccountID)
		add(row.ToAccountID)
	}
	if target != nil {
		add(target.String())
	}

	if len(ids) > 0 {
		found, err := s.accounts.FindByIDs(ctx, userID, ids)
		if err != nil {
			s.logger.Error("Failed to look up referenced accounts", "user_id", userID, "count", len(ids), "error", err)
			return nil, fmt.Errorf("failed to look up referenced accounts: %w", err)
		}
		owned := make(map[uuid.UUID]struct{}, len(found))
		for _, acc := range found {
			owned[acc.ID] = struct{}{}
		}
		for raw, id := range refs {
			if _, ok := owned[id]; !ok {
				missing[raw] = struct{}{}
			}
		}
	}

	if len(missing) > 0 {
		return nil, ErrUnknownAccounts{IDs: slices.Sorted(maps.Keys(missing))}
	}
	return refs, nil
}

// existingCandidates returns the candidate keys of ledger rows sharing a date or an amount
// with any import row
func (s *Service) existingCandidates(ctx context.Context, userID string, rows []csvimport.NormalizedRow) (map[string]struct{}, error) {
	var filter ledger.Filter
	dates := make(map[string]struct{})
	amounts := make(map[string]struct{})

	for _, row := range rows {
		if _, seen := dates[row.Date]; !seen {
			if d, err := ledger.ParseDate(row.Date); err == nil {
				dates[row.Date] = struct{}{}
				filter.DateIn = append(filter.DateIn, d)
			}
		}
		amount := row.Amount.Abs()
		if a := amount.StringFixed(2); !hasKey(amounts, a) {
			amounts[a] = struct{}{}
			filter.AmountIn = append(filter.AmountIn, amount)
		}
	}

	matches, err := s.ledger.Find(ctx, userID, filter)
	if err != nil {
		s.logger.Error("Failed to look up existing transactions", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to look up existing transactions: %w", err)
	}

	existing := make(map[string]struct{}, len(matches))
	for _, txn := range matches {
		existing[ledger.CandidateKeyOf(txn)] = struct{}{}
	}
	return existing, nil
}

// buildTransactions converts the rows that are neither in the ledger nor repeated earlier in the
// same file. signed maps each new transaction to its row's signed amount.
func (s *Service) buildTransactions(
	userID string,
	batchID uuid.UUID,
	rows []csvimport.NormalizedRow,
	refs map[string]uuid.UUID,
	skip map[string]struct{},
	target *uuid.UUID,
) ([]*ledger.Transaction, map[uuid.UUID]decimal.Decimal) {
	created := s.now()
	txns := make([]*ledger.Transaction, 0, len(rows))
	signed := make(map[uuid.UUID]decimal.Decimal, len(rows))

	for i, row := range rows {
		key := ledger.CandidateKey(row.Date, row.Amount, row.Description)
		if hasKey(skip, key) {
			continue
		}
		skip[key] = struct{}{}

		date, err := ledger.ParseDate(row.Date)
		if err != nil {
			continue
		}

		txn := &ledger.Transaction{
			ID:            uuid.New(),
			UserID:        userID,
			Type:          row.Type,
			FromAccountID: accountRef(refs, row.FromAccountID),
			ToAccountID:   accountRef(refs, row.ToAccountID),
			Amount:        row.Amount.Abs(),
			Date:          date,
			Description:   row.Description,
			Category:      row.Category,
			Metadata:      maps.Clone(row.Metadata),
			// Stores keep millisecond precision; spacing rows out keeps file order on ties.
			CreatedAt: created.Add(time.Duration(i) * time.Millisecond),
		}
		if txn.Metadata == nil {
			txn.Metadata = make(map[string]any, 1)
		}
		txn.Metadata[ledger.MetaImportBatchID] = batchID.String()

		if target != nil && txn.FromAccountID == nil && txn.ToAccountID == nil {
			id := *target
			switch row.Amount.Sign() {
			case -1:
				txn.FromAccountID = &id
			case 1:
				txn.ToAccountID = &id
			}
		}

		txn.RefreshKey()
		txns = append(txns, txn)
		signed[txn.ID] = row.Amount
	}
	return txns, signed
}

func accountRef(refs map[string]uuid.UUID, raw string) *uuid.UUID {
	id, ok := refs[raw]
	if !ok {
		return nil
	}
	return &id
}

func hasKey(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

func outcomeOf(result *Result, err error) string {
	switch {
	case IsRejection(err):
		return outcomeRejected
	case err != nil:
		return outcomeFailed
	case result != nil && result.Imported > 0:
		return outcomeImported
	default:
		return outcomeNothingNew
	}
}
