package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/household-ledger/internal/balance"
	"github.com/household-ledger/internal/domain/account"
	"github.com/household-ledger/internal/domain/importjob"
	"github.com/household-ledger/internal/domain/ledger"
	"github.com/household-ledger/internal/importer"
)

// CreateAccountRequest represents a request to create a new account.
// Money fields accept JSON numbers or decimal strings.
type CreateAccountRequest struct {
	Name           string           `json:"name" binding:"required"`
	Type           string           `json:"type" binding:"required"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	CreditLimit    *decimal.Decimal `json:"credit_limit,omitempty"`
	APR            *decimal.Decimal `json:"apr,omitempty"`
	MinPayment     *decimal.Decimal `json:"min_payment,omitempty"`
	DueDay         *int             `json:"due_day,omitempty"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Class          string  `json:"class"`
	OpeningBalance string  `json:"opening_balance"`
	CreditLimit    *string `json:"credit_limit,omitempty"`
	APR            *string `json:"apr,omitempty"`
	MinPayment     *string `json:"min_payment,omitempty"`
	DueDay         *int    `json:"due_day,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// BalanceResponse is the derived balance of one account
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
	AsOf      string `json:"as_of,omitempty"`
}

// BalancesResponse maps account IDs to their derived balances
type BalancesResponse struct {
	Balances map[string]string `json:"balances"`
	AsOf     string            `json:"as_of,omitempty"`
}

// UpdateTransactionRequest represents a partial edit of a stored transaction
type UpdateTransactionRequest struct {
	Date        *string          `json:"date,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
}

// TransactionResponse represents a ledger transaction in API responses
type TransactionResponse struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	FromAccountID  *string        `json:"from_account_id,omitempty"`
	ToAccountID    *string        `json:"to_account_id,omitempty"`
	Amount         string         `json:"amount"`
	Date           string         `json:"date"`
	Description    string         `json:"description,omitempty"`
	Category       string         `json:"category,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	TransactionKey string         `json:"transaction_key"`
	CreatedAt      string         `json:"created_at"`
}

// LedgerEntryResponse is a transaction with the account balance right after it
type LedgerEntryResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Balance     string              `json:"balance"`
}

// ImportResponse summarises a completed import
type ImportResponse struct {
	BatchID           string  `json:"batch_id"`
	Attempted         int     `json:"attempted"`
	Imported          int     `json:"imported"`
	DuplicatesSkipped int     `json:"duplicates_skipped"`
	Failed            int     `json:"failed"`
	AccountAdjusted   bool    `json:"account_adjusted"`
	BalanceDelta      *string `json:"balance_delta,omitempty"`
}

// ImportJobResponse is the pollable status of an asynchronous import
type ImportJobResponse struct {
	JobID       string          `json:"job_id"`
	Status      string          `json:"status"`
	AccountID   *string         `json:"account_id,omitempty"`
	Result      *ImportResponse `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	SubmittedAt string          `json:"submitted_at"`
	FinishedAt  string          `json:"finished_at,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=50" binding:"min=1,max=500"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func optionalMoney(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money(*d)
	return &s
}

func optionalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		ID:             acc.ID.String(),
		Name:           acc.Name,
		Type:           string(acc.Type),
		Class:          acc.Class().String(),
		OpeningBalance: money(acc.OpeningBalance),
		CreditLimit:    optionalMoney(acc.CreditLimit),
		APR:            optionalString(acc.APR),
		MinPayment:     optionalMoney(acc.MinPayment),
		DueDay:         acc.DueDay,
		CreatedAt:      acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      acc.UpdatedAt.Format(time.RFC3339),
	}
}

func mapTransactionToResponse(txn *ledger.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:             txn.ID.String(),
		Type:           string(txn.Type),
		Amount:         money(txn.Amount),
		Date:           ledger.FormatDate(txn.Date),
		Description:    txn.Description,
		Category:       txn.Category,
		Metadata:       txn.Metadata,
		TransactionKey: txn.TransactionKey,
		CreatedAt:      txn.CreatedAt.Format(time.RFC3339),
	}
	if txn.FromAccountID != nil {
		id := txn.FromAccountID.String()
		response.FromAccountID = &id
	}
	if txn.ToAccountID != nil {
		id := txn.ToAccountID.String()
		response.ToAccountID = &id
	}
	return response
}

func mapPointsToResponse(points []balance.Point) []LedgerEntryResponse {
	entries := make([]LedgerEntryResponse, 0, len(points))
	for _, p := range points {
		entries = append(entries, LedgerEntryResponse{
			Transaction: mapTransactionToResponse(p.Transaction),
			Balance:     money(p.Balance),
		})
	}
	return entries
}

func mapImportResultToResponse(result *importer.Result) *ImportResponse {
	return &ImportResponse{
		BatchID:           result.BatchID.String(),
		Attempted:         result.Attempted,
		Imported:          result.Imported,
		DuplicatesSkipped: result.DuplicatesSkipped,
		Failed:            result.Failed,
		AccountAdjusted:   result.AccountAdjusted,
		BalanceDelta:      optionalMoney(result.BalanceDelta),
	}
}

func mapImportJobToResponse(job *importjob.Job) ImportJobResponse {
	response := ImportJobResponse{
		JobID:       job.ID.String(),
		Status:      string(job.Status),
		Error:       job.Error,
		SubmittedAt: job.SubmittedAt.Format(time.RFC3339),
	}
	if job.AccountID != nil {
		id := job.AccountID.String()
		response.AccountID = &id
	}
	if job.Outcome != nil {
		response.Result = &ImportResponse{
			BatchID:           job.Outcome.BatchID.String(),
			Attempted:         job.Outcome.Attempted,
			Imported:          job.Outcome.Imported,
			DuplicatesSkipped: job.Outcome.DuplicatesSkipped,
			Failed:            job.Outcome.Failed,
			AccountAdjusted:   job.Outcome.AccountAdjusted,
			BalanceDelta:      optionalMoney(job.Outcome.BalanceDelta),
		}
	}
	if job.FinishedAt != nil {
		response.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	}
	return response
}
