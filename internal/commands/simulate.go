package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/household-ledger/internal/balance"
	"github.com/household-ledger/internal/data/memory"
	"github.com/household-ledger/internal/domain/account"
	"github.com/household-ledger/internal/domain/ledger"
	"github.com/household-ledger/internal/importer"
)

// accountEntry is one entry of the --accounts file
type accountEntry struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Type           string           `json:"type"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	CreditLimit    *decimal.Decimal `json:"credit_limit,omitempty"`
	APR            *decimal.Decimal `json:"apr,omitempty"`
	MinPayment     *decimal.Decimal `json:"min_payment,omitempty"`
	DueDay         *int             `json:"due_day,omitempty"`
}

type simulatedAccount struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	OpeningBalance string `json:"opening_balance"`
	Balance        string `json:"balance"`
}

type simulationReport struct {
	Import   *importer.Result   `json:"import"`
	AsOf     string             `json:"as_of,omitempty"`
	Accounts []simulatedAccount `json:"accounts"`
}

type simulateOptions struct {
	userID       string
	accountsPath string
	target       string
	asOf         string
}

func newSimulateCommand(newLogger func(*cobra.Command) *slog.Logger) *cobra.Command {
	var opts simulateOptions

	cmd := &cobra.Command{
		Use:   "simulate <file.csv>",
		Short: "Import a statement into in-memory accounts and print the replayed balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, newLogger(cmd), opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.userID, "user", "local", "owner of the accounts")
	cmd.Flags().StringVar(&opts.accountsPath, "accounts", "", "JSON file listing the accounts")
	cmd.Flags().StringVar(&opts.target, "target", "", "account that receives rows without explicit sides")
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "replay cutoff date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("accounts")

	return cmd
}

func runSimulate(cmd *cobra.Command, log *slog.Logger, opts simulateOptions, csvPath string) error {
	ctx := cmd.Context()

	var asOf *time.Time
	if opts.asOf != "" {
		d, err := ledger.ParseDate(opts.asOf)
		if err != nil {
			return err
		}
		asOf = &d
	}

	var target *uuid.UUID
	if opts.target != "" {
		id, err := uuid.Parse(opts.target)
		if err != nil {
			return fmt.Errorf("invalid target account %q: %w", opts.target, err)
		}
		target = &id
	}

	csv, err := os.ReadFile(csvPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", csvPath, err)
	}

	accounts := memory.NewAccountRepository()
	ledgerRepo := memory.NewLedgerRepository()
	if err := loadAccounts(cmd, accounts, opts.userID, opts.accountsPath); err != nil {
		return err
	}

	result, err := importer.NewService(log, accounts, ledgerRepo).Import(ctx, opts.userID, csv, target)
	if err != nil {
		return err
	}

	balances, err := balance.NewService(log, accounts, ledgerRepo).GetBalances(ctx, opts.userID, nil, asOf)
	if err != nil {
		return err
	}
	stored, err := accounts.ListByUser(ctx, opts.userID)
	if err != nil {
		return err
	}

	report := simulationReport{Import: result, Accounts: make([]simulatedAccount, 0, len(stored))}
	if asOf != nil {
		report.AsOf = ledger.FormatDate(*asOf)
	}
	for _, acc := range stored {
		report.Accounts = append(report.Accounts, simulatedAccount{
			ID:             acc.ID.String(),
			Name:           acc.Name,
			Type:           string(acc.Type),
			OpeningBalance: acc.OpeningBalance.StringFixed(2),
			Balance:        balances[acc.ID].StringFixed(2),
		})
	}

	return writeJSON(cmd.OutOrStdout(), report)
}

func loadAccounts(cmd *cobra.Command, repo account.Repository, userID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var entries []accountEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode accounts file: %w", err)
	}

	for i, entry := range entries {
		acc, err := account.NewAccount(userID, entry.Name, account.Type(entry.Type), entry.OpeningBalance)
		if err != nil {
			return fmt.Errorf("account %d: %w", i, err)
		}
		if entry.ID != "" {
			if acc.ID, err = uuid.Parse(entry.ID); err != nil {
				return fmt.Errorf("account %d: invalid id %q: %w", i, entry.ID, err)
			}
		}
		acc.CreditLimit = entry.CreditLimit
		acc.APR = entry.APR
		acc.MinPayment = entry.MinPayment
		acc.DueDay = entry.DueDay
		if err := acc.Validate(); err != nil {
			return fmt.Errorf("account %d: %w", i, err)
		}
		if err := repo.Create(cmd.Context(), acc); err != nil {
			return err
		}
	}
	return nil
}
