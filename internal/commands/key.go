package commands

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/household-ledger/internal/domain/ledger"
)

func newKeyCommand() *cobra.Command {
	var userID, date, amount, description string

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the duplicate detection key of a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKey(cmd, userID, date, amount, description)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owner of the transaction")
	cmd.Flags().StringVar(&date, "date", "", "transaction date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&amount, "amount", "", "signed amount as it appears in the statement")
	cmd.Flags().StringVar(&description, "description", "", "transaction description")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runKey(cmd *cobra.Command, userID, date, amount, description string) error {
	d, err := ledger.ParseDate(date)
	if err != nil {
		return err
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amount, err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), ledger.TransactionKey(userID, d.Format(ledger.DateLayout), value, description))
	return err
}
