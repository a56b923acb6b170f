// Package commands implements ledgerctl, an offline tool that runs the CSV normalizer, the
// duplicate key and the import plus replay pipeline against local files.
package commands

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/household-ledger/internal/logger"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect statements and replay imports without a database",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")

	newLogger := func(cmd *cobra.Command) *slog.Logger {
		return logger.New(cmd.ErrOrStderr(), logger.ParseLevel(logLevel))
	}

	rootCmd.AddCommand(
		newPreviewCommand(),
		newKeyCommand(),
		newSimulateCommand(newLogger),
	)

	return rootCmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
