package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/household-ledger/internal/csvimport"
)

func newPreviewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <file.csv>",
		Short: "Print the rows a statement normalizes to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, args[0])
		},
	}
}

func runPreview(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	result := csvimport.NewNormalizer(nil).Inspect(string(data))
	if result.Rows == nil {
		result.Rows = []csvimport.NormalizedRow{}
	}
	return writeJSON(cmd.OutOrStdout(), result)
}
