// =============================================================================
// folio - Statements Command
// =============================================================================
//
// COMMAND USAGE:
//   folio statements FILE [--sheet NAME]
//
// Reads a broker statement (CSV or Excel) and replaces calculated settlement
// dates in the store with the dates the broker reported. Rows are only
// updated, never inserted.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/ginjaninja78/folio/internal/pipeline"
	"github.com/ginjaninja78/folio/internal/statement"
	"github.com/ginjaninja78/folio/pkg/utils"
	"github.com/spf13/cobra"
)

var statementSheet string

var statementsCmd = &cobra.Command{
	Use:   "statements FILE",
	Short: "Apply broker-reported settlement dates from a statement",
	Long: `The statements command matches each trade line of a broker statement to a
stored transaction whose settlement date was calculated, and records the
reported date instead.

Required statement columns: ` + fmt.Sprint(statement.Columns),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatements(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(statementsCmd)
	statementsCmd.Flags().StringVar(&statementSheet, "sheet", "", "Worksheet to read from an Excel statement")
}

func runStatements(cmd *cobra.Command, path string) error {
	out := cmd.OutOrStdout()

	batch, err := pipeline.ReadFile(path, appConfig, statementSheet)
	if err != nil {
		return fmt.Errorf("failed to read statement: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var backup *utils.BackupManager
	if appConfig.Backup.IsEnabled() {
		backup = utils.NewBackupManager(appConfig.Backup.Dir)
	}

	res, err := statement.NewImporter(st, appConfig.Table, backup, appLog).Import(cmd.Context(), batch)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Statement lines: %d\n", res.Candidates)
	fmt.Fprintf(out, "Updated:         %d\n", res.Updated)
	fmt.Fprintf(out, "Unmatched:       %d\n", len(res.Unmatched))
	fmt.Fprintf(out, "Ambiguous:       %d\n", len(res.Ambiguous))
	for _, e := range res.Ambiguous {
		fmt.Fprintf(out, "  ? %s\n", e)
	}
	if res.BackupPath != "" {
		fmt.Fprintf(out, "Backup:          %s\n", res.BackupPath)
	}
	return nil
}
