// =============================================================================
// folio - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   folio validate
//
// Loads the configuration (the root command does this and fails on errors),
// checks the trading calendars, and prints what the importer will use.
//
// =============================================================================

package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ginjaninja78/folio/internal/txn"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		cfg := appConfig

		cal, err := loadCalendars()
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Configuration: %s (valid)\n", cfgFile)
		fmt.Fprintf(out, "Database:      %s (table %s)\n", cfg.DBPath, cfg.Table)
		fmt.Fprintf(out, "Transforms:    %d rule(s), %d merge group(s), stage %s\n",
			len(cfg.Transforms.Rules), len(cfg.Transforms.MergeGroups), cfg.Transforms.Stage)
		for _, msg := range cfg.Transforms.Invalid {
			fmt.Fprintf(out, "  skipped: %s\n", msg)
		}

		var optional []string
		for name := range cfg.OptionalFields {
			optional = append(optional, name)
		}
		sort.Strings(optional)
		fmt.Fprintf(out, "Optional:      %s\n", strings.Join(optional, ", "))

		for _, cur := range []txn.Currency{txn.USD, txn.CAD} {
			ex, ok := cal.Exchange(cur)
			if !ok {
				continue
			}
			cutover := "T+2"
			if t, ok := cfg.Settlement.TPlusOneCutover(cur); ok {
				cutover = "T+1 from " + t.Format("2006-01-02")
			}
			fmt.Fprintf(out, "Settlement %s: %s calendar, %s\n", cur, ex.Name, cutover)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
