// =============================================================================
// folio - Import Command
// =============================================================================
//
// COMMAND USAGE:
//   folio import FILE|DIR [flags]
//
// FLAGS:
//   --account   : Account to record when the export has no account column
//   --sheet     : Worksheet to read from Excel exports
//   --report    : Directory to write one .xlsx audit report per file into
//   --dry-run   : Run every stage but write nothing
//
// PROCESSING:
//   1. Discover the files to import (a directory is scanned for exports)
//   2. Open the store and the trading calendars
//   3. Import each file in name order. Files run one after another: each
//      import checks for duplicates against the rows the previous one stored.
//   4. Print a summary per file, and write the audit reports
//
// An error in one file does not stop the others; the command fails at the
// end if any file failed.
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/folio/internal/pipeline"
	"github.com/ginjaninja78/folio/internal/report"
	"github.com/ginjaninja78/folio/pkg/utils"
	"github.com/spf13/cobra"
)

// Import file extensions, matched case-insensitively.
var importExtensions = []string{".csv", ".txt", ".xlsx", ".xlsm"}

var (
	importAccount   string
	importSheet     string
	importReportDir string
	importDryRun    bool
)

var importCmd = &cobra.Command{
	Use:   "import FILE|DIR",
	Short: "Import broker transaction exports into the store",
	Long: `The import command reads CSV or Excel exports, normalizes their rows and
appends the new transactions to the store.

Rows that fail validation and rows already present in the store are left
out and listed in the audit trail. The store is backed up before it is
written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importAccount, "account", "", "Account to record when the export has no account column")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "Worksheet to read from Excel exports (default: config sheet, else the first)")
	importCmd.Flags().StringVar(&importReportDir, "report", "", "Directory to write .xlsx audit reports into")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Run every stage but write nothing")
}

// runImport imports target, a file or a directory of exports.
func runImport(cmd *cobra.Command, target string) error {
	startTime := time.Now()
	out := cmd.OutOrStdout()

	// =========================================================================
	// STEP 1: DISCOVER INPUT FILES
	// =========================================================================

	files := []string{target}
	if utils.IsDir(target) {
		found, err := utils.DiscoverInputFiles(target, importExtensions...)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Fprintf(out, "No exports found in %s\n", target)
			return nil
		}
		files = found
	} else if !utils.FileExists(target) {
		return fmt.Errorf("input not found: %s", target)
	}

	// =========================================================================
	// STEP 2: OPEN STORE
	// =========================================================================

	cal, err := loadCalendars()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p := pipeline.New(appConfig, st, cal, appLog)
	opts := pipeline.Options{
		Account: importAccount,
		Sheet:   importSheet,
		DryRun:  importDryRun,
	}

	// =========================================================================
	// STEP 3: IMPORT FILES
	// =========================================================================

	var failures []string
	total := 0
	for _, file := range files {
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		n, audit, err := p.ImportFile(cmd.Context(), file, opts)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(file), err))
			fmt.Fprintf(out, "  ✗ %s: %v\n", filepath.Base(file), err)
			if audit == nil {
				continue
			}
		} else {
			total += n
			fmt.Fprintf(out, "  ✓ %s: %s\n", filepath.Base(file), audit.Summary())
			if audit.BackupPath != "" {
				fmt.Fprintf(out, "    backup: %s\n", audit.BackupPath)
			}
			if len(audit.AddedColumns) > 0 {
				fmt.Fprintf(out, "    new columns: %s\n", strings.Join(audit.AddedColumns, ", "))
			}
		}

		if importReportDir != "" {
			path, err := writeReport(importReportDir, file, audit)
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(file), err))
				continue
			}
			fmt.Fprintf(out, "    report: %s\n", path)
		}
	}

	// =========================================================================
	// STEP 4: PRINT SUMMARY
	// =========================================================================

	fmt.Fprintln(out)
	if importDryRun {
		fmt.Fprintln(out, "=== Dry Run Complete (nothing written) ===")
	} else {
		fmt.Fprintln(out, "=== Import Complete ===")
	}
	fmt.Fprintf(out, "Files:         %d\n", len(files))
	fmt.Fprintf(out, "Failed:        %d\n", len(failures))
	fmt.Fprintf(out, "Rows imported: %d\n", total)
	fmt.Fprintf(out, "Time elapsed:  %s\n", time.Since(startTime).Round(time.Millisecond))

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d file(s) failed:\n  %s",
			len(failures), len(files), strings.Join(failures, "\n  "))
	}
	return nil
}

// writeReport saves an audit as <dir>/<stem>_<run>.xlsx.
func writeReport(dir, source string, audit *pipeline.Audit) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	run := audit.RunID
	if len(run) > 8 {
		run = run[:8]
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.xlsx", stem, run))
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	if err := report.Write(path, audit); err != nil {
		return "", err
	}
	return path, nil
}
