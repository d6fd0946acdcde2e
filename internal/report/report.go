// Package report writes an import audit to an Excel workbook with one sheet
// per audit section.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ginjaninja78/folio/internal/dedup"
	"github.com/ginjaninja78/folio/internal/pipeline"
	"github.com/xuri/excelize/v2"
)

// Sheet names, in workbook order.
const (
	SheetSummary    = "Summary"
	SheetExcluded   = "Excluded"
	SheetDuplicates = "Duplicates"
	SheetMerges     = "Merges"
	SheetTransforms = "Transforms"
)

// Write saves the audit to path as an .xlsx workbook.
func Write(path string, a *pipeline.Audit) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	for _, name := range []string{SheetExcluded, SheetDuplicates, SheetMerges, SheetTransforms} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	sheets := map[string][][]interface{}{
		SheetSummary:    summaryRows(a),
		SheetExcluded:   excludedRows(a),
		SheetDuplicates: duplicateRows(a),
		SheetMerges:     mergeRows(a),
		SheetTransforms: transformRows(a),
	}
	for name, rows := range sheets {
		if err := writeRows(f, name, rows); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func summaryRows(a *pipeline.Audit) [][]interface{} {
	stamp := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(time.RFC3339)
	}
	return [][]interface{}{
		{"Field", "Value"},
		{"Run ID", a.RunID},
		{"Source", a.Source},
		{"Started", stamp(a.StartedAt)},
		{"Finished", stamp(a.FinishedAt)},
		{"Dry run", a.DryRun},
		{"Read", a.Read},
		{"Excluded", len(a.Excluded)},
		{"Duplicates in file", len(a.IntraDuplicates)},
		{"Duplicates in store", len(a.StoreDuplicates)},
		{"Approved duplicates", len(a.Approved)},
		{"Merged away", a.MergedAway()},
		{"Imported", a.Persisted},
		{"Added columns", strings.Join(a.AddedColumns, ", ")},
		{"Account filled", a.AccountFilled},
		{"Settlement preserved", a.Settlement.Preserved},
		{"Settlement calculated", a.Settlement.Calculated},
		{"Settlement unset", a.Settlement.Unset},
		{"Settlement weekday fallback", a.Settlement.Fallbacks},
		{"Backup", a.BackupPath},
	}
}

func excludedRows(a *pipeline.Audit) [][]interface{} {
	rows := [][]interface{}{{"Row", "Transaction", "Reasons"}}
	for _, e := range a.Excluded {
		rows = append(rows, []interface{}{e.Index + 1, e.Summary, strings.Join(e.Reasons, ", ")})
	}
	return rows
}

func duplicateRows(a *pipeline.Audit) [][]interface{} {
	rows := [][]interface{}{{"Scope", "Outcome", "Transaction", "Key"}}
	add := func(scope, outcome string, dups []dedup.Duplicate) {
		for _, d := range dups {
			rows = append(rows, []interface{}{scope, outcome, d.Summary, d.Key})
		}
	}
	add("file", "rejected", a.IntraDuplicates)
	add("store", "rejected", a.StoreDuplicates)
	add("", "approved", a.Approved)
	return rows
}

func mergeRows(a *pipeline.Audit) [][]interface{} {
	rows := [][]interface{}{{"Group", "Match", "Sources", "Result"}}
	for _, m := range a.Merges {
		keys := make([]string, 0, len(m.MatchValues))
		for k := range m.MatchValues {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		match := make([]string, len(keys))
		for i, k := range keys {
			match[i] = k + "=" + m.MatchValues[k]
		}
		rows = append(rows, []interface{}{m.Group, strings.Join(match, ", "), len(m.Sources), m.String()})
	}
	return rows
}

func transformRows(a *pipeline.Audit) [][]interface{} {
	rows := [][]interface{}{{"Rule", "Field", "Rows", "Old values", "New value"}}
	for _, e := range a.Transforms {
		newValue := e.NewValue
		if newValue == "" {
			newValue = "null"
		}
		rows = append(rows, []interface{}{e.Rule, e.Field, e.Rows, strings.Join(e.OldValues, ", "), newValue})
	}
	for _, s := range a.Skipped {
		rows = append(rows, []interface{}{"skipped", "", "", s, ""})
	}
	return rows
}
