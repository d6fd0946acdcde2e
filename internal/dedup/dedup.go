// Package dedup removes duplicate transactions from an import batch, both
// within the batch and against rows already in the store.
//
// Rows are compared by a synthetic key: a SHA-256 digest over the essential
// field values. The filter never touches the store; it only narrows the
// in-memory batch.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ginjaninja78/folio/internal/config"
	"github.com/ginjaninja78/folio/internal/txn"
	"github.com/ginjaninja78/folio/internal/types"
	"github.com/shopspring/decimal"
)

// keyPrecision is the number of decimal places numeric values are rounded to
// before hashing.
const keyPrecision = 8

// Approval identifies rows a user has marked as intended duplicates.
type Approval struct {
	Column string
	Value  string
}

// ApprovalFromConfig reads the approval settings.
func ApprovalFromConfig(cfg *config.Config) Approval {
	return Approval{Column: cfg.DuplicateApproval.ColumnName, Value: cfg.DuplicateApproval.ApprovalValue}
}

// Approved reports whether the row carries the approval sentinel.
func (a Approval) Approved(row types.Row) bool {
	if a.Column == "" || a.Value == "" {
		return false
	}
	v, ok := row.Get(a.Column)
	return ok && strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(a.Value))
}

// Strip removes the approval column from the batch. The column is an
// import-time instruction and never reaches the store.
func (a Approval) Strip(batch *types.Batch) {
	if a.Column != "" {
		batch.DropColumn(a.Column)
	}
}

// Duplicate is a row matched against an earlier row or a stored row.
type Duplicate struct {
	Row     types.Row
	Key     string
	Summary string
}

// Result is the outcome of one filter pass.
type Result struct {
	// Batch holds the rows that survive the pass.
	Batch *types.Batch

	// Rejected holds duplicates dropped from the batch.
	Rejected []Duplicate

	// Approved holds duplicates kept because the user approved them.
	Approved []Duplicate
}

// Key computes the synthetic duplicate key of a row.
func Key(row types.Row) string {
	parts := make([]string, len(txn.Essentials))
	for i, field := range txn.Essentials {
		parts[i] = normalizeValue(row[field])
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// normalizeValue trims and uppercases a value; numbers are rounded and
// printed without trailing zeros so "100", "100.00" and "100.0" agree.
func normalizeValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if d, err := decimal.NewFromString(v); err == nil {
		return d.Round(keyPrecision).String()
	}
	return strings.ToUpper(v)
}

// FilterIntra keeps the first occurrence of each key within the batch.
// Later occurrences are dropped unless approved.
func FilterIntra(batch *types.Batch, approval Approval) Result {
	res := Result{Batch: batch.WithRows(make([]types.Row, 0, len(batch.Rows)))}
	seen := map[string]struct{}{}

	for _, row := range batch.Rows {
		key := Key(row)
		if _, dup := seen[key]; dup {
			d := Duplicate{Row: row, Key: key, Summary: txn.Summary(row)}
			if !approval.Approved(row) {
				res.Rejected = append(res.Rejected, d)
				continue
			}
			res.Approved = append(res.Approved, d)
		}
		seen[key] = struct{}{}
		res.Batch.Rows = append(res.Batch.Rows, row)
	}
	return res
}

// FilterStore drops rows whose key is already present among the stored
// rows. Keys are counted: each stored copy of a key accounts for one
// incoming copy, and an approved row is kept only once the incoming copies
// of its key outnumber the stored ones. Re-importing a file with approved
// duplicates therefore adds nothing. A nil or empty store leaves the batch
// unchanged.
func FilterStore(batch *types.Batch, stored []types.Row, approval Approval) Result {
	if len(stored) == 0 {
		return Result{Batch: batch.WithRows(append([]types.Row(nil), batch.Rows...))}
	}

	existing := KeyCounts(stored)
	incoming := map[string]int{}
	res := Result{Batch: batch.WithRows(make([]types.Row, 0, len(batch.Rows)))}
	for _, row := range batch.Rows {
		key := Key(row)
		have := existing[key]
		if have == 0 {
			res.Batch.Rows = append(res.Batch.Rows, row)
			continue
		}

		incoming[key]++
		d := Duplicate{Row: row, Key: key, Summary: txn.Summary(row)}
		if incoming[key] <= have || !approval.Approved(row) {
			res.Rejected = append(res.Rejected, d)
			continue
		}
		res.Approved = append(res.Approved, d)
		res.Batch.Rows = append(res.Batch.Rows, row)
	}
	return res
}

// KeyCounts counts the rows per key.
func KeyCounts(rows []types.Row) map[string]int {
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[Key(r)]++
	}
	return counts
}
