// =============================================================================
// folio - Field Formatter/Validator
// =============================================================================
//
// This module normalizes and validates every canonical field of a mapped
// batch. It is a pure function: the input batch is never modified, and the
// result carries the kept rows plus the excluded rows with their reasons.
//
// VALIDATION STRATEGY:
//   1. Resolve the row's action (synonyms, then enum check)
//   2. Pick the action's ruleset (unknown actions use the default ruleset)
//   3. Format each essential field, collecting MISSING / INVALID reasons
//   4. Format optional typed fields; a bad optional value becomes null
//
// A row with at least one reason is excluded. Reasons accumulate, so an
// excluded row lists every problem it has.
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/folio/internal/config"
	"github.com/ginjaninja78/folio/internal/txn"
	"github.com/ginjaninja78/folio/internal/types"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// Exclusion records a row rejected by the formatter.
type Exclusion struct {
	// Index is the row's position in the input batch (0-based).
	Index int

	// Row is the row as it was received.
	Row types.Row

	// Summary renders the row's essential values.
	Summary string

	// Reasons lists every problem, e.g. "MISSING Price", "INVALID TxnDate".
	Reasons []string
}

func (e Exclusion) String() string {
	return fmt.Sprintf("row %d [%s]: %s", e.Index+1, e.Summary, strings.Join(e.Reasons, ", "))
}

// Result is the outcome of formatting a batch.
type Result struct {
	// Batch holds the formatted rows that passed validation.
	Batch *types.Batch

	// Excluded holds the rejected rows, in input order.
	Excluded []Exclusion
}

// Options configures the formatter.
type Options struct {
	// OptionalFields maps optional column name -> value type.
	OptionalFields map[string]config.OptionalField
}

// OptionsFromConfig builds formatter options from the configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{OptionalFields: cfg.OptionalFields}
}

// =============================================================================
// FORMATTER
// =============================================================================

// Reason builders.
func missing(field string) string { return "MISSING " + field }
func invalid(field string) string { return "INVALID " + field }

// Format normalizes and validates a mapped batch.
func Format(batch *types.Batch, opts Options) Result {
	res := Result{Batch: batch.WithRows(make([]types.Row, 0, len(batch.Rows)))}

	for i, in := range batch.Rows {
		row, reasons := formatRow(in, opts)
		if len(reasons) > 0 {
			res.Excluded = append(res.Excluded, Exclusion{
				Index:   i,
				Row:     in.Clone(),
				Summary: txn.Summary(in),
				Reasons: reasons,
			})
			continue
		}
		res.Batch.Rows = append(res.Batch.Rows, row)
	}
	return res
}

// formatRow formats a single row and returns its reasons for exclusion.
func formatRow(in types.Row, opts Options) (types.Row, []string) {
	row := in.Clone()
	var reasons []string

	// Action first: it selects the ruleset for the numeric fields.
	action := txn.ActionUnknown
	rawAction, hasAction := row.Get(txn.ActionField)
	actionReason := ""
	if !hasAction {
		actionReason = missing(txn.ActionField)
	} else if a, err := txn.ParseAction(rawAction); err != nil {
		actionReason = invalid(txn.ActionField)
	} else {
		action = a
		row.Set(txn.ActionField, a.String())
	}
	rules := txn.RulesFor(action)

	for _, field := range txn.Essentials {
		var reason string
		switch field {
		case txn.Date:
			reason = formatRequiredDate(row, field)
		case txn.ActionField:
			reason = actionReason
		case txn.CurrencyField:
			reason = formatCurrency(row, field)
		case txn.Ticker:
			reason = formatTicker(row, rules.Requires(field))
		case txn.Price:
			reason = formatNumeric(row, field, rules.Requires(field), true)
		default:
			reason = formatNumeric(row, field, rules.Requires(field), false)
		}
		if reason != "" {
			reasons = append(reasons, reason)
		}
	}

	formatOptional(row, opts.OptionalFields)
	return row, reasons
}

// formatRequiredDate formats an essential date field.
func formatRequiredDate(row types.Row, field string) string {
	raw, ok := row.Get(field)
	if !ok {
		return missing(field)
	}
	d, ok := FormatDate(raw)
	if !ok {
		return invalid(field)
	}
	row.Set(field, d)
	return ""
}

// formatCurrency resolves the currency enum. Currency is always required.
func formatCurrency(row types.Row, field string) string {
	raw, ok := row.Get(field)
	if !ok {
		return missing(field)
	}
	c, err := txn.ParseCurrency(raw)
	if err != nil {
		return invalid(field)
	}
	row.Set(field, c.String())
	return ""
}

// formatTicker uppercases the ticker. A present but malformed ticker is
// always rejected.
func formatTicker(row types.Row, required bool) string {
	raw, ok := row.Get(txn.Ticker)
	if !ok {
		if required {
			return missing(txn.Ticker)
		}
		return ""
	}
	t, valid := NormalizeTicker(raw)
	if !valid {
		return invalid(txn.Ticker)
	}
	row.Set(txn.Ticker, t)
	return ""
}

// formatNumeric parses a numeric field. Optional fields that fail to parse
// are nulled instead of rejected.
func formatNumeric(row types.Row, field string, required, nonNegative bool) string {
	raw, ok := row.Get(field)
	if !ok {
		if required {
			return missing(field)
		}
		return ""
	}
	d, valid := ParseNumber(raw)
	if valid && nonNegative && d.IsNegative() {
		valid = false
	}
	if !valid {
		if required {
			return invalid(field)
		}
		delete(row, field)
		return ""
	}
	row.Set(field, FormatNumber(d))
	return ""
}

// formatOptional formats configured optional columns by type. It never
// rejects a row.
func formatOptional(row types.Row, fields map[string]config.OptionalField) {
	for name, f := range fields {
		raw, ok := row.Get(name)
		if !ok {
			continue
		}
		var (
			value string
			valid bool
		)
		switch f.Type {
		case config.TypeDate:
			value, valid = FormatDate(raw)
		case config.TypeNumeric:
			if n, ok := ParseNumber(raw); ok {
				value, valid = FormatNumber(n), true
			}
		case config.TypeCurrency:
			if c, err := txn.ParseCurrency(raw); err == nil {
				value, valid = c.String(), true
			}
		case config.TypeAction:
			if a, err := txn.ParseAction(raw); err == nil {
				value, valid = a.String(), true
			}
		default:
			value, valid = strings.TrimSpace(raw), true
		}
		if !valid {
			delete(row, name)
			continue
		}
		row.Set(name, value)
	}
}
