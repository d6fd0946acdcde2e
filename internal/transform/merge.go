package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ginjaninja78/folio/internal/config"
	"github.com/ginjaninja78/folio/internal/txn"
	"github.com/ginjaninja78/folio/internal/types"
	"github.com/ginjaninja78/folio/internal/validation"
	"github.com/shopspring/decimal"
)

// nullMarker stands in for a null match value when building group keys, so
// rows with a missing match field group together.
const nullMarker = "\x00"

// applyGroup collapses every qualifying group of rows into a single row.
//
// Candidates are rows whose action is one of the group's source actions.
// They are grouped by the match fields; a group merges only when it holds
// at least two distinct actions covering every source action. Merged rows
// replace their sources and are appended after the remaining rows.
func (e *Engine) applyGroup(res *Result, g config.MergeGroup) {
	amountField := g.AmountField
	if amountField == "" {
		amountField = txn.Amount
	}

	var absent []string
	for _, f := range append(append([]string{}, g.MatchFields...), txn.ActionField, amountField) {
		if !res.Batch.HasColumn(f) {
			absent = append(absent, f)
		}
	}
	if len(absent) > 0 {
		msg := fmt.Sprintf("merge group '%s': fields not in batch: %s", g.Name, strings.Join(absent, ", "))
		e.log.Warn("SKIP merge", "reason", msg)
		res.Skipped = append(res.Skipped, msg)
		return
	}

	sources := map[string]bool{}
	for _, a := range g.SourceActions {
		sources[normalizeAction(a)] = true
	}

	// Group candidate row indices, keeping first-seen group order.
	groups := map[string][]int{}
	var order []string
	for i, row := range res.Batch.Rows {
		if !sources[normalizeAction(row[txn.ActionField])] {
			continue
		}
		key := matchKey(row, g.MatchFields)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	consumed := map[int]bool{}
	var merged []types.Row
	for _, key := range order {
		idx := groups[key]
		if !covers(res.Batch.Rows, idx, sources) {
			continue
		}

		rows := make([]types.Row, len(idx))
		for j, i := range idx {
			rows[j] = res.Batch.Rows[i]
			consumed[i] = true
		}
		out := mergeRows(res.Batch, rows, g, amountField)
		merged = append(merged, out)

		ev := MergeEvent{Group: g.Name, MatchValues: map[string]string{}, Sources: cloneRows(rows), Merged: out.Clone()}
		for _, f := range g.MatchFields {
			ev.MatchValues[f] = rows[0][f]
		}
		e.log.Info(ev.String())
		res.Merges = append(res.Merges, ev)
	}
	if len(merged) == 0 {
		return
	}

	kept := make([]types.Row, 0, len(res.Batch.Rows)-len(consumed)+len(merged))
	for i, row := range res.Batch.Rows {
		if !consumed[i] {
			kept = append(kept, row)
		}
	}
	res.Batch.Rows = append(kept, merged...)
}

// mergeRows builds the merged row from the first row of the group.
func mergeRows(batch *types.Batch, rows []types.Row, g config.MergeGroup, amountField string) types.Row {
	out := rows[0].Clone()
	out.Set(txn.ActionField, strings.TrimSpace(g.TargetAction))

	// Non-numeric amounts count as zero.
	sum := decimal.Zero
	for _, r := range rows {
		if d, ok := validation.ParseNumber(r[amountField]); ok {
			sum = sum.Add(d)
		}
	}
	out.Set(amountField, validation.FormatNumber(sum))

	fields := make([]string, 0, len(g.Operations))
	for f := range g.Operations {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if batch.HasColumn(f) {
			out.Set(f, strings.TrimSpace(g.Operations[f]))
		}
	}
	return out
}

// covers reports whether the rows at idx hold at least two distinct actions
// and include every source action.
func covers(rows []types.Row, idx []int, sources map[string]bool) bool {
	present := map[string]bool{}
	for _, i := range idx {
		present[normalizeAction(rows[i][txn.ActionField])] = true
	}
	if len(present) < 2 {
		return false
	}
	for a := range sources {
		if !present[a] {
			return false
		}
	}
	return true
}

func matchKey(row types.Row, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		v, ok := row.Get(f)
		if !ok {
			v = nullMarker
		}
		parts[i] = strings.TrimSpace(v)
	}
	return strings.Join(parts, "\x1f")
}

func normalizeAction(a string) string {
	return strings.ToUpper(strings.TrimSpace(a))
}

func cloneRows(rows []types.Row) []types.Row {
	out := make([]types.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
