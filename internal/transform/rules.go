package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ginjaninja78/folio/internal/config"
	"github.com/ginjaninja78/folio/internal/types"
	"github.com/ginjaninja78/folio/internal/validation"
	"github.com/shopspring/decimal"
)

// condition is one field condition of a rule.
type condition struct {
	field   string
	strings map[string]bool
	numbers []decimal.Decimal
}

// rule is a compiled transform rule. Fields are kept sorted so logs and
// events are deterministic.
type rule struct {
	index      int
	conditions []condition
	fields     []string
	values     map[string]string
}

func newRule(index int, r config.TransformRule) rule {
	out := rule{index: index, values: map[string]string{}}

	condFields := make([]string, 0, len(r.Conditions))
	for f := range r.Conditions {
		condFields = append(condFields, f)
	}
	sort.Strings(condFields)
	for _, f := range condFields {
		c := condition{field: f, strings: map[string]bool{}}
		for _, v := range r.Conditions[f] {
			v = strings.TrimSpace(v)
			c.strings[v] = true
			if d, err := decimal.NewFromString(v); err == nil {
				c.numbers = append(c.numbers, d)
			}
		}
		out.conditions = append(out.conditions, c)
	}

	for f, v := range r.Actions {
		out.fields = append(out.fields, f)
		out.values[f] = strings.TrimSpace(v)
	}
	sort.Strings(out.fields)
	return out
}

// matches reports whether a cell satisfies the condition. A value matches as
// a string, or as a number when both sides are numeric.
func (c condition) matches(row types.Row) bool {
	v, ok := row.Get(c.field)
	if !ok {
		return false
	}
	v = strings.TrimSpace(v)
	if c.strings[v] {
		return true
	}
	if len(c.numbers) == 0 {
		return false
	}
	d, ok := validation.ParseNumber(v)
	if !ok {
		return false
	}
	for _, n := range c.numbers {
		if d.Equal(n) {
			return true
		}
	}
	return false
}

// applyRule applies one rule to the result batch in place.
func (e *Engine) applyRule(res *Result, r rule) {
	for _, c := range r.conditions {
		if !res.Batch.HasColumn(c.field) {
			msg := fmt.Sprintf("rule %d: condition field '%s' not in batch", r.index, c.field)
			e.log.Info("SKIP transform", "reason", msg)
			res.Skipped = append(res.Skipped, msg)
			return
		}
	}

	var matched []types.Row
	for _, row := range res.Batch.Rows {
		ok := true
		for _, c := range r.conditions {
			if !c.matches(row) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, row)
		}
	}
	if len(matched) == 0 {
		return
	}

	for _, field := range r.fields {
		if !res.Batch.HasColumn(field) {
			msg := fmt.Sprintf("rule %d: target field '%s' not in batch", r.index, field)
			e.log.Warn("SKIP transform", "reason", msg)
			res.Skipped = append(res.Skipped, msg)
			continue
		}

		newValue := r.values[field]
		var old []string
		seen := map[string]bool{}
		for _, row := range matched {
			prev := row[field]
			if !seen[prev] {
				seen[prev] = true
				old = append(old, prev)
			}
			row.Set(field, newValue)
		}

		ev := RuleEvent{Rule: r.index, Field: field, OldValues: old, NewValue: newValue, Rows: len(matched)}
		e.log.Info(ev.String())
		res.Events = append(res.Events, ev)
	}
}
