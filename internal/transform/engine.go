// =============================================================================
// folio - Transform Engine
// =============================================================================
//
// This module applies user-configured rewrites to an import batch:
//   - Merge groups collapse related rows (a dividend and its withholding tax)
//     into a single row with a summed amount
//   - Rules rewrite fields on every row matching all of their conditions
//
// ORDER:
//   All merge groups run first, in configured order. Rules then run in
//   configured order; each rule sees the output of the previous one.
//
// CONFIGURATION PROBLEMS:
//   Malformed rules and merge groups are dropped with a warning when the
//   engine is built. A rule whose condition field is absent from a batch is
//   skipped for that batch. Neither is an error.
//
// =============================================================================

package transform

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ginjaninja78/folio/internal/config"
	"github.com/ginjaninja78/folio/internal/logger"
	"github.com/ginjaninja78/folio/internal/txn"
	"github.com/ginjaninja78/folio/internal/types"
)

// =============================================================================
// EVENTS AND RESULT
// =============================================================================

// RuleEvent records a rule action that changed at least one row.
type RuleEvent struct {
	// Rule is the 1-based position of the rule in the configuration.
	Rule int

	// Field is the rewritten field.
	Field string

	// OldValues lists the distinct previous values, in first-seen order.
	// A null value is listed as "".
	OldValues []string

	// NewValue is the value written ("" means null).
	NewValue string

	// Rows is the number of affected rows.
	Rows int
}

func (e RuleEvent) String() string {
	return fmt.Sprintf("TRANSFORM '%s' for %d row(s): [%s] -> %s",
		e.Field, e.Rows, strings.Join(e.OldValues, ", "), displayValue(e.NewValue))
}

// MergeEvent records one collapsed group.
type MergeEvent struct {
	// Group is the merge group name.
	Group string

	// MatchValues are the shared match-field values of the group.
	MatchValues map[string]string

	// Sources are the rows that were merged, in batch order.
	Sources []types.Row

	// Merged is the resulting row.
	Merged types.Row
}

func (e MergeEvent) String() string {
	return fmt.Sprintf("MERGE '%s': %d row(s) -> %s", e.Group, len(e.Sources), txn.Summary(e.Merged))
}

// Result is the outcome of applying the engine to a batch.
type Result struct {
	Batch  *types.Batch
	Merges []MergeEvent
	Events []RuleEvent

	// Skipped lists rules and groups skipped for this batch, with why.
	Skipped []string
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine applies rules and merge groups.
type Engine struct {
	rules  []rule
	groups []config.MergeGroup
	log    *slog.Logger
}

// New builds an engine from the transform configuration. Malformed entries
// are dropped with a warning.
func New(cfg config.Transforms, log *slog.Logger) *Engine {
	log = logger.OrDiscard(log)
	e := &Engine{log: log}

	for _, msg := range cfg.Invalid {
		log.Warn("SKIP transform entry: cannot decode", "error", msg)
	}
	for i, r := range cfg.Rules {
		if len(r.Conditions) == 0 || len(r.Actions) == 0 {
			log.Warn("SKIP transform rule: needs conditions and actions", "rule", i+1)
			continue
		}
		e.rules = append(e.rules, newRule(i+1, r))
	}

	for i, g := range cfg.MergeGroups {
		if err := checkGroup(g); err != nil {
			log.Warn("SKIP merge group", "group", groupName(g, i), "error", err)
			continue
		}
		if g.Name == "" {
			g.Name = groupName(g, i)
		}
		e.groups = append(e.groups, g)
	}
	return e
}

// Empty reports whether the engine has nothing to apply.
func (e *Engine) Empty() bool {
	return len(e.rules) == 0 && len(e.groups) == 0
}

// Apply runs all merge groups, then all rules. The input batch is not
// modified.
func (e *Engine) Apply(batch *types.Batch) Result {
	res := Result{Batch: batch.Clone()}

	for _, g := range e.groups {
		e.applyGroup(&res, g)
	}
	for _, r := range e.rules {
		e.applyRule(&res, r)
	}
	return res
}

func checkGroup(g config.MergeGroup) error {
	switch {
	case len(g.MatchFields) == 0:
		return fmt.Errorf("match_fields is empty")
	case len(g.SourceActions) == 0:
		return fmt.Errorf("source_actions is empty")
	case strings.TrimSpace(g.TargetAction) == "":
		return fmt.Errorf("target_action is empty")
	}
	return nil
}

func groupName(g config.MergeGroup, i int) string {
	if g.Name != "" {
		return g.Name
	}
	return fmt.Sprintf("merge_group_%d", i+1)
}

func displayValue(v string) string {
	if v == "" {
		return "null"
	}
	return v
}
