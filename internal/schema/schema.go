// Package schema reconciles an import batch's columns with the store's
// column set. The store only ever grows: existing columns keep their order
// and genuinely new batch columns are appended.
package schema

import (
	"context"
	"strings"

	"github.com/ginjaninja78/folio/internal/txn"
	"github.com/ginjaninja78/folio/internal/types"
)

// Plan is the reconciled column layout.
type Plan struct {
	// Final is the full column order after evolution.
	Final []string

	// Added lists the columns that must be created, in order.
	Added []string

	// Renamed maps batch columns to the spelling of the column they land
	// in when the two differ only in case.
	Renamed map[string]string
}

// ColumnAdder adds a nullable column to a table.
type ColumnAdder interface {
	AddColumn(ctx context.Context, table, column string) error
}

// NewPlan computes the final column order. Existing columns come first in
// their current order, then new batch columns in batch order. With no
// existing columns the essentials lead.
//
// Column names compare case-insensitively, as SQLite does: a batch column
// matching an existing one in another case is written to the existing
// column. The id column is never planned.
func NewPlan(existing, batchColumns []string) Plan {
	p := Plan{Renamed: map[string]string{}}
	have := map[string]string{strings.ToLower(txn.ID): txn.ID}

	keep := func(c string) {
		have[strings.ToLower(c)] = c
		p.Final = append(p.Final, c)
	}

	if len(existing) == 0 {
		for _, e := range txn.Essentials {
			keep(e)
		}
	} else {
		for _, c := range existing {
			if _, ok := have[strings.ToLower(c)]; !ok {
				keep(c)
			}
		}
	}

	for _, c := range batchColumns {
		if stored, ok := have[strings.ToLower(c)]; ok {
			if stored != c && stored != txn.ID {
				p.Renamed[c] = stored
			}
			continue
		}
		keep(c)
		if len(existing) > 0 {
			p.Added = append(p.Added, c)
		}
	}
	return p
}

// Reindex returns the batch laid out in the plan's final columns, with
// case-variant columns written under their stored spelling.
func (p Plan) Reindex(batch *types.Batch) *types.Batch {
	if len(p.Renamed) == 0 {
		return Reindex(batch, p.Final)
	}
	renamed := batch.Clone()
	for _, r := range renamed.Rows {
		for from, to := range p.Renamed {
			v, ok := r.Get(from)
			if !ok {
				continue
			}
			if _, taken := r.Get(to); !taken {
				r.Set(to, v)
			}
		}
	}
	return Reindex(renamed, p.Final)
}

// Apply creates the plan's new columns. Running it with a plan computed
// from the evolved column set is a no-op.
func Apply(ctx context.Context, adder ColumnAdder, table string, p Plan) error {
	for _, c := range p.Added {
		if err := adder.AddColumn(ctx, table, c); err != nil {
			return err
		}
	}
	return nil
}

// Reindex returns a batch holding the final columns. Cells of columns the
// batch lacks are null; cells of columns outside final are dropped.
func Reindex(batch *types.Batch, final []string) *types.Batch {
	out := &types.Batch{Columns: append([]string(nil), final...), Source: batch.Source}
	out.Rows = make([]types.Row, len(batch.Rows))
	for i, r := range batch.Rows {
		row := make(types.Row, len(r))
		for _, c := range final {
			if v, ok := r.Get(c); ok {
				row.Set(c, v)
			}
		}
		out.Rows[i] = row
	}
	return out
}
