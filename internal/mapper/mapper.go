// Package mapper renames a raw batch's columns to canonical transaction
// field names using configured header synonyms.
package mapper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ginjaninja78/folio/internal/config"
	"github.com/ginjaninja78/folio/internal/txn"
	"github.com/ginjaninja78/folio/internal/types"
)

// Options configures a mapping run.
type Options struct {
	// HeaderKeywords maps each essential field to its header synonyms.
	HeaderKeywords map[string][]string

	// OptionalFields are the non-essential canonical fields.
	OptionalFields map[string]config.OptionalField

	// HeaderIgnore lists incoming headers to drop.
	HeaderIgnore []string

	// FallbackAccount fills the Account column when no incoming column maps
	// to it. Empty means no fallback.
	FallbackAccount string
}

// OptionsFromConfig builds mapping options from the configuration.
func OptionsFromConfig(cfg *config.Config, fallbackAccount string) Options {
	return Options{
		HeaderKeywords:  cfg.HeaderKeywords,
		OptionalFields:  cfg.OptionalFields,
		HeaderIgnore:    cfg.HeaderIgnore,
		FallbackAccount: fallbackAccount,
	}
}

// ColumnMapping records one renamed column.
type ColumnMapping struct {
	From string
	To   string
}

// Result is the outcome of a mapping run.
type Result struct {
	// Batch is the renamed batch. The input batch is not modified.
	Batch *types.Batch

	// Mappings lists renamed columns in incoming order.
	Mappings []ColumnMapping

	// Ignored lists incoming columns dropped by header_ignore.
	Ignored []string

	// Shadowed lists incoming columns dropped because their name collides
	// with a canonical field already claimed by another column.
	Shadowed []string

	// AccountFilled is true when the fallback account was applied.
	AccountFilled bool
}

// MappingError reports essential fields no incoming column maps to. It is
// fatal for the import.
type MappingError struct {
	Missing []string
	Columns []string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("MISSING essential columns %s (file columns: %s)",
		strings.Join(e.Missing, ", "), strings.Join(e.Columns, ", "))
}

// Normalize lowercases and trims a header and keeps only a-z, 0-9 and "$".
func Normalize(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(header)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '$' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// field is a canonical field with its normalized keywords.
type field struct {
	name     string
	keywords map[string]bool
}

// fields returns the canonical fields in claim order: essentials first, then
// optional fields by name.
func (o Options) fields() []field {
	build := func(name string, words []string) field {
		f := field{name: name, keywords: map[string]bool{Normalize(name): true}}
		for _, w := range words {
			if n := Normalize(w); n != "" {
				f.keywords[n] = true
			}
		}
		return f
	}

	out := make([]field, 0, len(txn.Essentials)+len(o.OptionalFields))
	for _, name := range txn.Essentials {
		out = append(out, build(name, o.HeaderKeywords[name]))
	}

	names := make([]string, 0, len(o.OptionalFields))
	for name := range o.OptionalFields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, build(name, o.OptionalFields[name].Keywords))
	}
	return out
}

// Map renames batch columns to canonical names.
//
// Incoming columns are visited left to right; each claims the first
// unclaimed canonical field whose keywords contain its normalized header.
// A canonical field is claimed at most once, so later matching columns pass
// through under their own names.
func Map(batch *types.Batch, opts Options) (*Result, error) {
	fields := opts.fields()

	essentialKeyword := map[string]bool{}
	for _, f := range fields[:len(txn.Essentials)] {
		for k := range f.keywords {
			essentialKeyword[k] = true
		}
	}
	ignore := map[string]bool{}
	for _, h := range opts.HeaderIgnore {
		ignore[Normalize(h)] = true
	}

	res := &Result{}
	claimed := map[string]string{} // canonical -> incoming
	rename := map[string]string{}  // incoming -> output name
	output := map[string]bool{}    // lowercased output names
	var columns []string

	for _, col := range batch.Columns {
		if _, dup := rename[col]; dup {
			res.Shadowed = append(res.Shadowed, col)
			continue
		}
		norm := Normalize(col)
		if ignore[norm] && !essentialKeyword[norm] {
			res.Ignored = append(res.Ignored, col)
			continue
		}

		target := ""
		for _, f := range fields {
			if _, taken := claimed[f.name]; taken || output[strings.ToLower(f.name)] {
				continue
			}
			if f.keywords[norm] {
				target = f.name
				break
			}
		}
		if target != "" {
			claimed[target] = col
			rename[col] = target
			output[strings.ToLower(target)] = true
			if col != target {
				res.Mappings = append(res.Mappings, ColumnMapping{From: col, To: target})
			}
			columns = append(columns, target)
			continue
		}
		if output[strings.ToLower(col)] {
			// Same name as a column already in the output, usually a
			// canonical field another column claimed.
			res.Shadowed = append(res.Shadowed, col)
			continue
		}
		rename[col] = col
		output[strings.ToLower(col)] = true
		columns = append(columns, col)
	}

	var missing []string
	for _, e := range txn.Essentials {
		if _, ok := claimed[e]; !ok {
			missing = append(missing, e)
		}
	}
	if len(missing) > 0 {
		return nil, &MappingError{Missing: missing, Columns: batch.Columns}
	}

	out := &types.Batch{Columns: columns, Source: batch.Source, Rows: make([]types.Row, len(batch.Rows))}
	for i, r := range batch.Rows {
		row := make(types.Row, len(r))
		for col, v := range r {
			if to, ok := rename[col]; ok {
				row.Set(to, v)
			}
		}
		out.Rows[i] = row
	}

	if _, ok := claimed[txn.Account]; !ok && strings.TrimSpace(opts.FallbackAccount) != "" {
		out.AddColumn(txn.Account)
		for _, row := range out.Rows {
			row.Set(txn.Account, strings.TrimSpace(opts.FallbackAccount))
		}
		res.AccountFilled = true
	}

	res.Batch = out
	return res, nil
}
