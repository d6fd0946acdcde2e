// =============================================================================
// folio - Shared Types
// =============================================================================
//
// This package contains the tabular batch type that flows between the import
// stages. It lives on its own to avoid import cycles between:
//   - csvparser / xlsxparser (producers)
//   - mapper, validation, dedup, transform, settlement (stages)
//   - store, pipeline, report (consumers)
//
// NULL HANDLING:
//   A Row is a map of column name -> cell text. A missing key is a null cell.
//   Stages never store the empty string; Set("") deletes the key instead.
//
// =============================================================================

package types

import "strings"

// =============================================================================
// ROW
// =============================================================================

// Row is a single record keyed by column name.
type Row map[string]string

// Get returns the cell value and whether it is non-null.
func (r Row) Get(col string) (string, bool) {
	v, ok := r[col]
	return v, ok
}

// Set stores a value. Blank values are stored as null.
func (r Row) Set(col, value string) {
	if strings.TrimSpace(value) == "" {
		delete(r, col)
		return
	}
	r[col] = value
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// =============================================================================
// BATCH
// =============================================================================

// Batch is an ordered set of columns plus rows keyed by those columns.
type Batch struct {
	// Columns is the column order. It is the order new store columns are
	// created in and the order rows are written in.
	Columns []string

	// Rows holds the records. Keys not listed in Columns are ignored.
	Rows []Row

	// Source is the file the batch was read from, for logs.
	Source string
}

// New creates an empty batch with the given columns.
func New(columns ...string) *Batch {
	return &Batch{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (b *Batch) Len() int {
	return len(b.Rows)
}

// HasColumn reports whether the batch carries the named column.
func (b *Batch) HasColumn(name string) bool {
	return b.ColumnIndex(name) >= 0
}

// ColumnIndex returns the position of a column, or -1.
func (b *Batch) ColumnIndex(name string) int {
	for i, c := range b.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AddColumn appends a column if it is not present yet.
func (b *Batch) AddColumn(name string) {
	if !b.HasColumn(name) {
		b.Columns = append(b.Columns, name)
	}
}

// DropColumn removes a column and its cells.
func (b *Batch) DropColumn(name string) {
	i := b.ColumnIndex(name)
	if i < 0 {
		return
	}
	b.Columns = append(b.Columns[:i:i], b.Columns[i+1:]...)
	for _, r := range b.Rows {
		delete(r, name)
	}
}

// WithRows returns a batch sharing this batch's columns and source but
// holding the given rows.
func (b *Batch) WithRows(rows []Row) *Batch {
	return &Batch{
		Columns: append([]string(nil), b.Columns...),
		Rows:    rows,
		Source:  b.Source,
	}
}

// Clone deep-copies the batch.
func (b *Batch) Clone() *Batch {
	rows := make([]Row, len(b.Rows))
	for i, r := range b.Rows {
		rows[i] = r.Clone()
	}
	return b.WithRows(rows)
}
