// =============================================================================
// folio - Transaction Store
// =============================================================================
//
// SQLite persistence for imported transactions (modernc.org/sqlite, pure Go).
//
// TABLE LAYOUT:
//   - TxnId INTEGER PRIMARY KEY AUTOINCREMENT
//   - the essential fields as TEXT
//   - optional columns added over time by schema evolution, all TEXT
//
// Values are stored as the canonical strings produced by the formatter, so
// decimals round-trip exactly. Missing cells are NULL.
//
// =============================================================================

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ginjaninja78/folio/internal/txn"
	"github.com/ginjaninja78/folio/internal/types"
	"github.com/ginjaninja78/folio/pkg/utils"

	_ "modernc.org/sqlite"
)

// Store is an open transaction database.
type Store struct {
	db   *sql.DB
	path string
}

// Record is a stored row with its id.
type Record struct {
	ID  int64
	Row types.Row
}

// Open opens (or creates) the database at dsn. Pass ":memory:" for an
// in-memory database.
//
// PARAMETERS:
//   - dsn: file path or ":memory:"
//
// RETURNS:
//   - *Store: ready for use; the caller must Close it
//   - error: if the file cannot be opened or configured
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer; an in-memory database also lives on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	return &Store{db: db, path: dsn}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the dsn the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Checkpoint folds the write-ahead log into the main database file so a
// plain file copy is complete.
func (s *Store) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	return nil
}

// Backup copies the database file before a write. Nothing is copied for a
// nil manager, an in-memory database or an empty table; the returned path
// is then empty.
func (s *Store) Backup(ctx context.Context, table string, bm *utils.BackupManager) (string, error) {
	if bm == nil || s.path == ":memory:" {
		return "", nil
	}
	rows, err := s.Count(ctx, table)
	if err != nil || rows == 0 {
		return "", err
	}
	if err := s.Checkpoint(ctx); err != nil {
		return "", err
	}
	return bm.Backup(s.path, rows)
}

// Quote renders an identifier for SQL.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableExists reports whether the table has been created.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return true, nil
}

// EnsureTable creates the table with the id and essential columns if it
// does not exist yet.
func (s *Store) EnsureTable(ctx context.Context, table string) error {
	cols := []string{Quote(txn.ID) + " INTEGER PRIMARY KEY AUTOINCREMENT"}
	for _, e := range txn.Essentials {
		cols = append(cols, Quote(e)+" TEXT")
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", Quote(table), strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// Columns returns the table's data columns in order, without the id. A
// missing table has no columns.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+Quote(table)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		if name != txn.ID {
			cols = append(cols, name)
		}
	}
	return cols, rows.Err()
}

// Rows returns every stored row without its id. A missing table yields no
// rows and no error.
func (s *Store) Rows(ctx context.Context, table string) ([]types.Row, error) {
	records, err := s.query(ctx, table, "")
	if err != nil {
		return nil, err
	}
	out := make([]types.Row, len(records))
	for i, r := range records {
		out[i] = r.Row
	}
	return out, nil
}

// Count returns the number of stored rows, 0 for a missing table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	ok, err := s.TableExists(ctx, table)
	if err != nil || !ok {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+Quote(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// CalculatedSettlements returns the rows whose settlement date was
// calculated rather than reported by the broker.
func (s *Store) CalculatedSettlements(ctx context.Context, table string) ([]Record, error) {
	cols, err := s.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if !contains(cols, txn.SettleCalculated) {
		return nil, nil
	}
	return s.query(ctx, table, fmt.Sprintf("WHERE %s = '1'", Quote(txn.SettleCalculated)))
}

// SettlementUpdate sets a reported settlement date on one row.
type SettlementUpdate struct {
	ID   int64
	Date string
}

// UpdateSettlements records reported settlement dates and clears their
// calculated flag. All updates share one transaction.
func (s *Store) UpdateSettlements(ctx context.Context, table string, updates []SettlementUpdate) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("UPDATE %s SET %s = ?, %s = '0' WHERE %s = ?",
		Quote(table), Quote(txn.SettleDate), Quote(txn.SettleCalculated), Quote(txn.ID)))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare update: %w", err)
	}
	defer stmt.Close()

	updated := 0
	for _, u := range updates {
		res, err := stmt.ExecContext(ctx, u.Date, u.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to update row %d: %w", u.ID, err)
		}
		n, _ := res.RowsAffected()
		updated += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return updated, nil
}

// query selects rows of a table in id order. where may be empty.
func (s *Store) query(ctx context.Context, table, where string) ([]Record, error) {
	ok, err := s.TableExists(ctx, table)
	if err != nil || !ok {
		return nil, err
	}

	q := fmt.Sprintf("SELECT * FROM %s %s ORDER BY %s", Quote(table), where, Quote(txn.ID))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Record
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rec := Record{Row: types.Row{}}
		for i, c := range cols {
			if !vals[i].Valid {
				continue
			}
			if c == txn.ID {
				rec.ID, _ = strconv.ParseInt(vals[i].String, 10, 64)
				continue
			}
			rec.Row.Set(c, vals[i].String)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Tx groups the schema changes and inserts of one import.
type Tx struct {
	tx *sql.Tx
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// AddColumn adds a nullable TEXT column.
func (t *Tx) AddColumn(ctx context.Context, table, column string) error {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", Quote(table), Quote(column))
	if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to add column %s: %w", column, err)
	}
	return nil
}

// Append inserts every row of the batch, writing the batch's columns in
// order. It returns the number of rows inserted.
func (t *Tx) Append(ctx context.Context, table string, batch *types.Batch) (int, error) {
	if batch.Len() == 0 {
		return 0, nil
	}

	var cols []string
	for _, c := range batch.Columns {
		if c != txn.ID {
			cols = append(cols, c)
		}
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = Quote(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")

	stmt, err := t.tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		Quote(table), strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	args := make([]any, len(cols))
	for i, row := range batch.Rows {
		for j, c := range cols {
			if v, ok := row.Get(c); ok {
				args[j] = v
			} else {
				args[j] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return inserted, fmt.Errorf("failed to insert row %d: %w", i, err)
		}
		inserted++
	}
	return inserted, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Rollback abandons the transaction. Calling it after Commit is harmless.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
