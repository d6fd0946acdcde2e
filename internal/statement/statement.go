// =============================================================================
// folio - Statement Settlement Import
// =============================================================================
//
// Broker monthly statements report the real settlement date of each trade.
// This module reads a statement and replaces calculated settlement dates in
// the store with the reported ones. It never inserts rows.
//
// STATEMENT COLUMNS (case-insensitive):
//   date         settlement date
//   amount       trade amount (sign ignored)
//   currency     USD or CAD
//   transaction  action, e.g. BUY
//   description  "<TICKER> - ... <N> SHARES ... <trade date>"
//
// MATCHING:
//   A statement line matches a stored row with a calculated settlement date
//   when action, trade date, ticker and currency are equal, the amounts agree
//   within 0.01 and, when the description gives units, the units agree
//   within 0.0001. Only lines with exactly one match are applied.
//
// =============================================================================

package statement

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ginjaninja78/folio/internal/logger"
	"github.com/ginjaninja78/folio/internal/settlement"
	"github.com/ginjaninja78/folio/internal/store"
	"github.com/ginjaninja78/folio/internal/txn"
	"github.com/ginjaninja78/folio/internal/types"
	"github.com/ginjaninja78/folio/internal/validation"
	"github.com/ginjaninja78/folio/pkg/utils"
	"github.com/shopspring/decimal"
)

// Required statement columns.
var Columns = []string{"date", "amount", "currency", "transaction", "description"}

var (
	amountTolerance = decimal.RequireFromString("0.01")
	unitsTolerance  = decimal.RequireFromString("0.0001")

	tickerRe = regexp.MustCompile(`^([A-Z]{1,5}(?:[.-][A-Z]{1,5})?)\s+-`)
	unitsRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:SHARES?|UNITS?)`)
	dateRes  = []*regexp.Regexp{
		regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),
		regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`),
		regexp.MustCompile(`(\d{2}-\d{2}-\d{4})`),
	}
)

// Entry is one usable statement line.
type Entry struct {
	SettleDate string
	Action     txn.Action
	Ticker     string
	TxnDate    string
	Currency   txn.Currency

	// Amount is the absolute amount.
	Amount decimal.Decimal

	// Units is zero when the description does not state them.
	Units decimal.Decimal
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s %s on %s", e.Action, e.Ticker, e.Amount.String(), e.TxnDate)
}

// MissingColumnsError reports statement columns that are absent.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return "statement is missing columns: " + strings.Join(e.Missing, ", ")
}

// ParseDescription extracts the ticker, units and trade date from a
// statement description. Absent parts are returned empty or zero.
func ParseDescription(description string) (ticker string, units decimal.Decimal, txnDate string) {
	d := strings.ToUpper(description)

	if m := tickerRe.FindStringSubmatch(d); m != nil {
		ticker = m[1]
	}
	if m := unitsRe.FindStringSubmatch(d); m != nil {
		units, _ = decimal.NewFromString(m[1])
	}
	for _, re := range dateRes {
		if m := re.FindStringSubmatch(d); m != nil {
			if t, ok := validation.ParseDate(m[1]); ok {
				txnDate = t.Format(validation.DateLayout)
			}
			break
		}
	}
	return ticker, units, txnDate
}

// Parse turns statement rows into entries. Lines that are not trades or lack
// a ticker or trade date are skipped.
func Parse(batch *types.Batch) ([]Entry, error) {
	col := map[string]string{}
	for _, c := range batch.Columns {
		col[strings.ToLower(strings.TrimSpace(c))] = c
	}
	var missing []string
	for _, want := range Columns {
		if _, ok := col[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}

	var entries []Entry
	for _, row := range batch.Rows {
		settle, ok := validation.ParseDate(row[col["date"]])
		if !ok {
			continue
		}
		action, err := txn.ParseAction(row[col["transaction"]])
		if err != nil || !settlement.SettlesOnBusinessDay(action) {
			continue
		}
		ticker, units, txnDate := ParseDescription(row[col["description"]])
		if ticker == "" || txnDate == "" {
			continue
		}
		cur, err := txn.ParseCurrency(row[col["currency"]])
		if err != nil {
			continue
		}
		amount, ok := validation.ParseNumber(row[col["amount"]])
		if !ok {
			continue
		}
		if cur == txn.CAD && !strings.HasSuffix(ticker, ".TO") {
			ticker += ".TO"
		}

		entries = append(entries, Entry{
			SettleDate: settle.Format(validation.DateLayout),
			Action:     action,
			Ticker:     ticker,
			TxnDate:    txnDate,
			Currency:   cur,
			Amount:     amount.Abs(),
			Units:      units,
		})
	}
	return entries, nil
}

// Match returns the stored records an entry matches.
func Match(records []store.Record, e Entry) []store.Record {
	var out []store.Record
	for _, r := range records {
		row := r.Row
		if row[txn.ActionField] != e.Action.String() ||
			row[txn.Date] != e.TxnDate ||
			row[txn.Ticker] != e.Ticker ||
			row[txn.CurrencyField] != e.Currency.String() {
			continue
		}
		if !within(row[txn.Amount], e.Amount, amountTolerance) {
			continue
		}
		if e.Units.IsPositive() && !within(row[txn.Units], e.Units, unitsTolerance) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// within reports whether |raw| differs from want by less than tol.
func within(raw string, want, tol decimal.Decimal) bool {
	v, ok := validation.ParseNumber(raw)
	if !ok {
		return false
	}
	return v.Abs().Sub(want).Abs().LessThan(tol)
}

// =============================================================================
// IMPORTER
// =============================================================================

// Result summarizes a statement import.
type Result struct {
	// Candidates is the number of usable statement lines.
	Candidates int

	// Updated is the number of stored rows given a reported date.
	Updated int

	Unmatched []Entry
	Ambiguous []Entry

	BackupPath string
}

// Importer applies statements to a store.
type Importer struct {
	store  *store.Store
	table  string
	backup *utils.BackupManager
	log    *slog.Logger
}

// NewImporter creates an importer. A nil backup manager disables backups.
func NewImporter(st *store.Store, table string, backup *utils.BackupManager, log *slog.Logger) *Importer {
	return &Importer{store: st, table: table, backup: backup, log: logger.OrDiscard(log)}
}

// Import matches a statement against the stored calculated settlements and
// writes the reported dates.
func (im *Importer) Import(ctx context.Context, batch *types.Batch) (*Result, error) {
	im.log.Info("IMPORT STATEMENT", "source", batch.Source, "rows", batch.Len())

	entries, err := Parse(batch)
	if err != nil {
		return nil, err
	}
	res := &Result{Candidates: len(entries)}
	if len(entries) == 0 {
		return res, nil
	}

	records, err := im.store.CalculatedSettlements(ctx, im.table)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		im.log.Info("no calculated settlement dates to update")
		return res, nil
	}

	var updates []store.SettlementUpdate
	used := map[int64]bool{}
	for _, e := range entries {
		var free []store.Record
		for _, r := range Match(records, e) {
			if !used[r.ID] {
				free = append(free, r)
			}
		}
		switch len(free) {
		case 0:
			res.Unmatched = append(res.Unmatched, e)
		case 1:
			used[free[0].ID] = true
			updates = append(updates, store.SettlementUpdate{ID: free[0].ID, Date: e.SettleDate})
			im.log.Info("MATCH", "txn", txn.Summary(free[0].Row), "settle", e.SettleDate)
		default:
			res.Ambiguous = append(res.Ambiguous, e)
			im.log.Warn("multiple matches, skipping", "entry", e.String())
		}
	}
	im.log.Info(fmt.Sprintf("FOUND %d MATCHES OUT OF %d CANDIDATES", len(updates), len(entries)))

	if len(updates) == 0 {
		return res, nil
	}
	if res.BackupPath, err = im.store.Backup(ctx, im.table, im.backup); err != nil {
		return nil, err
	}
	if res.Updated, err = im.store.UpdateSettlements(ctx, im.table, updates); err != nil {
		return nil, err
	}
	im.log.Info("DONE", "updated", res.Updated)
	return res, nil
}
