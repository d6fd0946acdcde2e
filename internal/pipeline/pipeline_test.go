package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ginjaninja78/folio/internal/calendar"
	"github.com/ginjaninja78/folio/internal/config"
	"github.com/ginjaninja78/folio/internal/mapper"
	"github.com/ginjaninja78/folio/internal/store"
	"github.com/ginjaninja78/folio/internal/types"
)

var canonical = []string{"TxnDate", "Action", "Amount", "$", "Price", "Units", "Ticker", "Account"}

// setup returns a pipeline over a fresh database in a temp directory.
func setup(t *testing.T, cfg *config.Config) (*Pipeline, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.Backup.Dir = filepath.Join(dir, "backups")

	st, err := store.Open(filepath.Join(dir, "folio.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	cal, err := calendar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return New(cfg, st, cal, nil), st
}

func rawBatch(columns []string, rows ...[]string) *types.Batch {
	b := types.New(columns...)
	b.Source = "test.csv"
	for _, values := range rows {
		r := types.Row{}
		for i, v := range values {
			r.Set(columns[i], v)
		}
		b.Rows = append(b.Rows, r)
	}
	return b
}

func tradeRows() *types.Batch {
	return rawBatch(canonical,
		[]string{"2024-01-01", "BUY", "1000.0", "USD", "100.0", "10.0", "AAPL", "ACC1"},
		[]string{"2024-01-02", "SELL", "500.0", "USD", "50.0", "10.0", "MSFT", "ACC1"},
		[]string{"2024-01-01", "BUY", "1000.0", "USD", "100.0", "10.0", "AAPL", "ACC1"},
	)
}

func TestImportDeduplicatesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p, st := setup(t, nil)

	n, audit, err := p.Import(ctx, tradeRows(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("first import persisted %d, want 2", n)
	}
	if len(audit.Excluded) != 0 || len(audit.IntraDuplicates) != 1 || len(audit.StoreDuplicates) != 0 {
		t.Errorf("audit = %s", audit.Summary())
	}
	if audit.BackupPath != "" {
		t.Error("an empty store should not be backed up")
	}

	rows, _ := st.Rows(ctx, "Txns")
	if len(rows) != 2 {
		t.Fatalf("stored %d rows", len(rows))
	}
	// 2024-01-01 is a market holiday; T+2 counts from the next trading day.
	if rows[0]["SettleDate"] != "2024-01-03" || rows[0]["SettleCalculated"] != "1" {
		t.Errorf("settlement = %v", rows[0])
	}
	if rows[0]["Amount"] != "1000" || rows[0]["Account"] != "ACC1" {
		t.Errorf("stored row = %v", rows[0])
	}

	n, audit, err = p.Import(ctx, tradeRows(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || len(audit.StoreDuplicates) != 2 {
		t.Errorf("second import persisted %d, store duplicates %d", n, len(audit.StoreDuplicates))
	}
	if count, _ := st.Count(ctx, "Txns"); count != 2 {
		t.Errorf("Count = %d", count)
	}
}

func TestImportMergesDividendWithTax(t *testing.T) {
	cfg := config.Default()
	cfg.Transforms.MergeGroups = []config.MergeGroup{{
		Name:          "dividend_tax",
		MatchFields:   []string{"TxnDate", "Ticker"},
		SourceActions: []string{"Dividends", "Withholding Tax"},
		TargetAction:  "DIVIDEND",
	}}
	p, st := setup(t, cfg)

	batch := rawBatch([]string{"Date", "Activity", "Net Amount", "Currency", "Price", "Quantity", "Symbol"},
		[]string{"2025-09-10", "Dividends", "26.88", "USD", "", "", "AAPL"},
		[]string{"2025-09-10", "Withholding Tax", "-4.03", "USD", "", "", "AAPL"},
	)
	n, audit, err := p.Import(context.Background(), batch, Options{Account: "TFSA"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(audit.Merges) != 1 || audit.MergedAway() != 1 {
		t.Fatalf("persisted %d, merges %v", n, audit.Merges)
	}
	if !audit.AccountFilled {
		t.Error("fallback account not applied")
	}

	rows, _ := st.Rows(context.Background(), "Txns")
	got := rows[0]
	if got["Action"] != "DIVIDEND" || got["Amount"] != "22.85" || got["Account"] != "TFSA" {
		t.Errorf("stored = %v", got)
	}
	if got["SettleDate"] != "2025-09-10" {
		t.Errorf("dividend should settle same day: %v", got)
	}
}

func TestImportMappingFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	p, st := setup(t, nil)

	batch := rawBatch([]string{"TxnDate", "Action", "Amount"}, []string{"2024-01-01", "BUY", "1"})
	n, _, err := p.Import(ctx, batch, Options{})

	var me *mapper.MappingError
	if !errors.As(err, &me) || n != 0 {
		t.Fatalf("err = %v, n = %d", err, n)
	}
	if ok, _ := st.TableExists(ctx, "Txns"); ok {
		t.Error("mapping failure created the table")
	}
}

func TestImportExcludesAndEvolvesSchema(t *testing.T) {
	ctx := context.Background()
	p, st := setup(t, nil)

	if _, _, err := p.Import(ctx, tradeRows(), Options{}); err != nil {
		t.Fatal(err)
	}
	before, _ := st.Columns(ctx, "Txns")

	cols := append(append([]string{}, canonical...), "Notes")
	batch := rawBatch(cols,
		[]string{"2024-02-01", "BUY", "-10", "USD", "", "1", "VFV", "ACC1", "missing price"},
		[]string{"2024-02-02", "CONTRIBUTION", "500", "CAD", "", "", "", "ACC1", "monthly"},
	)
	n, audit, err := p.Import(ctx, batch, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(audit.Excluded) != 1 {
		t.Fatalf("persisted %d, excluded %v", n, audit.Excluded)
	}
	if !strings.Contains(audit.Excluded[0].String(), "MISSING Price") {
		t.Errorf("exclusion = %s", audit.Excluded[0])
	}
	if len(audit.AddedColumns) != 1 || audit.AddedColumns[0] != "Notes" {
		t.Errorf("AddedColumns = %v", audit.AddedColumns)
	}

	after, _ := st.Columns(ctx, "Txns")
	if len(after) != len(before)+1 || after[len(after)-1] != "Notes" {
		t.Errorf("columns %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("column order changed: %v -> %v", before, after)
			break
		}
	}

	if audit.BackupPath == "" {
		t.Fatal("non-empty store was not backed up")
	}
	if _, err := os.Stat(audit.BackupPath); err != nil {
		t.Errorf("backup missing: %v", err)
	}
	if !strings.HasSuffix(audit.BackupPath, "_2.db") {
		t.Errorf("backup name should carry the row count: %s", audit.BackupPath)
	}
}

func TestImportApprovedDuplicate(t *testing.T) {
	ctx := context.Background()
	p, st := setup(t, nil)

	cols := append(append([]string{}, canonical...), "Duplicate")
	batch := rawBatch(cols,
		[]string{"2024-03-01", "BUY", "-100", "USD", "10", "10", "XEQT", "ACC1", ""},
		[]string{"2024-03-01", "BUY", "-100", "USD", "10", "10", "XEQT", "ACC1", "ok"},
	)
	n, audit, err := p.Import(ctx, batch, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || len(audit.Approved) != 1 {
		t.Errorf("persisted %d, approved %d", n, len(audit.Approved))
	}
	stored, _ := st.Columns(ctx, "Txns")
	for _, c := range stored {
		if c == "Duplicate" {
			t.Error("approval column reached the store")
		}
	}

	for run := 2; run <= 3; run++ {
		n, audit, err := p.Import(ctx, batch, Options{})
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 || len(audit.StoreDuplicates) != 2 {
			t.Errorf("import %d persisted %d, store duplicates %d", run, n, len(audit.StoreDuplicates))
		}
		if count, _ := st.Count(ctx, "Txns"); count != 2 {
			t.Errorf("import %d: Count = %d, want 2", run, count)
		}
	}
}

func TestImportColumnCaseVariant(t *testing.T) {
	ctx := context.Background()
	p, st := setup(t, nil)

	first := rawBatch(append(append([]string{}, canonical...), "Notes"),
		[]string{"2024-02-01", "BUY", "-100", "USD", "10", "10", "VFV", "ACC1", "first"},
	)
	if _, _, err := p.Import(ctx, first, Options{}); err != nil {
		t.Fatal(err)
	}

	second := rawBatch(append(append([]string{}, canonical...), "notes", "TxnId"),
		[]string{"2024-02-02", "BUY", "-200", "USD", "20", "10", "VFV", "ACC1", "second", "99"},
	)
	n, audit, err := p.Import(ctx, second, Options{})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if n != 1 || len(audit.AddedColumns) != 0 {
		t.Errorf("persisted %d, added %v", n, audit.AddedColumns)
	}

	rows, _ := st.Rows(ctx, "Txns")
	if len(rows) != 2 || rows[1]["Notes"] != "second" {
		t.Errorf("stored = %v", rows)
	}
}

func TestImportDryRun(t *testing.T) {
	ctx := context.Background()
	p, st := setup(t, nil)

	n, audit, err := p.Import(ctx, tradeRows(), Options{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || !audit.DryRun {
		t.Errorf("n = %d, DryRun = %v", n, audit.DryRun)
	}
	if ok, _ := st.TableExists(ctx, "Txns"); ok {
		t.Error("dry run created the table")
	}
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.csv")
	data := "Trade Date,Type,Net Amount,Currency,Price,Shares,Symbol\n" +
		"2024-05-24,Buy,-1500,USD,150,10,AAPL\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	p, st := setup(t, nil)
	n, _, err := p.ImportFile(context.Background(), path, Options{})
	if err != nil || n != 1 {
		t.Fatalf("ImportFile = %d, %v", n, err)
	}
	rows, _ := st.Rows(context.Background(), "Txns")
	if rows[0]["Action"] != "BUY" || rows[0]["SettleDate"] != "2024-05-29" {
		t.Errorf("stored = %v", rows[0])
	}

	if _, _, err := p.ImportFile(context.Background(), filepath.Join(dir, "x.pdf"), Options{}); err == nil {
		t.Error("expected unsupported file error")
	}
}

func TestImportFileRepeatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	data := "Date,Type,Net Amount,Currency,Price,Shares,Symbol,Date\n" +
		"2024-05-24,Buy,-1500,USD,150,10,AAPL,2024-05-29\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	p, st := setup(t, nil)
	n, audit, err := p.ImportFile(context.Background(), path, Options{})
	if err != nil || n != 1 {
		t.Fatalf("ImportFile = %d, %v", n, err)
	}
	if len(audit.AddedColumns) != 0 {
		t.Errorf("AddedColumns = %v", audit.AddedColumns)
	}
	rows, _ := st.Rows(context.Background(), "Txns")
	if rows[0]["TxnDate"] != "2024-05-24" || rows[0]["Date_2"] != "2024-05-29" {
		t.Errorf("stored = %v", rows[0])
	}
}
