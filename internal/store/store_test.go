package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ginjaninja78/folio/internal/types"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "folio.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMissingTable(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	cols, err := s.Columns(ctx, "Txns")
	if err != nil || len(cols) != 0 {
		t.Errorf("Columns = %v, %v", cols, err)
	}
	rows, err := s.Rows(ctx, "Txns")
	if err != nil || rows != nil {
		t.Errorf("Rows = %v, %v", rows, err)
	}
	n, err := s.Count(ctx, "Txns")
	if err != nil || n != 0 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestEnsureAddAppend(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	if err := s.EnsureTable(ctx, "Txns"); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureTable(ctx, "Txns"); err != nil {
		t.Fatalf("second EnsureTable: %v", err)
	}

	cols, _ := s.Columns(ctx, "Txns")
	want := []string{"TxnDate", "Action", "Amount", "$", "Price", "Units", "Ticker"}
	if !reflect.DeepEqual(cols, want) {
		t.Fatalf("Columns = %v, want %v", cols, want)
	}

	batch := types.New("TxnDate", "Action", "Amount", "$", "Price", "Units", "Ticker", "Account")
	batch.Rows = []types.Row{
		{"TxnDate": "2024-01-02", "Action": "BUY", "Amount": "-1500.00", "$": "USD", "Price": "150", "Units": "10", "Ticker": "AAPL", "Account": "TFSA"},
		{"TxnDate": "2024-01-03", "Action": "CONTRIBUTION", "Amount": "500", "$": "CAD"},
	}

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.AddColumn(ctx, "Txns", "Account"); err != nil {
		t.Fatal(err)
	}
	n, err := tx.Append(ctx, "Txns", batch)
	if err != nil || n != 2 {
		t.Fatalf("Append = %d, %v", n, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := tx.Rollback(); err != nil {
		t.Errorf("Rollback after Commit: %v", err)
	}

	rows, err := s.Rows(ctx, "Txns")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rows, batch.Rows) {
		t.Errorf("Rows = %v, want %v", rows, batch.Rows)
	}
	if count, _ := s.Count(ctx, "Txns"); count != 2 {
		t.Errorf("Count = %d", count)
	}
}

func TestRollbackDiscardsSchemaChange(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	if err := s.EnsureTable(ctx, "Txns"); err != nil {
		t.Fatal(err)
	}

	tx, _ := s.Begin(ctx)
	if err := tx.AddColumn(ctx, "Txns", "Notes"); err != nil {
		t.Fatal(err)
	}
	tx.Rollback()

	cols, _ := s.Columns(ctx, "Txns")
	for _, c := range cols {
		if c == "Notes" {
			t.Error("column survived rollback")
		}
	}
}

func TestSettlementRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	if err := s.EnsureTable(ctx, "Txns"); err != nil {
		t.Fatal(err)
	}

	none, err := s.CalculatedSettlements(ctx, "Txns")
	if err != nil || none != nil {
		t.Fatalf("without flag column: %v, %v", none, err)
	}

	batch := types.New("TxnDate", "Action", "Ticker", "SettleDate", "SettleCalculated")
	batch.Rows = []types.Row{
		{"TxnDate": "2024-05-24", "Action": "BUY", "Ticker": "AAPL", "SettleDate": "2024-05-29", "SettleCalculated": "1"},
		{"TxnDate": "2024-05-24", "Action": "BUY", "Ticker": "MSFT", "SettleDate": "2024-05-28", "SettleCalculated": "0"},
	}
	tx, _ := s.Begin(ctx)
	tx.AddColumn(ctx, "Txns", "SettleDate")
	tx.AddColumn(ctx, "Txns", "SettleCalculated")
	if _, err := tx.Append(ctx, "Txns", batch); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	recs, err := s.CalculatedSettlements(ctx, "Txns")
	if err != nil || len(recs) != 1 || recs[0].Row["Ticker"] != "AAPL" {
		t.Fatalf("CalculatedSettlements = %v, %v", recs, err)
	}

	n, err := s.UpdateSettlements(ctx, "Txns", []SettlementUpdate{{ID: recs[0].ID, Date: "2024-05-30"}})
	if err != nil || n != 1 {
		t.Fatalf("UpdateSettlements = %d, %v", n, err)
	}
	rows, _ := s.Rows(ctx, "Txns")
	if rows[0]["SettleDate"] != "2024-05-30" || rows[0]["SettleCalculated"] != "0" {
		t.Errorf("updated row = %v", rows[0])
	}
}

func TestQuote(t *testing.T) {
	if got := Quote(`we"ird`); got != `"we""ird"` {
		t.Errorf("Quote = %s", got)
	}
}
