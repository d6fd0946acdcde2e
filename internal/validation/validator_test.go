package validation

import (
	"reflect"
	"testing"

	"github.com/ginjaninja78/folio/internal/config"
	"github.com/ginjaninja78/folio/internal/types"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-01-02", "2024-01-02", true},
		{"2024-01-02T15:04:05Z", "2024-01-02", true},
		{"2024-01-02T15:04:05.123-05:00", "2024-01-02", true},
		{"2024-01-02 09:30:00", "2024-01-02", true},
		{"01/02/2024", "2024-01-02", true},
		{"1/2/2024", "2024-01-02", true},
		{"25/12/2024", "2024-12-25", true},
		{"12-31-2024", "2024-12-31", true},
		{"2024/03/04", "2024-03-04", true},
		{"01-01-24", "2024-01-01", true},
		{"12-31-24", "2024-12-31", true},
		{"31.01.2024", "2024-01-31", true},
		{"January 5, 2024", "2024-01-05", true},
		{"Jan 5, 2024", "2024-01-05", true},
		{"5 January 2024", "2024-01-05", true},
		{"5 jan 2024", "2024-01-05", true},
		{"2024-13-01", "", false},
		{"yesterday", "", false},
		{"  ", "", false},
	}
	for _, tt := range tests {
		got, ok := FormatDate(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("FormatDate(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := map[string]string{
		"$1,234.50": "1234.5",
		"100.00":    "100",
		"-4.03":     "-4.03",
		" 7 ":       "7",
	}
	for in, want := range tests {
		d, ok := ParseNumber(in)
		if !ok || FormatNumber(d) != want {
			t.Errorf("ParseNumber(%q) = %v, %v; want %s", in, d, ok, want)
		}
	}
	for _, bad := range []string{"", "abc", "1.2.3", "$"} {
		if _, ok := ParseNumber(bad); ok {
			t.Errorf("ParseNumber(%q) should fail", bad)
		}
	}
}

func opts() Options {
	return OptionsFromConfig(config.Default())
}

func TestFormatNormalizesRow(t *testing.T) {
	batch := types.New("TxnDate", "Action", "Amount", "$", "Price", "Units", "Ticker", "Fee", "SettleDate", "Account")
	batch.Rows = []types.Row{{
		"TxnDate": "01/02/2024", "Action": "bought", "Amount": "$-1,500.00", "$": "us$",
		"Price": "150", "Units": "10.0", "Ticker": " aapl ", "Fee": "n/a", "SettleDate": "Jan 4, 2024", "Account": " TFSA ",
	}}

	res := Format(batch, opts())
	if len(res.Excluded) != 0 {
		t.Fatalf("unexpected exclusions: %v", res.Excluded)
	}
	want := types.Row{
		"TxnDate": "2024-01-02", "Action": "BUY", "Amount": "-1500", "$": "USD",
		"Price": "150", "Units": "10", "Ticker": "AAPL", "SettleDate": "2024-01-04", "Account": "TFSA",
	}
	if got := res.Batch.Rows[0]; !reflect.DeepEqual(got, want) {
		t.Errorf("row = %v\nwant  %v", got, want)
	}
	if batch.Rows[0]["Action"] != "bought" {
		t.Error("input batch was modified")
	}
}

func TestFormatRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		row     types.Row
		reasons []string
	}{
		{
			name: "contribution needs only amount",
			row:  types.Row{"TxnDate": "2024-01-02", "Action": "DEPOSIT", "Amount": "500", "$": "CAD"},
		},
		{
			name:    "dividend needs ticker",
			row:     types.Row{"TxnDate": "2024-01-02", "Action": "DIV", "Amount": "5", "$": "USD"},
			reasons: []string{"MISSING Ticker"},
		},
		{
			name:    "buy needs price units ticker",
			row:     types.Row{"TxnDate": "2024-01-02", "Action": "BUY", "Amount": "-100", "$": "USD"},
			reasons: []string{"MISSING Price", "MISSING Units", "MISSING Ticker"},
		},
		{
			name:    "reasons accumulate",
			row:     types.Row{"TxnDate": "someday", "Action": "HODL", "Amount": "x", "$": "EUR", "Price": "-1", "Units": "1", "Ticker": "BAD TICKER"},
			reasons: []string{"INVALID TxnDate", "INVALID Action", "INVALID Amount", "INVALID $", "INVALID Price", "INVALID Ticker"},
		},
		{
			name:    "missing action and date",
			row:     types.Row{"Amount": "1", "$": "USD", "Price": "1", "Units": "1", "Ticker": "X"},
			reasons: []string{"MISSING TxnDate", "MISSING Action"},
		},
		{
			name:    "malformed optional ticker is still rejected",
			row:     types.Row{"TxnDate": "2024-01-02", "Action": "FEE", "Amount": "-2", "$": "USD", "Ticker": "??"},
			reasons: []string{"INVALID Ticker"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := types.New("TxnDate", "Action", "Amount", "$", "Price", "Units", "Ticker")
			batch.Rows = []types.Row{tt.row}
			res := Format(batch, opts())

			if len(tt.reasons) == 0 {
				if len(res.Excluded) != 0 || res.Batch.Len() != 1 {
					t.Fatalf("row excluded: %v", res.Excluded)
				}
				return
			}
			if len(res.Excluded) != 1 {
				t.Fatalf("excluded = %d, want 1", len(res.Excluded))
			}
			if got := res.Excluded[0].Reasons; !reflect.DeepEqual(got, tt.reasons) {
				t.Errorf("reasons = %v, want %v", got, tt.reasons)
			}
		})
	}
}

func TestFormatOptionalNumericNulled(t *testing.T) {
	batch := types.New("TxnDate", "Action", "Amount", "$", "Price", "Units", "Ticker")
	batch.Rows = []types.Row{
		{"TxnDate": "2024-01-02", "Action": "FCH", "Amount": "-2", "$": "USD", "Price": "abc", "Units": "1"},
	}
	res := Format(batch, opts())
	if len(res.Excluded) != 0 {
		t.Fatalf("excluded: %v", res.Excluded)
	}
	row := res.Batch.Rows[0]
	if _, ok := row["Price"]; ok {
		t.Error("unparseable optional price should be null")
	}
	if _, ok := row["Ticker"]; ok {
		t.Error("missing optional ticker should stay null")
	}
}

func TestExclusionRecordsIndexAndSummary(t *testing.T) {
	batch := types.New("TxnDate", "Action", "Amount", "$", "Price", "Units", "Ticker")
	batch.Rows = []types.Row{
		{"TxnDate": "2024-01-02", "Action": "CONTRIB", "Amount": "1", "$": "USD"},
		{"TxnDate": "2024-01-03", "Action": "BUY", "Amount": "-1", "$": "USD", "Ticker": "AAPL"},
	}
	res := Format(batch, opts())
	if len(res.Excluded) != 1 || res.Excluded[0].Index != 1 {
		t.Fatalf("Excluded = %v", res.Excluded)
	}
	if got, want := res.Excluded[0].Summary, "2024-01-03 BUY AAPL = -1 USD"; got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
	if got := res.Excluded[0].String(); got != "row 2 [2024-01-03 BUY AAPL = -1 USD]: MISSING Price, MISSING Units" {
		t.Errorf("String = %q", got)
	}
}
