package txn

import "testing"

func TestParseAction(t *testing.T) {
	tests := []struct {
		raw  string
		want Action
		err  bool
	}{
		{"BUY", Buy, false},
		{" bought ", Buy, false},
		{"s", Sell, false},
		{"Dividends", Dividend, false},
		{"interest", FeeCharge, false},
		{"FX", FXTrade, false},
		{"return_of_capital", ReturnOfCapital, false},
		{"cash_out", Withdrawal, false},
		{"BRW", Borrow, false},
		{"", ActionUnknown, true},
		{"Withholding Tax", ActionUnknown, true},
	}
	for _, tt := range tests {
		got, err := ParseAction(tt.raw)
		if (err != nil) != tt.err {
			t.Errorf("ParseAction(%q) err = %v, wantErr %v", tt.raw, err, tt.err)
		}
		if got != tt.want {
			t.Errorf("ParseAction(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseCurrency(t *testing.T) {
	for raw, want := range map[string]Currency{"usd": USD, "US$": USD, "c$": CAD, "Canadian": CAD} {
		got, err := ParseCurrency(raw)
		if err != nil || got != want {
			t.Errorf("ParseCurrency(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
	if _, err := ParseCurrency("EUR"); err == nil {
		t.Error("ParseCurrency(EUR) should fail")
	}
}

func TestRulesFor(t *testing.T) {
	if !RulesFor(Dividend).Requires(Ticker) {
		t.Error("DIVIDEND must require Ticker")
	}
	if RulesFor(Contribution).Requires(Ticker) {
		t.Error("CONTRIBUTION must not require Ticker")
	}
	if !RulesFor(FXTrade).Requires(CurrencyField) {
		t.Error("FXT must require currency")
	}
	if !RulesFor(ActionUnknown).Requires(Price) {
		t.Error("unknown actions fall back to the default rule")
	}
}

func TestSummary(t *testing.T) {
	row := map[string]string{Date: "2024-01-02", ActionField: "BUY", Ticker: "AAPL", Units: "10", Price: "150", Amount: "-1500", CurrencyField: "USD"}
	if got, want := Summary(row), "2024-01-02 BUY AAPL 10 @ 150 = -1500 USD"; got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
	if got := Summary(map[string]string{}); got != "(empty row)" {
		t.Errorf("Summary(empty) = %q", got)
	}
}
