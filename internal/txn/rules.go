package txn

import "strings"

// FieldRules lists which numeric/ticker fields an action requires.
type FieldRules struct {
	Required []string
	Optional []string
}

var (
	cashOnly = FieldRules{Required: []string{Amount}, Optional: []string{Price, Units, Ticker}}
	fxRules  = FieldRules{Required: []string{Amount, CurrencyField}, Optional: []string{Price, Units, Ticker}}
	incomeOn = FieldRules{Required: []string{Amount, Ticker}, Optional: []string{Price, Units}}

	// DefaultRules applies to trades and to rows whose action is missing or
	// unknown, so such rows report every reason that applies.
	DefaultRules = FieldRules{Required: []string{Amount, Price, Units, Ticker}, Optional: []string{Fee}}
)

// RulesFor returns the validation ruleset for an action.
func RulesFor(a Action) FieldRules {
	switch a {
	case Contribution, FeeCharge, Withdrawal:
		return cashOnly
	case FXTrade:
		return fxRules
	case Dividend, ReturnOfCapital:
		return incomeOn
	}
	return DefaultRules
}

// Requires reports whether field is required under the rules.
func (r FieldRules) Requires(field string) bool {
	for _, f := range r.Required {
		if f == field {
			return true
		}
	}
	return false
}

// Summary renders the essential values of a row for logs and the audit
// trail, e.g. "2024-01-02 BUY AAPL 10 @ 150 = -1500 USD".
func Summary(row map[string]string) string {
	parts := []string{}
	for _, f := range []string{Date, ActionField, Ticker} {
		if v := strings.TrimSpace(row[f]); v != "" {
			parts = append(parts, v)
		}
	}
	if u := strings.TrimSpace(row[Units]); u != "" {
		p := strings.TrimSpace(row[Price])
		if p == "" {
			parts = append(parts, u)
		} else {
			parts = append(parts, u+" @ "+p)
		}
	}
	if a := strings.TrimSpace(row[Amount]); a != "" {
		parts = append(parts, "= "+a)
	}
	if c := strings.TrimSpace(row[CurrencyField]); c != "" {
		parts = append(parts, c)
	}
	if len(parts) == 0 {
		return "(empty row)"
	}
	return strings.Join(parts, " ")
}
