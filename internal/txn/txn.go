// =============================================================================
// folio - Transaction Vocabulary
// =============================================================================
//
// This package defines the canonical transaction vocabulary shared by every
// import stage: column names, the essential field list, and the closed
// enumerations for actions and currencies.
//
// Strings only exist at the storage and file boundary. Inside the pipeline an
// action is an Action and a currency is a Currency.
//
// =============================================================================

package txn

import (
	"fmt"
	"strings"
)

// =============================================================================
// CANONICAL COLUMN NAMES
// =============================================================================

const (
	// Table is the default name of the transaction table.
	Table = "Txns"

	ID               = "TxnId"
	Date             = "TxnDate"
	ActionField      = "Action"
	Amount           = "Amount"
	CurrencyField    = "$"
	Price            = "Price"
	Units            = "Units"
	Ticker           = "Ticker"
	Account          = "Account"
	Fee              = "Fee"
	SettleDate       = "SettleDate"
	SettleCalculated = "SettleCalculated"
)

// Essentials lists the fields every stored row must carry, in key order.
// The order matters: it is the order of the synthetic duplicate key.
var Essentials = []string{Date, ActionField, Amount, CurrencyField, Price, Units, Ticker}

// IsEssential reports whether name is one of the essential columns.
func IsEssential(name string) bool {
	for _, e := range Essentials {
		if e == name {
			return true
		}
	}
	return false
}

// =============================================================================
// ACTION
// =============================================================================

// Action is the normalized transaction type.
type Action int

const (
	ActionUnknown Action = iota
	Buy
	Sell
	Dividend
	Contribution
	Withdrawal
	FeeCharge
	ReturnOfCapital
	Split
	FXTrade
	Borrow
)

var actionNames = map[Action]string{
	Buy:             "BUY",
	Sell:            "SELL",
	Dividend:        "DIVIDEND",
	Contribution:    "CONTRIBUTION",
	Withdrawal:      "WITHDRAWAL",
	FeeCharge:       "FCH",
	ReturnOfCapital: "ROC",
	Split:           "SPLIT",
	FXTrade:         "FXT",
	Borrow:          "BRW",
}

// actionSynonyms maps broker vocabulary onto canonical action names.
var actionSynonyms = map[string]Action{
	"B":                 Buy,
	"PURCHASE":          Buy,
	"BOUGHT":            Buy,
	"S":                 Sell,
	"SOLD":              Sell,
	"SALE":              Sell,
	"DIV":               Dividend,
	"DIVIDENDS":         Dividend,
	"BORROW":            Borrow,
	"BORROWING":         Borrow,
	"CONTRIB":           Contribution,
	"DEPOSIT":           Contribution,
	"FEE":               FeeCharge,
	"FEES":              FeeCharge,
	"INTEREST":          FeeCharge,
	"FOREX":             FXTrade,
	"FX":                FXTrade,
	"CURRENCY":          FXTrade,
	"RETURN_OF_CAPITAL": ReturnOfCapital,
	"STOCK_SPLIT":       Split,
	"WITHDRAW":          Withdrawal,
	"CASH_OUT":          Withdrawal,
}

// String returns the canonical stored spelling of the action.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseAction resolves a raw value (canonical name or synonym, any case,
// surrounding whitespace ignored) to an Action.
func ParseAction(raw string) (Action, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" {
		return ActionUnknown, fmt.Errorf("empty action")
	}
	if a, ok := actionSynonyms[v]; ok {
		return a, nil
	}
	for a, name := range actionNames {
		if name == v {
			return a, nil
		}
	}
	return ActionUnknown, fmt.Errorf("unknown action %q", raw)
}

// =============================================================================
// CURRENCY
// =============================================================================

// Currency is a supported settlement currency.
type Currency int

const (
	CurrencyUnknown Currency = iota
	USD
	CAD
)

var currencySynonyms = map[string]Currency{
	"USD":      USD,
	"US$":      USD,
	"CAD":      CAD,
	"C$":       CAD,
	"CAD$":     CAD,
	"CANADIAN": CAD,
}

func (c Currency) String() string {
	switch c {
	case USD:
		return "USD"
	case CAD:
		return "CAD"
	}
	return "UNKNOWN"
}

// ParseCurrency resolves a raw currency value or synonym.
func ParseCurrency(raw string) (Currency, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if c, ok := currencySynonyms[v]; ok {
		return c, nil
	}
	return CurrencyUnknown, fmt.Errorf("unknown currency %q", raw)
}
