package validation

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE PARSING
// =============================================================================

// DateLayout is the canonical stored date format.
const DateLayout = time.DateOnly

var (
	isoDateRe      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	isoTimestampRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?$`)
	spaceDatetime  = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?$`)
	tickerRe       = regexp.MustCompile(`^[A-Z0-9.-]+$`)
)

// fallbackLayouts are tried in order after the ISO forms. Month-first wins
// over day-first for ambiguous numeric dates.
var fallbackLayouts = []string{
	"1/2/2006",
	"2/1/2006",
	"1-2-2006",
	"2-1-2006",
	"2006/1/2",
	"2.1.2006",
	"1.2.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Jan-2-2006",
	"2-Jan-2006",
	"1/2/06",
	"1-2-06",
}

// ParseDate parses a transaction date in any accepted format. The time of
// day and timezone of timestamps are discarded.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if isoDateRe.MatchString(s) {
		t, err := time.Parse(DateLayout, s)
		return t, err == nil
	}
	for _, re := range []*regexp.Regexp{isoTimestampRe, spaceDatetime} {
		if m := re.FindStringSubmatch(s); m != nil {
			t, err := time.Parse(DateLayout, m[1])
			return t, err == nil
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate normalizes a date to YYYY-MM-DD.
func FormatDate(raw string) (string, bool) {
	t, ok := ParseDate(raw)
	if !ok {
		return "", false
	}
	return t.Format(DateLayout), true
}

// IsISODate reports whether s is already a valid YYYY-MM-DD date.
func IsISODate(s string) bool {
	s = strings.TrimSpace(s)
	if !isoDateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// =============================================================================
// NUMBER PARSING
// =============================================================================

// ParseNumber parses a numeric cell after stripping "$", "," and spaces.
func ParseNumber(raw string) (decimal.Decimal, bool) {
	s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// FormatNumber renders a decimal in its shortest exact form ("1000",
// "22.85", "-4.03").
func FormatNumber(d decimal.Decimal) string {
	return d.String()
}

// =============================================================================
// TICKER
// =============================================================================

// NormalizeTicker uppercases a ticker and reports whether it is well formed.
func NormalizeTicker(raw string) (string, bool) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	return t, tickerRe.MatchString(t)
}
