// =============================================================================
// folio - Exchange Trading Calendars
// =============================================================================
//
// This module answers "which days does this market trade?" for the
// settlement calculator. Each supported currency settles on one exchange:
//   - USD: NYSE
//   - CAD: TSX
//
// HOLIDAY RULES:
//   Holidays are rickar/cal holiday definitions (fixed dates with weekend
//   observance, nth-weekday holidays, Good Friday from Easter), extended
//   with extra dates from the configuration for one-off closures. The
//   trading days of each exchange-year are cached.
//
// =============================================================================

package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ginjaninja78/folio/internal/txn"
	"github.com/patrickmn/go-cache"
	"github.com/rickar/cal/v2"
)

// ErrNoCalendar is returned for a currency without a trading calendar.
var ErrNoCalendar = errors.New("no trading calendar for currency")

// Exchange is the holiday set of one market.
type Exchange struct {
	// Name is the market code, e.g. "NYSE".
	Name string

	// Holidays are the exchange's full-day closures.
	Holidays []*cal.Holiday
}

// market is an exchange with its business calendar.
type market struct {
	Exchange
	bc *cal.BusinessCalendar
}

// Calendars is a trading-day provider keyed by currency.
type Calendars struct {
	markets map[txn.Currency]market
	cache   *cache.Cache
}

// New builds the calendars for the supported currencies. extra maps a
// currency code to additional closed dates (YYYY-MM-DD).
func New(extra map[string][]string) (*Calendars, error) {
	c := &Calendars{
		markets: map[txn.Currency]market{},
		cache:   cache.New(cache.NoExpiration, 0),
	}
	for cur, ex := range map[txn.Currency]Exchange{txn.USD: NYSE, txn.CAD: TSX} {
		bc := cal.NewBusinessCalendar()
		bc.AddHoliday(ex.Holidays...)
		c.markets[cur] = market{Exchange: ex, bc: bc}
	}

	for code, dates := range extra {
		cur, err := txn.ParseCurrency(code)
		if err != nil {
			return nil, err
		}
		m, ok := c.markets[cur]
		if !ok {
			return nil, fmt.Errorf("%w %s", ErrNoCalendar, cur)
		}
		for _, d := range dates {
			t, err := time.Parse(time.DateOnly, d)
			if err != nil {
				return nil, fmt.Errorf("holiday %q for %s: %w", d, code, err)
			}
			m.bc.AddHoliday(closure(t))
		}
	}
	return c, nil
}

// closure is a configured one-day closure.
func closure(t time.Time) *cal.Holiday {
	return &cal.Holiday{
		Name:      "Closure " + t.Format(time.DateOnly),
		Month:     t.Month(),
		Day:       t.Day(),
		StartYear: t.Year(),
		EndYear:   t.Year(),
		Func:      cal.CalcDayOfMonth,
	}
}

// Exchange returns the market a currency settles on.
func (c *Calendars) Exchange(cur txn.Currency) (Exchange, bool) {
	m, ok := c.markets[cur]
	return m.Exchange, ok
}

// IsTradingDay reports whether the market for cur is open on day.
func (c *Calendars) IsTradingDay(cur txn.Currency, day time.Time) (bool, error) {
	m, ok := c.markets[cur]
	if !ok {
		return false, fmt.Errorf("%w %s", ErrNoCalendar, cur)
	}
	day = Midnight(day)
	return c.tradingDays(m, day.Year())[day], nil
}

// TradingDays lists the trading days in [from, to], inclusive.
func (c *Calendars) TradingDays(ctx context.Context, cur txn.Currency, from, to time.Time) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, ok := c.markets[cur]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoCalendar, cur)
	}

	var days []time.Time
	for d := Midnight(from); !d.After(Midnight(to)); d = d.AddDate(0, 0, 1) {
		if c.tradingDays(m, d.Year())[d] {
			days = append(days, d)
		}
	}
	return days, nil
}

// tradingDays returns the cached set of open days of a market in a year.
func (c *Calendars) tradingDays(m market, year int) map[time.Time]bool {
	key := fmt.Sprintf("%s:%d", m.Name, year)
	if v, ok := c.cache.Get(key); ok {
		return v.(map[time.Time]bool)
	}
	set := map[time.Time]bool{}
	for d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC); d.Year() == year; d = d.AddDate(0, 0, 1) {
		if m.bc.IsWorkday(d) {
			set[d] = true
		}
	}
	c.cache.Set(key, set, cache.NoExpiration)
	return set
}

// =============================================================================
// DATE HELPERS
// =============================================================================

// Midnight truncates t to a UTC calendar date.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWeekday reports whether t falls Monday to Friday.
func IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// AddWeekdays returns the nth Monday-to-Friday day strictly after t.
func AddWeekdays(t time.Time, n int) time.Time {
	d := Midnight(t)
	for n > 0 {
		d = d.AddDate(0, 0, 1)
		if IsWeekday(d) {
			n--
		}
	}
	return d
}
