// =============================================================================
// folio - Settlement Calculator
// =============================================================================
//
// Derives SettleDate and SettleCalculated for every row of a batch.
//
// RULES:
//   - A valid incoming SettleDate is kept and flagged 0
//   - Same-day actions settle on the transaction date
//   - Trades settle T+1 on or after the currency's cutover, T+2 before it
//   - Business days come from the currency's trading calendar; without one
//     a Monday-to-Friday count is used
//   - Unknown currency settles on the transaction date
//   - A missing transaction date leaves the settlement unset, flag 0
//
// Calendars are loaded once per currency per call, covering the batch's
// date span plus a buffer.
//
// =============================================================================

package settlement

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/ginjaninja78/folio/internal/calendar"
	"github.com/ginjaninja78/folio/internal/config"
	"github.com/ginjaninja78/folio/internal/logger"
	"github.com/ginjaninja78/folio/internal/txn"
	"github.com/ginjaninja78/folio/internal/types"
	"github.com/ginjaninja78/folio/internal/validation"
)

// Flag values stored in SettleCalculated.
const (
	FlagPreserved  = "0"
	FlagCalculated = "1"
)

// Provider lists a market's trading days in [from, to].
type Provider interface {
	TradingDays(ctx context.Context, cur txn.Currency, from, to time.Time) ([]time.Time, error)
}

// Options controls the calculator.
type Options struct {
	// Cutovers maps a currency to its first T+1 trade date.
	Cutovers map[txn.Currency]time.Time

	BufferBefore int
	BufferAfter  int
}

// OptionsFromConfig converts the settlement section of the configuration.
func OptionsFromConfig(s config.Settlement) Options {
	opts := Options{
		Cutovers:     map[txn.Currency]time.Time{},
		BufferBefore: s.BufferBeforeDays,
		BufferAfter:  s.BufferAfterDays,
	}
	for _, cur := range []txn.Currency{txn.USD, txn.CAD} {
		if t, ok := s.TPlusOneCutover(cur); ok {
			opts.Cutovers[cur] = t
		}
	}
	return opts
}

// Stats counts the outcome per row.
type Stats struct {
	Preserved  int
	Calculated int
	Unset      int

	// Fallbacks counts rows dated with the weekday fallback.
	Fallbacks int
}

// Calculator computes settlement dates.
type Calculator struct {
	provider Provider
	opts     Options
	log      *slog.Logger
}

// New creates a calculator. A nil provider always uses the weekday fallback.
func New(provider Provider, opts Options, log *slog.Logger) *Calculator {
	return &Calculator{provider: provider, opts: opts, log: logger.OrDiscard(log)}
}

type pending struct {
	index  int
	date   time.Time
	cur    txn.Currency
	offset int
}

// Apply returns a copy of batch with SettleDate and SettleCalculated set on
// every row. The input batch is not modified.
func (c *Calculator) Apply(ctx context.Context, batch *types.Batch) (*types.Batch, Stats) {
	out := batch.Clone()
	out.AddColumn(txn.SettleDate)
	out.AddColumn(txn.SettleCalculated)

	var stats Stats
	var todo []pending

	for i, row := range out.Rows {
		if v, ok := row.Get(txn.SettleDate); ok && validation.IsISODate(v) {
			row.Set(txn.SettleCalculated, FlagPreserved)
			stats.Preserved++
			continue
		}

		raw, _ := row.Get(txn.Date)
		date, ok := validation.ParseDate(raw)
		if !ok {
			c.unset(row)
			stats.Unset++
			continue
		}

		action, _ := txn.ParseAction(row[txn.ActionField])
		switch {
		case sameDay(action):
			c.set(row, date)
			stats.Calculated++
			continue
		case !SettlesOnBusinessDay(action):
			c.unset(row)
			stats.Unset++
			continue
		}

		cur, err := txn.ParseCurrency(row[txn.CurrencyField])
		if err != nil {
			c.set(row, date)
			stats.Calculated++
			continue
		}
		todo = append(todo, pending{index: i, date: date, cur: cur, offset: c.offset(cur, date)})
	}

	schedules := c.loadSchedules(ctx, todo)
	for _, p := range todo {
		settle, ok := nthAfter(schedules[p.cur], p.date, p.offset)
		if !ok {
			settle = calendar.AddWeekdays(p.date, p.offset)
			stats.Fallbacks++
		}
		c.set(out.Rows[p.index], settle)
		stats.Calculated++
	}
	return out, stats
}

// offset is 1 on or after the currency's cutover, else 2.
func (c *Calculator) offset(cur txn.Currency, date time.Time) int {
	cutover, ok := c.opts.Cutovers[cur]
	if ok && !date.Before(cutover) {
		return 1
	}
	return 2
}

// loadSchedules fetches each currency's trading days once for the span of
// its pending rows.
func (c *Calculator) loadSchedules(ctx context.Context, todo []pending) map[txn.Currency][]time.Time {
	type span struct{ min, max time.Time }
	spans := map[txn.Currency]*span{}
	for _, p := range todo {
		s, ok := spans[p.cur]
		if !ok {
			spans[p.cur] = &span{p.date, p.date}
			continue
		}
		if p.date.Before(s.min) {
			s.min = p.date
		}
		if p.date.After(s.max) {
			s.max = p.date
		}
	}

	schedules := map[txn.Currency][]time.Time{}
	if c.provider == nil {
		return schedules
	}
	for cur, s := range spans {
		from := s.min.AddDate(0, 0, -c.opts.BufferBefore)
		to := s.max.AddDate(0, 0, c.opts.BufferAfter)
		days, err := c.provider.TradingDays(ctx, cur, from, to)
		if err != nil {
			c.log.Warn("trading calendar unavailable, using weekday fallback",
				"currency", cur.String(), "error", err)
			continue
		}
		if len(days) == 0 {
			c.log.Warn("empty trading calendar, using weekday fallback", "currency", cur.String())
			continue
		}
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
		schedules[cur] = days
	}
	return schedules
}

func (c *Calculator) set(row types.Row, date time.Time) {
	row.Set(txn.SettleDate, date.Format(validation.DateLayout))
	row.Set(txn.SettleCalculated, FlagCalculated)
}

func (c *Calculator) unset(row types.Row) {
	delete(row, txn.SettleDate)
	row.Set(txn.SettleCalculated, FlagPreserved)
}

// nthAfter returns the nth schedule day strictly after date. It reports
// false when the schedule does not reach that far.
func nthAfter(schedule []time.Time, date time.Time, n int) (time.Time, bool) {
	if len(schedule) == 0 || n < 1 {
		return time.Time{}, false
	}
	i := sort.Search(len(schedule), func(i int) bool { return schedule[i].After(date) })
	if i+n-1 >= len(schedule) {
		return time.Time{}, false
	}
	return schedule[i+n-1], true
}

func sameDay(a txn.Action) bool {
	switch a {
	case txn.Dividend, txn.Borrow, txn.Contribution, txn.FeeCharge, txn.ReturnOfCapital, txn.Withdrawal:
		return true
	}
	return false
}

// SettlesOnBusinessDay reports whether an action settles a number of
// trading days after the trade.
func SettlesOnBusinessDay(a txn.Action) bool {
	switch a {
	case txn.Buy, txn.Sell, txn.FXTrade, txn.Split:
		return true
	}
	return false
}
