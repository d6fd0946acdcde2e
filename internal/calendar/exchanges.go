package calendar

import (
	"time"

	"github.com/rickar/cal/v2"
)

// Observance shifts for weekend holidays.
var (
	// usWeekend moves a Saturday holiday to Friday and a Sunday one to Monday.
	usWeekend = []cal.AltDay{{Day: time.Saturday, Offset: -1}, {Day: time.Sunday, Offset: 1}}

	// caWeekend moves a weekend holiday to the following Monday.
	caWeekend = []cal.AltDay{{Day: time.Saturday, Offset: 2}, {Day: time.Sunday, Offset: 1}}
)

func fixed(name string, month time.Month, day int, observed []cal.AltDay) *cal.Holiday {
	return &cal.Holiday{Name: name, Month: month, Day: day, Observed: observed, Func: cal.CalcDayOfMonth}
}

// nth is the nth weekday of a month; a negative n counts from the end.
func nth(name string, month time.Month, wd time.Weekday, n int) *cal.Holiday {
	return &cal.Holiday{Name: name, Month: month, Weekday: wd, Offset: n, Func: cal.CalcWeekdayOffset}
}

var goodFriday = &cal.Holiday{Name: "Good Friday", Offset: -2, Func: cal.CalcEasterOffset}

// NYSE closes on the US market holidays. New Year's Day on a Saturday is not
// moved back into the previous year, and Columbus and Veterans Day are
// trading days.
var NYSE = Exchange{
	Name: "NYSE",
	Holidays: []*cal.Holiday{
		fixed("New Year's Day", time.January, 1, []cal.AltDay{{Day: time.Sunday, Offset: 1}}),
		nth("Martin Luther King Jr. Day", time.January, time.Monday, 3),
		nth("Washington's Birthday", time.February, time.Monday, 3),
		goodFriday,
		nth("Memorial Day", time.May, time.Monday, -1),
		{
			Name: "Juneteenth", Month: time.June, Day: 19, StartYear: 2022,
			Observed: usWeekend, Func: cal.CalcDayOfMonth,
		},
		fixed("Independence Day", time.July, 4, usWeekend),
		nth("Labor Day", time.September, time.Monday, 1),
		nth("Thanksgiving Day", time.November, time.Thursday, 4),
		fixed("Christmas Day", time.December, 25, usWeekend),
	},
}

// TSX closes on the Canadian statutory holidays observed in Ontario. A
// weekend Christmas or Boxing Day pushes the pair to the next weekdays.
var TSX = Exchange{
	Name: "TSX",
	Holidays: []*cal.Holiday{
		fixed("New Year's Day", time.January, 1, caWeekend),
		{
			Name: "Family Day", Month: time.February, Weekday: time.Monday, Offset: 3,
			StartYear: 2008, Func: cal.CalcWeekdayOffset,
		},
		goodFriday,
		{
			// last Monday before May 25
			Name: "Victoria Day", Month: time.May, Day: 24, Weekday: time.Monday, Offset: -1,
			Func: cal.CalcWeekdayFrom,
		},
		fixed("Canada Day", time.July, 1, caWeekend),
		nth("Civic Holiday", time.August, time.Monday, 1),
		nth("Labour Day", time.September, time.Monday, 1),
		nth("Thanksgiving", time.October, time.Monday, 2),
		fixed("Christmas Day", time.December, 25, caWeekend),
		fixed("Boxing Day", time.December, 26, []cal.AltDay{
			{Day: time.Saturday, Offset: 2},
			{Day: time.Sunday, Offset: 2},
			{Day: time.Monday, Offset: 1},
		}),
	},
}
