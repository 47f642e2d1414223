package services

import "time"

// MarketCalendar computes US equity trading-day status. It is pure
// arithmetic: no clock access, no external data.
//
// A trading day is a weekday that is not one of the ten observed market
// holidays for its year. Market close is 21:00 UTC (16:00 ET).
type MarketCalendar struct{}

// NewMarketCalendar returns a calendar instance.
func NewMarketCalendar() *MarketCalendar {
	return &MarketCalendar{}
}

// marketCloseHourUTC is the conventional 16:00 ET close expressed in UTC.
const marketCloseHourUTC = 21

// easterSunday computes Easter Sunday for a year using the anonymous
// Gregorian Computus algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// nthWeekday returns the nth occurrence of weekday in (year, month);
// n == -1 means the last occurrence.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	if n == -1 {
		d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		for d.Weekday() != weekday {
			d = d.AddDate(0, 0, -1)
		}
		return d
	}
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != weekday {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7*(n-1))
}

// observed applies the weekend observation rule for fixed-date holidays:
// Saturday holidays are observed the preceding Friday, Sunday holidays the
// following Monday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// HolidaysFor returns the ten observed US equity market holidays for a
// year, as midnight-UTC dates.
func (c *MarketCalendar) HolidaysFor(year int) map[time.Time]bool {
	fixed := func(month time.Month, day int) time.Time {
		return observed(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
	}

	holidays := []time.Time{
		fixed(time.January, 1),                                // New Year's Day
		nthWeekday(year, time.January, time.Monday, 3),        // MLK Jr. Day
		nthWeekday(year, time.February, time.Monday, 3),       // Presidents Day
		easterSunday(year).AddDate(0, 0, -2),                  // Good Friday
		nthWeekday(year, time.May, time.Monday, -1),           // Memorial Day
		fixed(time.June, 19),                                  // Juneteenth
		fixed(time.July, 4),                                   // Independence Day
		nthWeekday(year, time.September, time.Monday, 1),      // Labor Day
		nthWeekday(year, time.November, time.Thursday, 4),     // Thanksgiving
		fixed(time.December, 25),                              // Christmas
	}

	set := make(map[time.Time]bool, len(holidays))
	for _, h := range holidays {
		set[h] = true
	}
	return set
}

// IsTradingDay reports whether the date of t (UTC) is a trading day.
func (c *MarketCalendar) IsTradingDay(t time.Time) bool {
	t = t.UTC()
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !c.HolidaysFor(t.Year())[date]
}

// LastTradingDayAt walks back from t to the most recent trading day at or
// before t's date, returned at market close (21:00 UTC).
func (c *MarketCalendar) LastTradingDayAt(t time.Time) time.Time {
	d := t.UTC()
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), marketCloseHourUTC, 0, 0, 0, time.UTC)
}

// PreviousTradingDayClose returns the close of the trading day strictly
// before the last trading day at t. Walking via LastTradingDayAt twice
// keeps holidays out of daily-change baselines; fixed weekday offsets do
// not.
func (c *MarketCalendar) PreviousTradingDayClose(t time.Time) time.Time {
	last := c.LastTradingDayAt(t)
	dayBefore := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC).Add(-time.Second)
	return c.LastTradingDayAt(dayBefore)
}
