package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEasterSunday(t *testing.T) {
	cases := map[int]time.Time{
		2008: date(2008, time.March, 23), // earliest recent edge
		2011: date(2011, time.April, 24), // latest recent edge
		2024: date(2024, time.March, 31),
		2025: date(2025, time.April, 20),
		2026: date(2026, time.April, 5),
	}
	for year, want := range cases {
		assert.Equal(t, want, easterSunday(year), "easter %d", year)
	}
}

func TestNthWeekday(t *testing.T) {
	// Third Monday of January 2024 (MLK Day)
	assert.Equal(t, date(2024, time.January, 15), nthWeekday(2024, time.January, time.Monday, 3))
	// Last Monday of May 2024 (Memorial Day)
	assert.Equal(t, date(2024, time.May, 27), nthWeekday(2024, time.May, time.Monday, -1))
	// Fourth Thursday of November 2025 (Thanksgiving)
	assert.Equal(t, date(2025, time.November, 27), nthWeekday(2025, time.November, time.Thursday, 4))
}

func TestHolidaysForObservance(t *testing.T) {
	cal := NewMarketCalendar()

	// New Year's 2023-01-01 was a Sunday, observed Monday 2023-01-02.
	holidays2023 := cal.HolidaysFor(2023)
	assert.True(t, holidays2023[date(2023, time.January, 2)], "New Year's on Sunday observed Monday")
	assert.False(t, holidays2023[date(2023, time.January, 1)], "actual date not emitted")

	// Christmas 2021-12-25 was a Saturday, observed Friday 2021-12-24.
	holidays2021 := cal.HolidaysFor(2021)
	assert.True(t, holidays2021[date(2021, time.December, 24)], "Christmas on Saturday observed Friday")
	assert.False(t, holidays2021[date(2021, time.December, 25)])

	// Juneteenth 2022-06-19 was a Sunday, observed Monday 2022-06-20.
	holidays2022 := cal.HolidaysFor(2022)
	assert.True(t, holidays2022[date(2022, time.June, 20)])
}

func TestHolidaysForEveryYearHasTenWeekdayEntries(t *testing.T) {
	cal := NewMarketCalendar()
	for year := 1971; year <= 2100; year++ {
		holidays := cal.HolidaysFor(year)
		require.Len(t, holidays, 10, "year %d", year)
		for d := range holidays {
			wd := d.Weekday()
			require.NotEqual(t, time.Saturday, wd, "year %d: %s on Saturday", year, d)
			require.NotEqual(t, time.Sunday, wd, "year %d: %s on Sunday", year, d)
		}
	}
}

func TestIsTradingDay(t *testing.T) {
	cal := NewMarketCalendar()

	assert.True(t, cal.IsTradingDay(date(2026, time.January, 12)))   // Monday
	assert.False(t, cal.IsTradingDay(date(2026, time.January, 17)))  // Saturday
	assert.False(t, cal.IsTradingDay(date(2026, time.January, 18)))  // Sunday
	assert.False(t, cal.IsTradingDay(date(2024, time.July, 4)))      // Independence Day
	assert.False(t, cal.IsTradingDay(date(2024, time.December, 25))) // Christmas
	assert.False(t, cal.IsTradingDay(date(2024, time.March, 29)))    // Good Friday
	assert.True(t, cal.IsTradingDay(date(2024, time.July, 5)))       // day after holiday
}

func TestLastTradingDayAt(t *testing.T) {
	cal := NewMarketCalendar()

	// Sunday afternoon walks back to Friday's close.
	sunday := time.Date(2026, time.January, 18, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.January, 16, 21, 0, 0, 0, time.UTC), cal.LastTradingDayAt(sunday))

	// On Independence Day itself, walk back to July 3.
	july4 := time.Date(2024, time.July, 4, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.July, 3, 21, 0, 0, 0, time.UTC), cal.LastTradingDayAt(july4))

	// A plain trading day maps to its own close.
	monday := time.Date(2026, time.January, 12, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.January, 12, 21, 0, 0, 0, time.UTC), cal.LastTradingDayAt(monday))
}

func TestPreviousTradingDayCloseSkipsHolidays(t *testing.T) {
	cal := NewMarketCalendar()

	// Tuesday 2025-09-02 follows Labor Day (Mon 2025-09-01). The previous
	// trading close is Friday 2025-08-29, not Monday — a fixed weekday
	// offset gets this wrong.
	tuesday := time.Date(2025, time.September, 2, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.August, 29, 21, 0, 0, 0, time.UTC),
		cal.PreviousTradingDayClose(tuesday))

	// Plain midweek: Thursday's previous close is Wednesday.
	thursday := time.Date(2026, time.January, 15, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.January, 14, 21, 0, 0, 0, time.UTC),
		cal.PreviousTradingDayClose(thursday))

	// Monday's previous close is the prior Friday.
	monday := time.Date(2026, time.January, 12, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.January, 9, 21, 0, 0, 0, time.UTC),
		cal.PreviousTradingDayClose(monday))
}
