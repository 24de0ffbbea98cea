// Package marketcalendar answers trading-day questions for the US equity
// markets (NYSE/NASDAQ). Holidays are computed from the exchange rule
// table rather than a static list, so answers stay correct across years.
package marketcalendar

import (
	"sort"
	"time"
)

// Date truncates t to a UTC calendar date. All calendar functions operate
// on and return dates normalized this way.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsTradingDay reports whether the market is open on the given date.
func IsTradingDay(d time.Time) bool {
	d = Date(d)
	wd := d.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !isHoliday(d)
}

// LastTradingDay walks backward from ref (inclusive) to the most recent
// trading day. Converges within a handful of days even across long
// holiday weekends.
func LastTradingDay(ref time.Time) time.Time {
	d := Date(ref)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NextTradingDay returns the first trading day strictly after ref.
func NextTradingDay(ref time.Time) time.Time {
	d := Date(ref).AddDate(0, 0, 1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// TradingDaysBetween returns every trading day in [start, end] in
// ascending order. Empty when start is after end.
func TradingDaysBetween(start, end time.Time) []time.Time {
	start, end = Date(start), Date(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// MissingTradingDays returns the trading days in [start, end] absent from
// existing, sorted ascending.
func MissingTradingDays(existing []time.Time, start, end time.Time) []time.Time {
	have := make(map[time.Time]bool, len(existing))
	for _, d := range existing {
		have[Date(d)] = true
	}

	var missing []time.Time
	for _, d := range TradingDaysBetween(start, end) {
		if !have[d] {
			missing = append(missing, d)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].Before(missing[j]) })
	return missing
}

// isHoliday applies the NYSE holiday rules for d's year.
func isHoliday(d time.Time) bool {
	for _, h := range holidaysForYear(d.Year()) {
		if h.Equal(d) {
			return true
		}
	}
	return false
}

// holidaysForYear computes the observed NYSE holidays for a year.
func holidaysForYear(year int) []time.Time {
	easter := easterSunday(year)
	return []time.Time{
		observed(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)),   // New Year's Day
		nthWeekday(year, time.January, time.Monday, 3),                     // MLK Day
		nthWeekday(year, time.February, time.Monday, 3),                    // Presidents Day
		easter.AddDate(0, 0, -2),                                           // Good Friday
		lastWeekday(year, time.May, time.Monday),                           // Memorial Day
		observed(time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC)),     // Juneteenth
		observed(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)),      // Independence Day
		nthWeekday(year, time.September, time.Monday, 1),                   // Labor Day
		nthWeekday(year, time.November, time.Thursday, 4),                  // Thanksgiving
		observed(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)), // Christmas
	}
}

// observed shifts fixed-date holidays to the nearest workday:
// Saturday moves to Friday, Sunday moves to Monday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// nthWeekday returns the nth occurrence of a weekday in a month.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7*(n-1))
}

// lastWeekday returns the final occurrence of a weekday in a month.
func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// easterSunday computes Gregorian Easter via the anonymous algorithm.
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
