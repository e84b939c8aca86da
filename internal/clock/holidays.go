package clock

import "time"

// HolidaySet is a lookup of observed market holidays, keyed by calendar date.
type HolidaySet map[string]bool

// NewHolidaySet builds a HolidaySet from a list of dates in loc's calendar.
func NewHolidaySet(loc *time.Location, dates ...time.Time) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set[dateKey(d.In(loc))] = true
	}
	return set
}

// Contains reports whether t's calendar date is in the set.
func (h HolidaySet) Contains(t time.Time) bool {
	return h[dateKey(t)]
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// USEquityHolidays2026 lists the NYSE/Nasdaq full-day closures for 2026.
func USEquityHolidays2026(loc *time.Location) HolidaySet {
	d := func(month time.Month, day int) time.Time {
		return time.Date(2026, month, day, 0, 0, 0, 0, loc)
	}
	return NewHolidaySet(loc,
		d(time.January, 1),   // New Year's Day
		d(time.January, 19),  // MLK Day
		d(time.February, 16), // Washington's Birthday
		d(time.April, 3),     // Good Friday
		d(time.May, 25),      // Memorial Day
		d(time.June, 19),     // Juneteenth
		d(time.July, 3),      // Independence Day (observed)
		d(time.September, 7), // Labor Day
		d(time.November, 26), // Thanksgiving
		d(time.December, 25), // Christmas
	)
}
