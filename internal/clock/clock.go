// Package clock abstracts "is this venue open right now" behind a small
// capability interface so market-hours gating can be injected in tests
// (spec Design Notes: "Abstract as a Clock capability returning
// is_open(now) per venue; inject in tests for deterministic market-hours
// scenarios"). Grounded on the teacher's internal/markethours, generalized
// from a single hardcoded NSE/IST calendar to a pluggable per-venue clock.
package clock

import (
	"fmt"
	"time"
)

// Clock reports whether a venue is open at a given instant, and when it
// will next open if it currently isn't.
type Clock interface {
	IsOpen(t time.Time) bool
	NextOpen(t time.Time) time.Time
}

// AlwaysOpen is the Clock for 24/7 venues (the streaming crypto exchange).
type AlwaysOpen struct{}

func (AlwaysOpen) IsOpen(time.Time) bool          { return true }
func (AlwaysOpen) NextOpen(t time.Time) time.Time { return t }

// RegularHours is the Clock for exchanges with a fixed daily session
// window, a weekday calendar, and a holiday list (the delayed/polled US
// equity venues).
type RegularHours struct {
	Location    *time.Location
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
	Holidays    HolidaySet
}

// IsOpen reports whether t falls within [open, close) on a trading day.
func (r RegularHours) IsOpen(t time.Time) bool {
	local := t.In(r.Location)
	if !r.isTradingDay(local) {
		return false
	}
	hm := local.Hour()*60 + local.Minute()
	return hm >= r.OpenHour*60+r.OpenMinute && hm < r.CloseHour*60+r.CloseMinute
}

func (r RegularHours) isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

func (r RegularHours) isTradingDay(t time.Time) bool {
	return r.isWeekday(t) && !r.Holidays.Contains(t)
}

// NextOpen returns the next session open at-or-after t.
func (r RegularHours) NextOpen(t time.Time) time.Time {
	local := t.In(r.Location)
	todayOpen := time.Date(local.Year(), local.Month(), local.Day(), r.OpenHour, r.OpenMinute, 0, 0, r.Location)
	if !local.After(todayOpen) && r.isTradingDay(local) {
		return todayOpen
	}
	d := local.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ {
		if r.isTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), r.OpenHour, r.OpenMinute, 0, 0, r.Location)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(local.Year(), local.Month(), local.Day()+1, r.OpenHour, r.OpenMinute, 0, 0, r.Location)
}

// TodayClose returns the session close time for the trading day containing t.
func (r RegularHours) TodayClose(t time.Time) time.Time {
	local := t.In(r.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), r.CloseHour, r.CloseMinute, 0, 0, r.Location)
}

// StatusString renders a human-readable status line, in the teacher's style.
func (r RegularHours) StatusString(t time.Time) string {
	if r.IsOpen(t) {
		d := r.TodayClose(t).Sub(t.In(r.Location))
		return fmt.Sprintf("market open — closes in %s", fmtDur(d))
	}
	next := r.NextOpen(t)
	d := next.Sub(t)
	local := next.In(r.Location)
	return fmt.Sprintf("market closed — opens %s %s (%s)", local.Weekday().String()[:3], local.Format("15:04"), fmtDur(d))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
