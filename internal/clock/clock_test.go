package clock

import (
	"testing"
	"time"
)

func TestAlwaysOpen(t *testing.T) {
	c := AlwaysOpen{}
	if !c.IsOpen(time.Now()) {
		t.Fatal("crypto venue should always be open")
	}
}

func TestRegularHours_IsOpen(t *testing.T) {
	loc := time.UTC
	r := RegularHours{Location: loc, OpenHour: 9, OpenMinute: 30, CloseHour: 16, CloseMinute: 0}

	// Monday 2026-01-05 at 10:00 UTC: open
	open := time.Date(2026, 1, 5, 10, 0, 0, 0, loc)
	if !r.IsOpen(open) {
		t.Fatal("expected open during session")
	}

	// Saturday: closed
	weekend := time.Date(2026, 1, 3, 10, 0, 0, 0, loc)
	if r.IsOpen(weekend) {
		t.Fatal("expected closed on weekend")
	}

	// Before open: closed
	early := time.Date(2026, 1, 5, 9, 0, 0, 0, loc)
	if r.IsOpen(early) {
		t.Fatal("expected closed before session open")
	}
}

func TestRegularHours_Holiday(t *testing.T) {
	loc := time.UTC
	holidays := NewHolidaySet(loc, time.Date(2026, 1, 5, 0, 0, 0, 0, loc))
	r := RegularHours{Location: loc, OpenHour: 9, OpenMinute: 30, CloseHour: 16, CloseMinute: 0, Holidays: holidays}

	holiday := time.Date(2026, 1, 5, 10, 0, 0, 0, loc)
	if r.IsOpen(holiday) {
		t.Fatal("expected closed on holiday")
	}
}

func TestRegularHours_NextOpen(t *testing.T) {
	loc := time.UTC
	r := RegularHours{Location: loc, OpenHour: 9, OpenMinute: 30, CloseHour: 16, CloseMinute: 0}

	// Friday after close -> next open is Monday
	afterClose := time.Date(2026, 1, 2, 17, 0, 0, 0, loc) // Friday
	next := r.NextOpen(afterClose)
	if next.Weekday() != time.Monday {
		t.Fatalf("expected next open on Monday, got %s", next.Weekday())
	}
}
