package board

import "time"

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last instant of t's calendar day in loc. It is the one
// boundary every view uses for "due today".
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DueByEndOfToday reports whether the item is due no later than the end of
// now's day in loc. Overdue items count.
func (it *Item) DueByEndOfToday(now time.Time, loc *time.Location) bool {
	due, ok := it.DueIn(loc)
	if !ok {
		return false
	}
	return !due.After(EndOfDay(now, loc))
}

// StartOfWeek returns the Monday midnight of t's week in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	d := StartOfDay(t, loc)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
