package retention

import (
	"strings"
	"time"
)

// Period is a user-selectable maximum message age.
type Period string

const (
	KeepForever Period = "keep_forever"
	OneMonth    Period = "1_month"
	ThreeMonths Period = "3_months"
	SixMonths   Period = "6_months"
	OneYear     Period = "1_year"
)

// Periods lists every recognized period, shortest retention last.
var Periods = []Period{KeepForever, OneYear, SixMonths, ThreeMonths, OneMonth}

// months maps each purging period to its length in calendar months.
var months = map[Period]int{
	OneMonth:    1,
	ThreeMonths: 3,
	SixMonths:   6,
	OneYear:     12,
}

// ParsePeriod normalizes a stored or user-supplied period. The older
// "after_3_months" spelling is accepted. ok is false for anything
// unrecognized.
func ParsePeriod(s string) (p Period, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "after_")
	p = Period(s)
	if p == KeepForever {
		return p, true
	}
	_, ok = months[p]
	return p, ok
}

// Cutoff returns the instant before which records are expired under p.
// ok is false when p never expires anything.
func (p Period) Cutoff(now time.Time) (cutoff time.Time, ok bool) {
	n, ok := months[p]
	if !ok {
		return time.Time{}, false
	}
	return subMonths(now, n), true
}

// subMonths steps back n calendar months, clamping the day to the end of
// the target month (Mar 31 minus one month is Feb 28/29, not Mar 3).
func subMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m-time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
