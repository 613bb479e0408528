// Package planning holds the pure calendar calculations shared by every read
// path: cycle phase prediction, periodization stage and the intensity
// reduction window around a predicted period start.
//
// All functions work on calendar days. A time.Time is reduced to its
// year/month/day in its own location and treated as that day in UTC.
package planning

import "time"

// Day truncates t to its calendar day, expressed in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b (negative when
// b is before a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)) / (24 * time.Hour))
}

// AddDays shifts a calendar day by n days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}
