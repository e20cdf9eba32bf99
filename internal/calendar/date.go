// Package calendar provides civil-date arithmetic for planning and
// reporting. Plans and actuals are keyed by calendar day, never by
// timestamp, so every normalization goes through this package.
package calendar

import (
	"fmt"
	"time"
)

// Layout is the wire format for civil dates.
const Layout = "2006-01-02"

// Date is a calendar day without a time component or offset.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf extracts the civil date of t in the given location. The local
// calendar fields are used directly; serializing t as UTC first would
// shift the day near midnight.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}, nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Compare returns -1, 0, or +1 ordering d against other.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(int(d.Month) - int(other.Month))
	default:
		return sign(d.Day - other.Day)
	}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC)
	y, m, day := t.Date()
	return Date{Year: y, Month: m, Day: day}
}

// Weekday returns the day of week of d.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// Range is an inclusive span of civil dates.
type Range struct {
	From Date
	To   Date
}

// Contains reports whether d falls inside the range.
func (r Range) Contains(d Date) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// Days returns every date in the range in ascending order. An inverted
// range yields nil.
func (r Range) Days() []Date {
	if r.To.Before(r.From) {
		return nil
	}
	var days []Date
	for d := r.From; !d.After(r.To); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// MonthOf returns the full calendar month containing d.
func MonthOf(d Date) Range {
	first := Date{Year: d.Year, Month: d.Month, Day: 1}
	return Range{From: first, To: first.AddDays(daysInMonth(d.Year, d.Month) - 1)}
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
