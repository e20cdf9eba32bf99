package calendar

import "time"

// Clock abstracts wall-clock access so temporal rules can be tested with a
// fixed time. Every "is this date in the past" decision in the service goes
// through Today with the same clock and reference location.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Today returns the current civil date according to clock in loc.
func Today(clock Clock, loc *time.Location) Date {
	return DateOf(clock.Now(), loc)
}
