package calendar

import (
	"fmt"
	"strings"
	"time"
)

// WorkweekPolicy decides which weekdays count as working days. The default
// treats Saturday and Sunday as the weekend; regional variants substitute
// other days without touching the reporting code.
type WorkweekPolicy struct {
	weekend map[time.Weekday]struct{}
}

// DefaultWorkweek is the Saturday/Sunday weekend.
func DefaultWorkweek() WorkweekPolicy {
	return NewWorkweek(time.Saturday, time.Sunday)
}

// NewWorkweek builds a policy with the given weekend days.
func NewWorkweek(weekend ...time.Weekday) WorkweekPolicy {
	p := WorkweekPolicy{weekend: make(map[time.Weekday]struct{}, len(weekend))}
	for _, d := range weekend {
		p.weekend[d] = struct{}{}
	}
	return p
}

// ParseWorkweek builds a policy from a comma-separated list of weekend day
// names, e.g. "Friday,Saturday". An empty string yields the default.
func ParseWorkweek(value string) (WorkweekPolicy, error) {
	if strings.TrimSpace(value) == "" {
		return DefaultWorkweek(), nil
	}
	var weekend []time.Weekday
	for _, part := range strings.Split(value, ",") {
		day, err := parseWeekday(strings.TrimSpace(part))
		if err != nil {
			return WorkweekPolicy{}, err
		}
		weekend = append(weekend, day)
	}
	return NewWorkweek(weekend...), nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(name string) (time.Weekday, error) {
	if day, ok := weekdayNames[strings.ToLower(name)]; ok {
		return day, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

// IsWorkingDay reports whether d is a working day under the policy.
func (p WorkweekPolicy) IsWorkingDay(d Date) bool {
	_, weekend := p.weekend[d.Weekday()]
	return !weekend
}

// WorkingDays counts the working days inside r.
func (p WorkweekPolicy) WorkingDays(r Range) int {
	count := 0
	for _, d := range r.Days() {
		if p.IsWorkingDay(d) {
			count++
		}
	}
	return count
}
