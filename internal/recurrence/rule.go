package recurrence

import (
	"fmt"
	"strings"

	"crm-tasks/internal/date"
)

// Rule pairs a pattern with an optional inclusive end date.
type Rule struct {
	Pattern Pattern
	EndDate *date.Date
}

// Next returns the first occurrence strictly after anchor. The boolean is
// false when the rule is terminal: the pattern is missing or invalid, no
// candidate exists, or the candidate falls after EndDate.
func (r Rule) Next(anchor date.Date) (date.Date, bool) {
	if r.Pattern == nil || r.Pattern.Validate() != nil {
		return date.Date{}, false
	}
	next, ok := r.Pattern.candidate(anchor)
	if !ok {
		return date.Date{}, false
	}
	if r.EndDate != nil && next.After(*r.EndDate) {
		return date.Date{}, false
	}
	return next, true
}

// Covers reports whether d is not past the rule's end date.
func (r Rule) Covers(d date.Date) bool {
	return r.EndDate == nil || !d.After(*r.EndDate)
}

// Fields is the flattened storage form of a Pattern.
type Fields struct {
	Frequency  string
	Interval   int
	Weekdays   string
	DayOfMonth int
}

// Encode flattens p into storage fields. Fields of inactive variants stay zero.
func Encode(p Pattern) Fields {
	switch v := p.(type) {
	case Daily:
		return Fields{Frequency: string(FrequencyDaily), Interval: v.Interval}
	case Weekly:
		return Fields{Frequency: string(FrequencyWeekly), Interval: v.Interval, Weekdays: v.Weekdays.Numbers()}
	case Monthly:
		return Fields{Frequency: string(FrequencyMonthly), Interval: v.Interval, DayOfMonth: v.DayOfMonth}
	default:
		return Fields{}
	}
}

// Decode rebuilds and validates a Pattern from storage fields. Only the
// fields of the tagged variant are read.
func Decode(f Fields) (Pattern, error) {
	var p Pattern
	switch Frequency(strings.ToLower(strings.TrimSpace(f.Frequency))) {
	case FrequencyDaily:
		p = Daily{Interval: f.Interval}
	case FrequencyWeekly:
		days, err := ParseWeekdays(f.Weekdays)
		if err != nil {
			return nil, err
		}
		p = Weekly{Interval: f.Interval, Weekdays: days}
	case FrequencyMonthly:
		p = Monthly{Interval: f.Interval, DayOfMonth: f.DayOfMonth}
	default:
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidPattern, f.Frequency)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
