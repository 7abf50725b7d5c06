// Package recurrence computes the next occurrence date of a recurring task.
//
// A Pattern is one of Daily, Weekly or Monthly. Evaluation is pure: the same
// pattern, end date and anchor always produce the same result.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"crm-tasks/internal/date"
)

// ErrInvalidPattern reports a pattern that cannot be evaluated.
var ErrInvalidPattern = errors.New("invalid recurrence pattern")

// Frequency tags the active pattern variant.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Pattern is implemented only by Daily, Weekly and Monthly.
type Pattern interface {
	Frequency() Frequency
	Validate() error
	String() string
	candidate(anchor date.Date) (date.Date, bool)
}

// Daily repeats every Interval days.
type Daily struct {
	Interval int
}

// Weekly repeats on the next day in Weekdays, or every Interval weeks when
// Weekdays is empty. Interval is not applied as a week skip when Weekdays is set.
type Weekly struct {
	Interval int
	Weekdays WeekdaySet
}

// Monthly repeats every Interval months on DayOfMonth, or on the anchor's
// day of month when DayOfMonth is zero. Days past the end of the target
// month are clamped to its last day.
type Monthly struct {
	Interval   int
	DayOfMonth int
}

func (Daily) Frequency() Frequency   { return FrequencyDaily }
func (Weekly) Frequency() Frequency  { return FrequencyWeekly }
func (Monthly) Frequency() Frequency { return FrequencyMonthly }

func (p Daily) Validate() error {
	return validInterval(p.Interval)
}

func (p Weekly) Validate() error {
	if err := validInterval(p.Interval); err != nil {
		return err
	}
	if !p.Weekdays.valid() {
		return fmt.Errorf("%w: weekday set %08b out of range", ErrInvalidPattern, uint8(p.Weekdays))
	}
	return nil
}

func (p Monthly) Validate() error {
	if err := validInterval(p.Interval); err != nil {
		return err
	}
	if p.DayOfMonth < 0 || p.DayOfMonth > 31 {
		return fmt.Errorf("%w: day of month %d not in 1..31", ErrInvalidPattern, p.DayOfMonth)
	}
	return nil
}

func validInterval(interval int) error {
	if interval < 1 {
		return fmt.Errorf("%w: interval must be at least 1, got %d", ErrInvalidPattern, interval)
	}
	return nil
}

func (p Daily) String() string {
	if p.Interval == 1 {
		return "daily"
	}
	return fmt.Sprintf("every %d days", p.Interval)
}

func (p Weekly) String() string {
	if !p.Weekdays.Empty() {
		return "weekly on " + p.Weekdays.String()
	}
	if p.Interval == 1 {
		return "weekly"
	}
	return fmt.Sprintf("every %d weeks", p.Interval)
}

func (p Monthly) String() string {
	every := "monthly"
	if p.Interval != 1 {
		every = fmt.Sprintf("every %d months", p.Interval)
	}
	if p.DayOfMonth > 0 {
		return fmt.Sprintf("%s on day %d", every, p.DayOfMonth)
	}
	return every
}

func (p Daily) candidate(anchor date.Date) (date.Date, bool) {
	return anchor.AddDays(p.Interval), true
}

func (p Weekly) candidate(anchor date.Date) (date.Date, bool) {
	if p.Weekdays.Empty() {
		return anchor.AddDays(7 * p.Interval), true
	}
	for offset := 1; offset <= 7; offset++ {
		next := anchor.AddDays(offset)
		if p.Weekdays.Has(next.Weekday()) {
			return next, true
		}
	}
	return date.Date{}, false
}

func (p Monthly) candidate(anchor date.Date) (date.Date, bool) {
	// Normalize on the 1st so month arithmetic never overflows into the next month.
	first := time.Date(anchor.Year(), anchor.Month()+time.Month(p.Interval), 1, 0, 0, 0, 0, time.UTC)
	day := p.DayOfMonth
	if day == 0 {
		day = anchor.Day()
	}
	if last := date.DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return date.New(first.Year(), first.Month(), day), true
}
