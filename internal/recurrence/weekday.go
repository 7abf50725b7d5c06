package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WeekdaySet is a set of time.Weekday values, Sunday = 0 through Saturday = 6.
type WeekdaySet uint8

const allWeekdays WeekdaySet = 1<<7 - 1

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// NewWeekdaySet builds a set from the given days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// Has reports whether d is in the set.
func (s WeekdaySet) Has(d time.Weekday) bool {
	if d < time.Sunday || d > time.Saturday {
		return false
	}
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) Empty() bool { return s == 0 }

func (s WeekdaySet) valid() bool { return s&^allWeekdays == 0 }

// Days lists the members in Sunday-first order.
func (s WeekdaySet) Days() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// String renders the set as "mon,wed,fri".
func (s WeekdaySet) String() string {
	names := make([]string, 0, 7)
	for _, d := range s.Days() {
		names = append(names, strings.ToLower(d.String()[:3]))
	}
	return strings.Join(names, ",")
}

// Numbers renders the set as "1,3,5" for storage.
func (s WeekdaySet) Numbers() string {
	nums := make([]string, 0, 7)
	for _, d := range s.Days() {
		nums = append(nums, strconv.Itoa(int(d)))
	}
	return strings.Join(nums, ",")
}

// ParseWeekdays accepts a comma separated list of day names ("mon", "monday")
// or numbers 0..6. An empty string yields an empty set.
func ParseWeekdays(raw string) (WeekdaySet, error) {
	var s WeekdaySet
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if d, ok := weekdayNames[part]; ok {
			s |= NewWeekdaySet(d)
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidPattern, part)
		}
		s |= NewWeekdaySet(time.Weekday(n))
	}
	return s, nil
}
