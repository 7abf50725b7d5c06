package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-tasks/internal/date"
)

func d(year int, month time.Month, day int) date.Date {
	return date.New(year, month, day)
}

func TestRuleNext(t *testing.T) {
	mwf := NewWeekdaySet(time.Monday, time.Wednesday, time.Friday)

	tests := []struct {
		name    string
		pattern Pattern
		anchor  date.Date
		want    date.Date
	}{
		{"daily every 2 days", Daily{Interval: 2}, d(2024, 1, 1), d(2024, 1, 3)},
		{"daily across year end", Daily{Interval: 1}, d(2023, 12, 31), d(2024, 1, 1)},
		{"weekly weekdays from sunday", Weekly{Interval: 1, Weekdays: mwf}, d(2024, 1, 7), d(2024, 1, 8)},
		{"weekly weekdays from monday", Weekly{Interval: 1, Weekdays: mwf}, d(2024, 1, 8), d(2024, 1, 10)},
		{"weekly weekdays from friday", Weekly{Interval: 1, Weekdays: mwf}, d(2024, 1, 12), d(2024, 1, 15)},
		{"weekly weekdays ignores interval", Weekly{Interval: 3, Weekdays: mwf}, d(2024, 1, 7), d(2024, 1, 8)},
		{"weekly same weekday next week", Weekly{Interval: 1, Weekdays: NewWeekdaySet(time.Monday)}, d(2024, 1, 8), d(2024, 1, 15)},
		{"weekly every 2 weeks", Weekly{Interval: 2}, d(2024, 1, 1), d(2024, 1, 15)},
		{"monthly day 15", Monthly{Interval: 1, DayOfMonth: 15}, d(2024, 1, 1), d(2024, 2, 15)},
		{"monthly every 2 months keeps day", Monthly{Interval: 2}, d(2024, 1, 15), d(2024, 3, 15)},
		{"monthly day 31 clamps to 30", Monthly{Interval: 1, DayOfMonth: 31}, d(2024, 3, 31), d(2024, 4, 30)},
		{"monthly day 31 clamps in leap february", Monthly{Interval: 1, DayOfMonth: 31}, d(2024, 1, 31), d(2024, 2, 29)},
		{"monthly anchor day 31 clamps", Monthly{Interval: 1}, d(2023, 1, 31), d(2023, 2, 28)},
		{"monthly across year end", Monthly{Interval: 3, DayOfMonth: 10}, d(2024, 11, 5), d(2025, 2, 10)},
		{"monthly interval 12", Monthly{Interval: 12}, d(2024, 2, 29), d(2025, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Rule{Pattern: tt.pattern}.Next(tt.anchor)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleNextEndDate(t *testing.T) {
	end := d(2024, 1, 5)
	rule := Rule{Pattern: Daily{Interval: 1}, EndDate: &end}

	next, ok := rule.Next(d(2024, 1, 4))
	require.True(t, ok)
	assert.Equal(t, end, next, "end date is inclusive")

	_, ok = rule.Next(d(2024, 1, 5))
	assert.False(t, ok)

	_, ok = rule.Next(d(2024, 1, 10))
	assert.False(t, ok, "anchor already past the end date")
}

func TestRuleNextTerminal(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
	}{
		{"nil pattern", nil},
		{"zero daily interval", Daily{}},
		{"negative weekly interval", Weekly{Interval: -1}},
		{"monthly day out of range", Monthly{Interval: 1, DayOfMonth: 32}},
		{"weekday bits out of range", Weekly{Interval: 1, Weekdays: WeekdaySet(0x80)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Rule{Pattern: tt.pattern}.Next(d(2024, 1, 1))
			assert.False(t, ok)
		})
	}
}

func TestDailyProperty(t *testing.T) {
	start := d(2023, 12, 1)
	for k := 1; k <= 10; k++ {
		for offset := 0; offset < 120; offset++ {
			anchor := start.AddDays(offset)
			got, ok := Rule{Pattern: Daily{Interval: k}}.Next(anchor)
			require.True(t, ok)
			assert.Equal(t, k, anchor.DaysUntil(got))
		}
	}
}

func TestWeeklyProperty(t *testing.T) {
	start := d(2024, 1, 1)
	for set := WeekdaySet(1); set <= allWeekdays; set++ {
		for offset := 0; offset < 14; offset++ {
			anchor := start.AddDays(offset)
			got, ok := Rule{Pattern: Weekly{Interval: 1, Weekdays: set}}.Next(anchor)
			require.True(t, ok)

			gap := anchor.DaysUntil(got)
			require.True(t, gap >= 1 && gap <= 7, "gap %d for set %s", gap, set)
			require.True(t, set.Has(got.Weekday()))
			for i := 1; i < gap; i++ {
				assert.False(t, set.Has(anchor.AddDays(i).Weekday()), "skipped an earlier match")
			}
		}
	}

	for k := 1; k <= 5; k++ {
		got, ok := Rule{Pattern: Weekly{Interval: k}}.Next(start)
		require.True(t, ok)
		assert.Equal(t, 7*k, start.DaysUntil(got))
	}
}

func TestMonthlyProperty(t *testing.T) {
	for n := 1; n <= 31; n++ {
		for interval := 1; interval <= 13; interval++ {
			anchor := d(2024, 1, 20)
			got, ok := Rule{Pattern: Monthly{Interval: interval, DayOfMonth: n}}.Next(anchor)
			require.True(t, ok)

			wantMonth := time.Date(2024, time.January+time.Month(interval), 1, 0, 0, 0, 0, time.UTC)
			require.Equal(t, wantMonth.Month(), got.Month(), "never rolls into a following month")
			require.Equal(t, wantMonth.Year(), got.Year())
			assert.Equal(t, min(n, date.DaysIn(got.Year(), got.Month())), got.Day())
		}
	}
}

func TestDecode(t *testing.T) {
	p, err := Decode(Fields{Frequency: "weekly", Interval: 1, Weekdays: "1,3,5"})
	require.NoError(t, err)
	assert.Equal(t, Weekly{Interval: 1, Weekdays: NewWeekdaySet(time.Monday, time.Wednesday, time.Friday)}, p)

	p, err = Decode(Fields{Frequency: "Monthly", Interval: 2, DayOfMonth: 15, Weekdays: "garbage"})
	require.NoError(t, err, "inactive variant fields are not read")
	assert.Equal(t, Monthly{Interval: 2, DayOfMonth: 15}, p)

	_, err = Decode(Fields{Frequency: "yearly", Interval: 1})
	assert.True(t, errors.Is(err, ErrInvalidPattern))

	_, err = Decode(Fields{Frequency: "weekly", Interval: 0})
	assert.True(t, errors.Is(err, ErrInvalidPattern))

	_, err = Decode(Fields{Frequency: "weekly", Interval: 1, Weekdays: "1,9"})
	assert.True(t, errors.Is(err, ErrInvalidPattern))
}

func TestEncodeRoundTrip(t *testing.T) {
	patterns := []Pattern{
		Daily{Interval: 3},
		Weekly{Interval: 2},
		Weekly{Interval: 1, Weekdays: NewWeekdaySet(time.Sunday, time.Saturday)},
		Monthly{Interval: 1},
		Monthly{Interval: 6, DayOfMonth: 31},
	}
	for _, p := range patterns {
		got, err := Decode(Encode(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestParseWeekdays(t *testing.T) {
	s, err := ParseWeekdays("Mon, wednesday,5")
	require.NoError(t, err)
	assert.Equal(t, "mon,wed,fri", s.String())
	assert.Equal(t, "1,3,5", s.Numbers())

	s, err = ParseWeekdays("")
	require.NoError(t, err)
	assert.True(t, s.Empty())

	_, err = ParseWeekdays("funday")
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestPatternString(t *testing.T) {
	assert.Equal(t, "daily", Daily{Interval: 1}.String())
	assert.Equal(t, "every 2 weeks", Weekly{Interval: 2}.String())
	assert.Equal(t, "weekly on mon,fri", Weekly{Interval: 1, Weekdays: NewWeekdaySet(time.Friday, time.Monday)}.String())
	assert.Equal(t, "every 3 months on day 31", Monthly{Interval: 3, DayOfMonth: 31}.String())
}
