package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-tasks/internal/date"
	"crm-tasks/internal/recurrence"
)

func datePtr(year int, month time.Month, day int) *date.Date {
	d := date.New(year, month, day)
	return &d
}

func TestRescheduleStates(t *testing.T) {
	tpl := TaskTemplate{AnchorDate: datePtr(2024, 1, 1)}
	tpl.SetPattern(recurrence.Daily{Interval: 2})
	tpl.Reschedule()
	assert.Equal(t, CursorActive, tpl.CursorState)
	require.NotNil(t, tpl.NextOccurrenceDate)
	assert.Equal(t, date.New(2024, 1, 3), *tpl.NextOccurrenceDate)

	tpl.RecurrenceEndDate = datePtr(2024, 1, 2)
	tpl.Reschedule()
	assert.Equal(t, CursorExhausted, tpl.CursorState)
	assert.Nil(t, tpl.NextOccurrenceDate)

	tpl.AnchorDate = nil
	tpl.Reschedule()
	assert.Equal(t, CursorUnscheduled, tpl.CursorState)
	assert.Nil(t, tpl.NextOccurrenceDate)

	tpl.RecurFrequency = "hourly"
	tpl.Reschedule()
	assert.Equal(t, CursorInvalid, tpl.CursorState)
	assert.Contains(t, tpl.InvalidReason, "unknown frequency")

	tpl.SetPattern(recurrence.Weekly{Interval: 1})
	tpl.AnchorDate = datePtr(2024, 1, 1)
	tpl.RecurrenceEndDate = nil
	tpl.Reschedule()
	assert.Equal(t, CursorActive, tpl.CursorState)
	assert.Empty(t, tpl.InvalidReason)
}

func TestPending(t *testing.T) {
	horizon := date.New(2024, 1, 31)
	tpl := TaskTemplate{IsTemplate: true, CursorState: CursorActive, NextOccurrenceDate: datePtr(2024, 1, 31)}
	assert.True(t, tpl.Pending(horizon))

	tpl.NextOccurrenceDate = datePtr(2024, 2, 1)
	assert.False(t, tpl.Pending(horizon))

	tpl.CursorState = CursorExhausted
	tpl.NextOccurrenceDate = nil
	assert.False(t, tpl.Pending(horizon))
}

func TestNewOccurrenceSnapshot(t *testing.T) {
	tpl := &TaskTemplate{
		ID: 5,
		TaskDetails: TaskDetails{
			Title:               "Follow up",
			Description:         "Call about the visit",
			Priority:            "high",
			Category:            "pastoral",
			Type:                "call",
			AssignedToID:        3,
			CreatedByID:         1,
			OfficeID:            2,
			Subject:             ChurchSubject(11),
			DueTime:             "09:30",
			DueTimeDetails:      "morning",
			ReminderTime:        "09:00",
			ReminderOption:      "30m",
			CalendarSyncEnabled: true,
		},
	}

	occ := NewOccurrence(tpl, date.New(2024, 2, 1))
	assert.Equal(t, uint(5), occ.ParentTemplateID)
	assert.Equal(t, tpl.TaskDetails, occ.TaskDetails)
	assert.Equal(t, StatusPending, occ.Status)
	assert.Equal(t, date.New(2024, 2, 1), occ.DueDate)
	assert.False(t, occ.IsTemplate)

	tpl.Title = "Changed"
	tpl.Subject = PersonSubject(1)
	assert.Equal(t, "Follow up", occ.Title)
	assert.Equal(t, ChurchSubject(11), occ.Subject)
}

func TestSubjectValidate(t *testing.T) {
	assert.NoError(t, Subject{}.Validate())
	assert.NoError(t, PersonSubject(1).Validate())
	assert.NoError(t, ContactSubject(4).Validate())
	assert.Error(t, Subject{ID: 3}.Validate())
	assert.Error(t, Subject{Kind: SubjectChurch}.Validate())
	assert.Error(t, Subject{Kind: "pipeline", ID: 1}.Validate())
	assert.Equal(t, "church:11", ChurchSubject(11).String())
	assert.Equal(t, "-", Subject{}.String())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("in_progress")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, s)

	_, err = ParseStatus("done")
	assert.Error(t, err)
}

func TestMarkInvalid(t *testing.T) {
	tpl := TaskTemplate{CursorState: CursorActive, NextOccurrenceDate: datePtr(2024, 1, 1)}
	tpl.MarkInvalid(errors.New("broken"))
	assert.Equal(t, CursorInvalid, tpl.CursorState)
	assert.Nil(t, tpl.NextOccurrenceDate)
	assert.Equal(t, "broken", tpl.InvalidReason)
}

func TestParseSubject(t *testing.T) {
	s, err := ParseSubject("church:12")
	require.NoError(t, err)
	assert.Equal(t, ChurchSubject(12), s)

	s, err = ParseSubject(" Person : 4 ")
	require.NoError(t, err)
	assert.Equal(t, PersonSubject(4), s)

	s, err = ParseSubject("-")
	require.NoError(t, err)
	assert.Equal(t, Subject{}, s)

	s, err = ParseSubject(ContactSubject(8).String())
	require.NoError(t, err)
	assert.Equal(t, ContactSubject(8), s)

	for _, raw := range []string{"person", "person:abc", "person:0", "office:1"} {
		_, err := ParseSubject(raw)
		assert.Error(t, err, raw)
	}
}

func TestRebound(t *testing.T) {
	newTpl := func() *TaskTemplate {
		tpl := &TaskTemplate{AnchorDate: datePtr(2024, time.January, 10)}
		tpl.SetPattern(recurrence.Daily{Interval: 1})
		tpl.Reschedule()
		return tpl
	}

	tpl := newTpl()
	tpl.SetCursor(date.New(2024, time.January, 20), true)
	tpl.RecurrenceEndDate = datePtr(2024, time.March, 1)
	tpl.Rebound(nil)
	assert.Equal(t, date.New(2024, time.January, 20), *tpl.NextOccurrenceDate, "active cursor is kept")

	tpl.RecurrenceEndDate = datePtr(2024, time.January, 15)
	tpl.Rebound(nil)
	assert.Equal(t, CursorExhausted, tpl.CursorState)

	tpl.RecurrenceEndDate = nil
	tpl.Rebound(datePtr(2024, time.January, 19))
	assert.Equal(t, CursorActive, tpl.CursorState)
	assert.Equal(t, date.New(2024, time.January, 20), *tpl.NextOccurrenceDate)

	// Occurrences from before a re-anchor do not pull the cursor back.
	tpl = newTpl()
	tpl.SetCursor(date.Date{}, false)
	tpl.Rebound(datePtr(2024, time.January, 3))
	assert.Equal(t, date.New(2024, time.January, 11), *tpl.NextOccurrenceDate)

	tpl = newTpl()
	tpl.RecurFrequency = "hourly"
	tpl.Rebound(nil)
	assert.Equal(t, CursorInvalid, tpl.CursorState)
}
