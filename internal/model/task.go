package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"crm-tasks/internal/date"
	"crm-tasks/internal/recurrence"
)

// TaskDetails holds the descriptive, assignment and scheduling fields shared
// by templates and their occurrences.
type TaskDetails struct {
	Title               string `gorm:"not null"`
	Description         string
	Priority            string `gorm:"size:16"`
	Category            string `gorm:"size:64"`
	Type                string `gorm:"size:64"`
	AssignedToID        uint   `gorm:"index"`
	CreatedByID         uint
	OfficeID            uint    `gorm:"index"`
	Subject             Subject `gorm:"embedded"`
	DueTime             string  `gorm:"size:5"` // HH:MM
	DueTimeDetails      string
	ReminderTime        string `gorm:"size:5"`
	ReminderOption      string `gorm:"size:32"`
	CalendarSyncEnabled bool   `gorm:"default:false"`
}

// Snapshot copies the fields an occurrence inherits from its template.
// A new field must be added here deliberately to be inherited.
func (d TaskDetails) Snapshot() TaskDetails {
	return TaskDetails{
		Title:               d.Title,
		Description:         d.Description,
		Priority:            d.Priority,
		Category:            d.Category,
		Type:                d.Type,
		AssignedToID:        d.AssignedToID,
		CreatedByID:         d.CreatedByID,
		OfficeID:            d.OfficeID,
		Subject:             Subject{Kind: d.Subject.Kind, ID: d.Subject.ID},
		DueTime:             d.DueTime,
		DueTimeDetails:      d.DueTimeDetails,
		ReminderTime:        d.ReminderTime,
		ReminderOption:      d.ReminderOption,
		CalendarSyncEnabled: d.CalendarSyncEnabled,
	}
}

// CursorState says whether a template still has occurrences to generate.
type CursorState string

const (
	// CursorUnscheduled: no anchor date yet.
	CursorUnscheduled CursorState = "unscheduled"
	// CursorActive: NextOccurrenceDate holds the next date to materialize.
	CursorActive CursorState = "active"
	// CursorExhausted: the end date was passed or the pattern could not resolve.
	CursorExhausted CursorState = "exhausted"
	// CursorInvalid: the stored pattern is malformed and needs correction.
	CursorInvalid CursorState = "invalid"
)

// TaskTemplate is a recurring task definition. Only templates carry a
// recurrence pattern and a cursor.
type TaskTemplate struct {
	ID          uint `gorm:"primaryKey"`
	TaskDetails `gorm:"embedded"`
	IsTemplate  bool `gorm:"not null;default:true"`

	// AnchorDate is the due date the recurrence starts from.
	AnchorDate        *date.Date
	RecurFrequency    string `gorm:"size:16"`
	RecurInterval     int
	RecurWeekdays     string `gorm:"size:32"`
	RecurDayOfMonth   int
	RecurrenceEndDate *date.Date

	CursorState        CursorState `gorm:"size:16;not null;default:unscheduled;index:idx_template_cursor,priority:1"`
	NextOccurrenceDate *date.Date  `gorm:"index:idx_template_cursor,priority:2"`
	InvalidReason      string

	// Version guards cursor writes against concurrent edits and batch runs.
	Version int `gorm:"not null;default:1"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *TaskTemplate) BeforeCreate(*gorm.DB) error {
	t.IsTemplate = true
	if t.Version == 0 {
		t.Version = 1
	}
	if t.CursorState == "" {
		t.CursorState = CursorUnscheduled
	}
	return nil
}

// Pattern decodes the stored recurrence pattern.
func (t *TaskTemplate) Pattern() (recurrence.Pattern, error) {
	return recurrence.Decode(recurrence.Fields{
		Frequency:  t.RecurFrequency,
		Interval:   t.RecurInterval,
		Weekdays:   t.RecurWeekdays,
		DayOfMonth: t.RecurDayOfMonth,
	})
}

// SetPattern stores p in the recurrence columns.
func (t *TaskTemplate) SetPattern(p recurrence.Pattern) {
	f := recurrence.Encode(p)
	t.RecurFrequency = f.Frequency
	t.RecurInterval = f.Interval
	t.RecurWeekdays = f.Weekdays
	t.RecurDayOfMonth = f.DayOfMonth
}

// Rule returns the template's pattern together with its end date.
func (t *TaskTemplate) Rule() (recurrence.Rule, error) {
	p, err := t.Pattern()
	if err != nil {
		return recurrence.Rule{}, err
	}
	return recurrence.Rule{Pattern: p, EndDate: t.RecurrenceEndDate}, nil
}

// Reschedule recomputes the cursor from scratch from the anchor date.
func (t *TaskTemplate) Reschedule() {
	rule, err := t.Rule()
	if err != nil {
		t.MarkInvalid(err)
		return
	}
	t.InvalidReason = ""
	if t.AnchorDate == nil {
		t.CursorState = CursorUnscheduled
		t.NextOccurrenceDate = nil
		return
	}
	t.SetCursor(rule.Next(*t.AnchorDate))
}

// Rebound updates the cursor after only the end date changed. An active
// cursor stays where it is unless it now falls past the end date. An
// exhausted template resumes after lastDue, the latest materialized due date,
// or after the anchor when nothing later was materialized.
func (t *TaskTemplate) Rebound(lastDue *date.Date) {
	rule, err := t.Rule()
	if err != nil {
		t.MarkInvalid(err)
		return
	}
	switch {
	case t.CursorState == CursorActive && t.NextOccurrenceDate != nil:
		if !rule.Covers(*t.NextOccurrenceDate) {
			t.SetCursor(date.Date{}, false)
		}
	case t.CursorState == CursorExhausted && t.AnchorDate != nil:
		from := *t.AnchorDate
		if lastDue != nil && lastDue.After(from) {
			from = *lastDue
		}
		t.SetCursor(rule.Next(from))
	default:
		t.Reschedule()
	}
}

// SetCursor moves the cursor to next, or marks the template exhausted when
// ok is false.
func (t *TaskTemplate) SetCursor(next date.Date, ok bool) {
	if !ok {
		t.CursorState = CursorExhausted
		t.NextOccurrenceDate = nil
		return
	}
	t.CursorState = CursorActive
	t.NextOccurrenceDate = &next
}

// MarkInvalid flags the template for correction and clears its cursor.
func (t *TaskTemplate) MarkInvalid(err error) {
	t.CursorState = CursorInvalid
	t.NextOccurrenceDate = nil
	t.InvalidReason = err.Error()
}

// Pending reports whether the template has an occurrence due on or before horizon.
func (t *TaskTemplate) Pending(horizon date.Date) bool {
	return t.IsTemplate && t.CursorState == CursorActive &&
		t.NextOccurrenceDate != nil && !t.NextOccurrenceDate.After(horizon)
}

// Status of an occurrence.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates a status string.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// TaskOccurrence is one concrete task materialized from a template. Its
// details are a snapshot taken at materialization time.
type TaskOccurrence struct {
	ID               uint          `gorm:"primaryKey"`
	ParentTemplateID uint          `gorm:"not null;index:idx_occurrence_parent_due,priority:1"`
	ParentTemplate   *TaskTemplate `gorm:"constraint:OnDelete:CASCADE" json:"-" yaml:"-"`
	TaskDetails      `gorm:"embedded"`
	IsTemplate       bool      `gorm:"not null;default:false"`
	DueDate          date.Date `gorm:"not null;index:idx_occurrence_parent_due,priority:2"`
	Status           Status    `gorm:"size:16;not null;default:pending;index"`
	CompletedAt      *time.Time
	CompletionNotes  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (o *TaskOccurrence) BeforeCreate(*gorm.DB) error {
	o.IsTemplate = false
	if o.Status == "" {
		o.Status = StatusPending
	}
	return nil
}

// NewOccurrence builds the pending occurrence of tpl due on dueDate.
func NewOccurrence(tpl *TaskTemplate, dueDate date.Date) *TaskOccurrence {
	return &TaskOccurrence{
		ParentTemplateID: tpl.ID,
		TaskDetails:      tpl.TaskDetails.Snapshot(),
		DueDate:          dueDate,
		Status:           StatusPending,
	}
}
