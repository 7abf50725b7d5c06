package service

import (
	"context"
	"fmt"
	"strings"

	"crm-tasks/internal/date"
	"crm-tasks/internal/model"
	"crm-tasks/internal/recurrence"
	"crm-tasks/internal/repository"
)

// TemplateInput represents data required to create a template.
type TemplateInput struct {
	Details    model.TaskDetails
	Pattern    recurrence.Pattern
	AnchorDate *date.Date
	EndDate    *date.Date
}

// TemplateUpdate lists the fields to change. Nil fields are left untouched.
type TemplateUpdate struct {
	Title               *string
	Description         *string
	Priority            *string
	Category            *string
	Type                *string
	AssignedToID        *uint
	Subject             *model.Subject
	DueTime             *string
	DueTimeDetails      *string
	ReminderTime        *string
	ReminderOption      *string
	CalendarSyncEnabled *bool

	Pattern      recurrence.Pattern
	AnchorDate   *date.Date
	EndDate      *date.Date
	ClearEndDate bool
}

func (u TemplateUpdate) changesRecurrence() bool {
	return u.redefinesStart() || u.EndDate != nil || u.ClearEndDate
}

// redefinesStart reports whether the cursor must be rebuilt from the anchor.
func (u TemplateUpdate) redefinesStart() bool {
	return u.Pattern != nil || u.AnchorDate != nil
}

// TemplateService is the create/update/delete surface for templates. It keeps
// the cursor consistent with the recurrence fields.
type TemplateService struct {
	store *repository.Store
}

func NewTemplateService(store *repository.Store) *TemplateService {
	return &TemplateService{store: store}
}

func (s *TemplateService) Create(ctx context.Context, input TemplateInput) (*model.TaskTemplate, error) {
	input.Details.Title = strings.TrimSpace(input.Details.Title)
	if input.Details.Title == "" {
		return nil, ErrTitleRequired
	}
	if err := input.Details.Subject.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubject, err)
	}
	if input.Pattern == nil {
		return nil, fmt.Errorf("%w: pattern is required", recurrence.ErrInvalidPattern)
	}
	if err := input.Pattern.Validate(); err != nil {
		return nil, err
	}

	tpl := model.TaskTemplate{
		TaskDetails:       input.Details,
		AnchorDate:        input.AnchorDate,
		RecurrenceEndDate: input.EndDate,
	}
	tpl.SetPattern(input.Pattern)
	tpl.Reschedule()

	if err := s.store.Templates.Create(ctx, &tpl); err != nil {
		return nil, storageErr(err, ErrTemplateNotFound)
	}
	return &tpl, nil
}

// Update applies upd under a row lock. The cursor is rebuilt from the anchor
// only when the pattern or anchor change. An end date change keeps the cursor
// moving forward from the occurrences already materialized.
func (s *TemplateService) Update(ctx context.Context, id uint, upd TemplateUpdate) (*model.TaskTemplate, error) {
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return nil, ErrTitleRequired
	}
	if upd.Subject != nil {
		if err := upd.Subject.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSubject, err)
		}
	}
	if upd.Pattern != nil {
		if err := upd.Pattern.Validate(); err != nil {
			return nil, err
		}
	}

	var updated *model.TaskTemplate
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		tpl, err := tx.Templates.LockByID(ctx, id)
		if err != nil {
			return storageErr(err, ErrTemplateNotFound)
		}

		fields := applyDetails(tpl, upd)
		if err := tx.Templates.UpdateFields(ctx, id, fields); err != nil {
			return storageErr(err, ErrTemplateNotFound)
		}

		if upd.changesRecurrence() {
			if upd.Pattern != nil {
				tpl.SetPattern(upd.Pattern)
			}
			if upd.AnchorDate != nil {
				tpl.AnchorDate = upd.AnchorDate
			}
			if upd.ClearEndDate {
				tpl.RecurrenceEndDate = nil
			} else if upd.EndDate != nil {
				tpl.RecurrenceEndDate = upd.EndDate
			}
			if upd.redefinesStart() {
				tpl.Reschedule()
			} else {
				lastDue, err := tx.Occurrences.LatestDueDate(ctx, id)
				if err != nil {
					return storageErr(err, ErrTemplateNotFound)
				}
				tpl.Rebound(lastDue)
			}

			if err := tx.Templates.UpdateGuarded(ctx, tpl, map[string]interface{}{
				"anchor_date":          tpl.AnchorDate,
				"recur_frequency":      tpl.RecurFrequency,
				"recur_interval":       tpl.RecurInterval,
				"recur_weekdays":       tpl.RecurWeekdays,
				"recur_day_of_month":   tpl.RecurDayOfMonth,
				"recurrence_end_date":  tpl.RecurrenceEndDate,
				"cursor_state":         tpl.CursorState,
				"next_occurrence_date": tpl.NextOccurrenceDate,
				"invalid_reason":       tpl.InvalidReason,
			}); err != nil {
				return storageErr(err, ErrTemplateNotFound)
			}
		}
		updated = tpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyDetails copies the set fields of upd onto tpl and returns the changed columns.
func applyDetails(tpl *model.TaskTemplate, upd TemplateUpdate) map[string]interface{} {
	fields := map[string]interface{}{}
	setString := func(column string, dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
			fields[column] = *dst
		}
	}
	setString("title", &tpl.Title, upd.Title)
	setString("description", &tpl.Description, upd.Description)
	setString("priority", &tpl.Priority, upd.Priority)
	setString("category", &tpl.Category, upd.Category)
	setString("type", &tpl.Type, upd.Type)
	setString("due_time", &tpl.DueTime, upd.DueTime)
	setString("due_time_details", &tpl.DueTimeDetails, upd.DueTimeDetails)
	setString("reminder_time", &tpl.ReminderTime, upd.ReminderTime)
	setString("reminder_option", &tpl.ReminderOption, upd.ReminderOption)
	if upd.AssignedToID != nil {
		tpl.AssignedToID = *upd.AssignedToID
		fields["assigned_to_id"] = tpl.AssignedToID
	}
	if upd.Subject != nil {
		tpl.Subject = *upd.Subject
		fields["subject_kind"] = tpl.Subject.Kind
		fields["subject_id"] = tpl.Subject.ID
	}
	if upd.CalendarSyncEnabled != nil {
		tpl.CalendarSyncEnabled = *upd.CalendarSyncEnabled
		fields["calendar_sync_enabled"] = tpl.CalendarSyncEnabled
	}
	return fields
}

func (s *TemplateService) Get(ctx context.Context, id uint) (*model.TaskTemplate, error) {
	tpl, err := s.store.Templates.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, ErrTemplateNotFound)
	}
	return tpl, nil
}

// List returns the templates of an office, or all templates for officeID 0.
func (s *TemplateService) List(ctx context.Context, officeID uint) ([]model.TaskTemplate, error) {
	templates, err := s.store.Templates.List(ctx, officeID)
	if err != nil {
		return nil, storageErr(err, ErrTemplateNotFound)
	}
	return templates, nil
}

// Delete removes a template and every occurrence materialized from it.
func (s *TemplateService) Delete(ctx context.Context, id uint) error {
	deleted, err := s.store.Templates.Delete(ctx, id)
	if err != nil {
		return storageErr(err, ErrTemplateNotFound)
	}
	if !deleted {
		return ErrTemplateNotFound
	}
	return nil
}
