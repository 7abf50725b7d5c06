package service

import (
	"context"
	"fmt"

	"crm-tasks/internal/model"
	"crm-tasks/internal/repository"
)

// Materializer turns a template's cursor into a concrete occurrence.
type Materializer struct {
	store *repository.Store
}

func NewMaterializer(store *repository.Store) *Materializer {
	return &Materializer{store: store}
}

// MaterializeOne creates the occurrence at tpl's cursor and advances the
// cursor in one transaction. It returns nil without error when the template
// is exhausted. On success tpl is refreshed with the stored row, including
// the new cursor and version.
//
// tpl.Version must match the stored version, otherwise nothing is written and
// ErrConcurrentModification is returned. A template whose stored pattern no
// longer decodes is flagged invalid and ErrInvalidPattern is returned.
func (m *Materializer) MaterializeOne(ctx context.Context, tpl *model.TaskTemplate) (*model.TaskOccurrence, error) {
	if !tpl.IsTemplate || tpl.CursorState != model.CursorActive || tpl.NextOccurrenceDate == nil {
		return nil, nil
	}

	var (
		created    *model.TaskOccurrence
		current    *model.TaskTemplate
		patternErr error
	)
	err := m.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		current, err = tx.Templates.LockByID(ctx, tpl.ID)
		if err != nil {
			return storageErr(err, ErrTemplateNotFound)
		}
		if current.Version != tpl.Version {
			return fmt.Errorf("%w: template %d read at version %d, stored %d",
				ErrConcurrentModification, tpl.ID, tpl.Version, current.Version)
		}
		if current.CursorState != model.CursorActive || current.NextOccurrenceDate == nil {
			return nil
		}

		rule, err := current.Rule()
		if err != nil {
			// Flag the template and commit the flag; the caller still sees the error.
			patternErr = err
			current.MarkInvalid(err)
			return storageErr(tx.Templates.SaveCursor(ctx, current), ErrTemplateNotFound)
		}

		target := *current.NextOccurrenceDate
		if !rule.Covers(target) {
			current.SetCursor(target, false)
			return storageErr(tx.Templates.SaveCursor(ctx, current), ErrTemplateNotFound)
		}

		occ := model.NewOccurrence(current, target)
		if err := tx.Occurrences.Create(ctx, occ); err != nil {
			return storageErr(err, ErrTemplateNotFound)
		}
		current.SetCursor(rule.Next(target))
		if err := tx.Templates.SaveCursor(ctx, current); err != nil {
			return storageErr(err, ErrTemplateNotFound)
		}
		created = occ
		return nil
	})
	if err != nil {
		return nil, storageErr(err, ErrTemplateNotFound)
	}

	*tpl = *current
	if patternErr != nil {
		return nil, fmt.Errorf("template %d: %w", tpl.ID, patternErr)
	}
	return created, nil
}
