package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crm-tasks/internal/date"
	"crm-tasks/internal/model"
)

// TemplateRepository handles persistence of recurring task templates.
type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *model.TaskTemplate) error {
	if err := r.db.WithContext(ctx).Create(tpl).Error; err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) FindByID(ctx context.Context, id uint) (*model.TaskTemplate, error) {
	var tpl model.TaskTemplate
	if err := r.db.WithContext(ctx).Where("id = ? AND is_template = ?", id, true).First(&tpl).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

// LockByID reads a template taking a row lock where the database supports
// one. Use it inside a transaction before writing the cursor.
func (r *TemplateRepository) LockByID(ctx context.Context, id uint) (*model.TaskTemplate, error) {
	var tpl model.TaskTemplate
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ? AND is_template = ?", id, true).
		First(&tpl).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

// List returns templates ordered by id. officeID 0 lists every office.
func (r *TemplateRepository) List(ctx context.Context, officeID uint) ([]model.TaskTemplate, error) {
	var templates []model.TaskTemplate
	q := r.db.WithContext(ctx).Where("is_template = ?", true)
	if officeID != 0 {
		q = q.Where("office_id = ?", officeID)
	}
	if err := q.Order("id ASC").Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

// ListPending returns active templates whose cursor is on or before horizon.
func (r *TemplateRepository) ListPending(ctx context.Context, horizon date.Date) ([]model.TaskTemplate, error) {
	var templates []model.TaskTemplate
	if err := r.db.WithContext(ctx).
		Where("is_template = ? AND cursor_state = ? AND next_occurrence_date IS NOT NULL AND next_occurrence_date <= ?",
			true, model.CursorActive, horizon).
		Order("next_occurrence_date ASC, id ASC").
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("list pending templates: %w", err)
	}
	return templates, nil
}

// SaveCursor writes the cursor of tpl if its stored version still equals
// tpl.Version, then bumps the version on both sides.
func (r *TemplateRepository) SaveCursor(ctx context.Context, tpl *model.TaskTemplate) error {
	return r.UpdateGuarded(ctx, tpl, map[string]interface{}{
		"cursor_state":         tpl.CursorState,
		"next_occurrence_date": tpl.NextOccurrenceDate,
		"invalid_reason":       tpl.InvalidReason,
	})
}

// UpdateGuarded applies updates to tpl's row with a compare-and-swap on the
// version column. ErrStaleVersion means nothing was written.
func (r *TemplateRepository) UpdateGuarded(ctx context.Context, tpl *model.TaskTemplate, updates map[string]interface{}) error {
	updates["version"] = gorm.Expr("version + ?", 1)
	res := r.db.WithContext(ctx).Model(&model.TaskTemplate{}).
		Where("id = ? AND version = ?", tpl.ID, tpl.Version).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update template %d: %w", tpl.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update template %d at version %d: %w", tpl.ID, tpl.Version, ErrStaleVersion)
	}
	tpl.Version++
	return nil
}

// Delete removes a template together with all of its occurrences.
func (r *TemplateRepository) Delete(ctx context.Context, id uint) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("parent_template_id = ?", id).Delete(&model.TaskOccurrence{}).Error; err != nil {
			return fmt.Errorf("delete occurrences: %w", err)
		}
		res := tx.Where("id = ? AND is_template = ?", id, true).Delete(&model.TaskTemplate{})
		if res.Error != nil {
			return fmt.Errorf("delete template: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// UpdateFields writes non-recurrence columns without touching the cursor or version.
func (r *TemplateRepository) UpdateFields(ctx context.Context, id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&model.TaskTemplate{}).
		Where("id = ? AND is_template = ?", id, true).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("update template %d: %w", id, err)
	}
	return nil
}
