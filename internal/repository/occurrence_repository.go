package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"crm-tasks/internal/date"
	"crm-tasks/internal/model"
)

// OccurrenceRepository handles CRUD for materialized task occurrences.
type OccurrenceRepository struct {
	db *gorm.DB
}

func NewOccurrenceRepository(db *gorm.DB) *OccurrenceRepository {
	return &OccurrenceRepository{db: db}
}

func (r *OccurrenceRepository) Create(ctx context.Context, occ *model.TaskOccurrence) error {
	if err := r.db.WithContext(ctx).Create(occ).Error; err != nil {
		return fmt.Errorf("create occurrence: %w", err)
	}
	return nil
}

func (r *OccurrenceRepository) FindByID(ctx context.Context, id uint) (*model.TaskOccurrence, error) {
	var occ model.TaskOccurrence
	if err := r.db.WithContext(ctx).First(&occ, id).Error; err != nil {
		return nil, err
	}
	return &occ, nil
}

// ListByTemplate returns a template's occurrences in due date order.
func (r *OccurrenceRepository) ListByTemplate(ctx context.Context, templateID uint) ([]model.TaskOccurrence, error) {
	var occurrences []model.TaskOccurrence
	if err := r.db.WithContext(ctx).Where("parent_template_id = ?", templateID).
		Order("due_date ASC, id ASC").
		Find(&occurrences).Error; err != nil {
		return nil, err
	}
	return occurrences, nil
}

// LatestDueDate returns the latest due date materialized for a template, or
// nil when it has no occurrences.
func (r *OccurrenceRepository) LatestDueDate(ctx context.Context, templateID uint) (*date.Date, error) {
	var occ model.TaskOccurrence
	res := r.db.WithContext(ctx).Where("parent_template_id = ?", templateID).
		Order("due_date DESC, id DESC").
		Limit(1).
		Find(&occ)
	if res.Error != nil {
		return nil, fmt.Errorf("latest occurrence of template %d: %w", templateID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &occ.DueDate, nil
}

func (r *OccurrenceRepository) CountByTemplate(ctx context.Context, templateID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.TaskOccurrence{}).
		Where("parent_template_id = ?", templateID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountOrphans counts occurrences whose parent template no longer exists.
func (r *OccurrenceRepository) CountOrphans(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.TaskOccurrence{}).
		Where("parent_template_id NOT IN (?)", r.db.Model(&model.TaskTemplate{}).Select("id")).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SaveStatus persists the status fields of occ.
func (r *OccurrenceRepository) SaveStatus(ctx context.Context, occ *model.TaskOccurrence) error {
	if err := r.db.WithContext(ctx).Model(occ).Select("status", "completed_at", "completion_notes").
		Updates(occ).Error; err != nil {
		return fmt.Errorf("update occurrence status: %w", err)
	}
	return nil
}

// Delete removes a single occurrence.
func (r *OccurrenceRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.TaskOccurrence{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("delete occurrence: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
