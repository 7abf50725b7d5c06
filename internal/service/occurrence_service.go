package service

import (
	"context"
	"fmt"
	"time"

	"crm-tasks/internal/model"
	"crm-tasks/internal/repository"
)

// OccurrenceService exposes materialized occurrences to task surfaces.
type OccurrenceService struct {
	store *repository.Store
	now   func() time.Time
}

func NewOccurrenceService(store *repository.Store) *OccurrenceService {
	return &OccurrenceService{store: store, now: time.Now}
}

func (s *OccurrenceService) ListByTemplate(ctx context.Context, templateID uint) ([]model.TaskOccurrence, error) {
	occurrences, err := s.store.Occurrences.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, storageErr(err, ErrOccurrenceNotFound)
	}
	return occurrences, nil
}

func (s *OccurrenceService) Get(ctx context.Context, id uint) (*model.TaskOccurrence, error) {
	occ, err := s.store.Occurrences.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, ErrOccurrenceNotFound)
	}
	return occ, nil
}

// SetStatus moves an occurrence to status. Completing stamps CompletedAt;
// any other status clears it.
func (s *OccurrenceService) SetStatus(ctx context.Context, id uint, status model.Status, notes string) (*model.TaskOccurrence, error) {
	if _, err := model.ParseStatus(string(status)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}

	occ, err := s.store.Occurrences.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, ErrOccurrenceNotFound)
	}

	occ.Status = status
	if status == model.StatusCompleted {
		completedAt := s.now()
		occ.CompletedAt = &completedAt
		occ.CompletionNotes = notes
	} else {
		occ.CompletedAt = nil
	}

	if err := s.store.Occurrences.SaveStatus(ctx, occ); err != nil {
		return nil, storageErr(err, ErrOccurrenceNotFound)
	}
	return occ, nil
}

// Delete removes a single occurrence. The template cursor is not rewound.
func (s *OccurrenceService) Delete(ctx context.Context, id uint) error {
	deleted, err := s.store.Occurrences.Delete(ctx, id)
	if err != nil {
		return storageErr(err, ErrOccurrenceNotFound)
	}
	if !deleted {
		return ErrOccurrenceNotFound
	}
	return nil
}
