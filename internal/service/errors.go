package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"crm-tasks/internal/repository"
)

var (
	ErrTemplateNotFound       = errors.New("template not found")
	ErrOccurrenceNotFound     = errors.New("occurrence not found")
	ErrConcurrentModification = errors.New("template was modified concurrently")
	ErrPersistence            = errors.New("persistence failure")
	ErrTitleRequired          = errors.New("title is required")
	ErrInvalidSubject         = errors.New("invalid subject")
	ErrInvalidStatus          = errors.New("invalid status")
)

// storageErr maps repository errors onto the service taxonomy.
func storageErr(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, repository.ErrStaleVersion):
		return fmt.Errorf("%w: %w", ErrConcurrentModification, err)
	case errors.Is(err, ErrConcurrentModification), errors.Is(err, ErrPersistence),
		errors.Is(err, ErrTemplateNotFound), errors.Is(err, ErrOccurrenceNotFound):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
}
