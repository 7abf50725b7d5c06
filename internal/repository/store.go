package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrStaleVersion is returned when a guarded write finds that the template
// changed since it was read.
var ErrStaleVersion = errors.New("template version changed")

// Store groups the repositories and runs them inside transactions.
type Store struct {
	db          *gorm.DB
	Templates   *TemplateRepository
	Occurrences *OccurrenceRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		Templates:   NewTemplateRepository(db),
		Occurrences: NewOccurrenceRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
