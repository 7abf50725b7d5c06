package testutil

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"crm-tasks/internal/repository"
)

// NewTestDatabase opens a migrated SQLite database in a temp dir.
func NewTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// NewTestStore returns a Store backed by NewTestDatabase.
func NewTestStore(t *testing.T) (*repository.Store, *gorm.DB) {
	t.Helper()
	db := NewTestDatabase(t)
	return repository.NewStore(db), db
}
