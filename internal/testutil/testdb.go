package testutil

import (
	"inventory-sync-api/internal/database"

	"gorm.io/gorm"
)

// NewInMemoryDB creates an in-memory SQLite DB and runs migrations.
func NewInMemoryDB() (*gorm.DB, error) {
	db, err := database.Open(database.Options{Path: ":memory:", LogLevel: "silent"})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
