package database

import (
	"fmt"
	"io"
	"log"
	"time"

	"inventory-sync-api/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options configures the database connection.
type Options struct {
	// Path is the SQLite file; ":memory:" opens a private in-memory database.
	Path string
	// LogLevel is one of silent, error, warn, info.
	LogLevel string
	// LogOutput receives gorm's log lines; nil discards them.
	LogOutput io.Writer
}

// Open opens the SQLite database using glebarez/sqlite, a pure Go driver (no CGO required).
func Open(opts Options) (*gorm.DB, error) {
	out := opts.LogOutput
	if out == nil {
		out = io.Discard
	}
	gormLogger := logger.New(log.New(out, "", 0), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  parseLogLevel(opts.LogLevel),
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	db, err := gorm.Open(sqlite.Open(opts.Path), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", opts.Path, err)
	}

	// SQLite allows a single writer; serialize through one connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func parseLogLevel(s string) logger.LogLevel {
	switch s {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
