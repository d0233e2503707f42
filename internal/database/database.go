package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/hackathon-judge/internal/models"
)

// Connect opens the evaluation database. URLs starting with "sqlite://" open
// a local SQLite file; anything else is treated as a PostgreSQL DSN.
func Connect(url string) (*gorm.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("database url must not be empty")
	}

	if path, ok := strings.CutPrefix(url, "sqlite://"); ok {
		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return db, nil
	}

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the evaluation tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Evaluation{})
}
