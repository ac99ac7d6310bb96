package database

import (
	"gorm.io/gorm"

	"github.com/coltonswapp/nest-note-sub009/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.PushToken{},
		&models.Session{},
		&models.ArchivedSession{},
	)
}
