package database

import "cloudysky/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models,
// ordered so that referenced tables come first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.ModerationReason{},
		&models.Post{},
		&models.Comment{},
		&models.Media{},
	}
}
