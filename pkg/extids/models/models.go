package models

import "gorm.io/gorm"

// AllModels returns all models for migration
// Note: ExternalSystem must be migrated first as other models depend on it
func AllModels() []interface{} {
	return []interface{}{
		&ExternalSystem{},
		&ExternalSystemRecordType{},
		&ExternalSystemURL{},
		&ExternalID{},
		&APIClient{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
