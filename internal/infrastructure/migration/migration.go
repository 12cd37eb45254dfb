// Package migration manages database schema migrations.
package migration

import (
	"fmt"

	"gorm.io/gorm"

	"mingle/internal/infrastructure/persistence/models"
	"mingle/internal/shared/logger"
)

// Models returns every model the schema is built from, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.AccountModel{},
		&models.MeetingModel{},
	}
}

// Run applies GORM AutoMigrate over all registered models.
func Run(db *gorm.DB, log logger.Interface) error {
	modelList := Models()
	log.Infow("starting database migration", "models_count", len(modelList))

	if err := db.AutoMigrate(modelList...); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	log.Infow("database migration completed")
	return nil
}
