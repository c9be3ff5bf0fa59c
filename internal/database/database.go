package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mixtura/petube/internal/model"
)

// Open opens a GORM connection for the given driver ("postgres" or "sqlite").
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("database: unknown driver %q", driver)
	}
}

// AutoMigrate creates the schema from the entity definitions. Used by the
// sqlite path and by tests; postgres deployments run SQL migrations instead.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.PairingGroup{},
		&model.Device{},
		&model.PairingSession{},
		&model.RoomAttachment{},
	)
}
