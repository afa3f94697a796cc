package storage

import (
	"batchchat/backend/internal/models"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to the relational store selected by driver ("postgres" or "mysql").
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	// TranslateError turns driver-specific unique violations into gorm.ErrDuplicatedKey.
	return gorm.Open(dialector, &gorm.Config{TranslateError: true})
}

// Migrate creates or updates the tables owned by this service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Course{},
		&models.Batch{},
		&models.BatchMember{},
		&models.Room{},
		&models.RoomMember{},
		&models.Message{},
		&models.ReadMarker{},
		&models.Enrollment{},
	)
}
