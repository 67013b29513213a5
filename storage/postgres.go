package storage

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"hoy-server/models"
)

// Connect opens the Postgres connection and runs migrations. The returned
// handle is passed to collaborators explicitly; there is no package-level DB.
func Connect(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage: postgres DSN is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("storage: connect to postgres: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return db, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.PropertyUnit{},
		&models.PropertyBlock{},
		&models.Booking{},
		&models.Conversation{}, // create table containing many side first
		&models.Message{},
		&models.Notification{},
	)
}
