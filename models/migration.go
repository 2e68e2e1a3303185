package models

import (
	"log"

	"bitbucket.org/mmdatafocus/finsync_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	if err := AutoMigrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

// AutoMigrate runs the schema migration against the given handle. Tests call
// this directly with their own database.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Connection{},
		&Invoice{}, &Customer{}, &Account{}, &Payment{}, &Expense{},
		&SyncErrorLog{},
	)
}
