package models

import (
	"log"

	"github.com/cascadebuilt/sitebooks_backend/config"
)

// MigrateTable auto-migrates every model. Call from main() after the DB is up.
func MigrateTable() {
	db := config.GetDB()
	if db == nil {
		log.Println("migration skipped: db not initialized")
		return
	}

	err := db.AutoMigrate(
		&User{},
		&ClientMapping{},
		&Project{},
		&Invoice{},
		&Bill{},
		&SyncConflict{},
		&SyncRun{},
		&IntegrationCredential{},
		&ProjectAttachment{},
	)
	if err != nil {
		log.Printf("auto migration failed: %v", err)
	}
}
