package models

import (
	"log"

	"bitbucket.org/mmdatafocus/marketsync_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Client{},
		&MarketOperation{}, &MarketServiceReport{},
		&MarketSyncRun{}, &MarketSyncError{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
