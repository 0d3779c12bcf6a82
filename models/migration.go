package models

import (
	"log"

	"github.com/thukatech/restock_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Supplier{}, &Product{},
		&DailyLog{}, &LogHistory{},
		&PurchaseOrder{},
		&BillingEntry{}, &BillingProof{},
		&StorefrontConfig{},
		&User{},
		&SyncOutboxRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
