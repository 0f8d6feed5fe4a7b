package models

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := filepath.Join(t.TempDir(), "models.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	return db
}

func createSystem(t *testing.T, db *gorm.DB, code, name string) ExternalSystem {
	system := ExternalSystem{Code: code, Name: name, Active: true}
	if err := db.Create(&system).Error; err != nil {
		t.Fatalf("Failed to create system: %v", err)
	}
	return system
}

func TestAutoMigrate(t *testing.T) {
	db := setupTestDB(t)

	tables := []string{"external_systems", "external_system_record_types", "external_system_urls", "external_ids", "api_clients"}
	for _, table := range tables {
		if !db.Migrator().HasTable(table) {
			t.Errorf("Expected table %s to exist", table)
		}
	}

	if !db.Migrator().HasIndex(&ExternalID{}, "idx_external_id_record") {
		t.Error("Expected (record_type, record_id) index on external_ids")
	}
}

func TestExternalSystemUniqueness(t *testing.T) {
	db := setupTestDB(t)
	createSystem(t, db, "discord", "Discord")

	if err := db.Create(&ExternalSystem{Code: "discord", Name: "Other"}).Error; err == nil {
		t.Error("Expected error when creating system with duplicate code")
	}
	if err := db.Create(&ExternalSystem{Code: "other", Name: "Discord"}).Error; err == nil {
		t.Error("Expected error when creating system with duplicate name")
	}
}

func TestExternalSystemInactiveOnCreate(t *testing.T) {
	db := setupTestDB(t)

	system := ExternalSystem{Code: "legacy", Name: "Legacy", Active: false}
	if err := db.Create(&system).Error; err != nil {
		t.Fatalf("Failed to create system: %v", err)
	}

	var loaded ExternalSystem
	db.First(&loaded, system.ID)
	if loaded.Active {
		t.Error("Expected explicit Active=false to be stored")
	}
	if loaded.Sequence != DefaultSequence {
		t.Errorf("Expected default sequence %d, got %d", DefaultSequence, loaded.Sequence)
	}
}

func TestExternalIDConstraints(t *testing.T) {
	db := setupTestDB(t)
	discord := createSystem(t, db, "discord", "Discord")
	shopify := createSystem(t, db, "shopify", "Shopify")

	first := ExternalID{RecordType: "res.partner", RecordID: 1, SystemID: discord.ID, Identifier: "111", Active: true}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("Failed to create external id: %v", err)
	}

	// Same record and system
	dup := ExternalID{RecordType: "res.partner", RecordID: 1, SystemID: discord.ID, Identifier: "222", Active: true}
	if err := db.Create(&dup).Error; err == nil {
		t.Error("Expected error for a second identifier on the same record and system")
	}

	// Same identifier within the system
	clash := ExternalID{RecordType: "res.partner", RecordID: 2, SystemID: discord.ID, Identifier: "111", Active: true}
	if err := db.Create(&clash).Error; err == nil {
		t.Error("Expected error for a duplicate identifier within one system")
	}

	// Same record on another system is fine
	other := ExternalID{RecordType: "res.partner", RecordID: 1, SystemID: shopify.ID, Identifier: "111", Active: true}
	if err := db.Create(&other).Error; err != nil {
		t.Errorf("Expected link to a second system to succeed, got %v", err)
	}
}

func TestExternalIDRestrictsSystemDelete(t *testing.T) {
	db := setupTestDB(t)
	discord := createSystem(t, db, "discord", "Discord")

	link := ExternalID{RecordType: "res.partner", RecordID: 1, SystemID: discord.ID, Identifier: "111", Active: true}
	if err := db.Create(&link).Error; err != nil {
		t.Fatalf("Failed to create external id: %v", err)
	}

	if err := db.Delete(&discord).Error; err == nil {
		t.Error("Expected foreign key error when deleting a referenced system")
	}
}

func TestURLTemplateAllTypesDefault(t *testing.T) {
	db := setupTestDB(t)
	shopify := createSystem(t, db, "shopify", "Shopify")

	url := ExternalSystemURL{SystemID: shopify.ID, Code: "store", Name: "Store", Template: "{base}/{id}", Active: true}
	if err := db.Create(&url).Error; err != nil {
		t.Fatalf("Failed to create url template: %v", err)
	}

	dup := ExternalSystemURL{SystemID: shopify.ID, Code: "store", Name: "Store again", Template: "{base}", Active: true}
	if err := db.Create(&dup).Error; err == nil {
		t.Error("Expected error for duplicate all-types template code")
	}

	typed := ExternalSystemURL{SystemID: shopify.ID, Code: "store", RecordType: "product.product", Name: "Product", Template: "{base}/p/{id}", Active: true}
	if err := db.Create(&typed).Error; err != nil {
		t.Errorf("Expected type-specific template to coexist, got %v", err)
	}
}

func TestAPIClientLists(t *testing.T) {
	client := APIClient{RecordTypes: "res.partner, product.product,", CompanyIDs: "1,x, 3"}

	types := client.RecordTypeList()
	if len(types) != 2 || types[0] != "res.partner" || types[1] != "product.product" {
		t.Errorf("Unexpected record types: %v", types)
	}

	ids := client.CompanyIDList()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("Unexpected company ids: %v", ids)
	}
}
