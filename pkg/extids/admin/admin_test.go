package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mikepea/extids/pkg/extids/database"
	"github.com/mikepea/extids/pkg/extids/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Open(database.DriverCGO, filepath.Join(t.TempDir(), "admin.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func seed(t *testing.T, db *gorm.DB) {
	discord := models.ExternalSystem{Code: "discord", Name: "Discord", Sequence: 1, Active: true}
	shopify := models.ExternalSystem{Code: "shopify", Name: "Shopify", Sequence: 2, Active: true}
	legacy := models.ExternalSystem{Code: "legacy", Name: "Legacy", Sequence: 3, Active: false}
	for _, s := range []*models.ExternalSystem{&discord, &shopify, &legacy} {
		if err := db.Create(s).Error; err != nil {
			t.Fatalf("Failed to create system: %v", err)
		}
	}

	now := time.Now()
	ids := []models.ExternalID{
		{RecordType: "res.partner", RecordID: 1, SystemID: discord.ID, Identifier: "1", Active: true, LastSync: &now},
		{RecordType: "res.partner", RecordID: 2, SystemID: discord.ID, Identifier: "2", Active: true},
		{RecordType: "product.product", RecordID: 1, SystemID: shopify.ID, Identifier: "Product/1", Active: true},
	}
	for i := range ids {
		if err := db.Create(&ids[i]).Error; err != nil {
			t.Fatalf("Failed to create external id: %v", err)
		}
	}
	db.Model(&ids[1]).Update("active", false)

	db.Create(&models.ExternalSystemURL{SystemID: shopify.ID, Code: "admin", Name: "Admin", Template: "{base}/admin", Active: true})
	db.Create(&models.APIClient{Name: "root", SecretHash: "x", KeyPrefix: "x", Role: models.ClientRoleAdmin, Active: true})
	db.Create(&models.APIClient{Name: "odoo", SecretHash: "y", KeyPrefix: "y", Role: models.ClientRoleClient, Active: true})
}

func TestCollect(t *testing.T) {
	db := setupTestDB(t)
	seed(t, db)

	stats, err := Collect(context.Background(), db)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.TotalSystems != 3 || stats.ArchivedSystems != 1 {
		t.Errorf("Unexpected system counts: %d total, %d archived", stats.TotalSystems, stats.ArchivedSystems)
	}
	if stats.TotalExternalIDs != 3 || stats.ActiveExternalIDs != 2 || stats.ArchivedExternalIDs != 1 {
		t.Errorf("Unexpected external id counts: %+v", stats)
	}
	if stats.NeverSynced != 2 {
		t.Errorf("Expected 2 never synced, got %d", stats.NeverSynced)
	}
	if stats.TotalTemplates != 1 || stats.TotalClients != 2 || stats.AdminClients != 1 {
		t.Errorf("Unexpected template/client counts: %+v", stats)
	}

	if len(stats.BySystem) != 3 {
		t.Fatalf("Expected 3 systems, got %d", len(stats.BySystem))
	}
	if got := stats.BySystem[0]; got.Code != "discord" || got.Links != 2 || got.Archived != 1 {
		t.Errorf("Unexpected discord counts: %+v", got)
	}
	if got := stats.BySystem[2]; got.Code != "legacy" || got.Links != 0 || got.Archived != 0 {
		t.Errorf("Unexpected legacy counts: %+v", got)
	}

	if len(stats.ByRecordType) != 2 || stats.ByRecordType[1].RecordType != "res.partner" || stats.ByRecordType[1].Links != 2 {
		t.Errorf("Unexpected record type counts: %+v", stats.ByRecordType)
	}
}

func TestGetStatsHandler(t *testing.T) {
	db := setupTestDB(t)
	seed(t, db)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(db).RegisterRoutes(r.Group("/api/admin"))

	req, _ := http.NewRequest("GET", "/api/admin/stats", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var stats StatsResponse
	json.Unmarshal(resp.Body.Bytes(), &stats)
	if stats.TotalExternalIDs != 3 {
		t.Errorf("Expected 3 external ids, got %d", stats.TotalExternalIDs)
	}
}
