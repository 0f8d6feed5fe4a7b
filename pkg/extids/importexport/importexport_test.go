package importexport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/extids/pkg/extids/database"
	"github.com/mikepea/extids/pkg/extids/externalids"
	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/policy"
	"github.com/mikepea/extids/pkg/extids/records"
	"github.com/mikepea/extids/pkg/extids/systems"
)

func setupService(t *testing.T) (*Service, context.Context) {
	db, err := database.Open(database.DriverCGO, filepath.Join(t.TempDir(), "io.db"))
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)

	reg := records.NewRegistry()
	reg.Register("res.partner", records.NewMemorySource(records.Record{ID: 1, DisplayName: "Acme"}, records.Record{ID: 2, DisplayName: "Globex"}))
	sys := systems.NewService(db, nil, nil)
	ctx := policy.WithScope(context.Background(), policy.All)
	if _, err := sys.Create(ctx, systems.Input{Code: "discord", Name: "Discord", IDFormat: `^\d+$`}); err != nil {
		t.Fatalf("Failed to create system: %v", err)
	}
	return NewService(externalids.NewService(db, sys, reg, nil), nil), ctx
}

func setupTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(policy.WithScope(c.Request.Context(), policy.All))
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(r.Group("/api"))
	return r
}

func boolPtr(v bool) *bool { return &v }

func TestImport(t *testing.T) {
	svc, ctx := setupService(t)

	result := svc.Import(ctx, []Entry{
		{RecordType: "res.partner", RecordID: 1, System: "discord", Identifier: "111"},
		{RecordType: "res.partner", RecordID: 2, System: "discord", Identifier: "222", Active: boolPtr(false)},
		{RecordType: "res.partner", RecordID: 2, System: "nosuch", Identifier: "1"},
		{RecordType: "res.partner", RecordID: 3, System: "discord", Identifier: "abc"},
	})
	if result.Imported != 2 {
		t.Errorf("Expected 2 imported, got %d", result.Imported)
	}
	if result.Skipped != 2 || len(result.Errors) != 2 {
		t.Errorf("Expected 2 skipped with errors, got %d / %v", result.Skipped, result.Errors)
	}
	if !strings.Contains(result.Errors[0], "nosuch") {
		t.Errorf("Expected error to name the system, got %s", result.Errors[0])
	}

	entries, err := svc.Export(ctx, externalids.Filter{})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if *entries[1].Active {
		t.Error("Expected the second entry to be archived")
	}
}

func TestImportIsIdempotent(t *testing.T) {
	svc, ctx := setupService(t)
	entries := []Entry{{RecordType: "res.partner", RecordID: 1, System: "discord", Identifier: "111"}}

	if result := svc.Import(ctx, entries); result.Imported != 1 {
		t.Fatalf("Expected 1 imported, got %+v", result)
	}
	result := svc.Import(ctx, entries)
	if result.Imported != 0 || result.Skipped != 1 || len(result.Errors) != 0 {
		t.Errorf("Expected the repeat to be skipped, got %+v", result)
	}

	entries[0].Identifier = "112"
	if result := svc.Import(ctx, entries); result.Imported != 1 {
		t.Errorf("Expected a changed identifier to be imported, got %+v", result)
	}
	exported, _ := svc.Export(ctx, externalids.Filter{})
	if len(exported) != 1 || exported[0].Identifier != "112" {
		t.Errorf("Expected the link to be updated in place, got %+v", exported)
	}
}

func TestImportKeepsLastSyncAndArchivedState(t *testing.T) {
	svc, ctx := setupService(t)
	synced := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{{RecordType: "res.partner", RecordID: 1, System: "discord", Identifier: "111", Active: boolPtr(false), LastSync: &synced}}

	if result := svc.Import(ctx, entries); result.Imported != 1 || len(result.Errors) != 0 {
		t.Fatalf("Expected 1 imported, got %+v", result)
	}
	exported, err := svc.Export(ctx, externalids.Filter{})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(exported) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(exported))
	}
	if *exported[0].Active {
		t.Error("Expected the link to be stored archived")
	}
	if exported[0].LastSync == nil || !exported[0].LastSync.Equal(synced) {
		t.Errorf("Expected last_sync %v, got %v", synced, exported[0].LastSync)
	}

	if result := svc.Import(ctx, exported); result.Skipped != 1 || result.Imported != 0 {
		t.Errorf("Expected the exported entry to round-trip as skipped, got %+v", result)
	}

	later := synced.Add(time.Hour)
	exported[0].LastSync = &later
	if result := svc.Import(ctx, exported); result.Imported != 1 {
		t.Errorf("Expected a newer last_sync to be imported, got %+v", result)
	}
}

func TestImportExportHandlers(t *testing.T) {
	svc, _ := setupService(t)
	router := setupTestRouter(svc)

	body, _ := json.Marshal(ImportRequest{ExternalIDs: []Entry{{RecordType: "res.partner", RecordID: 1, System: "discord", Identifier: "111"}}})
	req, _ := http.NewRequest("POST", "/api/import", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var result ImportResult
	json.Unmarshal(resp.Body.Bytes(), &result)
	if result.Imported != 1 {
		t.Errorf("Expected 1 imported, got %d", result.Imported)
	}

	req, _ = http.NewRequest("GET", "/api/export?record_type=res.partner", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var exported ExportResponse
	json.Unmarshal(resp.Body.Bytes(), &exported)
	if len(exported.ExternalIDs) != 1 || exported.ExternalIDs[0].System != "discord" {
		t.Errorf("Unexpected export: %+v", exported)
	}

	req, _ = http.NewRequest("GET", "/api/export?system_id=abc", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad system id, got %d", resp.Code)
	}
}
