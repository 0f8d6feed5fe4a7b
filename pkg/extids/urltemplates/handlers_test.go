package urltemplates

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)

	api := r.Group("/api")
	handler.RegisterRoutes(api)
	handler.RegisterAdminRoutes(api)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestUpsertHandler(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	system := createTestSystem(t, db, "shopify")
	path := "/api/systems/" + itoa(system.ID) + "/urls"

	resp := doJSON(router, "POST", path, UpsertRequest{Code: "store", Template: "{base}/products/{id}"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created URLResponse
	json.Unmarshal(resp.Body.Bytes(), &created)
	if created.Code != "store" {
		t.Errorf("Expected code 'store', got %s", created.Code)
	}

	resp = doJSON(router, "POST", path, UpsertRequest{Code: "store", Template: "{base}/p/{id}"})
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200 on replace, got %d", resp.Code)
	}

	resp = doJSON(router, "GET", path, nil)
	var list []URLResponse
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 1 || list[0].Template != "{base}/p/{id}" {
		t.Errorf("Expected one replaced template, got %+v", list)
	}
}

func TestUpsertHandlerUnknownToken(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	system := createTestSystem(t, db, "shopify")

	resp := doJSON(router, "POST", "/api/systems/"+itoa(system.ID)+"/urls", UpsertRequest{Code: "store", Template: "{base}/{foo}"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "foo") {
		t.Errorf("Expected error to name the token, got %s", resp.Body.String())
	}
}

func TestValidateHandler(t *testing.T) {
	router := setupTestRouter(setupTestDB(t))

	resp := doJSON(router, "POST", "/api/urls/validate", ValidateRequest{Template: "{base}/admin/products/{id}"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "https://example.com/admin/products/123") {
		t.Errorf("Expected preview in response, got %s", resp.Body.String())
	}

	resp = doJSON(router, "POST", "/api/urls/validate", ValidateRequest{Template: "{bad"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestRenameAndDeleteHandlers(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	system := createTestSystem(t, db, "shopify")

	resp := doJSON(router, "POST", "/api/systems/"+itoa(system.ID)+"/urls", UpsertRequest{Code: "store", Template: "{base}"})
	var created URLResponse
	json.Unmarshal(resp.Body.Bytes(), &created)

	resp = doJSON(router, "POST", "/api/urls/"+itoa(created.ID)+"/rename", RenameRequest{Code: "Front Store"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var renamed URLResponse
	json.Unmarshal(resp.Body.Bytes(), &renamed)
	if renamed.Code != "front_store" {
		t.Errorf("Expected code 'front_store', got %s", renamed.Code)
	}

	resp = doJSON(router, "DELETE", "/api/urls/"+itoa(created.ID), nil)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}
	resp = doJSON(router, "DELETE", "/api/urls/"+itoa(created.ID), nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
