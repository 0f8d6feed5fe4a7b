package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikepea/extids/pkg/extids/config"
	"github.com/mikepea/extids/pkg/extids/models"
)

const testCatalog = `
record_types:
  res.partner:
    table: partners
systems:
  - code: discord
    name: Discord
    id_format: '^\d+$'
`

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))
	return &config.Config{
		DBDriver:    "sqlite3",
		DBPath:      filepath.Join(dir, "extids.db"),
		TokenTTL:    time.Hour,
		CatalogFile: path,
		AdminClient: "admin",
		AdminSecret: "admin-secret",
	}
}

func TestNewRegistersCatalogRecordTypes(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Equal(t, []string{"res.partner"}, a.Registry.Types())

	var count int64
	a.DB.Model(&models.ExternalSystem{}).Count(&count)
	assert.Zero(t, count, "systems are written only by ApplyCatalog")
}

func TestApplyCatalog(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	res, err := a.ApplyCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SystemsCreated)

	system, err := a.Systems.ByCode(ctx, "discord", true)
	require.NoError(t, err)
	assert.Equal(t, `^\d+$`, system.IDFormat)
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	require.NoError(t, a.EnsureAdmin(ctx))
	require.NoError(t, a.EnsureAdmin(ctx))

	n, err := a.Clients.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	client, err := a.Clients.Authenticate(ctx, "admin", "admin-secret")
	require.NoError(t, err)
	assert.Equal(t, models.ClientRoleAdmin, client.Role)
}

func TestNewRejectsMissingCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.CatalogFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestRouterHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	r := a.Router()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/systems", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
