package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikepea/extids/pkg/extids/database"
	"github.com/mikepea/extids/pkg/extids/errs"
)

const testCatalog = `
record_types:
  res.partner:
    table: partners
systems:
  - code: discord
    name: Discord
    id_format: '^\d+$'
  - code: shopify
    name: Shopify
    base_url: https://x.com
    urls:
      - code: admin
        template: "{base}/admin/customers/{id}"
`

type env struct {
	db      string
	catalog string
}

func setup(t *testing.T) env {
	dir := t.TempDir()
	e := env{db: filepath.Join(dir, "extids.db"), catalog: filepath.Join(dir, "catalog.yaml")}
	require.NoError(t, os.WriteFile(e.catalog, []byte(testCatalog), 0o600))

	db, err := database.Open(database.DriverCGO, e.db)
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE partners (id INTEGER PRIMARY KEY, name TEXT)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO partners (id, name) VALUES (7, 'Acme'), (8, 'Globex')`).Error)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	return e
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--db", e.db, "--catalog", e.catalog}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestMigrate(t *testing.T) {
	e := setup(t)
	out := e.mustRun(t, "migrate")
	assert.Contains(t, out, e.db)
}

func TestCatalogApplyAndSystems(t *testing.T) {
	e := setup(t)
	e.mustRun(t, "catalog", "apply", e.catalog)

	out := e.mustRun(t, "-o", "json", "catalog", "apply", e.catalog)
	var res map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 0, res["systems_created"])
	assert.Equal(t, 2, res["systems_updated"])

	out = e.mustRun(t, "systems", "list")
	assert.Contains(t, out, "discord")
	assert.Contains(t, out, "shopify")

	e.mustRun(t, "systems", "archive", "shopify")
	out = e.mustRun(t, "systems", "list")
	assert.NotContains(t, out, "shopify")
	out = e.mustRun(t, "systems", "list", "--all")
	assert.Contains(t, out, "shopify")
}

func TestSystemsCreate(t *testing.T) {
	e := setup(t)
	out := e.mustRun(t, "-o", "json", "systems", "create", "Zendesk", "Zendesk",
		"--base-url", "https://z.example.com/", "--applies-to", "res.partner", "--sequence", "3")

	var systems []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &systems))
	require.Len(t, systems, 1)
	assert.Equal(t, "zendesk", systems[0]["code"])
	assert.Equal(t, "https://z.example.com", systems[0]["base_url"])
	assert.Equal(t, float64(3), systems[0]["sequence"])
	assert.Equal(t, float64(0), systems[0]["external_id_count"])

	_, err := e.run(t, "systems", "create", "zendesk", "Other")
	var uniq *errs.UniquenessError
	assert.True(t, errors.As(err, &uniq), "got %v", err)
}

func TestIDsLifecycle(t *testing.T) {
	e := setup(t)
	e.mustRun(t, "catalog", "apply", e.catalog)

	out := e.mustRun(t, "ids", "link", "res.partner", "7", "discord", " 42 ")
	assert.Contains(t, out, "Discord: 42 (Acme)")

	assert.Equal(t, "42\n", e.mustRun(t, "ids", "get", "res.partner", "7", "discord"))

	out = e.mustRun(t, "-o", "json", "systems", "list")
	var listed []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	for _, sys := range listed {
		if sys["code"] == "discord" {
			assert.Equal(t, float64(1), sys["external_id_count"])
		}
	}

	out = e.mustRun(t, "-o", "json", "ids", "resolve", "discord", "42")
	assert.Contains(t, out, `"display_name": "Acme"`)

	out = e.mustRun(t, "ids", "search", "disc:4")
	assert.Contains(t, out, "Discord: 42 (Acme)")

	_, err := e.run(t, "ids", "link", "res.partner", "8", "discord", "abc")
	var format *errs.FormatError
	assert.True(t, errors.As(err, &format), "got %v", err)

	_, err = e.run(t, "ids", "link", "res.partner", "8", "discord", "42")
	var uniq *errs.UniquenessError
	assert.True(t, errors.As(err, &uniq), "got %v", err)

	out = e.mustRun(t, "-o", "json", "ids", "list", "--type", "res.partner")
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	id := fmt.Sprint(int(rows[0]["id"].(float64)))

	_, err = e.run(t, "ids", "delete", id)
	var retention *errs.RetentionError
	assert.True(t, errors.As(err, &retention), "got %v", err)

	e.mustRun(t, "ids", "sync", id)
	e.mustRun(t, "ids", "archive", id)
	e.mustRun(t, "ids", "delete", id)

	_, err = e.run(t, "ids", "get", "res.partner", "7", "discord")
	assert.Equal(t, exitNotFound, exitCode(err))
}

func TestURLs(t *testing.T) {
	e := setup(t)
	e.mustRun(t, "catalog", "apply", e.catalog)
	e.mustRun(t, "ids", "link", "res.partner", "7", "shopify", "gid://shopify/Customer/456")

	assert.Equal(t, "https://x.com/admin/customers/456\n",
		e.mustRun(t, "ids", "url", "res.partner", "7", "shopify", "--kind", "admin"))

	_, err := e.run(t, "ids", "url", "res.partner", "7", "shopify")
	assert.Equal(t, exitNotFound, exitCode(err), "no store template")

	e.mustRun(t, "urls", "set", "shopify", "store", "{base}/c/{id}")
	assert.Equal(t, "https://x.com/c/456\n", e.mustRun(t, "ids", "url", "res.partner", "7", "shopify"))

	_, err = e.run(t, "urls", "set", "shopify", "bad", "{foo}")
	var tmpl *errs.TemplateError
	require.True(t, errors.As(err, &tmpl), "got %v", err)
	assert.Equal(t, "foo", tmpl.Token)

	out := e.mustRun(t, "urls", "list", "shopify")
	assert.Contains(t, out, "{base}/c/{id}")
}

func TestClients(t *testing.T) {
	e := setup(t)
	out := e.mustRun(t, "-o", "json", "clients", "create", "shop-sync", "--record-types", "res.partner", "--company-ids", "1,2")

	var created map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "client", created["role"])
	assert.NotEmpty(t, created["secret"])

	out = e.mustRun(t, "clients", "list")
	assert.Contains(t, out, "shop-sync")
	assert.Contains(t, out, "1,2")
}

func TestBadOutputFormat(t *testing.T) {
	e := setup(t)
	_, err := e.run(t, "-o", "xml", "migrate")
	assert.Error(t, err)
	assert.Equal(t, exitError, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitSuccess, exitCode(nil))
	assert.Equal(t, exitNotFound, exitCode(&errs.UnknownSystemError{Code: "x"}))
	assert.Equal(t, exitError, exitCode(errors.New("boom")))
}
