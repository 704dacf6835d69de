// Package app_test contains tests for the app package.
package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/vacation-rental-crawler/internal/api"
	"github.com/JakeFAU/vacation-rental-crawler/internal/app"
	"github.com/JakeFAU/vacation-rental-crawler/internal/config"
	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler/crawlertest"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/vacation-rentals":
			fmt.Fprint(w, crawlertest.SearchPage(1, "/123456"))
		case "/123456":
			fmt.Fprint(w, crawlertest.DetailPage("spu-123456"))
		case "/ajax/review/unit/spu-123456/getAllReviews":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, crawlertest.ReviewJSON(2, 2))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func loadConfig(t *testing.T, body string) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestBuildAndRunCrawlsConfiguredRegions(t *testing.T) {
	site := newSite(t)
	dir := t.TempDir()
	cfg := loadConfig(t, fmt.Sprintf(`
site:
  base_url: %q
regions:
  - name: Kingston
    subdivision: NY
retry:
  max_attempts: 2
  initial_delay_ms: 1
readiness:
  max_attempts: 2
  delay_ms: 1
checkpoint:
  path: %q
output:
  csv:
    listing_path: %q
    review_path: %q
  blob:
    backend: local
    base_dir: %q
`, site.URL,
		filepath.Join(dir, "last_info.yaml"),
		filepath.Join(dir, "listing.csv"),
		filepath.Join(dir, "review.csv"),
		filepath.Join(dir, "blobs"),
	))

	a, err := app.Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotEmpty(t, a.RunID())

	require.NoError(t, a.Run(context.Background()))

	checkpointYAML, err := os.ReadFile(filepath.Join(dir, "last_info.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(checkpointYAML), "last_region_index: 1")
	assert.FileExists(t, filepath.Join(dir, "listing.csv"))
	assert.FileExists(t, filepath.Join(dir, "review.csv"))
	assert.FileExists(t, filepath.Join(dir, "blobs", "listings", "kingston-ny", "123456.json"))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/checkpoint", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body api.CheckpointResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Done)
	assert.Equal(t, a.RunID(), body.RunID)
}

func TestRunResumesFromPersistedCheckpoint(t *testing.T) {
	site := newSite(t)
	dir := t.TempDir()
	cpPath := filepath.Join(dir, "last_info.yaml")
	require.NoError(t, os.WriteFile(cpPath, []byte("info:\n  last_region_index: 1\n  last_listing_index: 0\n"), 0o600))
	cfg := loadConfig(t, fmt.Sprintf(`
site:
  base_url: %q
regions:
  - name: Kingston
    subdivision: NY
checkpoint:
  path: %q
output:
  csv:
    enabled: false
`, site.URL, cpPath))

	a, err := app.Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))
	assert.NoFileExists(t, filepath.Join(dir, "listing.csv"))
}

func TestBuildFailsOnBadDSN(t *testing.T) {
	cfg := loadConfig(t, `
checkpoint:
  backend: postgres
db:
  dsn: "postgres://bad host:5432/db?sslmode=nope"
`)
	_, err := app.Build(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}
