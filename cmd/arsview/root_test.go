package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeARS serves one query with one agent that finishes on the second poll
func fakeARS(t *testing.T) *httptest.Server {
	t.Helper()
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/submit", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"pk": "pk-1", "status": "Running"})
	})
	mux.HandleFunc("GET /api/messages/pk-1", func(w http.ResponseWriter, r *http.Request) {
		status := "Running"
		if polls.Add(1) > 1 {
			status = "Done"
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": "pk-1",
			"status":  status,
			"children": []map[string]any{
				{"message": "m1", "status": status, "actor": map[string]string{"agent": "ara-arax"}},
			},
		})
	})
	mux.HandleFunc("GET /api/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": "m1",
			"status":  "Done",
			"agent":   "ara-arax",
			"results": []map[string]any{
				{"id": "CHEBI:45783", "name": "Imatinib", "category": "ChemicalEntity", "score": 0.9},
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ARSVIEW_SERVER_URL", "")
	t.Setenv("ARSVIEW_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("ARSVIEW_LOGGING_FILE", filepath.Join(dir, "arsview.log"))
	t.Setenv("ARSVIEW_POLLING_INTERVAL", "5ms")
	t.Setenv("ARSVIEW_UI_PULSE_PERIOD", "1h")
	return filepath.Join(dir, "config.yaml")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	cmd := newRootCmd(a, "test")

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	a.close()
	return out.String(), err
}

func TestRootCmd_QueryThenRecent(t *testing.T) {
	configFile := testEnv(t)
	srv := fakeARS(t)

	out, err := execute(t, "--config", configFile, "--server", srv.URL, "--plain", "query", "what", "treats", "CML")
	require.NoError(t, err)
	assert.Contains(t, out, "query pk-1: what treats CML")
	assert.Contains(t, out, "[100%] complete")
	assert.Contains(t, out, "Imatinib")

	out, err = execute(t, "--config", configFile, "--server", srv.URL, "recent")
	require.NoError(t, err)
	assert.Contains(t, out, "pk-1")
	assert.Contains(t, out, "what treats CML")
	assert.Contains(t, out, "success")
}

func TestRootCmd_OpenUsesCache(t *testing.T) {
	configFile := testEnv(t)
	srv := fakeARS(t)

	_, err := execute(t, "--config", configFile, "--server", srv.URL, "--plain", "query", "what treats CML")
	require.NoError(t, err)

	out, err := execute(t, "--config", configFile, "--server", srv.URL, "--plain", "open", "pk-1")
	require.NoError(t, err)
	assert.Contains(t, out, "query pk-1: what treats CML")
	assert.Contains(t, out, "Imatinib")
}

func TestRootCmd_CacheClear(t *testing.T) {
	configFile := testEnv(t)
	srv := fakeARS(t)

	_, err := execute(t, "--config", configFile, "--server", srv.URL, "--plain", "query", "what treats CML")
	require.NoError(t, err)

	out, err := execute(t, "--config", configFile, "--server", srv.URL, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "cache cleared")

	out, err = execute(t, "--config", configFile, "--server", srv.URL, "recent")
	require.NoError(t, err)
	assert.Contains(t, out, "no queries yet")
}

func TestRootCmd_NotConfigured(t *testing.T) {
	configFile := testEnv(t)

	_, err := execute(t, "--config", configFile, "recent")
	assert.ErrorIs(t, err, errNotConfigured)
}

func TestRootCmd_QueryRequiresText(t *testing.T) {
	configFile := testEnv(t)

	_, err := execute(t, "--config", configFile, "--server", "http://127.0.0.1:1", "query")
	assert.Error(t, err)
}

func TestRootCmd_LinkPrint(t *testing.T) {
	configFile := testEnv(t)
	t.Setenv("ARSVIEW_BROWSER_LINK_TEMPLATE", "https://example.org/resolve/{id}")

	out, err := execute(t, "--config", configFile, "link", "--print", "CHEBI:45783")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/resolve/CHEBI:45783\n", out)

	_, err = execute(t, "--config", configFile, "link", "--print", " ")
	assert.Error(t, err)
}

func TestRootCmd_Version(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "arsview test\n", out)
}
