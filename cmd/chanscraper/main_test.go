package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chanscraper.yaml")
	t.Setenv("CHANSCRAPER_MEDIA_DIR", filepath.Join(dir, "media"))

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file created")
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", "--config", path)
	assert.Error(t, err, "init must not overwrite an existing file")

	out, err = execute(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.DirExists(t, filepath.Join(dir, "media", "b"))
}

func TestWatchOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/g/catalog.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"page": 1, "threads": [{"no": 42, "sub": "Desk &amp; setup"}]}]`))
	})
	mux.HandleFunc("/g/thread/42.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"posts": [{"no": 42, "tim": 1000, "ext": ".png"}, {"no": 43}]}`))
	})
	mux.HandleFunc("/img/g/1000.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	t.Setenv("CHANSCRAPER_REQUESTS_PER_SECOND", "0")
	t.Setenv("CHANSCRAPER_LOG_LEVEL", "error")

	// Flags persist between Execute calls, so always pass an existing file
	configPath := filepath.Join(dir, "chanscraper.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("board:\n  name: g\n"), 0644))

	_, err := execute(t, "watch", "--once", "--quiet",
		"--config", configPath,
		"--board", "g",
		"--base-url", server.URL,
		"--image-host", server.URL+"/img",
		"--media-dir", filepath.Join(dir, "media"),
		"--cache-file", cachePath,
	)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "media", "g", "42_Desk & setup", "1000.png"))

	data, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	var doc map[string]map[string][]string
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []string{"42", "43"}, doc["g_threads"]["42"])
}
