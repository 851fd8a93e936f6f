package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanscraper/pkg/logger"
)

func readJSON(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestJSONStoreMissingFile(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "cache.json"), "b", logger.NewNopLogger())

	c, err := store.Load(context.Background())
	require.NoError(t, err)
	threads, posts := c.Stats()
	assert.Zero(t, threads)
	assert.Zero(t, posts)
}

func TestJSONStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := NewJSONStore(path, "b", logger.NewNopLogger())
	ctx := context.Background()

	c := New("b")
	c.Mark("111", "2")
	c.Mark("111", "1")
	c.EnsureThread("222")
	require.NoError(t, store.Save(ctx, c))

	want := map[string]interface{}{
		"b_threads": map[string]interface{}{
			"111": []interface{}{"1", "2"},
			"222": []interface{}{},
		},
	}
	assert.Equal(t, want, readJSON(t, path))
	assert.NoFileExists(t, path+".tmp")

	loaded, err := NewJSONStore(path, "b", logger.NewNopLogger()).Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.Seen("111", "1"))
	assert.True(t, loaded.Seen("111", "2"))
	assert.True(t, loaded.HasThread("222"))
}

func TestJSONStorePreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"threads": {},
		"g_threads": {"9": ["10"]},
		"b_threads": {"111": ["1", 2]}
	}`), 0644))

	store := NewJSONStore(path, "b", logger.NewNopLogger())
	ctx := context.Background()

	c, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, c.Seen("111", "1"))
	assert.True(t, c.Seen("111", "2"), "numeric post ids are accepted")

	c.Mark("111", "3")
	require.NoError(t, store.Save(ctx, c))

	doc := readJSON(t, path)
	assert.Equal(t, map[string]interface{}{}, doc["threads"])
	assert.Equal(t, map[string]interface{}{"9": []interface{}{"10"}}, doc["g_threads"])
	assert.Equal(t, map[string]interface{}{"111": []interface{}{"1", "2", "3"}}, doc["b_threads"])
}

func TestJSONStoreCorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", `{"b_threads": {"111": ["1"`},
		{"not an object", `[1, 2, 3]`},
		{"wrong board shape", `{"b_threads": ["1", "2"]}`},
		{"null", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			tl := logger.NewTestLogger()
			store := NewJSONStore(path, "b", tl)

			c, err := store.Load(context.Background())
			require.NoError(t, err)
			threads, _ := c.Stats()
			assert.Zero(t, threads)

			quarantined, err := os.ReadFile(path + ".corrupt")
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(quarantined))
			assert.NotEmpty(t, tl.GetMessagesByLevel("WARN"))

			c.Mark("1", "1")
			require.NoError(t, store.Save(context.Background(), c))
			assert.Equal(t, map[string]interface{}{
				"b_threads": map[string]interface{}{"1": []interface{}{"1"}},
			}, readJSON(t, path))
		})
	}
}

func TestJSONStoreCancelledContext(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "cache.json"), "b", logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Save(ctx, New("b")), context.Canceled)
}
