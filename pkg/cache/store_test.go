package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanscraper/pkg/config"
	"chanscraper/pkg/logger"
)

func TestInspectJSONLeavesCorruptFileAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	content := `{"b_threads": {"111": ["1"`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	tl := logger.NewTestLogger()
	c, err := Inspect(context.Background(), &config.CacheConfig{Backend: "json", File: path}, "b", tl)
	require.NoError(t, err)

	threads, _ := c.Stats()
	assert.Zero(t, threads)
	assert.NoFileExists(t, path+".corrupt")
	assert.NotEmpty(t, tl.GetMessagesByLevel("WARN"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestInspectJSONReadsCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"b_threads": {"111": ["1", 2]}}`), 0644))

	c, err := Inspect(context.Background(), &config.CacheConfig{File: path}, "b", logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, c.Posts("111"))
}

func TestInspectSQLite(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("missing database is not created", func(t *testing.T) {
		path := filepath.Join(dir, "missing", "cache.db")
		c, err := Inspect(ctx, &config.CacheConfig{Backend: "sqlite", File: path}, "b", logger.NewNopLogger())
		require.NoError(t, err)
		threads, _ := c.Stats()
		assert.Zero(t, threads)
		assert.NoDirExists(t, filepath.Dir(path))
	})

	t.Run("existing database", func(t *testing.T) {
		path := filepath.Join(dir, "cache.db")
		store, err := OpenSQLiteStore(path, "b", logger.NewNopLogger())
		require.NoError(t, err)
		seed := New("b")
		seed.Mark("111", "1")
		require.NoError(t, store.Save(ctx, seed))
		require.NoError(t, store.Close())

		c, err := Inspect(ctx, &config.CacheConfig{Backend: "sqlite", File: path}, "b", logger.NewNopLogger())
		require.NoError(t, err)
		assert.True(t, c.Seen("111", "1"))
	})
}

func TestReadOnlyStoresRefuseSave(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "cache.json"), "b", logger.NewNopLogger())
	store.readOnly = true
	assert.Error(t, store.Save(context.Background(), New("b")))
}
