package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"chanscraper/pkg/logger"
)

// JSONStore keeps the cache in a single JSON document:
//
//	{"<board>_threads": {"<thread_id>": ["<post_id>", ...]}}
//
// Top-level keys belonging to other boards are kept as loaded and written
// back unchanged.
type JSONStore struct {
	path     string
	board    string
	readOnly bool
	logger   logger.Logger

	mu    sync.Mutex
	other map[string]json.RawMessage
}

// NewJSONStore creates a JSON-backed store for one board
func NewJSONStore(path, board string, log logger.Logger) *JSONStore {
	if log == nil {
		log = logger.GetLogger()
	}
	return &JSONStore{
		path:   path,
		board:  board,
		logger: log.WithFields(map[string]interface{}{"component": "cache", "backend": "json"}),
		other:  make(map[string]json.RawMessage),
	}
}

// BoardKey returns the top-level key holding a board's threads
func BoardKey(board string) string {
	return board + "_threads"
}

// postID accepts both "123" and 123 on load
type postID string

func (p *postID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = postID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("post id %s is not an integer", n)
	}
	*p = postID(n.String())
	return nil
}

// Load reads the cache file
func (s *JSONStore) Load(ctx context.Context) (*Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.other = make(map[string]json.RawMessage)
	c := New(s.board)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.InfoWithFields("No cache file, starting empty", map[string]interface{}{"path": s.path})
			return c, nil
		}
		s.logger.WithError(err).WarnWithFields("Cache file unreadable, starting empty", map[string]interface{}{"path": s.path})
		return c, nil
	}

	var doc map[string]json.RawMessage
	var threads map[string][]postID
	err = json.Unmarshal(data, &doc)
	if err == nil && doc == nil {
		err = fmt.Errorf("top-level value is not an object")
	}
	if err == nil {
		if raw, ok := doc[BoardKey(s.board)]; ok {
			err = json.Unmarshal(raw, &threads)
		}
	}
	if err != nil {
		if s.readOnly {
			s.logger.WithError(err).WarnWithFields("Cache file is corrupt", map[string]interface{}{"path": s.path})
			return c, nil
		}
		s.quarantine(data, err)
		return c, nil
	}

	for key, raw := range doc {
		if key != BoardKey(s.board) {
			s.other[key] = raw
		}
	}
	for threadID, posts := range threads {
		c.EnsureThread(threadID)
		for _, p := range posts {
			c.Mark(threadID, string(p))
		}
	}

	nThreads, nPosts := c.Stats()
	s.logger.InfoWithFields("Cache loaded", map[string]interface{}{
		"path":    s.path,
		"threads": nThreads,
		"posts":   nPosts,
	})
	return c, nil
}

// quarantine keeps a copy of a corrupt cache file next to it
func (s *JSONStore) quarantine(data []byte, cause error) {
	corruptPath := s.path + ".corrupt"
	fields := map[string]interface{}{
		"path":       s.path,
		"quarantine": corruptPath,
	}
	if err := os.WriteFile(corruptPath, data, 0644); err != nil {
		s.logger.WithError(err).ErrorWithFields("Failed to copy corrupt cache file", fields)
	}
	s.logger.WithError(cause).WarnWithFields("Cache file is corrupt, starting empty", fields)
}

// Save writes the whole document atomically
func (s *JSONStore) Save(ctx context.Context, c *Cache) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.readOnly {
		return fmt.Errorf("cache file %s is open read-only", s.path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	threads := make(map[string][]string, len(c.threads))
	for _, threadID := range c.ThreadIDs() {
		threads[threadID] = c.Posts(threadID)
	}

	doc := make(map[string]interface{}, len(s.other)+1)
	for key, raw := range s.other {
		doc[key] = raw
	}
	doc[BoardKey(s.board)] = threads

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	if err := writeFileAtomic(s.path, buf.Bytes()); err != nil {
		return err
	}

	s.logger.DebugWithFields("Cache saved", map[string]interface{}{
		"path":    s.path,
		"threads": len(threads),
	})
	return nil
}

// Close is a no-op for the JSON backend
func (s *JSONStore) Close() error {
	return nil
}

// writeFileAtomic writes data to a temporary file, syncs it and renames it
// over path
func writeFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	// Ensure data is written to disk
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync cache file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close cache file: %w", err)
	}

	// Atomically replace the old cache file
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}
