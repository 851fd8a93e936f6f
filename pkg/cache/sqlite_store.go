package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"chanscraper/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps the cache in a SQLite database. Several boards can share
// one database file.
type SQLiteStore struct {
	db       *sql.DB
	board    string
	readOnly bool
	logger   logger.Logger

	mu sync.Mutex
	// loadFailed is set while the in-memory cache may be missing rows that
	// are still in the database; saves then only add rows.
	loadFailed bool
}

// OpenSQLiteStore opens or creates the database at path
func OpenSQLiteStore(path, board string, log logger.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLiteStore{
		db:     db,
		board:  board,
		logger: log.WithFields(map[string]interface{}{"component": "cache", "backend": "sqlite"}),
	}, nil
}

func (s *SQLiteStore) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// openSQLiteReadOnly opens an existing database for queries only
func openSQLiteReadOnly(path, board string, log logger.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLiteStore{
		db:       db,
		board:    board,
		readOnly: true,
		logger:   log.WithFields(map[string]interface{}{"component": "cache", "backend": "sqlite"}),
	}, nil
}

// Load reads the board's rows. When the rows cannot be read the cache starts
// empty and later saves keep the existing rows instead of replacing them.
func (s *SQLiteStore) Load(ctx context.Context) (*Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.loadFailed = true
		s.logger.WithError(err).Error("Cache database unreadable, starting empty; saves will only add rows")
		return New(s.board), nil
	}
	s.loadFailed = false

	threads, posts := c.Stats()
	s.logger.InfoWithFields("Cache loaded", map[string]interface{}{
		"threads": threads,
		"posts":   posts,
	})
	return c, nil
}

func (s *SQLiteStore) load(ctx context.Context) (*Cache, error) {
	if !s.readOnly {
		if err := s.applySchema(ctx); err != nil {
			return nil, err
		}
	}

	c := New(s.board)

	rows, err := s.db.QueryContext(ctx, `SELECT thread_id FROM threads WHERE board = ?`, s.board)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	for rows.Next() {
		var threadID string
		if err := rows.Scan(&threadID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		c.EnsureThread(threadID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT thread_id, post_id FROM processed_posts WHERE board = ?`, s.board)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var threadID, postID string
		if err := rows.Scan(&threadID, &postID); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		c.Mark(threadID, postID)
	}
	return c, rows.Err()
}

// Save replaces the board's rows in one transaction. After a failed load it
// only adds rows, so rows the in-memory cache never saw are kept.
func (s *SQLiteStore) Save(ctx context.Context, c *Cache) error {
	if s.readOnly {
		return fmt.Errorf("cache database is open read-only")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applySchema(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if !s.loadFailed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM processed_posts WHERE board = ?`, s.board); err != nil {
			return fmt.Errorf("failed to clear posts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE board = ?`, s.board); err != nil {
			return fmt.Errorf("failed to clear threads: %w", err)
		}
	}

	threadStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO threads (board, thread_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare thread insert: %w", err)
	}
	defer threadStmt.Close()

	postStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO processed_posts (board, thread_id, post_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare post insert: %w", err)
	}
	defer postStmt.Close()

	for _, threadID := range c.ThreadIDs() {
		if _, err := threadStmt.ExecContext(ctx, s.board, threadID); err != nil {
			return fmt.Errorf("failed to insert thread %s: %w", threadID, err)
		}
		for _, postID := range c.Posts(threadID) {
			if _, err := postStmt.ExecContext(ctx, s.board, threadID, postID); err != nil {
				return fmt.Errorf("failed to insert post %s/%s: %w", threadID, postID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache: %w", err)
	}

	s.logger.DebugWithFields("Cache saved", map[string]interface{}{"replaced": !s.loadFailed})
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
