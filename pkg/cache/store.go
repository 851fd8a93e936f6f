package cache

import (
	"context"
	"fmt"
	"os"
	"strings"

	"chanscraper/pkg/config"
	"chanscraper/pkg/logger"
)

// NewStore returns the backend selected by the cache configuration
func NewStore(cfg *config.CacheConfig, board string, log logger.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendJSON:
		return NewJSONStore(cfg.File, board, log), nil
	case config.BackendSQLite:
		return OpenSQLiteStore(cfg.File, board, log)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Inspect loads a board's cache without writing anything. A corrupt JSON file
// is not quarantined and a missing database is not created.
func Inspect(ctx context.Context, cfg *config.CacheConfig, board string, log logger.Logger) (*Cache, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendJSON:
		store := NewJSONStore(cfg.File, board, log)
		store.readOnly = true
		return store.Load(ctx)
	case config.BackendSQLite:
		if _, err := os.Stat(cfg.File); os.IsNotExist(err) {
			return New(board), nil
		}
		store, err := openSQLiteReadOnly(cfg.File, board, log)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.Load(ctx)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
