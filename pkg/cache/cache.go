package cache

import (
	"context"
	"slices"
	"strconv"
	"strings"
)

// Store persists the processed-post cache of one board
type Store interface {
	// Load returns the persisted cache. Missing or unreadable state yields an
	// empty cache; the only error is a cancelled context.
	Load(ctx context.Context) (*Cache, error)
	// Save replaces the persisted state with c, atomically.
	Save(ctx context.Context, c *Cache) error
	Close() error
}

// Cache maps thread ids to the set of post ids already processed. Sets only
// grow. A Cache is not safe for concurrent use; the crawler mutates it from
// a single goroutine.
type Cache struct {
	board   string
	threads map[string]map[string]struct{}
}

// New returns an empty cache for a board
func New(board string) *Cache {
	return &Cache{
		board:   board,
		threads: make(map[string]map[string]struct{}),
	}
}

// Board returns the board the cache belongs to
func (c *Cache) Board() string {
	return c.board
}

// EnsureThread records a thread with no processed posts yet
func (c *Cache) EnsureThread(threadID string) {
	if _, ok := c.threads[threadID]; !ok {
		c.threads[threadID] = make(map[string]struct{})
	}
}

// HasThread reports whether the thread has an entry
func (c *Cache) HasThread(threadID string) bool {
	_, ok := c.threads[threadID]
	return ok
}

// Seen reports whether a post was already processed
func (c *Cache) Seen(threadID, postID string) bool {
	_, ok := c.threads[threadID][postID]
	return ok
}

// Mark records a post as processed
func (c *Cache) Mark(threadID, postID string) {
	c.EnsureThread(threadID)
	c.threads[threadID][postID] = struct{}{}
}

// Posts returns the processed post ids of a thread in ascending numeric order
func (c *Cache) Posts(threadID string) []string {
	set := c.threads[threadID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, compareIDs)
	return ids
}

// ThreadIDs returns every thread with an entry in ascending numeric order
func (c *Cache) ThreadIDs() []string {
	ids := make([]string, 0, len(c.threads))
	for id := range c.threads {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, compareIDs)
	return ids
}

// Stats returns the number of threads and processed posts
func (c *Cache) Stats() (threads, posts int) {
	for _, set := range c.threads {
		posts += len(set)
	}
	return len(c.threads), posts
}

// compareIDs orders numeric ids by value and falls back to string order
func compareIDs(a, b string) int {
	x, errA := strconv.ParseUint(a, 10, 64)
	y, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
