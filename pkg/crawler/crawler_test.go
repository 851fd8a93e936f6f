package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanscraper/internal/downloader"
	"chanscraper/pkg/board"
	"chanscraper/pkg/cache"
	"chanscraper/pkg/errors"
	"chanscraper/pkg/logger"
	"chanscraper/pkg/storage"
)

type fakeBoard struct {
	mu         sync.Mutex
	catalog    []board.Thread
	catalogErr error
	posts      map[string][]board.Post
	threadErr  map[string]error
	onThread   func(threadID string)
}

func (f *fakeBoard) FetchCatalog(ctx context.Context) ([]board.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.catalog, nil
}

func (f *fakeBoard) FetchThread(ctx context.Context, threadID string) ([]board.Post, error) {
	if f.onThread != nil {
		f.onThread(threadID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.threadErr[threadID]; err != nil {
		return nil, err
	}
	return f.posts[threadID], nil
}

type fakeMedia struct {
	calls    int32
	failures map[string]error
}

func (m *fakeMedia) OpenMedia(ctx context.Context, a board.Attachment) (io.ReadCloser, int64, error) {
	atomic.AddInt32(&m.calls, 1)
	if err, ok := m.failures[a.RemoteID]; ok {
		return nil, 0, err
	}
	return io.NopCloser(bytes.NewBufferString("data-" + a.RemoteID)), -1, nil
}

func (m *fakeMedia) Calls() int {
	return int(atomic.LoadInt32(&m.calls))
}

// countingStore counts saves on top of a real store
type countingStore struct {
	cache.Store
	saves int
}

func (s *countingStore) Save(ctx context.Context, c *cache.Cache) error {
	s.saves++
	return s.Store.Save(ctx, c)
}

type harness struct {
	board     *fakeBoard
	media     *fakeMedia
	store     *countingStore
	storage   *storage.Manager
	mediaDir  string
	cacheFile string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	mediaDir := filepath.Join(dir, "downloads")
	manager, err := storage.NewManager(mediaDir, "b")
	require.NoError(t, err)

	cacheFile := filepath.Join(dir, "cache.json")
	return &harness{
		board: &fakeBoard{
			catalog: []board.Thread{{ID: "111", Subject: "Hello"}},
			posts: map[string][]board.Post{
				"111": {
					{ID: "1", Attachment: &board.Attachment{RemoteID: "555", Extension: ".jpg"}},
					{ID: "2"},
				},
			},
			threadErr: map[string]error{},
		},
		media:     &fakeMedia{failures: map[string]error{}},
		store:     &countingStore{Store: cache.NewJSONStore(cacheFile, "b", logger.NewNopLogger())},
		storage:   manager,
		mediaDir:  mediaDir,
		cacheFile: cacheFile,
	}
}

func (h *harness) crawler(opts Options) *Crawler {
	dl := downloader.New(h.media, h.storage, 2, logger.NewNopLogger())
	return New(h.board, h.storage, dl, h.store, opts, logger.NewNopLogger())
}

func (h *harness) cacheDoc(t *testing.T) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(h.cacheFile)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestRunCycleDownloadsAndMarks(t *testing.T) {
	h := newHarness(t)
	c := h.crawler(Options{})

	report, err := c.RunCycle(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.True(t, report.Persisted)
	assert.False(t, report.CatalogEmpty)
	assert.Equal(t, 2, report.NewPosts)
	assert.Equal(t, 1, report.Downloads.Downloaded)

	data, err := os.ReadFile(filepath.Join(h.mediaDir, "b", "111_Hello", "555.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "data-555", string(data))

	want := map[string]interface{}{
		"b_threads": map[string]interface{}{
			"111": []interface{}{"1", "2"},
		},
	}
	if diff := cmp.Diff(want, h.cacheDoc(t)); diff != "" {
		t.Errorf("cache mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCycleKeepsFilesInsideMediaDir(t *testing.T) {
	h := newHarness(t)
	h.board.posts["111"] = []board.Post{
		{ID: "1", Attachment: &board.Attachment{RemoteID: "555", Extension: "/../../../../escaped.txt"}},
		{ID: "2", Attachment: &board.Attachment{RemoteID: "556", Extension: ".png"}},
	}
	c := h.crawler(Options{})

	report, err := c.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Downloads.Downloaded)
	assert.Equal(t, 1, h.media.Calls())
	assert.FileExists(t, filepath.Join(h.mediaDir, "b", "111_Hello", "556.png"))

	root := filepath.Dir(h.mediaDir)
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		assert.NotEqual(t, "escaped.txt", info.Name(), "unexpected file at %s", path)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, c.Cache().Posts("111"))
}

func TestRunCycleIsIdempotent(t *testing.T) {
	h := newHarness(t)
	c := h.crawler(Options{})
	ctx := context.Background()

	_, err := c.RunCycle(ctx)
	require.NoError(t, err)
	second, err := c.RunCycle(ctx)
	require.NoError(t, err)

	assert.Zero(t, second.NewPosts)
	assert.Zero(t, second.Downloads.Downloaded)
	assert.Equal(t, 1, h.media.Calls())
	assert.Equal(t, 2, h.store.saves)
}

func TestRestartWithLostCacheDoesNotRedownload(t *testing.T) {
	h := newHarness(t)
	_, err := h.crawler(Options{}).RunCycle(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(h.cacheFile))

	report, err := h.crawler(Options{}).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.NewPosts)
	assert.Equal(t, 1, report.Downloads.Skipped)
	assert.Zero(t, report.Downloads.Downloaded)
	assert.Equal(t, 1, h.media.Calls())
}

func TestRestartKeepsCache(t *testing.T) {
	h := newHarness(t)
	_, err := h.crawler(Options{}).RunCycle(context.Background())
	require.NoError(t, err)

	h.board.posts["111"] = append(h.board.posts["111"], board.Post{
		ID: "3", Attachment: &board.Attachment{RemoteID: "777", Extension: ".png"},
	})

	restarted := h.crawler(Options{})
	report, err := restarted.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.NewPosts)
	assert.Equal(t, 1, report.Downloads.Downloaded)
	assert.Equal(t, []string{"1", "2", "3"}, restarted.Cache().Posts("111"))
}

func TestFailedThreadKeepsCachedIDs(t *testing.T) {
	h := newHarness(t)
	h.board.catalog = append(h.board.catalog, board.Thread{ID: "222", Subject: ""})
	h.board.posts["222"] = []board.Post{{ID: "10"}}

	c := h.crawler(Options{})
	ctx := context.Background()
	_, err := c.RunCycle(ctx)
	require.NoError(t, err)

	h.board.threadErr["111"] = errors.Transport("http://a/b/thread/111.json", io.ErrUnexpectedEOF)
	h.board.threadErr["222"] = errors.FromStatus(http.StatusNotFound, "http://a/b/thread/222.json")

	report, err := c.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ThreadErrors)
	assert.True(t, report.Persisted)

	assert.Equal(t, []string{"1", "2"}, c.Cache().Posts("111"))
	assert.Equal(t, []string{"10"}, c.Cache().Posts("222"))
	assert.DirExists(t, filepath.Join(h.mediaDir, "b", "222_no_subject"))
}

func TestThreadFetchFailureStillCreatesEntry(t *testing.T) {
	h := newHarness(t)
	h.board.threadErr["111"] = errors.FromStatus(http.StatusInternalServerError, "http://a/b/thread/111.json")

	c := h.crawler(Options{})
	_, err := c.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"b_threads": map[string]interface{}{"111": []interface{}{}},
	}, h.cacheDoc(t))
	assert.DirExists(t, filepath.Join(h.mediaDir, "b", "111_Hello"))
}

func TestEmptyCatalogBacksOffWithoutSaving(t *testing.T) {
	tests := []struct {
		name string
		set  func(f *fakeBoard)
	}{
		{"empty", func(f *fakeBoard) { f.catalog = nil }},
		{"error", func(f *fakeBoard) {
			f.catalogErr = errors.FromStatus(http.StatusServiceUnavailable, "http://a/b/catalog.json")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.set(h.board)

			var delays []time.Duration
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			c := h.crawler(Options{PollInterval: 600 * time.Second, EmptyCatalogBackoff: 300 * time.Second})
			c.SetSleeper(SleeperFunc(func(ctx context.Context, d time.Duration) error {
				delays = append(delays, d)
				if len(delays) == 2 {
					cancel()
					return ctx.Err()
				}
				return nil
			}))

			err := c.Run(ctx)
			assert.ErrorIs(t, err, context.Canceled)
			assert.Equal(t, []time.Duration{300 * time.Second, 300 * time.Second}, delays)
			assert.Zero(t, h.store.saves)
			assert.NoFileExists(t, h.cacheFile)
		})
	}
}

func TestRunUsesPollIntervalAfterNormalCycle(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reports []CycleReport
	c := h.crawler(Options{
		PollInterval:        600 * time.Second,
		EmptyCatalogBackoff: 300 * time.Second,
		OnCycle:             func(r CycleReport) { reports = append(reports, r) },
	})

	var delays []time.Duration
	c.SetSleeper(SleeperFunc(func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		cancel()
		return ctx.Err()
	}))

	assert.ErrorIs(t, c.Run(ctx), context.Canceled)
	assert.Equal(t, []time.Duration{600 * time.Second}, delays)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Persisted)
}

func TestBlockedDownloads(t *testing.T) {
	blocked := errors.FromStatus(http.StatusForbidden, "http://i/b/555.jpg")

	t.Run("marked by default", func(t *testing.T) {
		h := newHarness(t)
		h.media.failures["555"] = blocked
		c := h.crawler(Options{})

		first, err := c.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, first.Downloads.Blocked)
		assert.True(t, c.Cache().Seen("111", "1"))

		delete(h.media.failures, "555")
		_, err = c.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, h.media.Calls())
		assert.NoFileExists(t, filepath.Join(h.mediaDir, "b", "111_Hello", "555.jpg"))
	})

	t.Run("retried when enabled", func(t *testing.T) {
		h := newHarness(t)
		h.media.failures["555"] = blocked
		c := h.crawler(Options{RetryBlocked: true})

		_, err := c.RunCycle(context.Background())
		require.NoError(t, err)
		assert.False(t, c.Cache().Seen("111", "1"))
		assert.True(t, c.Cache().Seen("111", "2"))

		delete(h.media.failures, "555")
		second, err := c.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, second.Downloads.Downloaded)
		assert.True(t, c.Cache().Seen("111", "1"))
		assert.FileExists(t, filepath.Join(h.mediaDir, "b", "111_Hello", "555.jpg"))
	})
}

func TestFailedDownloadIsStillMarked(t *testing.T) {
	h := newHarness(t)
	h.media.failures["555"] = errors.FromStatus(http.StatusBadGateway, "http://i/b/555.jpg")
	c := h.crawler(Options{RetryBlocked: true})

	report, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Downloads.Failed)
	assert.True(t, c.Cache().Seen("111", "1"))
}

func TestCancelledCycleDoesNotPersist(t *testing.T) {
	h := newHarness(t)
	h.board.catalog = append(h.board.catalog, board.Thread{ID: "222", Subject: "second"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.board.onThread = func(threadID string) {
		if threadID == "222" {
			cancel()
		}
	}

	c := h.crawler(Options{})
	_, err := c.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.store.saves)
	assert.NoFileExists(t, h.cacheFile)
}

func TestCacheOnlyGrows(t *testing.T) {
	h := newHarness(t)
	c := h.crawler(Options{})
	ctx := context.Background()

	_, err := c.RunCycle(ctx)
	require.NoError(t, err)
	_, before := c.Cache().Stats()

	// Posts disappearing upstream must not shrink the cache
	h.board.posts["111"] = []board.Post{{ID: "2"}}
	_, err = c.RunCycle(ctx)
	require.NoError(t, err)

	_, after := c.Cache().Stats()
	assert.GreaterOrEqual(t, after, before)
	assert.True(t, c.Cache().Seen("111", "1"))
}

func TestTimerSleeper(t *testing.T) {
	assert.NoError(t, TimerSleeper.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, TimerSleeper.Sleep(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
