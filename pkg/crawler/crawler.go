package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chanscraper/internal/downloader"
	"chanscraper/pkg/board"
	"chanscraper/pkg/cache"
	"chanscraper/pkg/errors"
	"chanscraper/pkg/logger"
)

// Options controls loop timing and the marking policy
type Options struct {
	PollInterval        time.Duration
	EmptyCatalogBackoff time.Duration
	// RetryBlocked leaves posts whose download was blocked unmarked, so the
	// next cycle tries them again.
	RetryBlocked bool
	// OnCycle, if set, receives every finished cycle report
	OnCycle func(CycleReport)
}

// ThreadReport describes one processed thread
type ThreadReport struct {
	ThreadID  string
	Subject   string
	Posts     int
	NewPosts  int
	Downloads downloader.Summary
	Error     error
}

// CycleReport summarizes one poll cycle
type CycleReport struct {
	ID           string
	Started      time.Time
	Duration     time.Duration
	CatalogEmpty bool
	Threads      []ThreadReport
	Downloads    downloader.Summary
	NewPosts     int
	ThreadErrors int
	Persisted    bool
}

// Crawler polls one board and downloads new attachments
type Crawler struct {
	client     BoardClient
	layout     Layout
	downloader Fetcher
	store      cache.Store
	sleeper    Sleeper
	opts       Options
	logger     logger.Logger

	cache *cache.Cache
	newID func() string
}

// New creates a crawler. The cache is loaded lazily by the first cycle.
func New(client BoardClient, layout Layout, dl Fetcher, store cache.Store, opts Options, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Crawler{
		client:     client,
		layout:     layout,
		downloader: dl,
		store:      store,
		sleeper:    TimerSleeper,
		opts:       opts,
		logger:     log.WithField("component", "crawler"),
		newID:      uuid.NewString,
	}
}

// SetSleeper replaces the timer used between cycles
func (c *Crawler) SetSleeper(s Sleeper) {
	c.sleeper = s
}

// Cache returns the in-memory cache, or nil before the first load
func (c *Crawler) Cache() *cache.Cache {
	return c.cache
}

// Load reads the persisted cache. It is a no-op once the cache is loaded.
func (c *Crawler) Load(ctx context.Context) error {
	if c.cache != nil {
		return nil
	}
	loaded, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cache: %w", err)
	}
	c.cache = loaded
	return nil
}

// Run loads the cache and polls until ctx is cancelled. It always returns
// the context error; failures inside a cycle are logged and retried on the
// next one.
func (c *Crawler) Run(ctx context.Context) error {
	logger.LogComponentStart(c.logger, "poll_loop", map[string]interface{}{
		"poll_interval":         c.opts.PollInterval,
		"empty_catalog_backoff": c.opts.EmptyCatalogBackoff,
		"retry_blocked":         c.opts.RetryBlocked,
	})

	if err := c.Load(ctx); err != nil {
		return err
	}

	for {
		report, err := c.RunCycle(ctx)
		if ctx.Err() != nil {
			logger.LogComponentStop(c.logger, "poll_loop", "cancelled")
			return ctx.Err()
		}
		if err != nil {
			c.logger.WithError(err).WithField("cycle", report.ID).Error("Cycle failed")
		}

		delay := c.opts.PollInterval
		if report.CatalogEmpty {
			delay = c.opts.EmptyCatalogBackoff
		}
		c.logger.InfoWithFields("Waiting for next cycle", map[string]interface{}{
			"delay": delay,
		})

		if err := c.sleeper.Sleep(ctx, delay); err != nil {
			logger.LogComponentStop(c.logger, "poll_loop", "cancelled")
			return err
		}
	}
}

// RunCycle performs one cycle: catalog, every thread in catalog order, then
// a single cache save.
//
// The cache is flushed exactly once, after every catalog thread has been
// processed. An empty or failed catalog skips both processing and the save.
// A cycle interrupted by cancellation returns the context error without
// saving, so at most one cycle of markings is lost; files already on disk
// are then skipped by the existence check.
func (c *Crawler) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{ID: c.newID(), Started: time.Now()}
	log := c.logger.WithField("cycle", report.ID)

	if err := c.Load(ctx); err != nil {
		return report, err
	}

	log.Info("Fetching catalog")
	threads, err := c.client.FetchCatalog(ctx)
	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	if err != nil {
		log.WithError(err).WithField("error_type", string(errors.TypeOf(err))).Warn("Catalog unavailable, backing off")
	}
	if len(threads) == 0 {
		if err == nil {
			log.Warn("Catalog returned no threads, backing off")
		}
		report.CatalogEmpty = true
		report.Duration = time.Since(report.Started)
		c.finish(log, report)
		return report, nil
	}

	for _, thread := range threads {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		tr := c.processThread(ctx, log, thread)
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		report.Threads = append(report.Threads, tr)
		report.NewPosts += tr.NewPosts
		report.Downloads.Downloaded += tr.Downloads.Downloaded
		report.Downloads.Skipped += tr.Downloads.Skipped
		report.Downloads.Blocked += tr.Downloads.Blocked
		report.Downloads.Failed += tr.Downloads.Failed
		report.Downloads.Bytes += tr.Downloads.Bytes
		if tr.Error != nil {
			report.ThreadErrors++
		}
	}

	if err := c.store.Save(ctx, c.cache); err != nil {
		report.Duration = time.Since(report.Started)
		c.finish(log, report)
		return report, fmt.Errorf("failed to save cache: %w", err)
	}
	report.Persisted = true
	report.Duration = time.Since(report.Started)
	c.finish(log, report)
	return report, nil
}

func (c *Crawler) finish(log logger.Logger, report CycleReport) {
	logger.LogCycle(log, report.ID, map[string]interface{}{
		"threads":       len(report.Threads),
		"thread_errors": report.ThreadErrors,
		"new_posts":     report.NewPosts,
		"downloaded":    report.Downloads.Downloaded,
		"skipped":       report.Downloads.Skipped,
		"blocked":       report.Downloads.Blocked,
		"failed":        report.Downloads.Failed,
		"catalog_empty": report.CatalogEmpty,
		"persisted":     report.Persisted,
		"duration":      report.Duration,
	})
	if c.opts.OnCycle != nil {
		c.opts.OnCycle(report)
	}
}

// processThread fetches a thread, downloads attachments of unseen posts and
// merges the results into the cache. Only this goroutine writes the cache.
func (c *Crawler) processThread(ctx context.Context, cycleLog logger.Logger, thread board.Thread) ThreadReport {
	tr := ThreadReport{ThreadID: thread.ID, Subject: thread.Subject}
	log := cycleLog.WithField("thread", thread.ID)

	c.cache.EnsureThread(thread.ID)

	dir, err := c.layout.EnsureThreadDir(thread.ID, thread.Subject)
	if err != nil {
		log.WithError(err).Error("Failed to prepare thread directory")
		tr.Error = err
		return tr
	}

	log.DebugWithFields("Processing thread", map[string]interface{}{
		"subject": thread.Subject,
	})

	posts, err := c.client.FetchThread(ctx, thread.ID)
	if err != nil {
		tr.Error = err
		if ctx.Err() != nil {
			return tr
		}
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			log.Info("Thread is gone (pruned or archived), no new posts")
		} else {
			log.WithError(err).WithField("error_type", string(errors.TypeOf(err))).Warn("Failed to fetch thread")
		}
		return tr
	}
	tr.Posts = len(posts)

	var (
		jobs     []downloader.Job
		textOnly []string
	)
	for _, post := range posts {
		if c.cache.Seen(thread.ID, post.ID) {
			continue
		}
		tr.NewPosts++
		log.WithField("post", post.ID).Debug("New post")

		attachment, ok := board.ResolveAttachment(post)
		if !ok {
			textOnly = append(textOnly, post.ID)
			continue
		}
		path, err := c.layout.AttachmentPath(dir, attachment.FileName())
		if err != nil {
			log.WithError(err).WithField("post", post.ID).Warn("Refusing attachment name")
			textOnly = append(textOnly, post.ID)
			continue
		}
		jobs = append(jobs, downloader.Job{
			ThreadID:   thread.ID,
			PostID:     post.ID,
			Attachment: attachment,
			Path:       path,
		})
	}

	var results []downloader.DownloadResult
	if len(jobs) > 0 {
		results = c.downloader.Process(ctx, jobs)
	}
	if ctx.Err() != nil {
		return tr
	}

	for _, postID := range textOnly {
		c.cache.Mark(thread.ID, postID)
	}
	for _, r := range results {
		if r.Status == downloader.StatusBlocked && c.opts.RetryBlocked {
			continue
		}
		c.cache.Mark(thread.ID, r.Job.PostID)
	}

	tr.Downloads = downloader.Summarize(results)
	if tr.Downloads.Downloaded > 0 {
		log.InfoWithFields("Downloaded new files", map[string]interface{}{
			"count": tr.Downloads.Downloaded,
			"bytes": tr.Downloads.Bytes,
		})
	} else {
		log.Debug("No new files in thread")
	}
	return tr
}
