package downloader

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"chanscraper/pkg/board"
	"chanscraper/pkg/errors"
	"chanscraper/pkg/logger"
)

const (
	// MaxWorkers caps concurrent downloads per thread
	MaxWorkers = 10
)

// Status is the outcome of a single download
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusSkipped    Status = "skipped"
	StatusBlocked    Status = "blocked"
	StatusFailed     Status = "failed"
)

// Job is one attachment to fetch into Path
type Job struct {
	ThreadID   string
	PostID     string
	Attachment board.Attachment
	Path       string
}

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job      Job
	Status   Status
	Error    error
	Duration time.Duration
	Size     int64
}

// MediaSource opens attachment streams
type MediaSource interface {
	OpenMedia(ctx context.Context, a board.Attachment) (io.ReadCloser, int64, error)
}

// MediaStorage checks and writes local files
type MediaStorage interface {
	Exists(path string) bool
	Save(r io.Reader, path string) (int64, error)
}

// Downloader fetches attachments with a bounded number of workers. Two jobs
// for the same path never write at the same time.
type Downloader struct {
	source     MediaSource
	storage    MediaStorage
	numWorkers int
	inflight   singleflight.Group
	logger     logger.Logger
}

// New creates a downloader. numWorkers is clamped to [1, MaxWorkers].
func New(source MediaSource, storage MediaStorage, numWorkers int, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > MaxWorkers {
		numWorkers = MaxWorkers
	}

	return &Downloader{
		source:     source,
		storage:    storage,
		numWorkers: numWorkers,
		logger:     log.WithField("component", "downloader"),
	}
}

// Workers returns the effective pool size
func (d *Downloader) Workers() int {
	return d.numWorkers
}

// Process runs every job on the pool and returns results in job order
func (d *Downloader) Process(ctx context.Context, jobs []Job) []DownloadResult {
	results := make([]DownloadResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(d.numWorkers)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = d.Download(ctx, job)
			return nil
		})
	}
	g.Wait()

	return results
}

// Download fetches a single job, skipping it when the file already exists
func (d *Downloader) Download(ctx context.Context, job Job) DownloadResult {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return DownloadResult{Job: job, Status: StatusFailed, Error: err}
	}

	leader := false
	v, _, _ := d.inflight.Do(job.Path, func() (interface{}, error) {
		leader = true
		return d.fetch(ctx, job), nil
	})

	result := v.(DownloadResult)
	if !leader {
		// Another worker owned this path; it reports the real outcome
		result = DownloadResult{Job: job, Status: StatusSkipped}
	}
	result.Duration = time.Since(start)

	logger.LogDownload(d.logger, job.ThreadID, job.PostID, job.Attachment.FileName(), string(result.Status), result.Error)
	return result
}

func (d *Downloader) fetch(ctx context.Context, job Job) DownloadResult {
	result := DownloadResult{Job: job}

	// Check if already downloaded
	if d.storage.Exists(job.Path) {
		result.Status = StatusSkipped
		return result
	}

	body, _, err := d.source.OpenMedia(ctx, job.Attachment)
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Status = StatusFailed
		if errors.IsType(err, errors.ErrorTypeBlocked) {
			result.Status = StatusBlocked
		}
		return result
	}
	defer body.Close()

	size, err := d.storage.Save(body, job.Path)
	if err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		result.Status = StatusFailed
		return result
	}

	result.Size = size
	result.Status = StatusDownloaded
	return result
}

// Summary counts results by status
type Summary struct {
	Downloaded int
	Skipped    int
	Blocked    int
	Failed     int
	Bytes      int64
}

// Summarize counts results by status
func Summarize(results []DownloadResult) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusDownloaded:
			s.Downloaded++
			s.Bytes += r.Size
		case StatusSkipped:
			s.Skipped++
		case StatusBlocked:
			s.Blocked++
		default:
			s.Failed++
		}
	}
	return s
}
