package crawler

import (
	"context"
	"time"

	"chanscraper/internal/downloader"
	"chanscraper/pkg/board"
)

// BoardClient defines the remote operations the crawler needs
type BoardClient interface {
	FetchCatalog(ctx context.Context) ([]board.Thread, error)
	FetchThread(ctx context.Context, threadID string) ([]board.Post, error)
}

// Layout maps threads and attachments to local paths
type Layout interface {
	EnsureThreadDir(threadID, subject string) (string, error)
	AttachmentPath(threadDir, fileName string) (string, error)
}

// Fetcher downloads a batch of jobs and returns results in job order
type Fetcher interface {
	Process(ctx context.Context, jobs []downloader.Job) []downloader.DownloadResult
}

// Sleeper waits between cycles. It returns early with the context error.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper sleeps on a real timer
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
})
