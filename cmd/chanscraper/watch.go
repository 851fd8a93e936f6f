package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chanscraper/internal/downloader"
	"chanscraper/pkg/board"
	"chanscraper/pkg/cache"
	"chanscraper/pkg/config"
	"chanscraper/pkg/crawler"
	"chanscraper/pkg/logger"
	"chanscraper/pkg/ratelimit"
	"chanscraper/pkg/storage"
	"chanscraper/pkg/ui"
)

var (
	// Watch command flags
	boardName    string
	baseURL      string
	imageHost    string
	mediaDir     string
	cacheFile    string
	cacheBackend string
	userAgent    string
	pollInterval int
	concurrent   int
	retryBlocked bool
	once         bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll a board and download new attachments",
	Long: `Poll the board catalog forever, downloading every new attachment.

Each cycle fetches the catalog, processes every thread in catalog order and
saves the cache once. Stop with Ctrl+C; the current cycle is abandoned
without saving and the next start picks up from the last saved cycle.`,
	Example: `  # Watch /b/ with the defaults (10 minute interval)
  chanscraper watch

  # Watch /wg/ with 4 parallel downloads into ./media
  chanscraper watch --board wg --concurrent 4 --media-dir ./media

  # Single cycle, e.g. from cron
  chanscraper watch --once`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&boardName, "board", "b", "", "board to watch (default \"b\")")
	watchCmd.Flags().StringVar(&baseURL, "base-url", "", "JSON API root")
	watchCmd.Flags().StringVar(&imageHost, "image-host", "", "media host root")
	watchCmd.Flags().StringVarP(&mediaDir, "media-dir", "o", "", "download root directory")
	watchCmd.Flags().StringVar(&cacheFile, "cache-file", "", "cache file path")
	watchCmd.Flags().StringVar(&cacheBackend, "cache-backend", "", "cache backend (json, sqlite)")
	watchCmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent header for every request")
	watchCmd.Flags().IntVar(&pollInterval, "poll-interval", 0, "seconds between cycles")
	watchCmd.Flags().IntVar(&concurrent, "concurrent", 0, "parallel downloads per thread (1-10)")
	watchCmd.Flags().BoolVar(&retryBlocked, "retry-blocked", false, "retry downloads refused with 403 on the next cycle")
	watchCmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
}

func watchFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags()
	if boardName != "" {
		flags["board"] = boardName
	}
	if baseURL != "" {
		flags["base-url"] = baseURL
	}
	if imageHost != "" {
		flags["image-host"] = imageHost
	}
	if mediaDir != "" {
		flags["media-dir"] = mediaDir
	}
	if cacheFile != "" {
		flags["cache-file"] = cacheFile
	}
	if cacheBackend != "" {
		flags["cache-backend"] = cacheBackend
	}
	if userAgent != "" {
		flags["user-agent"] = userAgent
	}
	if pollInterval > 0 {
		flags["poll-interval"] = pollInterval
	}
	if concurrent > 0 {
		flags["concurrent"] = concurrent
	}
	if cmd.Flags().Changed("retry-blocked") {
		flags["retry-blocked"] = retryBlocked
	}
	return flags
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, watchFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("chanscraper starting")

	out := cmd.OutOrStdout()
	if !quiet {
		ui.PrintInfo(out, "Board", "/"+cfg.Board.Name+"/")
		ui.PrintInfo(out, "Media", cfg.Download.MediaDir)
		ui.PrintInfo(out, "Cache", cfg.Cache.File+" ("+cfg.Cache.Backend+")")
	}

	c, closeStore, err := buildCrawler(cfg, log, func(r crawler.CycleReport) {
		if !quiet {
			fmt.Fprintln(out, ui.RenderCycle(r))
		}
	})
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		_, err := c.RunCycle(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Cycle failed")
		}
		return nil
	}

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Shutting down")
	return nil
}

// buildCrawler wires the crawler from configuration. The returned function
// closes the cache store.
func buildCrawler(cfg *config.Config, log logger.Logger, onCycle func(crawler.CycleReport)) (*crawler.Crawler, func(), error) {
	limiter := ratelimit.PerSecond(cfg.HTTP.RequestsPerSecond)
	client := board.NewClient(cfg, limiter, log)

	manager, err := storage.NewManager(cfg.Download.MediaDir, cfg.Board.Name)
	if err != nil {
		return nil, nil, err
	}

	store, err := cache.NewStore(&cfg.Cache, cfg.Board.Name, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache: %w", err)
	}

	dl := downloader.New(client, manager, cfg.Download.ConcurrentDownloads, log)
	c := crawler.New(client, manager, dl, store, crawler.Options{
		PollInterval:        cfg.PollInterval(),
		EmptyCatalogBackoff: cfg.EmptyCatalogBackoff(),
		RetryBlocked:        cfg.Download.RetryBlocked,
		OnCycle:             onCycle,
	}, log)

	closeStore := func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("Failed to close cache")
		}
	}
	return c, closeStore, nil
}
