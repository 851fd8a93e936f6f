package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chanscraper/pkg/cache"
	"chanscraper/pkg/config"
	"chanscraper/pkg/logger"
	"chanscraper/pkg/ui"
)

var statusTop int

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the cache has recorded",
	Long: `Load the cache for the configured board and print how many threads and
posts have been processed, with the largest threads first. The cache is
only read: a corrupt file is reported and left as it is.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&boardName, "board", "b", "", "board to inspect")
	statusCmd.Flags().StringVar(&cacheFile, "cache-file", "", "cache file path")
	statusCmd.Flags().StringVar(&cacheBackend, "cache-backend", "", "cache backend (json, sqlite)")
	statusCmd.Flags().IntVar(&statusTop, "top", 10, "number of threads to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	flags := globalFlags()
	if boardName != "" {
		flags["board"] = boardName
	}
	if cacheFile != "" {
		flags["cache-file"] = cacheFile
	}
	if cacheBackend != "" {
		flags["cache-backend"] = cacheBackend
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	c, err := cache.Inspect(cmd.Context(), &cfg.Cache, cfg.Board.Name, logger.NewNopLogger())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), ui.RenderCacheSummary(c, cfg.Cache.File, statusTop))
	return nil
}
