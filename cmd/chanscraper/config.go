package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"chanscraper/pkg/config"
	"chanscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage chanscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (CHANSCRAPER_*) and .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the default values",
	Long: `Create a configuration file holding every option at its default value.

The file is created as '.chanscraper.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration from every source and check it.

This command checks:
  - YAML syntax
  - Required fields
  - Value ranges
  - That the media and log directories can be created`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".chanscraper.yaml"
	}

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ui.PrintSuccess(out, "Configuration file created: "+configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Edit the board name and directories")
	fmt.Fprintln(out, "2. Run 'chanscraper config validate' to check the configuration")
	fmt.Fprintln(out, "3. Start with 'chanscraper watch'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	ui.PrintHighlight(out, "Current Configuration")
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		ui.PrintError(out, "Configuration validation failed", err)
		return err
	}

	var problems []string
	if err := os.MkdirAll(filepath.Join(cfg.Download.MediaDir, cfg.Board.Name), 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create media directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError(out, "Configuration has errors:", nil)
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		return fmt.Errorf("configuration has %d error(s)", len(problems))
	}

	ui.PrintSuccess(out, "Configuration is valid")
	fmt.Fprintln(out, "\nConfiguration summary:")
	ui.PrintInfo(out, "  Board", "/"+cfg.Board.Name+"/")
	ui.PrintInfo(out, "  Poll interval", cfg.PollInterval().String())
	ui.PrintInfo(out, "  Media directory", cfg.Download.MediaDir)
	ui.PrintInfo(out, "  Concurrent downloads", fmt.Sprint(cfg.Download.ConcurrentDownloads))
	ui.PrintInfo(out, "  Cache", cfg.Cache.File+" ("+cfg.Cache.Backend+")")
	ui.PrintInfo(out, "  Log level", cfg.Logging.Level)
	return nil
}
