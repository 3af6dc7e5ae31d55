// ABOUTME: Root Cobra command for fitlog CLI.
// ABOUTME: Opens config, logger and repository in PersistentPreRunE.
package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/harperreed/fitlog/internal/analytics"
	"github.com/harperreed/fitlog/internal/config"
	"github.com/harperreed/fitlog/internal/logger"
	"github.com/harperreed/fitlog/internal/storage"
	"github.com/harperreed/fitlog/internal/views"
	"github.com/spf13/cobra"
)

var (
	cfg       *config.Config
	repo      *storage.Store
	appLogger *log.Logger
	debugFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "fitlog",
	Short: "Local fitness log",
	Long: `Fitlog keeps your workouts, body metrics, settings and coach chat in a
local encrypted store.

QUICK START:

  $ fitlog settings set weight_unit lb             # Show weights in pounds
  $ fitlog metric add --weight 176                 # Log body weight
  $ fitlog workout add Push --set "Bench Press=5x225" --set "Push Ups=15"
  $ fitlog workout list                            # Recent workouts
  $ fitlog workout volume 01HV                     # Volume by ID prefix

BACKUP:

  $ fitlog export json -o backup.json --passphrase "..."
  $ fitlog import backup.json --passphrase "..."

MCP INTEGRATION:

  Run 'fitlog mcp' to start the Model Context Protocol server. Add to your
  assistant config:

  {
    "mcpServers": {
      "fitlog": { "command": "fitlog", "args": ["mcp"] }
    }
  }

DATA STORAGE:

  Data lives in ~/.local/share/fitlog (Badger by default, or SQLite with
  "backend": "sqlite" in ~/.config/fitlog/config.json). Sensitive settings and
  chat content are encrypted at rest.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		appLogger, err = logger.Init(logger.Config{
			Debug:  cfg.Debug || debugFlag,
			LogDir: filepath.Join(config.GetConfigDir(), "logs"),
			Stderr: cmd.ErrOrStderr(),
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		closeRepo()
		store, err := cfg.OpenKV()
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", cfg.GetBackend(), err)
		}
		repo = storage.New(store, storage.WithLogger(appLogger))
		logger.Debug("opened store", "backend", cfg.GetBackend(), "dir", cfg.GetDataDir())
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		closeRepo()
		return nil
	},
}

// closeRepo closes the repository if a command opened one. PersistentPostRunE
// does not run when RunE fails, so main calls this too.
func closeRepo() {
	if repo == nil {
		return
	}
	if err := repo.Close(); err != nil {
		logger.Warn("close store", "err", err)
	}
	repo = nil
}

// preferences reads display units through a settings cache.
func preferences(ctx context.Context) analytics.Preferences {
	cache := views.NewSettingsCache(repo, repo.Bus())
	defer cache.Close()
	prefs, err := cache.Preferences(ctx)
	if err != nil {
		appLogger.Warn("read unit preferences", "err", err)
	}
	return prefs
}

// massUnit returns the explicit unit flag or the configured weight unit.
func massUnit(ctx context.Context, flag string) (analytics.MassUnit, error) {
	switch analytics.MassUnit(strings.ToLower(flag)) {
	case "":
		return preferences(ctx).Mass, nil
	case analytics.Kilograms:
		return analytics.Kilograms, nil
	case analytics.Pounds:
		return analytics.Pounds, nil
	default:
		return "", fmt.Errorf("unknown unit: %s (use kg or lb)", flag)
	}
}

func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02",
		time.RFC3339,
	}
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}

// parseOptionalTime returns now for an empty flag.
func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := parseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp: %s", s)
	}
	return t, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

var (
	faint   = color.New(color.Faint)
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "log debug output to stderr")
}
