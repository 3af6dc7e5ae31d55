// ABOUTME: CLI command for moving data to another storage backend.
// ABOUTME: Copies every table, then switches the configured backend.
package main

import (
	"fmt"

	"github.com/harperreed/fitlog/internal/config"
	"github.com/harperreed/fitlog/internal/storage"
	"github.com/spf13/cobra"
)

var (
	migrateTo     string
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move data to another storage backend",
	Long: `Copy all fitlog data from the configured backend to another one and
switch the config to use it.

IMPORTANT:

  - The destination must be empty
  - Deleted workouts and chat IDs are carried over as they are
  - The source data is left in place; remove it yourself once satisfied
  - Run with --dry-run first to see what would be migrated

USAGE:

  fitlog migrate --to sqlite --dry-run   # Preview
  fitlog migrate --to sqlite             # Copy and switch
  fitlog migrate --to badger             # And back again`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		from := cfg.GetBackend()
		if migrateTo != config.BackendBadger && migrateTo != config.BackendSQLite {
			return fmt.Errorf("unknown backend: %s (use badger or sqlite)", migrateTo)
		}
		if migrateTo == from {
			return fmt.Errorf("already using the %s backend", from)
		}

		if migrateDryRun {
			warning.Fprintln(out, "Dry run mode - no changes will be made")
			d, err := repo.DumpAllTables(ctx)
			if err != nil {
				return fmt.Errorf("failed to read %s store: %w", from, err)
			}
			printSummary(cmd, storage.Summarize(d))
			return nil
		}

		dstKV, err := cfg.OpenBackend(migrateTo)
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", migrateTo, err)
		}
		dst := storage.New(dstKV, storage.WithLogger(appLogger))
		defer func() {
			if err := dst.Close(); err != nil {
				appLogger.Warn("close destination store", "err", err)
			}
		}()

		summary, err := storage.MigrateData(ctx, repo, dst)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		cfg.Backend = migrateTo
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("data copied but config not saved: %w", err)
		}

		success.Fprintf(out, "✓ Migrated %s → %s\n", from, migrateTo)
		printSummary(cmd, summary)
		srcPath, _ := cfg.BackendPath(from)
		faint.Fprintf(out, "The old data is still at %s\n", srcPath)
		return nil
	},
}

func printSummary(cmd *cobra.Command, s *storage.MigrateSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  Settings:     %d\n", s.Settings)
	fmt.Fprintf(out, "  Chats:        %d\n", s.Chats)
	fmt.Fprintf(out, "  Exercises:    %d\n", s.Exercises)
	fmt.Fprintf(out, "  Workouts:     %d\n", s.Workouts)
	fmt.Fprintf(out, "  User metrics: %d\n", s.UserMetrics)
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", config.BackendSQLite, "destination backend (badger or sqlite)")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	rootCmd.AddCommand(migrateCmd)
}
