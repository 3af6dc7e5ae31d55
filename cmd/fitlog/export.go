// ABOUTME: CLI commands for exporting and importing fitlog data.
// ABOUTME: Supports JSON backups plus YAML and Markdown exports.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	exportOutput     string
	exportPassphrase string
	exportSince      string
	importPassphrase string
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export fitlog data",
	Long: `Export fitlog data in various formats.

FORMATS:

  json       Full backup of every table, including deleted rows
  yaml       YAML export (human-readable, secrets masked)
  markdown   Markdown tables (for documentation/sharing)

OPTIONS:

  --output, -o    Write to file instead of stdout
  --passphrase    Seal a json backup with a passphrase
  --since         Only include data since this date (markdown only)

EXAMPLES:

  fitlog export json -o backup.json                 # Plain backup
  fitlog export json -o backup.enc --passphrase pw  # Sealed backup
  fitlog export yaml
  fitlog export markdown --since 2026-01-01`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var data []byte
		var err error

		switch args[0] {
		case "json":
			data, err = repo.DumpDatabase(ctx, exportPassphrase)
		case "yaml":
			data, err = repo.ExportYAML(ctx)
		case "markdown":
			var since *time.Time
			if exportSince != "" {
				t, perr := time.ParseInLocation("2006-01-02", exportSince, time.Local)
				if perr != nil {
					return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", exportSince)
				}
				since = &t
			}
			var md string
			md, err = repo.ExportMarkdown(ctx, since)
			data = []byte(md)
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", args[0])
		}

		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			success.Fprintf(cmd.OutOrStdout(), "✓ Exported to %s\n", exportOutput)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore fitlog data from a JSON backup",
	Long: `Restore every table from a backup written by 'fitlog export json'.

Existing data is replaced. Sealed backups need the passphrase they were
exported with.

EXAMPLES:

  fitlog import backup.json
  fitlog import backup.enc --passphrase pw`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		if err := repo.RestoreDatabase(cmd.Context(), data, importPassphrase); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		success.Fprintf(cmd.OutOrStdout(), "✓ Imported from %s\n", args[0])
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportPassphrase, "passphrase", "", "seal the json backup with this passphrase")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only include data since date (YYYY-MM-DD)")
	importCmd.Flags().StringVar(&importPassphrase, "passphrase", "", "passphrase for a sealed backup")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
