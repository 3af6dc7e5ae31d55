// ABOUTME: CLI commands for body measurements.
// ABOUTME: Supports add, list, closest, and delete subcommands.
package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/fitlog/internal/analytics"
	"github.com/harperreed/fitlog/internal/models"
	"github.com/spf13/cobra"
)

var (
	metricWeight     float64
	metricHeight     float64
	metricFat        float64
	metricSource     string
	metricDate       string
	metricUnit       string
	metricHeightUnit string
	metricLimit      int
)

var metricCmd = &cobra.Command{
	Use:     "metric",
	Aliases: []string{"m"},
	Short:   "Manage body measurements",
	Long: `Record weight, height and body fat.

One measurement is kept per day and source: adding another for the same day
replaces it. Bodyweight exercise volume uses the latest weight recorded on or
before the workout date.

EXAMPLES:

  fitlog metric add --weight 80.5
  fitlog metric add --weight 176 --unit lb --fat 18.5
  fitlog metric add --height 5.9 --height-unit ft --date 2026-01-01
  fitlog metric closest --date "2026-03-01 18:00"`,
}

var metricAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a measurement",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flags := cmd.Flags()
		if !flags.Changed("weight") && !flags.Changed("height") && !flags.Changed("fat") {
			return fmt.Errorf("at least one of --weight, --height or --fat is required")
		}

		date, err := parseOptionalTime(metricDate)
		if err != nil {
			return err
		}
		if !models.IsValidMetricSource(metricSource) {
			return fmt.Errorf("invalid source: %s (valid: %s)", metricSource, sourceList())
		}

		prefs := preferences(ctx)
		m := models.NewUserMetric().WithDate(date).WithSource(models.MetricSource(metricSource))
		if flags.Changed("weight") {
			unit, err := massUnit(ctx, metricUnit)
			if err != nil {
				return err
			}
			m.WithWeight(analytics.ToKilograms(metricWeight, unit))
		}
		if flags.Changed("height") {
			unit := prefs.Length
			if metricHeightUnit != "" {
				unit = analytics.LengthUnit(strings.ToLower(metricHeightUnit))
			}
			switch unit {
			case analytics.Meters:
				m.WithHeight(metricHeight)
			case analytics.Feet:
				m.WithHeight(analytics.FeetToMeters(metricHeight))
			default:
				return fmt.Errorf("unknown height unit: %s (use m or ft)", metricHeightUnit)
			}
		}
		if flags.Changed("fat") {
			m.WithFatPercentage(metricFat)
		}

		if err := repo.AddUserMetric(ctx, m); err != nil {
			return fmt.Errorf("failed to add metric: %w", err)
		}

		success.Fprintf(cmd.OutOrStdout(), "✓ Recorded measurement for %s\n", m.Day())
		printMetric(cmd.OutOrStdout(), m, prefs)
		return nil
	},
}

func sourceList() string {
	names := make([]string, len(models.AllMetricSources))
	for i, s := range models.AllMetricSources {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func printMetric(out io.Writer, m *models.UserMetric, prefs analytics.Preferences) {
	fmt.Fprintf(out, "  ID: %s\n", m.ID.String()[:8])
	if m.Weight != nil {
		fmt.Fprintf(out, "  Weight: %s\n", analytics.FormatMass(*m.Weight, prefs.Mass))
	}
	if m.Height != nil {
		fmt.Fprintf(out, "  Height: %s\n", analytics.FormatLength(*m.Height, prefs.Length))
	}
	if m.FatPercentage != nil {
		fmt.Fprintf(out, "  Body fat: %.1f%%\n", *m.FatPercentage)
	}
}

var metricListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List measurements newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		metrics, err := repo.ListUserMetricsPaginated(ctx, 0, metricLimit)
		if err != nil {
			return fmt.Errorf("failed to list metrics: %w", err)
		}
		if len(metrics) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No measurements found.")
			return nil
		}

		prefs := preferences(ctx)
		for _, m := range metrics {
			var parts []string
			if m.Weight != nil {
				parts = append(parts, analytics.FormatMass(*m.Weight, prefs.Mass))
			}
			if m.Height != nil {
				parts = append(parts, analytics.FormatLength(*m.Height, prefs.Length))
			}
			if m.FatPercentage != nil {
				parts = append(parts, fmt.Sprintf("%.1f%%", *m.FatPercentage))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n",
				faint.Sprint(m.ID.String()[:8]),
				faint.Sprint(m.Date.Format("2006-01-02")),
				padRight(string(m.Source), 11),
				strings.Join(parts, "  "))
		}
		return nil
	},
}

var metricClosestCmd = &cobra.Command{
	Use:   "closest",
	Short: "Show the latest measurement on or before a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		date, err := parseOptionalTime(metricDate)
		if err != nil {
			return err
		}
		m, err := repo.GetClosestUserMetric(ctx, date)
		if err != nil {
			return fmt.Errorf("failed to look up metric: %w", err)
		}
		if m == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No measurement on or before that date.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), m.Date.Format("2006-01-02 15:04"))
		printMetric(cmd.OutOrStdout(), m, preferences(ctx))
		return nil
	},
}

var metricDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a measurement",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid metric ID: %s", args[0])
		}
		if err := repo.DeleteUserMetric(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete metric: %w", err)
		}
		warning.Fprintf(cmd.OutOrStdout(), "✗ Deleted measurement %s\n", id.String()[:8])
		return nil
	},
}

func init() {
	metricAddCmd.Flags().Float64Var(&metricWeight, "weight", 0, "body weight")
	metricAddCmd.Flags().Float64Var(&metricHeight, "height", 0, "height")
	metricAddCmd.Flags().Float64Var(&metricFat, "fat", 0, "body fat percentage")
	metricAddCmd.Flags().StringVar(&metricSource, "source", string(models.SourceManual), "measurement source")
	metricAddCmd.Flags().StringVar(&metricDate, "date", "", "measurement date (YYYY-MM-DD HH:MM), defaults to now")
	metricAddCmd.Flags().StringVar(&metricUnit, "unit", "", "weight unit (kg or lb)")
	metricAddCmd.Flags().StringVar(&metricHeightUnit, "height-unit", "", "height unit (m or ft)")

	metricListCmd.Flags().IntVarP(&metricLimit, "limit", "n", 20, "max number of results")
	metricClosestCmd.Flags().StringVar(&metricDate, "date", "", "reference date (YYYY-MM-DD HH:MM), defaults to now")

	metricCmd.AddCommand(metricAddCmd, metricListCmd, metricClosestCmd, metricDeleteCmd)
	rootCmd.AddCommand(metricCmd)
}
