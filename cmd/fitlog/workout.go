// ABOUTME: CLI commands for managing workouts.
// ABOUTME: Supports add, list, show, delete, and volume subcommands.
package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/fitlog/internal/analytics"
	"github.com/harperreed/fitlog/internal/models"
	"github.com/harperreed/fitlog/internal/views"
	"github.com/spf13/cobra"
)

var (
	workoutDate      string
	workoutDuration  int
	workoutNotes     string
	workoutUnit      string
	workoutSets      []string
	workoutMuscles   map[string]string
	workoutLimit     int
	workoutPurge     bool
	workoutVolumeAll bool
)

var workoutCmd = &cobra.Command{
	Use:     "workout",
	Aliases: []string{"w"},
	Short:   "Manage workouts",
	Long: `Track training sessions made of exercises and sets.

SETS:

  Each --set is NAME=REPS[xWEIGHT][w]. Sets for the same exercise are grouped
  in the order given. Omit the weight for bodyweight work; a trailing "w" marks
  a warm-up set, which does not count toward volume.

  Weights are read in --unit, or the weight_unit setting when omitted, and
  stored in kilograms.

WORKFLOW:

  1. Log a workout:   fitlog workout add Push --set "Bench Press=5x100" --set "Dips=12"
  2. Browse:          fitlog workout list
  3. Inspect:         fitlog workout show 01HV
  4. Volume:          fitlog workout volume 01HV
  5. All time:        fitlog workout volume --all

Bodyweight sets use the body weight recorded closest before the workout
(see 'fitlog metric add --weight').`,
}

// setSpec is one parsed --set value.
type setSpec struct {
	Exercise  string
	Reps      int
	Weight    float64
	HasWeight bool
	Warmup    bool
}

func parseSetSpec(s string) (setSpec, error) {
	i := strings.LastIndex(s, "=")
	if i <= 0 {
		return setSpec{}, fmt.Errorf("invalid set %q: want NAME=REPS[xWEIGHT][w]", s)
	}
	spec := setSpec{Exercise: strings.TrimSpace(s[:i])}
	body := strings.ToLower(strings.TrimSpace(s[i+1:]))
	if spec.Exercise == "" || body == "" {
		return setSpec{}, fmt.Errorf("invalid set %q: want NAME=REPS[xWEIGHT][w]", s)
	}
	if strings.HasSuffix(body, "w") {
		spec.Warmup = true
		body = strings.TrimSuffix(body, "w")
	}

	repsPart, weightPart, hasWeight := strings.Cut(body, "x")
	reps, err := strconv.Atoi(repsPart)
	if err != nil || reps < 0 {
		return setSpec{}, fmt.Errorf("invalid reps in set %q", s)
	}
	spec.Reps = reps
	if hasWeight {
		w, err := strconv.ParseFloat(weightPart, 64)
		if err != nil || w < 0 {
			return setSpec{}, fmt.Errorf("invalid weight in set %q", s)
		}
		spec.Weight, spec.HasWeight = w, true
	}
	return spec, nil
}

// buildWorkout resolves catalog entries and appends sets in input order.
func buildWorkout(ctx context.Context, w *models.WorkoutRecord, specs []setSpec, muscles map[string]string, unit analytics.MassUnit) error {
	var order []string
	grouped := make(map[string][]setSpec)
	for _, spec := range specs {
		key := strings.ToLower(spec.Exercise)
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], spec)
	}

	for _, key := range order {
		sets := grouped[key]
		exerciseType := models.ExerciseBodyweight
		for _, s := range sets {
			if s.HasWeight && s.Weight > 0 {
				exerciseType = models.ExerciseWeighted
				break
			}
		}
		catalog, err := repo.EnsureExercise(ctx, sets[0].Exercise, muscles[sets[0].Exercise], exerciseType)
		if err != nil {
			return fmt.Errorf("failed to resolve exercise %q: %w", sets[0].Exercise, err)
		}
		performed := w.AddExercise(catalog)
		for _, s := range sets {
			performed.AddSet(s.Reps, analytics.ToKilograms(s.Weight, unit))
			performed.Sets[len(performed.Sets)-1].IsWarmup = s.Warmup
		}
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return fmt.Sprintf("%d min", int(d.Minutes()))
}

var workoutAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a new workout",
	Long: `Add a workout with its sets.

Examples:
  fitlog workout add Push --set "Bench Press=10x40w" --set "Bench Press=5x100" --set "Dips=12"
  fitlog workout add Legs --date "2026-03-01 18:00" --duration 60 --unit lb --set "Squat=5x225"
  fitlog workout add Pull --set "Pullup=8" --muscle "Pullup=back"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		date, err := parseOptionalTime(workoutDate)
		if err != nil {
			return err
		}
		unit, err := massUnit(ctx, workoutUnit)
		if err != nil {
			return err
		}

		specs := make([]setSpec, 0, len(workoutSets))
		for _, raw := range workoutSets {
			spec, err := parseSetSpec(raw)
			if err != nil {
				return err
			}
			specs = append(specs, spec)
		}

		w := models.NewWorkout(strings.Join(args, " ")).WithDate(date)
		if workoutDuration > 0 {
			w.WithDuration(time.Duration(workoutDuration) * time.Minute)
		}
		if workoutNotes != "" {
			w.WithDescription(workoutNotes)
		}
		if err := buildWorkout(ctx, w, specs, workoutMuscles, unit); err != nil {
			return err
		}

		if err := repo.AddWorkout(ctx, w); err != nil {
			return fmt.Errorf("failed to create workout: %w", err)
		}

		out := cmd.OutOrStdout()
		success.Fprintf(out, "✓ Added %s workout\n", w.Title)
		fmt.Fprintf(out, "  ID: %s\n", w.ID)
		fmt.Fprintf(out, "  Exercises: %d  Sets: %d\n", len(w.Exercises), w.SetCount())
		if d := formatDuration(w.Duration); d != "" {
			fmt.Fprintf(out, "  Duration: %s\n", d)
		}
		return nil
	},
}

var workoutListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List workouts",
	RunE: func(cmd *cobra.Command, args []string) error {
		history := views.NewWorkoutHistory(repo, repo.Bus(), workoutLimit, appLogger)
		defer history.Close()
		if err := history.Load(cmd.Context()); err != nil {
			return fmt.Errorf("failed to list workouts: %w", err)
		}

		workouts := history.Items()
		if len(workouts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No workouts found.")
			return nil
		}
		for _, w := range workouts {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n",
				faint.Sprint(w.ID.String()),
				faint.Sprint(w.Date.Format("2006-01-02 15:04")),
				padRight(truncate(w.Title, 24), 24),
				formatDuration(w.Duration))
		}
		if history.HasMore() {
			faint.Fprintf(cmd.OutOrStdout(), "(showing %d; use --limit for more)\n", len(workouts))
		}
		return nil
	},
}

// resolveWorkout loads the full tree for an ID or prefix.
func resolveWorkout(ctx context.Context, idOrPrefix string) (*models.WorkoutRecord, error) {
	id, err := repo.ResolveWorkoutID(ctx, idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("workout not found: %s: %w", idOrPrefix, err)
	}
	w, err := repo.GetWorkoutWithDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get workout: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("workout not found: %s", idOrPrefix)
	}
	return w, nil
}

func printWorkout(out io.Writer, w *models.WorkoutRecord, bodyWeight *float64, prefs analytics.Preferences) {
	fmt.Fprintf(out, "%s %s\n", success.Sprint(w.Title), faint.Sprint(w.ID.String()))
	fmt.Fprintf(out, "  Date: %s\n", w.Date.Format("2006-01-02 15:04"))
	if d := formatDuration(w.Duration); d != "" {
		fmt.Fprintf(out, "  Duration: %s\n", d)
	}
	if w.Description != "" {
		fmt.Fprintf(out, "  Notes: %s\n", w.Description)
	}
	if w.IsDeleted() {
		warning.Fprintln(out, "  (deleted)")
	}

	for _, e := range w.Exercises {
		fmt.Fprintf(out, "\n  %s %s\n", e.Name, faint.Sprintf("(%s)", e.Type))
		for i, s := range e.Sets {
			load := "bodyweight"
			if s.Weight > 0 {
				load = analytics.FormatMass(s.Weight, prefs.Mass)
			}
			line := fmt.Sprintf("    %d. %d × %s", i+1, s.Reps, load)
			if s.IsWarmup {
				line += faint.Sprint(" warm-up")
			}
			fmt.Fprintln(out, line)
		}
	}

	volume := analytics.WorkoutVolume(w, bodyWeight)
	fmt.Fprintf(out, "\n  Volume: %s\n", analytics.FormatMass(volume, prefs.Mass))
}

var workoutShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a workout with all its sets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := resolveWorkout(ctx, args[0])
		if err != nil {
			return err
		}
		bodyWeight, err := repo.GetClosestBodyWeight(ctx, w.Date)
		if err != nil {
			return fmt.Errorf("failed to look up body weight: %w", err)
		}
		printWorkout(cmd.OutOrStdout(), w, bodyWeight, preferences(ctx))
		return nil
	},
}

var workoutDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a workout",
	Long: `Delete a workout by ID or ID prefix.

By default the workout is hidden but kept in backups. Use --purge to remove
it and all its sets permanently.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := repo.ResolveWorkoutID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("workout not found: %s: %w", args[0], err)
		}

		if workoutPurge {
			err = repo.PurgeWorkout(ctx, id)
		} else {
			err = repo.SoftDeleteWorkout(ctx, id)
		}
		if err != nil {
			return fmt.Errorf("failed to delete workout: %w", err)
		}

		warning.Fprintf(cmd.OutOrStdout(), "✗ Deleted workout %s\n", id)
		return nil
	},
}

var workoutVolumeCmd = &cobra.Command{
	Use:   "volume [id]",
	Short: "Show training volume for a workout, or across all workouts",
	Long: `Show training volume for one workout, or with --all the total over
every live workout split by muscle group.

Examples:
  fitlog workout volume 01HV
  fitlog workout volume --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if workoutVolumeAll {
			if len(args) > 0 {
				return fmt.Errorf("--all takes no workout ID")
			}
			return printTotalVolume(ctx, cmd.OutOrStdout())
		}
		if len(args) == 0 {
			return fmt.Errorf("workout ID required (or use --all)")
		}

		w, err := resolveWorkout(ctx, args[0])
		if err != nil {
			return err
		}
		bodyWeight, err := repo.GetClosestBodyWeight(ctx, w.Date)
		if err != nil {
			return fmt.Errorf("failed to look up body weight: %w", err)
		}
		prefs := preferences(ctx)
		volume := analytics.WorkoutVolume(w, bodyWeight)

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", w.ID, analytics.FormatMass(volume, prefs.Mass))
		if bodyWeight == nil {
			faint.Fprintln(cmd.OutOrStdout(), "  no body weight recorded before this workout; bodyweight sets count as zero")
		}
		return nil
	},
}

// printTotalVolume sums volume over every live workout, each at the body
// weight closest before it.
func printTotalVolume(ctx context.Context, out io.Writer) error {
	headers, err := repo.ListWorkoutsPaginated(ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to list workouts: %w", err)
	}
	workouts := make([]*models.WorkoutRecord, 0, len(headers))
	for _, h := range headers {
		w, err := repo.GetWorkoutWithDetails(ctx, h.ID)
		if err != nil {
			return fmt.Errorf("failed to get workout: %w", err)
		}
		if w != nil {
			workouts = append(workouts, w)
		}
	}
	metrics, err := repo.ListUserMetricsPaginated(ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to list metrics: %w", err)
	}

	prefs := preferences(ctx)
	fmt.Fprintf(out, "Total: %s over %d workouts\n",
		analytics.FormatMass(analytics.TotalVolume(workouts, metrics), prefs.Mass), len(workouts))

	byMuscle := analytics.MuscleGroupVolume(workouts, metrics)
	groups := make([]string, 0, len(byMuscle))
	for g := range byMuscle {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if byMuscle[groups[i]] != byMuscle[groups[j]] {
			return byMuscle[groups[i]] > byMuscle[groups[j]]
		}
		return groups[i] < groups[j]
	})
	for _, g := range groups {
		name := g
		if name == "" {
			name = "(none)"
		}
		fmt.Fprintf(out, "  %s %s\n", padRight(name, 12), analytics.FormatMass(byMuscle[g], prefs.Mass))
	}
	return nil
}

func init() {
	workoutAddCmd.Flags().StringVar(&workoutDate, "date", "", "workout date (YYYY-MM-DD HH:MM), defaults to now")
	workoutAddCmd.Flags().IntVarP(&workoutDuration, "duration", "d", 0, "duration in minutes")
	workoutAddCmd.Flags().StringVar(&workoutNotes, "notes", "", "workout notes")
	workoutAddCmd.Flags().StringVar(&workoutUnit, "unit", "", "weight unit for --set values (kg or lb)")
	workoutAddCmd.Flags().StringArrayVar(&workoutSets, "set", nil, "set as NAME=REPS[xWEIGHT][w] (repeatable)")
	workoutAddCmd.Flags().StringToStringVar(&workoutMuscles, "muscle", nil, "muscle group for new exercises as NAME=GROUP")

	workoutListCmd.Flags().IntVarP(&workoutLimit, "limit", "n", 20, "max number of results")
	workoutDeleteCmd.Flags().BoolVar(&workoutPurge, "purge", false, "remove permanently")
	workoutVolumeCmd.Flags().BoolVar(&workoutVolumeAll, "all", false, "total volume over all workouts by muscle group")

	workoutCmd.AddCommand(workoutAddCmd, workoutListCmd, workoutShowCmd, workoutDeleteCmd, workoutVolumeCmd)
	rootCmd.AddCommand(workoutCmd)
}
