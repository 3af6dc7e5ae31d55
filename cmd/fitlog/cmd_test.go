// ABOUTME: Tests for CLI helper functions and command execution.
// ABOUTME: Runs commands against a temp data dir and checks the stored rows.
package main

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/fitlog/internal/config"
	"github.com/harperreed/fitlog/internal/models"
	"github.com/harperreed/fitlog/internal/storage"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "date and time with space", input: "2026-01-31 08:30"},
		{name: "date and time with T", input: "2026-01-31T08:30"},
		{name: "date only", input: "2026-01-31"},
		{name: "RFC3339", input: "2026-01-31T08:30:00Z"},
		{name: "RFC3339 with offset", input: "2026-01-31T08:30:00+05:00"},
		{name: "invalid format", input: "31-01-2026", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseTime(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTime(%q) unexpected error: %v", tt.input, err)
			}
			if result.Year() != 2026 || result.Month() != time.January {
				t.Errorf("parseTime(%q) = %v", tt.input, result)
			}
		})
	}
}

func TestParseOptionalTimeDefaultsToNow(t *testing.T) {
	before := time.Now()
	got, err := parseOptionalTime("")
	if err != nil {
		t.Fatalf("parseOptionalTime failed: %v", err)
	}
	if got.Before(before) {
		t.Errorf("expected now, got %v", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world this is a long string", 10, "hello w..."},
		{"", 10, ""},
		{"hello", 3, "..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		input  string
		length int
		want   string
	}{
		{"hi", 5, "hi   "},
		{"hello", 5, "hello"},
		{"hello world", 5, "hello world"},
		{"", 3, "   "},
	}
	for _, tt := range tests {
		if got := padRight(tt.input, tt.length); got != tt.want {
			t.Errorf("padRight(%q, %d) = %q, want %q", tt.input, tt.length, got, tt.want)
		}
	}
}

func TestParseSetSpec(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    setSpec
		wantErr bool
	}{
		{
			name:  "weighted",
			input: "Bench Press=5x100",
			want:  setSpec{Exercise: "Bench Press", Reps: 5, Weight: 100, HasWeight: true},
		},
		{
			name:  "bodyweight",
			input: "Pull Up=10",
			want:  setSpec{Exercise: "Pull Up", Reps: 10},
		},
		{
			name:  "warmup with decimal weight",
			input: "Squat=10x42.5w",
			want:  setSpec{Exercise: "Squat", Reps: 10, Weight: 42.5, HasWeight: true, Warmup: true},
		},
		{
			name:  "upper case separator",
			input: "Row = 8X60",
			want:  setSpec{Exercise: "Row", Reps: 8, Weight: 60, HasWeight: true},
		},
		{name: "missing name", input: "=5x100", wantErr: true},
		{name: "missing reps", input: "Squat=", wantErr: true},
		{name: "no separator", input: "Squat 5x100", wantErr: true},
		{name: "bad weight", input: "Squat=5xheavy", wantErr: true},
		{name: "negative reps", input: "Squat=-5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSetSpec(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseSetSpec(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSetSpec(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parseSetSpec(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRootCmd(t *testing.T) {
	if rootCmd.Use != "fitlog" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "fitlog")
	}
	if rootCmd.PersistentFlags().Lookup("debug") == nil {
		t.Error("Expected --debug persistent flag")
	}

	expected := []string{"settings", "chat", "workout", "metric", "export", "import", "migrate", "mcp"}
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("Expected command %q to be registered", name)
		}
	}
}

func TestWorkoutCmdSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range workoutCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, expected := range []string{"add", "list", "show", "delete", "volume"} {
		if !names[expected] {
			t.Errorf("Expected workout subcommand %q not found", expected)
		}
	}

	limitFlag := workoutListCmd.Flags().Lookup("limit")
	if limitFlag == nil {
		t.Fatal("Expected --limit flag on workout list command")
	}
	if limitFlag.DefValue != "20" {
		t.Errorf("Expected default limit 20, got %s", limitFlag.DefValue)
	}
}

func TestCmdAliases(t *testing.T) {
	tests := []struct {
		aliases []string
		want    string
	}{
		{workoutCmd.Aliases, "w"},
		{metricCmd.Aliases, "m"},
		{chatCmd.Aliases, "c"},
		{settingsCmd.Aliases, "s"},
		{workoutDeleteCmd.Aliases, "rm"},
		{metricListCmd.Aliases, "ls"},
	}
	for _, tt := range tests {
		found := false
		for _, a := range tt.aliases {
			if a == tt.want {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected alias %q in %v", tt.want, tt.aliases)
		}
	}
}

func TestExportCmdValidArgs(t *testing.T) {
	expected := map[string]bool{"json": false, "yaml": false, "markdown": false}
	for _, arg := range exportCmd.ValidArgs {
		expected[arg] = true
	}
	for arg, found := range expected {
		if !found {
			t.Errorf("Expected valid arg %q for exportCmd", arg)
		}
	}
	for _, name := range []string{"output", "passphrase", "since"} {
		if exportCmd.Flags().Lookup(name) == nil {
			t.Errorf("Expected --%s flag on export command", name)
		}
	}
}

// setupTestCLI points config and data dirs at a temp dir and resets flag state.
func setupTestCLI(t *testing.T) {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))
	resetFlags()
	t.Cleanup(closeRepo)
}

// resetFlags clears package flag variables that persist between executions.
func resetFlags() {
	debugFlag = false

	chatPage, chatAll = 0, false

	workoutDate, workoutNotes, workoutUnit = "", "", ""
	workoutDuration = 0
	workoutSets = nil
	workoutMuscles = map[string]string{}
	workoutLimit = 20
	workoutPurge = false
	workoutVolumeAll = false

	metricWeight, metricHeight, metricFat = 0, 0, 0
	metricSource = string(models.SourceManual)
	metricDate, metricUnit, metricHeightUnit = "", "", ""
	metricLimit = 20
	for _, name := range []string{"weight", "height", "fat"} {
		metricAddCmd.Flags().Lookup(name).Changed = false
	}

	exportOutput, exportPassphrase, exportSince = "", "", ""
	importPassphrase = ""

	migrateTo, migrateDryRun = config.BackendSQLite, false
}

// run executes the CLI and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	closeRepo()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out)
	}
	return out
}

// openStore opens the CLI's data dir directly. Close it before the next run.
func openStore(t *testing.T) *storage.Store {
	t.Helper()
	c, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	kv, err := c.OpenKV()
	if err != nil {
		t.Fatalf("OpenKV failed: %v", err)
	}
	return storage.New(kv)
}

func TestSettingsCmds(t *testing.T) {
	setupTestCLI(t)

	mustRun(t, "settings", "set", "weight_unit", "lb")
	out := mustRun(t, "settings", "set", "openai_api_key", "sk-secret")
	if strings.Contains(out, "sk-secret") {
		t.Errorf("set echoed a secret: %q", out)
	}

	out = mustRun(t, "settings", "list")
	if !strings.Contains(out, "weight_unit") || !strings.Contains(out, "lb") {
		t.Errorf("list missing weight_unit: %q", out)
	}
	if strings.Contains(out, "sk-secret") || !strings.Contains(out, "********") {
		t.Errorf("list did not mask secret: %q", out)
	}

	out = mustRun(t, "settings", "get", "weight_unit")
	if strings.TrimSpace(out) != "lb" {
		t.Errorf("get weight_unit = %q, want lb", out)
	}

	_, err := run(t, "settings", "set", "weight_unit", "stone")
	if err == nil || !strings.Contains(err.Error(), "choices") {
		t.Errorf("expected choices in error, got %v", err)
	}

	mustRun(t, "settings", "delete", "weight_unit")
	out = mustRun(t, "settings", "get", "weight_unit")
	if !strings.Contains(out, "not set") {
		t.Errorf("expected not set after delete, got %q", out)
	}
}

func TestDebugFlagLogsToStderr(t *testing.T) {
	setupTestCLI(t)

	out := mustRun(t, "--debug", "settings", "list")
	if !strings.Contains(out, "opened store") {
		t.Errorf("debug output missing store log: %q", out)
	}
}

func TestChatCmds(t *testing.T) {
	setupTestCLI(t)

	mustRun(t, "chat", "add", "user", "how", "heavy", "today?")
	mustRun(t, "chat", "add", "assistant", "try 100kg")

	out := mustRun(t, "chat", "list", "--all")
	if !strings.Contains(out, "how heavy today?") || !strings.Contains(out, "try 100kg") {
		t.Errorf("list missing messages: %q", out)
	}
	if strings.Index(out, "try 100kg") > strings.Index(out, "how heavy today?") {
		t.Errorf("expected newest first: %q", out)
	}

	if _, err := run(t, "chat", "add", "robot", "hello"); err == nil {
		t.Error("expected error for unknown role")
	}

	store := openStore(t)
	msgs, err := store.ListChatsPaginated(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("ListChatsPaginated failed: %v", err)
	}
	store.Close()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	mustRun(t, "chat", "delete", "1")
	out = mustRun(t, "chat", "clear")
	if !strings.Contains(out, "Deleted 1 messages") {
		t.Errorf("clear output = %q", out)
	}
	out = mustRun(t, "chat", "list")
	if !strings.Contains(out, "No chat messages found.") {
		t.Errorf("expected empty list, got %q", out)
	}
}

func TestWorkoutAddAndVolume(t *testing.T) {
	setupTestCLI(t)

	mustRun(t, "metric", "add", "--weight", "80", "--date", "2026-01-01")
	out := mustRun(t, "workout", "add", "Push",
		"--date", "2026-02-01 10:00",
		"--duration", "45",
		"--set", "Bench Press=10x40w",
		"--set", "Bench Press=5x100",
		"--set", "Dips=10",
		"--muscle", "Dips=chest")
	if !strings.Contains(out, "Exercises: 2  Sets: 3") {
		t.Errorf("unexpected add output: %q", out)
	}

	store := openStore(t)
	ctx := context.Background()
	workouts, err := store.ListWorkoutsPaginated(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListWorkoutsPaginated failed: %v", err)
	}
	if len(workouts) != 1 {
		store.Close()
		t.Fatalf("expected 1 workout, got %d", len(workouts))
	}
	w, err := store.GetWorkoutWithDetails(ctx, workouts[0].ID)
	if err != nil {
		store.Close()
		t.Fatalf("GetWorkoutWithDetails failed: %v", err)
	}
	dips, err := store.FindExerciseByName(ctx, "dips")
	store.Close()
	if err != nil || dips == nil {
		t.Fatalf("FindExerciseByName failed: %v", err)
	}

	if w.Duration != 45*time.Minute {
		t.Errorf("duration = %v, want 45m", w.Duration)
	}
	if len(w.Exercises) != 2 || w.Exercises[0].Name != "Bench Press" {
		t.Fatalf("unexpected exercises: %+v", w.Exercises)
	}
	if !w.Exercises[0].Sets[0].IsWarmup || w.Exercises[0].Sets[1].IsWarmup {
		t.Error("warm-up flag not stored on the first set only")
	}
	if dips.Type != models.ExerciseBodyweight || dips.MuscleGroup != "chest" {
		t.Errorf("dips = %+v, want bodyweight chest", dips)
	}

	// 5x100 plus 10 reps at the 80 kg body weight; the warm-up is excluded.
	out = mustRun(t, "workout", "volume", w.ID.String())
	if !strings.Contains(out, "1300.0 kg") {
		t.Errorf("volume output = %q, want 1300.0 kg", out)
	}

	out = mustRun(t, "workout", "show", strings.ToLower(w.ID.String()))
	for _, want := range []string{"Push", "Bench Press", "warm-up", "bodyweight", "45 min"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q: %q", want, out)
		}
	}

	out = mustRun(t, "workout", "volume", "--all")
	for _, want := range []string{"Total: 1300.0 kg over 1 workouts", "chest", "800.0 kg", "(none)", "500.0 kg"} {
		if !strings.Contains(out, want) {
			t.Errorf("volume --all output missing %q: %q", want, out)
		}
	}
	if strings.Index(out, "chest") > strings.Index(out, "(none)") {
		t.Errorf("muscle groups not ordered by volume: %q", out)
	}
	if _, err := run(t, "workout", "volume", "--all", w.ID.String()); err == nil {
		t.Error("expected error for --all with an ID")
	}
}

func TestWorkoutAddPounds(t *testing.T) {
	setupTestCLI(t)

	mustRun(t, "settings", "set", "weight_unit", "lb")
	mustRun(t, "workout", "add", "Legs", "--set", "Squat=5x220.46226218")

	store := openStore(t)
	ctx := context.Background()
	workouts, err := store.ListWorkoutsPaginated(ctx, 0, 1)
	if err != nil || len(workouts) != 1 {
		store.Close()
		t.Fatalf("ListWorkoutsPaginated = %v, %v", workouts, err)
	}
	w, err := store.GetWorkoutWithDetails(ctx, workouts[0].ID)
	store.Close()
	if err != nil {
		t.Fatalf("GetWorkoutWithDetails failed: %v", err)
	}
	if got := w.Exercises[0].Sets[0].Weight; math.Abs(got-100) > 0.001 {
		t.Errorf("stored weight = %v kg, want 100", got)
	}

	out := mustRun(t, "workout", "volume", w.ID.String())
	if !strings.Contains(out, "1102.3 lb") {
		t.Errorf("volume output = %q, want 1102.3 lb", out)
	}
}

func TestWorkoutAddInvalidSet(t *testing.T) {
	setupTestCLI(t)

	if _, err := run(t, "workout", "add", "Push", "--set", "Bench Press"); err == nil {
		t.Error("expected error for malformed set")
	}
	if _, err := run(t, "workout", "add", "Push", "--unit", "stone"); err == nil {
		t.Error("expected error for unknown unit")
	}
}

func TestWorkoutListAndDelete(t *testing.T) {
	setupTestCLI(t)

	mustRun(t, "workout", "add", "Morning Run", "--date", "2026-01-01 07:00")
	mustRun(t, "workout", "add", "Evening Lift", "--date", "2026-01-02 19:00", "--set", "Row=8x60")

	out := mustRun(t, "workout", "list")
	if strings.Index(out, "Evening Lift") > strings.Index(out, "Morning Run") {
		t.Errorf("expected newest first: %q", out)
	}

	store := openStore(t)
	workouts, err := store.ListWorkoutsPaginated(context.Background(), 0, 10)
	store.Close()
	if err != nil || len(workouts) != 2 {
		t.Fatalf("ListWorkoutsPaginated = %d, %v", len(workouts), err)
	}
	lift, run1 := workouts[0], workouts[1]

	mustRun(t, "workout", "delete", lift.ID.String())
	out = mustRun(t, "workout", "list")
	if strings.Contains(out, "Evening Lift") {
		t.Errorf("deleted workout still listed: %q", out)
	}

	store = openStore(t)
	got, err := store.GetWorkoutByID(context.Background(), lift.ID)
	store.Close()
	if err != nil || got == nil || !got.IsDeleted() {
		t.Errorf("expected soft-deleted workout to stay readable, got %+v, %v", got, err)
	}

	mustRun(t, "workout", "delete", "--purge", run1.ID.String())
	store = openStore(t)
	got, err = store.GetWorkoutByID(context.Background(), run1.ID)
	store.Close()
	if err != nil || got != nil {
		t.Errorf("expected purged workout to be gone, got %+v, %v", got, err)
	}

	if _, err := run(t, "workout", "show", "nonexistent"); err == nil {
		t.Error("expected error for unknown workout")
	}
}

func TestMetricCmds(t *testing.T) {
	setupTestCLI(t)

	if _, err := run(t, "metric", "add"); err == nil {
		t.Error("expected error without any measurement")
	}
	resetFlags()
	if _, err := run(t, "metric", "add", "--weight", "80", "--source", "fitbit"); err == nil {
		t.Error("expected error for unknown source")
	}
	resetFlags()

	mustRun(t, "metric", "add", "--weight", "176", "--unit", "lb", "--date", "2026-03-01")
	resetFlags()
	mustRun(t, "metric", "add", "--height", "6", "--height-unit", "ft", "--fat", "18.5", "--date", "2026-03-05")
	resetFlags()

	out := mustRun(t, "metric", "list")
	if !strings.Contains(out, "79.8 kg") || !strings.Contains(out, "1.83 m") || !strings.Contains(out, "18.5%") {
		t.Errorf("unexpected list output: %q", out)
	}

	out = mustRun(t, "metric", "closest", "--date", "2026-03-03")
	if !strings.Contains(out, "2026-03-01") || !strings.Contains(out, "79.8 kg") {
		t.Errorf("unexpected closest output: %q", out)
	}

	store := openStore(t)
	metrics, err := store.ListUserMetricsPaginated(context.Background(), 0, 10)
	store.Close()
	if err != nil || len(metrics) != 2 {
		t.Fatalf("ListUserMetricsPaginated = %d, %v", len(metrics), err)
	}
	mustRun(t, "metric", "delete", metrics[0].ID.String())

	out = mustRun(t, "metric", "list")
	if strings.Contains(out, "1.83 m") {
		t.Errorf("deleted metric still listed: %q", out)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	setupTestCLI(t)
	backup := filepath.Join(t.TempDir(), "backup.enc")

	mustRun(t, "chat", "add", "user", "remember me")
	mustRun(t, "workout", "add", "Push", "--date", "2026-02-01", "--set", "Bench Press=5x100")
	mustRun(t, "export", "json", "-o", backup, "--passphrase", "hunter2")
	mustRun(t, "chat", "clear")

	if _, err := run(t, "import", backup); err == nil {
		t.Error("expected error importing a sealed backup without passphrase")
	}
	mustRun(t, "import", backup, "--passphrase", "hunter2")

	out := mustRun(t, "chat", "list")
	if !strings.Contains(out, "remember me") {
		t.Errorf("chat not restored: %q", out)
	}

	resetFlags()
	out = mustRun(t, "export", "markdown", "--since", "2026-01-01")
	if !strings.Contains(out, "## Workouts") || !strings.Contains(out, "Bench Press") {
		t.Errorf("unexpected markdown export: %q", out)
	}

	resetFlags()
	out = mustRun(t, "export", "yaml")
	if !strings.Contains(out, "remember me") {
		t.Errorf("unexpected yaml export: %q", out)
	}

	if _, err := run(t, "export", "csv"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestMigrateCmd(t *testing.T) {
	setupTestCLI(t)

	mustRun(t, "chat", "add", "user", "carry me over")
	mustRun(t, "metric", "add", "--weight", "80")

	out := mustRun(t, "migrate", "--to", "sqlite", "--dry-run")
	if !strings.Contains(out, "Chats:        1") {
		t.Errorf("unexpected dry run output: %q", out)
	}
	c, err := config.Load()
	if err != nil || c.GetBackend() != config.BackendBadger {
		t.Fatalf("dry run changed backend: %v, %v", c, err)
	}

	resetFlags()
	out = mustRun(t, "migrate", "--to", "sqlite")
	if !strings.Contains(out, "User metrics: 1") {
		t.Errorf("unexpected migrate output: %q", out)
	}
	c, err = config.Load()
	if err != nil || c.GetBackend() != config.BackendSQLite {
		t.Fatalf("backend not switched: %v, %v", c, err)
	}

	out = mustRun(t, "chat", "list")
	if !strings.Contains(out, "carry me over") {
		t.Errorf("chat not migrated: %q", out)
	}

	if _, err := run(t, "migrate", "--to", "sqlite"); err == nil {
		t.Error("expected error migrating to the current backend")
	}
	if _, err := run(t, "migrate", "--to", "postgres"); err == nil {
		t.Error("expected error for unknown backend")
	}
}
