// ABOUTME: Tests for YAML and Markdown export.
// ABOUTME: Secrets must be masked and soft-deleted rows omitted.
package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestExportYAML(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedStore(t, s)

	out, err := s.ExportYAML(ctx)
	if err != nil {
		t.Fatalf("ExportYAML failed: %v", err)
	}

	var parsed struct {
		Version     int                       `yaml:"version"`
		Tool        string                    `yaml:"tool"`
		Settings    map[string]string         `yaml:"settings"`
		Workouts    []map[string]any          `yaml:"workouts"`
		UserMetrics map[string][]map[string]any `yaml:"user_metrics"`
	}
	if err := yaml.Unmarshal(out, &parsed); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}

	if parsed.Tool != "fitlog" || parsed.Version != DumpVersion {
		t.Errorf("header = %s v%d", parsed.Tool, parsed.Version)
	}
	if parsed.Settings["weight_unit"] != "lb" {
		t.Errorf("weight_unit = %q, want lb", parsed.Settings["weight_unit"])
	}
	if parsed.Settings["oauth_refresh_token"] != maskedValue {
		t.Errorf("secret not masked: %q", parsed.Settings["oauth_refresh_token"])
	}
	if strings.Contains(string(out), "refresh-123") {
		t.Error("secret value leaked into YAML")
	}
	if len(parsed.Workouts) != 1 {
		t.Errorf("workouts = %d, want 1", len(parsed.Workouts))
	}
	if len(parsed.UserMetrics["manual"]) != 1 {
		t.Errorf("manual metrics = %d, want 1", len(parsed.UserMetrics["manual"]))
	}
}

func TestExportMarkdown(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	w := seedStore(t, s)

	md, err := s.ExportMarkdown(ctx, nil)
	if err != nil {
		t.Fatalf("ExportMarkdown failed: %v", err)
	}
	for _, want := range []string{"# Fitlog Export", "## Workouts", "| Push |", "Bench Press, Dips", "## Body Metrics", "80.00"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}

	future := w.Date.Add(24 * time.Hour)
	md, err = s.ExportMarkdown(ctx, &future)
	if err != nil {
		t.Fatalf("ExportMarkdown failed: %v", err)
	}
	if strings.Contains(md, "## Workouts") || strings.Contains(md, "## Body Metrics") {
		t.Errorf("since filter ignored:\n%s", md)
	}
}
