// ABOUTME: Human-readable YAML and Markdown exports of fitlog data.
// ABOUTME: Secret settings are masked; soft-deleted rows are left out.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/fitlog/internal/models"
	"gopkg.in/yaml.v3"
)

const maskedValue = "********"

type yamlSet struct {
	Reps         int     `yaml:"reps"`
	Weight       float64 `yaml:"weight_kg"`
	TargetReps   int     `yaml:"target_reps,omitempty"`
	TargetWeight float64 `yaml:"target_weight_kg,omitempty"`
	RestSeconds  int     `yaml:"rest_seconds,omitempty"`
	DropSet      bool    `yaml:"drop_set,omitempty"`
	Warmup       bool    `yaml:"warmup,omitempty"`
}

type yamlExercise struct {
	Name        string    `yaml:"name"`
	MuscleGroup string    `yaml:"muscle_group,omitempty"`
	Type        string    `yaml:"type"`
	Sets        []yamlSet `yaml:"sets"`
}

type yamlWorkout struct {
	ID              string         `yaml:"id"`
	Title           string         `yaml:"title"`
	Date            string         `yaml:"date"`
	DurationMinutes int            `yaml:"duration_minutes,omitempty"`
	Description     string         `yaml:"description,omitempty"`
	Exercises       []yamlExercise `yaml:"exercises,omitempty"`
}

type yamlMetric struct {
	Date          string   `yaml:"date"`
	WeightKg      *float64 `yaml:"weight_kg,omitempty"`
	HeightM       *float64 `yaml:"height_m,omitempty"`
	FatPercentage *float64 `yaml:"fat_percentage,omitempty"`
}

type yamlChat struct {
	ID      int64  `yaml:"id"`
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
	At      string `yaml:"at"`
}

// ExportYAML exports live data as YAML with metrics grouped by source.
func (s *Store) ExportYAML(ctx context.Context) ([]byte, error) {
	data, err := s.DumpAllTables(ctx)
	if err != nil {
		return nil, err
	}

	yamlData := struct {
		Version     int                     `yaml:"version"`
		ExportedAt  string                  `yaml:"exported_at"`
		Tool        string                  `yaml:"tool"`
		Settings    map[string]string       `yaml:"settings"`
		Exercises   []string                `yaml:"exercises,omitempty"`
		Workouts    []yamlWorkout           `yaml:"workouts"`
		UserMetrics map[string][]yamlMetric `yaml:"user_metrics"`
		Chats       []yamlChat              `yaml:"chats,omitempty"`
	}{
		Version:     data.Version,
		ExportedAt:  data.ExportedAt.Format(time.RFC3339),
		Tool:        data.Tool,
		Settings:    make(map[string]string),
		Workouts:    make([]yamlWorkout, 0, len(data.Workouts)),
		UserMetrics: make(map[string][]yamlMetric),
	}

	for _, setting := range data.Settings {
		if setting.IsDeleted() {
			continue
		}
		value := setting.Value
		if models.IsSensitiveSetting(setting.Type) {
			value = maskedValue
		}
		yamlData.Settings[string(setting.Type)] = value
	}

	for _, e := range data.Exercises {
		if e.DeletedAt == nil {
			yamlData.Exercises = append(yamlData.Exercises, fmt.Sprintf("%s (%s, %s)", e.Name, e.MuscleGroup, e.Type))
		}
	}
	sort.Strings(yamlData.Exercises)

	for _, w := range data.Workouts {
		if w.IsDeleted() {
			continue
		}
		yw := yamlWorkout{
			ID:              w.ID.String(),
			Title:           w.Title,
			Date:            w.Date.Format(time.RFC3339),
			DurationMinutes: int(w.Duration.Minutes()),
			Description:     w.Description,
		}
		for _, e := range w.Exercises {
			ye := yamlExercise{Name: e.Name, MuscleGroup: e.MuscleGroup, Type: string(e.Type)}
			for _, set := range e.Sets {
				ye.Sets = append(ye.Sets, yamlSet{
					Reps:         set.Reps,
					Weight:       set.Weight,
					TargetReps:   set.TargetReps,
					TargetWeight: set.TargetWeight,
					RestSeconds:  int(set.RestTime.Seconds()),
					DropSet:      set.IsDropSet,
					Warmup:       set.IsWarmup,
				})
			}
			yw.Exercises = append(yw.Exercises, ye)
		}
		yamlData.Workouts = append(yamlData.Workouts, yw)
	}

	// Group metrics by source
	for _, m := range data.UserMetrics {
		if m.DeletedAt != nil {
			continue
		}
		src := string(m.Source)
		yamlData.UserMetrics[src] = append(yamlData.UserMetrics[src], yamlMetric{
			Date:          m.Date.Format(time.RFC3339),
			WeightKg:      m.Weight,
			HeightM:       m.Height,
			FatPercentage: m.FatPercentage,
		})
	}
	for src := range yamlData.UserMetrics {
		metrics := yamlData.UserMetrics[src]
		sort.Slice(metrics, func(i, j int) bool { return metrics[i].Date > metrics[j].Date })
	}

	for _, msg := range data.Chats {
		yamlData.Chats = append(yamlData.Chats, yamlChat{
			ID:      msg.ID,
			Role:    string(msg.Role),
			Content: msg.Content,
			At:      msg.CreatedAt.Format(time.RFC3339),
		})
	}

	return yaml.Marshal(yamlData)
}

// ExportMarkdown exports workouts and body metrics as Markdown tables.
// A non-nil since drops rows dated before it.
func (s *Store) ExportMarkdown(ctx context.Context, since *time.Time) (string, error) {
	data, err := s.DumpAllTables(ctx)
	if err != nil {
		return "", err
	}
	keep := func(t time.Time) bool {
		return since == nil || !t.Before(*since)
	}

	var sb strings.Builder
	now := s.timestamp()

	sb.WriteString(fmt.Sprintf("# Fitlog Export - %s\n\n", now.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC3339)))

	var workouts []*models.WorkoutRecord
	for _, w := range data.Workouts {
		if !w.IsDeleted() && keep(w.Date) {
			workouts = append(workouts, w)
		}
	}
	sort.Slice(workouts, func(i, j int) bool { return workouts[i].Date.After(workouts[j].Date) })

	if len(workouts) > 0 {
		sb.WriteString("## Workouts\n\n")
		sb.WriteString("| Date | Title | Duration | Exercises | Sets |\n")
		sb.WriteString("|------|-------|----------|-----------|------|\n")
		for _, w := range workouts {
			duration := ""
			if w.Duration > 0 {
				duration = fmt.Sprintf("%d min", int(w.Duration.Minutes()))
			}
			names := make([]string, 0, len(w.Exercises))
			for _, e := range w.Exercises {
				names = append(names, e.Name)
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d |\n",
				w.Date.Format("2006-01-02 15:04"),
				w.Title, duration, strings.Join(names, ", "), w.SetCount()))
		}
		sb.WriteString("\n")
	}

	var metrics []*models.UserMetric
	for _, m := range data.UserMetrics {
		if m.DeletedAt == nil && keep(m.Date) {
			metrics = append(metrics, m)
		}
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Date.After(metrics[j].Date) })

	if len(metrics) > 0 {
		sb.WriteString("## Body Metrics\n\n")
		sb.WriteString("| Date | Weight (kg) | Height (m) | Body Fat (%) | Source |\n")
		sb.WriteString("|------|-------------|------------|--------------|--------|\n")
		for _, m := range metrics {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				m.Date.Format("2006-01-02"),
				formatOptional(m.Weight), formatOptional(m.Height), formatOptional(m.FatPercentage),
				m.Source))
		}
	}

	return sb.String(), nil
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}
