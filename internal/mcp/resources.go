// ABOUTME: MCP resource implementations for fitlog.
// ABOUTME: Provides fitlog://workouts/recent and fitlog://settings resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/fitlog/internal/analytics"
	"github.com/harperreed/fitlog/internal/models"
	"github.com/harperreed/fitlog/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	recentWorkoutsURI = "fitlog://workouts/recent"
	settingsURI       = "fitlog://settings"
	recentLimit       = 10
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         recentWorkoutsURI,
		Name:        "Recent Workouts",
		Description: "Workouts from the last 30 days with exercises, sets and volume",
		MIMEType:    "application/json",
	}, s.handleRecentWorkoutsResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         settingsURI,
		Name:        "Settings",
		Description: "Current settings with secrets masked, plus resolved display units",
		MIMEType:    "application/json",
	}, s.handleSettingsResource)
}

type recentWorkout struct {
	*models.WorkoutRecord
	VolumeKg float64 `json:"volume_kg"`
	Volume   string  `json:"volume"`
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// Resource handlers

func (s *Server) handleRecentWorkoutsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	headers, err := s.repo.ListWorkoutsPaginated(ctx, 0, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list workouts: %w", err)
	}
	prefs, err := s.settings.Preferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	workouts := []recentWorkout{}
	for _, h := range headers {
		w, err := s.repo.GetRecentWorkoutByID(ctx, h.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get workout: %w", err)
		}
		if w == nil {
			continue
		}
		bodyWeight, err := s.repo.GetClosestBodyWeight(ctx, w.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to look up body weight: %w", err)
		}
		volume := analytics.WorkoutVolume(w, bodyWeight)
		workouts = append(workouts, recentWorkout{
			WorkoutRecord: w,
			VolumeKg:      analytics.Round(volume, 2),
			Volume:        analytics.FormatMass(volume, prefs.Mass),
		})
	}

	return jsonResource(recentWorkoutsURI, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"window_days":  int(storage.RecentWorkoutWindow.Hours() / 24),
		"workouts":     workouts,
	})
}

func (s *Server) handleSettingsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	values, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	out := make(map[string]string, len(values))
	for t, v := range values {
		if models.IsSensitiveSetting(t) {
			v = maskedSecret
		}
		out[string(t)] = v
	}
	prefs := analytics.PreferencesFrom(values)

	return jsonResource(settingsURI, map[string]interface{}{
		"settings": out,
		"units": map[string]string{
			"mass":   string(prefs.Mass),
			"length": string(prefs.Length),
			"macro":  string(prefs.Macro),
		},
	})
}
