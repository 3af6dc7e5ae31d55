// ABOUTME: MCP tool implementations for fitlog.
// ABOUTME: Settings, chat history, workouts with volume, and body metrics.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/fitlog/internal/analytics"
	"github.com/harperreed/fitlog/internal/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// maskedSecret replaces sensitive setting values in tool output.
const maskedSecret = "********"

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_setting",
		Description: "Get a setting value by type (unit_system, weight_unit, rest_timer_seconds, etc.)",
	}, s.handleGetSetting)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_setting",
		Description: "Create or update a setting",
	}, s.handleSetSetting)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_chat",
		Description: "Append a message to the chat history",
	}, s.handleAddChat)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_chats",
		Description: "List chat messages newest first, one page at a time",
	}, s.handleListChats)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_chat",
		Description: "Delete a chat message by ID",
	}, s.handleDeleteChat)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_workout",
		Description: "Record a workout with its exercises and sets",
	}, s.handleAddWorkout)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_workout",
		Description: "Get a workout with all its exercises and sets",
	}, s.handleGetWorkout)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_workouts",
		Description: "List recent workouts newest first",
	}, s.handleListWorkouts)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "workout_volume",
		Description: "Compute training volume for a workout, using body weight for bodyweight exercises",
	}, s.handleWorkoutVolume)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_user_metric",
		Description: "Record body weight, height or body fat for a day",
	}, s.handleAddUserMetric)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "closest_user_metric",
		Description: "Get the latest body metric on or before a date",
	}, s.handleClosestUserMetric)
}

// Tool input/output types

type getSettingInput struct {
	Type string `json:"type" jsonschema:"setting type"`
}

type settingOutput struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	Set     bool   `json:"set"`
	Message string `json:"message"`
}

type setSettingInput struct {
	Type  string `json:"type" jsonschema:"setting type"`
	Value string `json:"value" jsonschema:"new value"`
}

type addChatInput struct {
	Role    string `json:"role" jsonschema:"user, assistant or system"`
	Content string `json:"content" jsonschema:"message text"`
}

type chatOutput struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

type listChatsInput struct {
	Page     int `json:"page,omitempty" jsonschema:"zero-based page number"`
	PageSize int `json:"page_size,omitempty" jsonschema:"messages per page (default 20)"`
}

type deleteChatInput struct {
	ID int64 `json:"id" jsonschema:"chat message ID"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

type setInput struct {
	Reps   int     `json:"reps" jsonschema:"repetitions"`
	Weight float64 `json:"weight,omitempty" jsonschema:"load in the workout unit; omit for bodyweight"`
	Warmup bool    `json:"warmup,omitempty" jsonschema:"warm-up sets do not count toward volume"`
}

type exerciseInput struct {
	Name        string     `json:"name" jsonschema:"exercise name; matched against the catalog"`
	MuscleGroup string     `json:"muscle_group,omitempty" jsonschema:"muscle group for new catalog entries"`
	Type        string     `json:"type,omitempty" jsonschema:"weighted, bodyweight, cardio or duration"`
	Sets        []setInput `json:"sets"`
}

type addWorkoutInput struct {
	Title           string          `json:"title" jsonschema:"workout title"`
	Date            string          `json:"date,omitempty" jsonschema:"timestamp (ISO 8601), defaults to now"`
	DurationMinutes int             `json:"duration_minutes,omitempty" jsonschema:"duration in minutes"`
	Description     string          `json:"description,omitempty" jsonschema:"workout notes"`
	Unit            string          `json:"unit,omitempty" jsonschema:"kg or lb; defaults to the weight_unit setting"`
	Exercises       []exerciseInput `json:"exercises,omitempty"`
}

type workoutOutput struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Sets    int    `json:"sets"`
	Message string `json:"message"`
}

type getWorkoutInput struct {
	ID string `json:"id" jsonschema:"workout ID or prefix"`
}

type listWorkoutsInput struct {
	Limit  int `json:"limit,omitempty" jsonschema:"max results (default 20)"`
	Offset int `json:"offset,omitempty" jsonschema:"rows to skip"`
}

type volumeOutput struct {
	ID         string   `json:"id"`
	VolumeKg   float64  `json:"volume_kg"`
	Display    string   `json:"display"`
	BodyWeight *float64 `json:"body_weight_kg,omitempty"`
	Message    string   `json:"message"`
}

type addUserMetricInput struct {
	Date          string   `json:"date,omitempty" jsonschema:"timestamp (ISO 8601), defaults to now"`
	Weight        *float64 `json:"weight,omitempty" jsonschema:"body weight in the given unit"`
	Height        *float64 `json:"height,omitempty" jsonschema:"height in meters"`
	FatPercentage *float64 `json:"fat_percentage,omitempty" jsonschema:"body fat percentage"`
	Source        string   `json:"source,omitempty" jsonschema:"manual, healthkit, google_fit or import"`
	Unit          string   `json:"unit,omitempty" jsonschema:"kg or lb; defaults to the weight_unit setting"`
}

type metricOutput struct {
	ID      string `json:"id"`
	Day     string `json:"day"`
	Message string `json:"message"`
}

type closestMetricInput struct {
	Date string `json:"date,omitempty" jsonschema:"timestamp (ISO 8601), defaults to now"`
}

// parseTime accepts RFC3339, "2006-01-02 15:04" and "2006-01-02"; empty means now.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use ISO 8601", s)
}

func (s *Server) massUnit(ctx context.Context, explicit string) (analytics.MassUnit, error) {
	switch analytics.MassUnit(strings.ToLower(explicit)) {
	case analytics.Kilograms:
		return analytics.Kilograms, nil
	case analytics.Pounds:
		return analytics.Pounds, nil
	case "":
		prefs, err := s.settings.Preferences(ctx)
		return prefs.Mass, err
	default:
		return "", fmt.Errorf("unknown unit: %s", explicit)
	}
}

// Tool handlers

func (s *Server) handleGetSetting(ctx context.Context, req *mcp.CallToolRequest, input getSettingInput) (*mcp.CallToolResult, settingOutput, error) {
	t := models.SettingType(input.Type)
	value, ok, err := s.settings.Get(ctx, t)
	if err != nil {
		return nil, settingOutput{}, fmt.Errorf("failed to get setting: %w", err)
	}
	if !ok {
		return nil, settingOutput{Type: input.Type, Message: fmt.Sprintf("%s is not set", input.Type)}, nil
	}
	if models.IsSensitiveSetting(t) {
		value = maskedSecret
	}
	return nil, settingOutput{
		Type:    input.Type,
		Value:   value,
		Set:     true,
		Message: fmt.Sprintf("%s = %s", input.Type, value),
	}, nil
}

func (s *Server) handleSetSetting(ctx context.Context, req *mcp.CallToolRequest, input setSettingInput) (*mcp.CallToolResult, settingOutput, error) {
	setting, err := s.repo.AddOrUpdateSetting(ctx, models.SettingType(input.Type), input.Value)
	if err != nil {
		return nil, settingOutput{}, fmt.Errorf("failed to set setting: %w", err)
	}
	value := setting.Value
	if models.IsSensitiveSetting(setting.Type) {
		value = maskedSecret
	}
	return nil, settingOutput{
		Type:    string(setting.Type),
		Value:   value,
		Set:     true,
		Message: fmt.Sprintf("Set %s = %s", setting.Type, value),
	}, nil
}

func (s *Server) handleAddChat(ctx context.Context, req *mcp.CallToolRequest, input addChatInput) (*mcp.CallToolResult, chatOutput, error) {
	msg := models.NewChatMessage(models.ChatRole(input.Role), input.Content)
	if err := s.repo.AddChat(ctx, msg); err != nil {
		return nil, chatOutput{}, fmt.Errorf("failed to add chat: %w", err)
	}
	return nil, chatOutput{
		ID:      msg.ID,
		Message: fmt.Sprintf("Added %s message (ID: %d)", msg.Role, msg.ID),
	}, nil
}

func (s *Server) handleListChats(ctx context.Context, req *mcp.CallToolRequest, input listChatsInput) (*mcp.CallToolResult, any, error) {
	if input.PageSize <= 0 {
		input.PageSize = 20
	}
	msgs, err := s.repo.GetChatsPaginated(ctx, input.Page, input.PageSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list chats: %w", err)
	}
	if len(msgs) == 0 {
		return nil, map[string]interface{}{"message": "No chat messages found."}, nil
	}
	return nil, msgs, nil
}

func (s *Server) handleDeleteChat(ctx context.Context, req *mcp.CallToolRequest, input deleteChatInput) (*mcp.CallToolResult, simpleOutput, error) {
	if err := s.repo.DeleteChatByID(ctx, input.ID); err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Deleted chat message: %d", input.ID)}, nil
}

func (s *Server) handleAddWorkout(ctx context.Context, req *mcp.CallToolRequest, input addWorkoutInput) (*mcp.CallToolResult, workoutOutput, error) {
	date, err := parseTime(input.Date)
	if err != nil {
		return nil, workoutOutput{}, err
	}
	unit, err := s.massUnit(ctx, input.Unit)
	if err != nil {
		return nil, workoutOutput{}, err
	}

	w := models.NewWorkout(input.Title).WithDate(date)
	if input.DurationMinutes > 0 {
		w.WithDuration(time.Duration(input.DurationMinutes) * time.Minute)
	}
	if input.Description != "" {
		w.WithDescription(input.Description)
	}

	for _, ex := range input.Exercises {
		catalog, err := s.repo.EnsureExercise(ctx, ex.Name, ex.MuscleGroup, models.ExerciseType(ex.Type))
		if err != nil {
			return nil, workoutOutput{}, fmt.Errorf("failed to resolve exercise %q: %w", ex.Name, err)
		}
		performed := w.AddExercise(catalog)
		for _, set := range ex.Sets {
			performed.AddSet(set.Reps, analytics.ToKilograms(set.Weight, unit))
			performed.Sets[len(performed.Sets)-1].IsWarmup = set.Warmup
		}
	}

	if err := s.repo.AddWorkout(ctx, w); err != nil {
		return nil, workoutOutput{}, fmt.Errorf("failed to create workout: %w", err)
	}

	short := w.ID.String()[:8]
	return nil, workoutOutput{
		ID:      w.ID.String(),
		Title:   w.Title,
		Sets:    w.SetCount(),
		Message: fmt.Sprintf("Added %s workout with %d sets (ID: %s)", w.Title, w.SetCount(), short),
	}, nil
}

func (s *Server) handleGetWorkout(ctx context.Context, req *mcp.CallToolRequest, input getWorkoutInput) (*mcp.CallToolResult, any, error) {
	id, err := s.repo.ResolveWorkoutID(ctx, input.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("workout not found: %s", input.ID)
	}
	w, err := s.repo.GetWorkoutWithDetails(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get workout: %w", err)
	}
	if w == nil {
		return nil, nil, fmt.Errorf("workout not found: %s", input.ID)
	}
	return nil, w, nil
}

func (s *Server) handleListWorkouts(ctx context.Context, req *mcp.CallToolRequest, input listWorkoutsInput) (*mcp.CallToolResult, any, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	workouts, err := s.repo.ListWorkoutsPaginated(ctx, input.Offset, input.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list workouts: %w", err)
	}
	if len(workouts) == 0 {
		return nil, map[string]interface{}{"message": "No workouts found."}, nil
	}
	return nil, workouts, nil
}

func (s *Server) handleWorkoutVolume(ctx context.Context, req *mcp.CallToolRequest, input getWorkoutInput) (*mcp.CallToolResult, volumeOutput, error) {
	id, err := s.repo.ResolveWorkoutID(ctx, input.ID)
	if err != nil {
		return nil, volumeOutput{}, fmt.Errorf("workout not found: %s", input.ID)
	}
	w, err := s.repo.GetWorkoutWithDetails(ctx, id)
	if err != nil || w == nil {
		return nil, volumeOutput{}, fmt.Errorf("workout not found: %s", input.ID)
	}
	bodyWeight, err := s.repo.GetClosestBodyWeight(ctx, w.Date)
	if err != nil {
		return nil, volumeOutput{}, fmt.Errorf("failed to look up body weight: %w", err)
	}
	prefs, err := s.settings.Preferences(ctx)
	if err != nil {
		return nil, volumeOutput{}, fmt.Errorf("failed to read settings: %w", err)
	}

	volume := analytics.WorkoutVolume(w, bodyWeight)
	display := analytics.FormatMass(volume, prefs.Mass)
	return nil, volumeOutput{
		ID:         w.ID.String(),
		VolumeKg:   analytics.Round(volume, 2),
		Display:    display,
		BodyWeight: bodyWeight,
		Message:    fmt.Sprintf("%s volume: %s", w.Title, display),
	}, nil
}

func (s *Server) handleAddUserMetric(ctx context.Context, req *mcp.CallToolRequest, input addUserMetricInput) (*mcp.CallToolResult, metricOutput, error) {
	date, err := parseTime(input.Date)
	if err != nil {
		return nil, metricOutput{}, err
	}
	unit, err := s.massUnit(ctx, input.Unit)
	if err != nil {
		return nil, metricOutput{}, err
	}

	m := models.NewUserMetric().WithDate(date)
	if input.Source != "" {
		m.WithSource(models.MetricSource(input.Source))
	}
	if input.Weight != nil {
		m.WithWeight(analytics.ToKilograms(*input.Weight, unit))
	}
	if input.Height != nil {
		m.WithHeight(*input.Height)
	}
	if input.FatPercentage != nil {
		m.WithFatPercentage(*input.FatPercentage)
	}

	if err := s.repo.AddUserMetric(ctx, m); err != nil {
		return nil, metricOutput{}, fmt.Errorf("failed to add metric: %w", err)
	}
	return nil, metricOutput{
		ID:      m.ID.String(),
		Day:     m.Day(),
		Message: fmt.Sprintf("Recorded %s metric for %s (ID: %s)", m.Source, m.Day(), m.ID.String()[:8]),
	}, nil
}

func (s *Server) handleClosestUserMetric(ctx context.Context, req *mcp.CallToolRequest, input closestMetricInput) (*mcp.CallToolResult, any, error) {
	date, err := parseTime(input.Date)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.repo.GetClosestUserMetric(ctx, date)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get metric: %w", err)
	}
	if m == nil {
		return nil, map[string]interface{}{"message": "No metrics recorded on or before that date."}, nil
	}
	return nil, m, nil
}
