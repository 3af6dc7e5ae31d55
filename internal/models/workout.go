// ABOUTME: Exercise catalog, WorkoutRecord, and SetRecord models for strength tracking.
// ABOUTME: A workout owns its exercises and their sets; deleting it cascades.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ExerciseType determines how an exercise contributes to training volume.
type ExerciseType string

const (
	ExerciseWeighted   ExerciseType = "weighted"
	ExerciseBodyweight ExerciseType = "bodyweight"
	ExerciseCardio     ExerciseType = "cardio"
	ExerciseDuration   ExerciseType = "duration"
)

// IsValidExerciseType checks if a string is a known exercise type.
func IsValidExerciseType(s string) bool {
	switch ExerciseType(s) {
	case ExerciseWeighted, ExerciseBodyweight, ExerciseCardio, ExerciseDuration:
		return true
	}
	return false
}

// Exercise is a catalog entry that workouts reference.
type Exercise struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	MuscleGroup string       `json:"muscle_group"`
	Type        ExerciseType `json:"type"`
	CreatedAt   time.Time    `json:"created_at"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty"`
}

// NewExercise creates a catalog entry with a generated UUID.
func NewExercise(name, muscleGroup string, exerciseType ExerciseType) *Exercise {
	return &Exercise{
		ID:          uuid.New(),
		Name:        name,
		MuscleGroup: muscleGroup,
		Type:        exerciseType,
		CreatedAt:   time.Now(),
	}
}

// WorkoutRecord is a training session with its full exercise/set tree.
type WorkoutRecord struct {
	ID          ulid.ULID          `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Date        time.Time          `json:"date"`
	Duration    time.Duration      `json:"duration"`
	CreatedAt   time.Time          `json:"created_at"`
	DeletedAt   *time.Time         `json:"deleted_at,omitempty"`
	Exercises   []ExerciseWithSets `json:"exercises,omitempty"` // Populated when fetching full workout
}

// NewWorkout creates a WorkoutRecord dated now with a creation-ordered ID.
func NewWorkout(title string) *WorkoutRecord {
	now := time.Now()
	return &WorkoutRecord{
		ID:        ulid.Make(),
		Title:     title,
		Date:      now,
		CreatedAt: now,
	}
}

// WithDate sets the workout date.
func (w *WorkoutRecord) WithDate(t time.Time) *WorkoutRecord {
	w.Date = t
	return w
}

// WithDuration sets the workout duration.
func (w *WorkoutRecord) WithDuration(d time.Duration) *WorkoutRecord {
	w.Duration = d
	return w
}

// WithDescription sets the workout description.
func (w *WorkoutRecord) WithDescription(desc string) *WorkoutRecord {
	w.Description = desc
	return w
}

// AddExercise appends an exercise snapshot and returns it for adding sets.
func (w *WorkoutRecord) AddExercise(e *Exercise) *ExerciseWithSets {
	w.Exercises = append(w.Exercises, ExerciseWithSets{
		ExerciseID:  e.ID,
		Name:        e.Name,
		MuscleGroup: e.MuscleGroup,
		Type:        e.Type,
	})
	return &w.Exercises[len(w.Exercises)-1]
}

// IsDeleted reports whether the workout has been soft-deleted.
func (w *WorkoutRecord) IsDeleted() bool {
	return w.DeletedAt != nil
}

// SetCount returns the number of sets across all exercises.
func (w *WorkoutRecord) SetCount() int {
	n := 0
	for _, e := range w.Exercises {
		n += len(e.Sets)
	}
	return n
}

// ExerciseWithSets is an exercise as performed in one workout.
type ExerciseWithSets struct {
	ExerciseID  uuid.UUID    `json:"exercise_id"`
	Name        string       `json:"name"`
	MuscleGroup string       `json:"muscle_group"`
	Type        ExerciseType `json:"type"`
	Sets        []SetRecord  `json:"sets"`
}

// AddSet appends a set stamped with the current time.
func (e *ExerciseWithSets) AddSet(reps int, weightKg float64) *ExerciseWithSets {
	e.Sets = append(e.Sets, SetRecord{Reps: reps, Weight: weightKg, CreatedAt: time.Now()})
	return e
}

// SetRecord is one set. Weights are kilograms.
type SetRecord struct {
	Reps         int           `json:"reps"`
	Weight       float64       `json:"weight"`
	TargetReps   int           `json:"target_reps,omitempty"`
	TargetWeight float64       `json:"target_weight,omitempty"`
	RestTime     time.Duration `json:"rest_time,omitempty"`
	IsDropSet    bool          `json:"is_drop_set,omitempty"`
	IsWarmup     bool          `json:"is_warmup,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
