// ABOUTME: Exercise catalog CRUD for key/value storage.
// ABOUTME: Catalog rows are plain; listing sorts by creation time in memory.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/fitlog/internal/events"
	"github.com/harperreed/fitlog/internal/kv"
	"github.com/harperreed/fitlog/internal/models"
)

func validateExercise(e *models.Exercise) error {
	if e == nil {
		return invalid("exercise", "must not be nil")
	}
	if e.ID == uuid.Nil {
		return invalid("exercise.id", "must be set")
	}
	if strings.TrimSpace(e.Name) == "" {
		return invalid("exercise.name", "must not be empty")
	}
	if !models.IsValidExerciseType(string(e.Type)) {
		return invalid("exercise.type", "unknown type %q", e.Type)
	}
	return nil
}

// AddExercise stores a new catalog entry.
func (s *Store) AddExercise(ctx context.Context, e *models.Exercise) error {
	if e != nil && e.Type == "" {
		e.Type = models.ExerciseWeighted
	}
	if err := validateExercise(e); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.timestamp()
	}

	err := s.kv.Update(ctx, func(txn kv.Txn) error {
		existing, err := getRow[models.Exercise](txn, exerciseKey(e.ID.String()))
		if err != nil {
			return err
		}
		if existing != nil {
			return invalid("exercise.id", "%s already exists", e.ID)
		}
		return putRow(txn, exerciseKey(e.ID.String()), e)
	})
	if err != nil {
		return fmt.Errorf("add exercise: %w", err)
	}

	s.publish(events.KindInsert, events.TableExercises)
	return nil
}

// GetExerciseByID returns the catalog entry, including soft-deleted ones, or nil.
func (s *Store) GetExerciseByID(ctx context.Context, id uuid.UUID) (*models.Exercise, error) {
	var e *models.Exercise
	err := s.kv.View(ctx, func(txn kv.Txn) error {
		var err error
		e, err = getRow[models.Exercise](txn, exerciseKey(id.String()))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get exercise: %w", err)
	}
	return e, nil
}

// UpdateExercise replaces the name, muscle group and type of an existing entry.
func (s *Store) UpdateExercise(ctx context.Context, e *models.Exercise) error {
	if err := validateExercise(e); err != nil {
		return err
	}

	err := s.kv.Update(ctx, func(txn kv.Txn) error {
		existing, err := getRow[models.Exercise](txn, exerciseKey(e.ID.String()))
		if err != nil {
			return err
		}
		if existing == nil {
			return &NotFoundError{Entity: "exercise", ID: e.ID.String()}
		}
		existing.Name = e.Name
		existing.MuscleGroup = e.MuscleGroup
		existing.Type = e.Type
		return putRow(txn, exerciseKey(e.ID.String()), existing)
	})
	if err != nil {
		return fmt.Errorf("update exercise: %w", err)
	}

	s.publish(events.KindUpdate, events.TableExercises)
	return nil
}

// SoftDeleteExercise stamps DeletedAt on a catalog entry. Workouts keep
// their snapshot of it.
func (s *Store) SoftDeleteExercise(ctx context.Context, id uuid.UUID) error {
	err := s.kv.Update(ctx, func(txn kv.Txn) error {
		existing, err := getRow[models.Exercise](txn, exerciseKey(id.String()))
		if err != nil {
			return err
		}
		if existing == nil || existing.DeletedAt != nil {
			return &NotFoundError{Entity: "exercise", ID: id.String()}
		}
		now := s.timestamp()
		existing.DeletedAt = &now
		return putRow(txn, exerciseKey(id.String()), existing)
	})
	if err != nil {
		return fmt.Errorf("delete exercise: %w", err)
	}

	s.publish(events.KindDelete, events.TableExercises)
	return nil
}

// ListExercisesPaginated returns live catalog entries, newest first.
func (s *Store) ListExercisesPaginated(ctx context.Context, offset, limit int) ([]*models.Exercise, error) {
	var exercises []*models.Exercise
	err := s.kv.View(ctx, func(txn kv.Txn) error {
		return scanRows(txn, []byte(ExercisePrefix), false, func(e *models.Exercise) bool {
			if e.DeletedAt == nil {
				exercises = append(exercises, e)
			}
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}

	sort.SliceStable(exercises, func(i, j int) bool {
		if !exercises[i].CreatedAt.Equal(exercises[j].CreatedAt) {
			return exercises[i].CreatedAt.After(exercises[j].CreatedAt)
		}
		return exercises[i].ID.String() > exercises[j].ID.String()
	})
	return window(exercises, offset, limit), nil
}

func findExercise(txn kv.Txn, name string) (*models.Exercise, error) {
	var found *models.Exercise
	err := scanRows(txn, []byte(ExercisePrefix), false, func(e *models.Exercise) bool {
		if e.DeletedAt == nil && strings.EqualFold(e.Name, name) {
			found = e
			return false
		}
		return true
	})
	return found, err
}

// FindExerciseByName returns the live catalog entry with a case-insensitive
// name match, or nil.
func (s *Store) FindExerciseByName(ctx context.Context, name string) (*models.Exercise, error) {
	var e *models.Exercise
	err := s.kv.View(ctx, func(txn kv.Txn) error {
		var err error
		e, err = findExercise(txn, strings.TrimSpace(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find exercise: %w", err)
	}
	return e, nil
}

// EnsureExercise returns the live catalog entry named name, creating it with
// muscleGroup and exerciseType when none exists.
func (s *Store) EnsureExercise(ctx context.Context, name, muscleGroup string, exerciseType models.ExerciseType) (*models.Exercise, error) {
	name = strings.TrimSpace(name)
	if exerciseType == "" {
		exerciseType = models.ExerciseWeighted
	}
	candidate := models.NewExercise(name, muscleGroup, exerciseType)
	candidate.CreatedAt = s.timestamp()
	if err := validateExercise(candidate); err != nil {
		return nil, err
	}

	var result *models.Exercise
	var created bool
	err := s.kv.Update(ctx, func(txn kv.Txn) error {
		existing, err := findExercise(txn, name)
		if err != nil {
			return err
		}
		if existing != nil {
			result, created = existing, false
			return nil
		}
		result, created = candidate, true
		return putRow(txn, exerciseKey(candidate.ID.String()), candidate)
	})
	if err != nil {
		return nil, fmt.Errorf("ensure exercise: %w", err)
	}

	if created {
		s.publish(events.KindInsert, events.TableExercises)
	}
	return result, nil
}
