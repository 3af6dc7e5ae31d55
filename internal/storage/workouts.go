// ABOUTME: Workout CRUD with the exercise/set subtree stored as ordered child rows.
// ABOUTME: Tree writes are one transaction; a bad set rolls back the whole workout.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/fitlog/internal/events"
	"github.com/harperreed/fitlog/internal/kv"
	"github.com/harperreed/fitlog/internal/models"
	"github.com/oklog/ulid/v2"
)

var workoutTables = []string{events.TableWorkouts, events.TableWorkoutExercises, events.TableSets}

// workoutRow is the header; Exercises are stored as child rows.
type workoutRow struct {
	ID          ulid.ULID     `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Date        time.Time     `json:"date"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"created_at"`
	DeletedAt   *time.Time    `json:"deleted_at,omitempty"`
}

func (r *workoutRow) record() *models.WorkoutRecord {
	return &models.WorkoutRecord{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Date:        r.Date,
		Duration:    r.Duration,
		CreatedAt:   r.CreatedAt,
		DeletedAt:   r.DeletedAt,
	}
}

type workoutExerciseRow struct {
	WorkoutID   ulid.ULID           `json:"workout_id"`
	Position    int                 `json:"position"`
	ExerciseID  uuid.UUID           `json:"exercise_id"`
	Name        string              `json:"name"`
	MuscleGroup string              `json:"muscle_group"`
	Type        models.ExerciseType `json:"type"`
}

type setRow struct {
	WorkoutID        ulid.ULID `json:"workout_id"`
	ExercisePosition int       `json:"exercise_position"`
	Position         int       `json:"position"`
	models.SetRecord
}

func validateWorkoutHeader(w *models.WorkoutRecord) error {
	if w == nil {
		return invalid("workout", "must not be nil")
	}
	if w.ID == (ulid.ULID{}) {
		return invalid("workout.id", "must be set")
	}
	if strings.TrimSpace(w.Title) == "" {
		return invalid("workout.title", "must not be empty")
	}
	if w.Duration < 0 {
		return invalid("workout.duration", "must not be negative")
	}
	if len(w.Exercises) >= maxChildren {
		return invalid("workout.exercises", "at most %d exercises", maxChildren-1)
	}
	return nil
}

func validateWorkoutExercise(pos int, e *models.ExerciseWithSets) error {
	field := fmt.Sprintf("exercises[%d]", pos)
	if strings.TrimSpace(e.Name) == "" {
		return invalid(field+".name", "must not be empty")
	}
	if !models.IsValidExerciseType(string(e.Type)) {
		return invalid(field+".type", "unknown type %q", e.Type)
	}
	if len(e.Sets) >= maxChildren {
		return invalid(field+".sets", "at most %d sets", maxChildren-1)
	}
	return nil
}

func validateSet(exercisePos, setPos int, set *models.SetRecord) error {
	field := fmt.Sprintf("exercises[%d].sets[%d]", exercisePos, setPos)
	switch {
	case set.Reps < 0:
		return invalid(field+".reps", "must not be negative")
	case set.Weight < 0:
		return invalid(field+".weight", "must not be negative")
	case set.TargetReps < 0:
		return invalid(field+".target_reps", "must not be negative")
	case set.TargetWeight < 0:
		return invalid(field+".target_weight", "must not be negative")
	case set.RestTime < 0:
		return invalid(field+".rest_time", "must not be negative")
	}
	return nil
}

// writeWorkoutTree writes the header and every child row, validating each
// exercise and set as it goes. Callers rely on the transaction to discard
// partial writes when it fails.
func writeWorkoutTree(txn kv.Txn, w *models.WorkoutRecord) error {
	id := w.ID.String()
	header := &workoutRow{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Date:        w.Date,
		Duration:    w.Duration,
		CreatedAt:   w.CreatedAt,
		DeletedAt:   w.DeletedAt,
	}
	if err := putRow(txn, workoutKey(id), header); err != nil {
		return err
	}

	for i := range w.Exercises {
		e := &w.Exercises[i]
		if err := validateWorkoutExercise(i, e); err != nil {
			return err
		}
		row := &workoutExerciseRow{
			WorkoutID:   w.ID,
			Position:    i,
			ExerciseID:  e.ExerciseID,
			Name:        e.Name,
			MuscleGroup: e.MuscleGroup,
			Type:        e.Type,
		}
		if err := putRow(txn, workoutExerciseKey(id, i), row); err != nil {
			return err
		}
		for j := range e.Sets {
			if err := validateSet(i, j, &e.Sets[j]); err != nil {
				return err
			}
			row := &setRow{WorkoutID: w.ID, ExercisePosition: i, Position: j, SetRecord: e.Sets[j]}
			if err := putRow(txn, setKey(id, i, j), row); err != nil {
				return err
			}
		}
	}
	return nil
}

// deleteWorkoutChildren removes every exercise and set row of a workout.
func deleteWorkoutChildren(txn kv.Txn, id string) error {
	if _, err := kv.DeletePrefix(txn, workoutExercisesPrefix(id)); err != nil {
		return err
	}
	_, err := kv.DeletePrefix(txn, workoutSetsPrefix(id))
	return err
}

// readWorkoutTree loads a workout with its exercises and sets, or nil.
func readWorkoutTree(txn kv.Txn, id ulid.ULID) (*models.WorkoutRecord, error) {
	header, err := getRow[workoutRow](txn, workoutKey(id.String()))
	if err != nil || header == nil {
		return nil, err
	}
	w := header.record()

	err = scanRows(txn, workoutExercisesPrefix(id.String()), false, func(row *workoutExerciseRow) bool {
		w.Exercises = append(w.Exercises, models.ExerciseWithSets{
			ExerciseID:  row.ExerciseID,
			Name:        row.Name,
			MuscleGroup: row.MuscleGroup,
			Type:        row.Type,
		})
		return true
	})
	if err != nil {
		return nil, err
	}

	var sets []*setRow
	err = scanRows(txn, workoutSetsPrefix(id.String()), false, func(row *setRow) bool {
		sets = append(sets, row)
		return true
	})
	if err != nil {
		return nil, err
	}
	for _, row := range sets {
		if row.ExercisePosition < 0 || row.ExercisePosition >= len(w.Exercises) {
			return nil, fmt.Errorf("set %d of workout %s references missing exercise %d", row.Position, id, row.ExercisePosition)
		}
		e := &w.Exercises[row.ExercisePosition]
		e.Sets = append(e.Sets, row.SetRecord)
	}
	return w, nil
}

// AddWorkout stores a workout and its whole exercise/set tree atomically.
func (s *Store) AddWorkout(ctx context.Context, w *models.WorkoutRecord) error {
	if err := validateWorkoutHeader(w); err != nil {
		return err
	}
	stored := *w
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.timestamp()
	}
	if stored.Date.IsZero() {
		stored.Date = stored.CreatedAt
	}

	err := s.update(ctx, "add workout", func(txn kv.Txn) error {
		existing, err := getRow[workoutRow](txn, workoutKey(stored.ID.String()))
		if err != nil {
			return err
		}
		if existing != nil {
			return invalid("workout.id", "%s already exists", stored.ID)
		}
		return writeWorkoutTree(txn, &stored)
	})
	if err != nil {
		return err
	}

	*w = stored
	s.publish(events.KindInsert, workoutTables...)
	return nil
}

// GetWorkoutByID returns the workout header without exercises, or nil.
func (s *Store) GetWorkoutByID(ctx context.Context, id ulid.ULID) (*models.WorkoutRecord, error) {
	var header *workoutRow
	err := s.kv.View(ctx, func(txn kv.Txn) error {
		var err error
		header, err = getRow[workoutRow](txn, workoutKey(id.String()))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get workout: %w", err)
	}
	if header == nil {
		return nil, nil
	}
	return header.record(), nil
}

// GetWorkoutWithDetails returns the full workout tree, or nil.
func (s *Store) GetWorkoutWithDetails(ctx context.Context, id ulid.ULID) (*models.WorkoutRecord, error) {
	var w *models.WorkoutRecord
	err := s.kv.View(ctx, func(txn kv.Txn) error {
		var err error
		w, err = readWorkoutTree(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get workout details: %w", err)
	}
	return w, nil
}

// GetRecentWorkoutByID returns the full tree of a live workout dated within
// RecentWorkoutWindow, or nil.
func (s *Store) GetRecentWorkoutByID(ctx context.Context, id ulid.ULID) (*models.WorkoutRecord, error) {
	w, err := s.GetWorkoutWithDetails(ctx, id)
	if err != nil || w == nil {
		return nil, err
	}
	if w.IsDeleted() || w.Date.Before(s.now().Add(-RecentWorkoutWindow)) {
		return nil, nil
	}
	return w, nil
}

// ResolveWorkoutID expands a full or prefix ULID string into an ID.
func (s *Store) ResolveWorkoutID(ctx context.Context, idOrPrefix string) (ulid.ULID, error) {
	prefix := strings.ToUpper(strings.TrimSpace(idOrPrefix))
	if prefix == "" {
		return ulid.ULID{}, invalid("id", "must not be empty")
	}
	if id, err := ulid.ParseStrict(prefix); err == nil {
		return id, nil
	}

	var matches [][]byte
	err := s.kv.View(ctx, func(txn kv.Txn) error {
		var err error
		matches, err = kv.Keys(txn, workoutKey(prefix))
		return err
	})
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("resolve workout: %w", err)
	}

	switch len(matches) {
	case 0:
		return ulid.ULID{}, &NotFoundError{Entity: "workout", ID: idOrPrefix}
	case 1:
		return ulid.ParseStrict(strings.TrimPrefix(string(matches[0]), WorkoutPrefix))
	default:
		return ulid.ULID{}, invalid("id", "ambiguous prefix %s: matches %d workouts", idOrPrefix, len(matches))
	}
}

// UpdateWorkout replaces a workout header and its tree atomically. CreatedAt
// and DeletedAt are kept from the stored row.
func (s *Store) UpdateWorkout(ctx context.Context, w *models.WorkoutRecord) error {
	if err := validateWorkoutHeader(w); err != nil {
		return err
	}

	err := s.update(ctx, "update workout", func(txn kv.Txn) error {
		existing, err := getRow[workoutRow](txn, workoutKey(w.ID.String()))
		if err != nil {
			return err
		}
		if existing == nil {
			return &NotFoundError{Entity: "workout", ID: w.ID.String()}
		}
		w.CreatedAt = existing.CreatedAt
		w.DeletedAt = existing.DeletedAt
		if err := deleteWorkoutChildren(txn, w.ID.String()); err != nil {
			return err
		}
		return writeWorkoutTree(txn, w)
	})
	if err != nil {
		return err
	}

	s.publish(events.KindUpdate, workoutTables...)
	return nil
}

// SoftDeleteWorkout stamps DeletedAt on the header; the tree is kept for history.
func (s *Store) SoftDeleteWorkout(ctx context.Context, id ulid.ULID) error {
	err := s.kv.Update(ctx, func(txn kv.Txn) error {
		header, err := getRow[workoutRow](txn, workoutKey(id.String()))
		if err != nil {
			return err
		}
		if header == nil || header.DeletedAt != nil {
			return &NotFoundError{Entity: "workout", ID: id.String()}
		}
		now := s.timestamp()
		header.DeletedAt = &now
		return putRow(txn, workoutKey(id.String()), header)
	})
	if err != nil {
		return fmt.Errorf("delete workout: %w", err)
	}

	s.publish(events.KindDelete, events.TableWorkouts)
	return nil
}

// PurgeWorkout physically removes a workout and its tree (cascade delete).
func (s *Store) PurgeWorkout(ctx context.Context, id ulid.ULID) error {
	err := s.update(ctx, "purge workout", func(txn kv.Txn) error {
		header, err := getRow[workoutRow](txn, workoutKey(id.String()))
		if err != nil {
			return err
		}
		if header == nil {
			return &NotFoundError{Entity: "workout", ID: id.String()}
		}
		if err := deleteWorkoutChildren(txn, id.String()); err != nil {
			return err
		}
		return txn.Delete(workoutKey(id.String()))
	})
	if err != nil {
		return err
	}

	s.logger.Debug("purged workout", "id", id.String())
	s.publish(events.KindDelete, workoutTables...)
	return nil
}

// ListWorkoutsPaginated returns live workout headers in creation order, newest first.
func (s *Store) ListWorkoutsPaginated(ctx context.Context, offset, limit int) ([]*models.WorkoutRecord, error) {
	p := newPager[*models.WorkoutRecord](offset, limit)
	err := s.kv.View(ctx, func(txn kv.Txn) error {
		return scanRows(txn, []byte(WorkoutPrefix), true, func(row *workoutRow) bool {
			if row.DeletedAt != nil {
				return true
			}
			return p.add(row.record())
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	return p.rows, nil
}

// listWorkoutTrees loads every workout with details, including soft-deleted ones.
func listWorkoutTrees(txn kv.Txn) ([]*models.WorkoutRecord, error) {
	var ids []ulid.ULID
	err := scanRows(txn, []byte(WorkoutPrefix), true, func(row *workoutRow) bool {
		ids = append(ids, row.ID)
		return true
	})
	if err != nil {
		return nil, err
	}
	workouts := make([]*models.WorkoutRecord, 0, len(ids))
	for _, id := range ids {
		w, err := readWorkoutTree(txn, id)
		if err != nil {
			return nil, err
		}
		if w != nil {
			workouts = append(workouts, w)
		}
	}
	return workouts, nil
}
