// ABOUTME: Training volume over workout trees that may be missing data.
// ABOUTME: Missing weights or metrics contribute zero instead of failing.
package analytics

import (
	"time"

	"github.com/harperreed/fitlog/internal/models"
)

// EffectiveWeight is the load used for one set: the recorded weight, or for
// bodyweight exercises without one, the lifter's body weight.
func EffectiveWeight(exerciseType models.ExerciseType, set models.SetRecord, bodyWeight *float64) float64 {
	if set.Weight > 0 {
		return set.Weight
	}
	if exerciseType == models.ExerciseBodyweight && bodyWeight != nil && *bodyWeight > 0 {
		return *bodyWeight
	}
	return 0
}

// SetVolume is reps times effective weight. Warm-up sets count as zero.
func SetVolume(exerciseType models.ExerciseType, set models.SetRecord, bodyWeight *float64) float64 {
	if set.IsWarmup || set.Reps <= 0 {
		return 0
	}
	return float64(set.Reps) * EffectiveWeight(exerciseType, set, bodyWeight)
}

// ExerciseVolume sums SetVolume over an exercise's sets.
func ExerciseVolume(e models.ExerciseWithSets, bodyWeight *float64) float64 {
	total := 0.0
	for _, set := range e.Sets {
		total += SetVolume(e.Type, set, bodyWeight)
	}
	return total
}

// WorkoutVolume sums ExerciseVolume over a workout. A nil workout is zero.
func WorkoutVolume(w *models.WorkoutRecord, bodyWeight *float64) float64 {
	if w == nil {
		return 0
	}
	total := 0.0
	for _, e := range w.Exercises {
		total += ExerciseVolume(e, bodyWeight)
	}
	return total
}

// ClosestBodyWeight returns the weight of the live metric with the latest
// date not after at, or nil.
func ClosestBodyWeight(metrics []*models.UserMetric, at time.Time) *float64 {
	var best *models.UserMetric
	for _, m := range metrics {
		if m == nil || m.Weight == nil || m.DeletedAt != nil || m.Date.After(at) {
			continue
		}
		if best == nil || m.Date.After(best.Date) {
			best = m
		}
	}
	if best == nil {
		return nil
	}
	w := *best.Weight
	return &w
}

// WorkoutVolumeAt resolves body weight from metrics at the workout date, then
// computes WorkoutVolume.
func WorkoutVolumeAt(w *models.WorkoutRecord, metrics []*models.UserMetric) float64 {
	if w == nil {
		return 0
	}
	return WorkoutVolume(w, ClosestBodyWeight(metrics, w.Date))
}

// TotalVolume sums WorkoutVolumeAt over live workouts.
func TotalVolume(workouts []*models.WorkoutRecord, metrics []*models.UserMetric) float64 {
	total := 0.0
	for _, w := range workouts {
		if w == nil || w.IsDeleted() {
			continue
		}
		total += WorkoutVolumeAt(w, metrics)
	}
	return total
}

// MuscleGroupVolume splits WorkoutVolumeAt by muscle group across workouts.
func MuscleGroupVolume(workouts []*models.WorkoutRecord, metrics []*models.UserMetric) map[string]float64 {
	out := make(map[string]float64)
	for _, w := range workouts {
		if w == nil || w.IsDeleted() {
			continue
		}
		bw := ClosestBodyWeight(metrics, w.Date)
		for _, e := range w.Exercises {
			if v := ExerciseVolume(e, bw); v > 0 {
				out[e.MuscleGroup] += v
			}
		}
	}
	return out
}
