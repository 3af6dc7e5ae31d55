// ABOUTME: Key layout and JSON row helpers for the key/value backed repository.
// ABOUTME: Prefixes are ordered so reverse scans yield newest-first rows.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/harperreed/fitlog/internal/events"
	"github.com/harperreed/fitlog/internal/kv"
)

const (
	SettingPrefix         = "settings:"
	SettingTypeIndex      = "idx:settings:type:"
	ChatPrefix            = "chats:"
	ExercisePrefix        = "exercises:"
	WorkoutPrefix         = "workouts:"
	WorkoutExercisePrefix = "workout_exercises:"
	SetPrefix             = "sets:"
	UserMetricPrefix      = "user_metrics:"
	UserMetricDayIndex    = "idx:user_metrics:day:"
	SeqPrefix             = "seq:"

	// maxChildren bounds exercises per workout and sets per exercise so
	// positions fit the fixed-width key segment.
	maxChildren = 1000
)

// EncryptedFields names, per table, the row fields stored as ciphertext.
// Setting values are encrypted only for sensitive types. Every other field
// of every table is plaintext.
var EncryptedFields = map[string][]string{
	events.TableSettings:    {"value"},
	events.TableChats:       {"content"},
	events.TableUserMetrics: {"weight", "height", "fat_percentage"},
}

// dataPrefixes lists every prefix a restore replaces.
var dataPrefixes = []string{
	SettingPrefix, SettingTypeIndex, ChatPrefix, ExercisePrefix, WorkoutPrefix,
	WorkoutExercisePrefix, SetPrefix, UserMetricPrefix, UserMetricDayIndex, SeqPrefix,
}

func settingKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", SettingPrefix, id))
}

func settingTypeKey(t string) []byte {
	return []byte(SettingTypeIndex + t)
}

func chatKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", ChatPrefix, id))
}

func exerciseKey(id string) []byte {
	return []byte(ExercisePrefix + id)
}

func workoutKey(id string) []byte {
	return []byte(WorkoutPrefix + id)
}

func workoutExercisesPrefix(workoutID string) []byte {
	return []byte(WorkoutExercisePrefix + workoutID + ":")
}

func workoutExerciseKey(workoutID string, pos int) []byte {
	return []byte(fmt.Sprintf("%s%s:%03d", WorkoutExercisePrefix, workoutID, pos))
}

func workoutSetsPrefix(workoutID string) []byte {
	return []byte(SetPrefix + workoutID + ":")
}

func setKey(workoutID string, exercisePos, setPos int) []byte {
	return []byte(fmt.Sprintf("%s%s:%03d:%03d", SetPrefix, workoutID, exercisePos, setPos))
}

func userMetricKey(id string) []byte {
	return []byte(UserMetricPrefix + id)
}

func userMetricDayKey(day, source string) []byte {
	return []byte(UserMetricDayIndex + day + ":" + source)
}

func seqKey(table string) []byte {
	return []byte(SeqPrefix + table)
}

// unmarshalJSON is a helper to unmarshal JSON data.
func unmarshalJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// getRow loads and decodes one row. A missing key yields nil, nil.
func getRow[T any](txn kv.Txn, key []byte) (*T, error) {
	data, err := txn.Get(key)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row, err := unmarshalJSON[T](data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return row, nil
}

// putRow encodes and stores one row.
func putRow(txn kv.Txn, key []byte, row any) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// scanRows decodes every row under prefix in key order. fn returning false stops the scan.
func scanRows[T any](txn kv.Txn, prefix []byte, reverse bool, fn func(*T) bool) error {
	return txn.Scan(prefix, reverse, func(key, value []byte) (bool, error) {
		row, err := unmarshalJSON[T](value)
		if err != nil {
			return false, fmt.Errorf("decode %s: %w", key, err)
		}
		return fn(row), nil
	})
}

// nextSeq increments and returns the counter for table.
func nextSeq(txn kv.Txn, table string) (int64, error) {
	current, err := readSeq(txn, table)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := txn.Set(seqKey(table), []byte(strconv.FormatInt(next, 10))); err != nil {
		return 0, fmt.Errorf("write sequence %s: %w", table, err)
	}
	return next, nil
}

func readSeq(txn kv.Txn, table string) (int64, error) {
	data, err := txn.Get(seqKey(table))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", table, err)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sequence %s: %w", table, err)
	}
	return n, nil
}

// window applies offset/limit to an already ordered slice. limit <= 0 means all.
func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// pager collects rows from an ordered scan, skipping offset matches and
// stopping once limit rows are held.
type pager[T any] struct {
	offset, limit int
	skipped       int
	rows          []T
}

func newPager[T any](offset, limit int) *pager[T] {
	if offset < 0 {
		offset = 0
	}
	return &pager[T]{offset: offset, limit: limit, rows: []T{}}
}

// add offers one matching row and reports whether the scan should continue.
func (p *pager[T]) add(row T) bool {
	if p.skipped < p.offset {
		p.skipped++
		return true
	}
	p.rows = append(p.rows, row)
	return p.limit <= 0 || len(p.rows) < p.limit
}
