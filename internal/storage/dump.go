// ABOUTME: Full-store snapshot and restore in a versioned JSON document.
// ABOUTME: Restores validate the whole payload before replacing content in one transaction.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/fitlog/internal/encryption"
	"github.com/harperreed/fitlog/internal/events"
	"github.com/harperreed/fitlog/internal/kv"
	"github.com/harperreed/fitlog/internal/models"
	"github.com/oklog/ulid/v2"
)

const (
	// DumpFormat identifies an unsealed snapshot.
	DumpFormat = "fitlog-dump"
	// DumpVersion is the snapshot layout written by DumpAllTables.
	DumpVersion = 1
)

// Dump is a plaintext snapshot of every table, soft-deleted rows included.
type Dump struct {
	Format      string                  `json:"format"`
	Version     int                     `json:"version"`
	ExportedAt  time.Time               `json:"exported_at"`
	Tool        string                  `json:"tool"`
	Settings    []*models.Setting       `json:"settings"`
	Chats       []*models.ChatMessage   `json:"chats"`
	Exercises   []*models.Exercise      `json:"exercises"`
	Workouts    []*models.WorkoutRecord `json:"workouts"`
	UserMetrics []*models.UserMetric    `json:"user_metrics"`
}

// DumpAllTables reads every table in one snapshot and decrypts it.
func (s *Store) DumpAllTables(ctx context.Context) (*Dump, error) {
	key, err := s.key(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dump{
		Format:      DumpFormat,
		Version:     DumpVersion,
		ExportedAt:  s.timestamp(),
		Tool:        "fitlog",
		Settings:    []*models.Setting{},
		Chats:       []*models.ChatMessage{},
		Exercises:   []*models.Exercise{},
		Workouts:    []*models.WorkoutRecord{},
		UserMetrics: []*models.UserMetric{},
	}

	var (
		settingRows []*settingRow
		chatRows    []*chatRow
		metricRows  []*metricRow
	)
	err = s.kv.View(ctx, func(txn kv.Txn) error {
		if err := scanRows(txn, []byte(SettingPrefix), false, func(row *settingRow) bool {
			settingRows = append(settingRows, row)
			return true
		}); err != nil {
			return err
		}
		if err := scanRows(txn, []byte(ChatPrefix), false, func(row *chatRow) bool {
			chatRows = append(chatRows, row)
			return true
		}); err != nil {
			return err
		}
		if err := scanRows(txn, []byte(ExercisePrefix), false, func(e *models.Exercise) bool {
			d.Exercises = append(d.Exercises, e)
			return true
		}); err != nil {
			return err
		}
		if err := scanRows(txn, []byte(UserMetricPrefix), false, func(row *metricRow) bool {
			metricRows = append(metricRows, row)
			return true
		}); err != nil {
			return err
		}
		workouts, err := listWorkoutTrees(txn)
		if err != nil {
			return err
		}
		d.Workouts = workouts
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dump tables: %w", err)
	}

	for _, row := range settingRows {
		setting, err := row.decode(key)
		if err != nil {
			return nil, fmt.Errorf("dump tables: %w", err)
		}
		d.Settings = append(d.Settings, setting)
	}
	for _, row := range chatRows {
		msg, err := row.decode(key)
		if err != nil {
			return nil, fmt.Errorf("dump tables: %w", err)
		}
		d.Chats = append(d.Chats, msg)
	}
	for _, row := range metricRows {
		m, err := row.decode(key)
		if err != nil {
			return nil, fmt.Errorf("dump tables: %w", err)
		}
		d.UserMetrics = append(d.UserMetrics, m)
	}
	return d, nil
}

// Validate checks the snapshot's version and shape without touching storage.
func (d *Dump) Validate() error {
	if d == nil {
		return invalid("dump", "must not be nil")
	}
	if d.Version == 0 {
		return invalid("version", "missing version marker")
	}
	if d.Version != DumpVersion {
		return invalid("version", "unsupported version %d", d.Version)
	}
	if d.Format != DumpFormat {
		return invalid("format", "want %q, got %q", DumpFormat, d.Format)
	}

	liveTypes := make(map[models.SettingType]bool)
	settingIDs := make(map[int64]bool)
	for i, setting := range d.Settings {
		if setting == nil {
			return invalid(fmt.Sprintf("settings[%d]", i), "must not be null")
		}
		if setting.ID <= 0 || settingIDs[setting.ID] {
			return invalid(fmt.Sprintf("settings[%d].id", i), "missing or duplicate id %d", setting.ID)
		}
		settingIDs[setting.ID] = true
		if err := validateSettingType(setting.Type); err != nil {
			return err
		}
		if _, err := models.ParseSettingValue(setting.Type, setting.Value); err != nil {
			return invalid(fmt.Sprintf("settings[%d].value", i), "%v", err)
		}
		if !setting.IsDeleted() {
			if liveTypes[setting.Type] {
				return invalid(fmt.Sprintf("settings[%d].type", i), "more than one live %s", setting.Type)
			}
			liveTypes[setting.Type] = true
		}
	}

	chatIDs := make(map[int64]bool)
	for i, msg := range d.Chats {
		if msg == nil {
			return invalid(fmt.Sprintf("chats[%d]", i), "must not be null")
		}
		if msg.ID <= 0 || chatIDs[msg.ID] {
			return invalid(fmt.Sprintf("chats[%d].id", i), "missing or duplicate id %d", msg.ID)
		}
		chatIDs[msg.ID] = true
		if err := validateChat(msg); err != nil {
			return err
		}
	}

	exerciseIDs := make(map[uuid.UUID]bool)
	for i, e := range d.Exercises {
		if err := validateExercise(e); err != nil {
			return err
		}
		if exerciseIDs[e.ID] {
			return invalid(fmt.Sprintf("exercises[%d].id", i), "duplicate id %s", e.ID)
		}
		exerciseIDs[e.ID] = true
	}

	workoutIDs := make(map[ulid.ULID]bool)
	for i, w := range d.Workouts {
		if err := validateWorkoutHeader(w); err != nil {
			return err
		}
		if workoutIDs[w.ID] {
			return invalid(fmt.Sprintf("workouts[%d].id", i), "duplicate id %s", w.ID)
		}
		workoutIDs[w.ID] = true
		for j := range w.Exercises {
			if err := validateWorkoutExercise(j, &w.Exercises[j]); err != nil {
				return err
			}
			for k := range w.Exercises[j].Sets {
				if err := validateSet(j, k, &w.Exercises[j].Sets[k]); err != nil {
					return err
				}
			}
		}
	}

	metricIDs := make(map[uuid.UUID]bool)
	liveDays := make(map[string]bool)
	for i, m := range d.UserMetrics {
		if err := validateUserMetric(m); err != nil {
			return err
		}
		if metricIDs[m.ID] {
			return invalid(fmt.Sprintf("user_metrics[%d].id", i), "duplicate id %s", m.ID)
		}
		metricIDs[m.ID] = true
		if m.DeletedAt == nil {
			slot := m.Day() + ":" + string(m.Source)
			if liveDays[slot] {
				return invalid(fmt.Sprintf("user_metrics[%d]", i), "more than one live entry for %s", slot)
			}
			liveDays[slot] = true
		}
	}
	return nil
}

// RestoreFromDump replaces all content with d. The payload is validated and
// encrypted before the transaction starts; on any failure nothing changes.
func (s *Store) RestoreFromDump(ctx context.Context, d *Dump) error {
	if err := d.Validate(); err != nil {
		return err
	}
	key, err := s.key(ctx)
	if err != nil {
		return err
	}

	settingRows := make([]*settingRow, 0, len(d.Settings))
	var maxSettingID int64
	for _, setting := range d.Settings {
		row, err := encodeSetting(setting, key)
		if err != nil {
			return err
		}
		settingRows = append(settingRows, row)
		maxSettingID = max(maxSettingID, setting.ID)
	}
	chatRows := make([]*chatRow, 0, len(d.Chats))
	var maxChatID int64
	for _, msg := range d.Chats {
		row, err := encodeChat(msg, key)
		if err != nil {
			return err
		}
		chatRows = append(chatRows, row)
		maxChatID = max(maxChatID, msg.ID)
	}
	metricRows := make([]*metricRow, 0, len(d.UserMetrics))
	for _, m := range d.UserMetrics {
		row, err := encodeMetric(m, key)
		if err != nil {
			return err
		}
		metricRows = append(metricRows, row)
	}

	err = s.update(ctx, "restore dump", func(txn kv.Txn) error {
		for _, prefix := range dataPrefixes {
			if _, err := kv.DeletePrefix(txn, []byte(prefix)); err != nil {
				return err
			}
		}

		for _, row := range settingRows {
			if err := putRow(txn, settingKey(row.ID), row); err != nil {
				return err
			}
			if !row.IsDeleted() {
				if err := txn.Set(settingTypeKey(string(row.Type)), []byte(strconv.FormatInt(row.ID, 10))); err != nil {
					return err
				}
			}
		}
		if err := txn.Set(seqKey(events.TableSettings), []byte(strconv.FormatInt(maxSettingID, 10))); err != nil {
			return err
		}

		for _, row := range chatRows {
			if err := putRow(txn, chatKey(row.ID), row); err != nil {
				return err
			}
		}
		if err := txn.Set(seqKey(events.TableChats), []byte(strconv.FormatInt(maxChatID, 10))); err != nil {
			return err
		}

		for _, e := range d.Exercises {
			if err := putRow(txn, exerciseKey(e.ID.String()), e); err != nil {
				return err
			}
		}
		for _, w := range d.Workouts {
			if err := writeWorkoutTree(txn, w); err != nil {
				return err
			}
		}
		for _, row := range metricRows {
			if err := putRow(txn, userMetricKey(row.ID.String()), row); err != nil {
				return err
			}
			if row.DeletedAt == nil {
				if err := txn.Set(userMetricDayKey(row.day(), string(row.Source)), []byte(row.ID.String())); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("restored dump",
		"settings", len(d.Settings),
		"chats", len(d.Chats),
		"exercises", len(d.Exercises),
		"workouts", len(d.Workouts),
		"user_metrics", len(d.UserMetrics),
	)
	s.publish(events.KindUpdate, events.AllTables...)
	return nil
}

// DumpDatabase serializes every table. A non-empty passphrase seals the
// document in a passphrase envelope.
func (s *Store) DumpDatabase(ctx context.Context, passphrase string) ([]byte, error) {
	d, err := s.DumpAllTables(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal dump: %w", err)
	}
	if passphrase == "" {
		return data, nil
	}
	sealed, err := encryption.SealWithPassphrase(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("seal dump: %w", err)
	}
	return sealed, nil
}

// ParseDump decodes a plaintext snapshot and validates it.
func ParseDump(data []byte) (*Dump, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var d Dump
	if err := dec.Decode(&d); err != nil {
		return nil, invalid("payload", "%v", err)
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		return nil, invalid("payload", "unexpected data after the document")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// RestoreDatabase restores from a DumpDatabase blob, opening it with
// passphrase first when it is sealed.
func (s *Store) RestoreDatabase(ctx context.Context, blob []byte, passphrase string) error {
	if encryption.IsSealed(blob) {
		if passphrase == "" {
			return invalid("passphrase", "required for a sealed dump")
		}
		plain, err := encryption.OpenWithPassphrase(blob, passphrase)
		if errors.Is(err, encryption.ErrInvalidEnvelope) {
			return invalid("envelope", "%v", err)
		}
		if err != nil {
			return fmt.Errorf("open sealed dump: %w", err)
		}
		blob = plain
	}

	d, err := ParseDump(blob)
	if err != nil {
		return err
	}
	return s.RestoreFromDump(ctx, d)
}
