// ABOUTME: Setting CRUD with upsert-by-type and encryption of sensitive values.
// ABOUTME: A type index points at the single live row for each setting type.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/harperreed/fitlog/internal/encryption"
	"github.com/harperreed/fitlog/internal/events"
	"github.com/harperreed/fitlog/internal/kv"
	"github.com/harperreed/fitlog/internal/models"
)

// settingRow is the persisted form. Value holds ciphertext when Encrypted is set.
type settingRow struct {
	models.Setting
	Encrypted bool `json:"encrypted,omitempty"`
}

func (r *settingRow) decode(key encryption.Key) (*models.Setting, error) {
	s := r.Setting
	if r.Encrypted {
		plain, err := encryption.Decrypt(r.Value, key)
		if err != nil {
			return nil, fmt.Errorf("decrypt setting %s: %w", r.Type, err)
		}
		s.Value = plain
	}
	return &s, nil
}

func encodeSetting(s *models.Setting, key encryption.Key) (*settingRow, error) {
	row := &settingRow{Setting: *s}
	if models.IsSensitiveSetting(s.Type) {
		cipher, err := encryption.Encrypt(s.Value, key)
		if err != nil {
			return nil, fmt.Errorf("encrypt setting %s: %w", s.Type, err)
		}
		row.Value = cipher
		row.Encrypted = true
	}
	return row, nil
}

// liveSettingRow follows the type index to the live row, if any.
func liveSettingRow(txn kv.Txn, t models.SettingType) (*settingRow, error) {
	data, err := txn.Get(settingTypeKey(string(t)))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse setting index %s: %w", t, err)
	}
	row, err := getRow[settingRow](txn, settingKey(id))
	if err != nil || row == nil || row.IsDeleted() {
		return nil, err
	}
	return row, nil
}

func validateSettingType(t models.SettingType) error {
	if strings.TrimSpace(string(t)) == "" {
		return invalid("type", "must not be empty")
	}
	if strings.ContainsAny(string(t), ": ") {
		return invalid("type", "must not contain spaces or colons")
	}
	if models.IsReservedSetting(t) {
		return invalid("type", "%s is reserved", t)
	}
	return nil
}

// GetSetting returns the live setting of type t, or nil if none exists.
func (s *Store) GetSetting(ctx context.Context, t models.SettingType) (*models.Setting, error) {
	if models.IsReservedSetting(t) {
		return nil, nil
	}
	key, err := s.key(ctx)
	if err != nil {
		return nil, err
	}

	var row *settingRow
	err = s.kv.View(ctx, func(txn kv.Txn) error {
		var err error
		row, err = liveSettingRow(txn, t)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get setting: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return row.decode(key)
}

// GetSettingValue returns the typed value of setting t. The bool is false
// when no live setting exists.
func (s *Store) GetSettingValue(ctx context.Context, t models.SettingType) (models.SettingValue, bool, error) {
	setting, err := s.GetSetting(ctx, t)
	if err != nil || setting == nil {
		return nil, false, err
	}
	v, err := setting.Typed()
	if err != nil {
		return nil, false, fmt.Errorf("parse setting %s: %w", t, err)
	}
	return v, true, nil
}

// AddOrUpdateSetting updates the live row of type t in place, or creates one.
func (s *Store) AddOrUpdateSetting(ctx context.Context, t models.SettingType, value string) (*models.Setting, error) {
	if err := validateSettingType(t); err != nil {
		return nil, err
	}
	parsed, err := models.ParseSettingValue(t, value)
	if err != nil {
		return nil, invalid("value", "%v", err)
	}
	value = parsed.String()

	key, err := s.key(ctx)
	if err != nil {
		return nil, err
	}

	var result *models.Setting
	kind := events.KindUpdate
	err = s.kv.Update(ctx, func(txn kv.Txn) error {
		now := s.timestamp()
		kind = events.KindUpdate

		existing, err := liveSettingRow(txn, t)
		if err != nil {
			return err
		}

		var setting models.Setting
		if existing != nil {
			setting = existing.Setting
		} else {
			id, err := nextSeq(txn, events.TableSettings)
			if err != nil {
				return err
			}
			setting = models.Setting{ID: id, Type: t, CreatedAt: now}
			kind = events.KindInsert
		}
		setting.Value = value
		setting.UpdatedAt = now

		row, err := encodeSetting(&setting, key)
		if err != nil {
			return err
		}
		if err := putRow(txn, settingKey(setting.ID), row); err != nil {
			return err
		}
		if err := txn.Set(settingTypeKey(string(t)), []byte(strconv.FormatInt(setting.ID, 10))); err != nil {
			return err
		}
		result = &setting
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save setting: %w", err)
	}

	s.publish(kind, events.TableSettings)
	return result, nil
}

// DeleteSetting soft-deletes the live setting of type t.
func (s *Store) DeleteSetting(ctx context.Context, t models.SettingType) error {
	err := s.kv.Update(ctx, func(txn kv.Txn) error {
		row, err := liveSettingRow(txn, t)
		if err != nil {
			return err
		}
		if row == nil {
			return &NotFoundError{Entity: "setting", ID: string(t)}
		}
		now := s.timestamp()
		row.DeletedAt = &now
		row.UpdatedAt = now
		if err := putRow(txn, settingKey(row.ID), row); err != nil {
			return err
		}
		return txn.Delete(settingTypeKey(string(t)))
	})
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}

	s.publish(events.KindDelete, events.TableSettings)
	return nil
}

// ListSettings returns every live setting ordered by ID.
func (s *Store) ListSettings(ctx context.Context) ([]*models.Setting, error) {
	key, err := s.key(ctx)
	if err != nil {
		return nil, err
	}

	var rows []*settingRow
	err = s.kv.View(ctx, func(txn kv.Txn) error {
		return scanRows(txn, []byte(SettingPrefix), false, func(row *settingRow) bool {
			if !row.IsDeleted() {
				rows = append(rows, row)
			}
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}

	settings := make([]*models.Setting, 0, len(rows))
	for _, row := range rows {
		setting, err := row.decode(key)
		if err != nil {
			s.logger.Warn("unreadable setting", "type", row.Type, "err", err)
			return nil, err
		}
		settings = append(settings, setting)
	}
	return settings, nil
}
