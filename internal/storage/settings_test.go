// ABOUTME: Tests for setting upsert, typed reads, and soft deletion.
// ABOUTME: Verifies the one-live-row-per-type rule against raw storage.
package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/harperreed/fitlog/internal/models"
)

func liveSettingRows(t *testing.T, s *Store, typ models.SettingType) int {
	t.Helper()
	n := 0
	for _, raw := range rawValues(t, s, SettingPrefix) {
		if strings.Contains(raw, `"type":"`+string(typ)+`"`) && !strings.Contains(raw, `"deleted_at"`) {
			n++
		}
	}
	return n
}

func TestAddOrUpdateSettingUpserts(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	first, err := s.AddOrUpdateSetting(ctx, models.SettingWeightUnit, "kg")
	if err != nil {
		t.Fatalf("AddOrUpdateSetting failed: %v", err)
	}
	second, err := s.AddOrUpdateSetting(ctx, models.SettingWeightUnit, "lb")
	if err != nil {
		t.Fatalf("AddOrUpdateSetting failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("upsert created a new row: %d != %d", second.ID, first.ID)
	}
	if n := liveSettingRows(t, s, models.SettingWeightUnit); n != 1 {
		t.Errorf("live rows = %d, want 1", n)
	}

	got, err := s.GetSetting(ctx, models.SettingWeightUnit)
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if got.Value != "lb" {
		t.Errorf("Value = %q, want lb", got.Value)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update")
	}
}

func TestGetSettingAbsent(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.GetSetting(context.Background(), models.SettingTheme)
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %v", got)
	}

	v, ok, err := s.GetSettingValue(context.Background(), models.SettingTheme)
	if err != nil || ok || v != nil {
		t.Errorf("GetSettingValue = %v, %v, %v; want nil, false, nil", v, ok, err)
	}
}

func TestGetSettingValueTyped(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	if _, err := s.AddOrUpdateSetting(ctx, models.SettingRestTimerSeconds, " 90 "); err != nil {
		t.Fatalf("AddOrUpdateSetting failed: %v", err)
	}

	v, ok, err := s.GetSettingValue(ctx, models.SettingRestTimerSeconds)
	if err != nil || !ok {
		t.Fatalf("GetSettingValue = %v, %v", ok, err)
	}
	iv, isInt := v.(models.IntSetting)
	if !isInt || iv.Value != 90 {
		t.Errorf("expected IntSetting(90), got %#v", v)
	}
}

func TestAddOrUpdateSettingValidation(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	tests := []struct {
		name  string
		typ   models.SettingType
		value string
	}{
		{"reserved", models.SettingEncryptionKey, "abc"},
		{"empty type", "", "x"},
		{"colon in type", "a:b", "x"},
		{"bad enum", models.SettingUnitSystem, "furlongs"},
		{"negative int", models.SettingRestTimerSeconds, "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddOrUpdateSetting(ctx, tt.typ, tt.value)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestDeleteSettingThenRecreate(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	first, err := s.AddOrUpdateSetting(ctx, models.SettingTheme, "dark")
	if err != nil {
		t.Fatalf("AddOrUpdateSetting failed: %v", err)
	}
	if err := s.DeleteSetting(ctx, models.SettingTheme); err != nil {
		t.Fatalf("DeleteSetting failed: %v", err)
	}

	got, err := s.GetSetting(ctx, models.SettingTheme)
	if err != nil || got != nil {
		t.Fatalf("GetSetting after delete = %v, %v", got, err)
	}
	if err := s.DeleteSetting(ctx, models.SettingTheme); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}

	second, err := s.AddOrUpdateSetting(ctx, models.SettingTheme, "light")
	if err != nil {
		t.Fatalf("AddOrUpdateSetting failed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("expected a new row after soft delete")
	}
	if n := liveSettingRows(t, s, models.SettingTheme); n != 1 {
		t.Errorf("live rows = %d, want 1", n)
	}
	if n := countKeys(t, s, SettingPrefix); n != 2 {
		t.Errorf("total rows = %d, want 2 (one soft-deleted)", n)
	}
}

func TestListSettings(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	for _, pair := range [][2]string{{"unit_system", "metric"}, {"theme", "dark"}, {"passphrase_hint", "dog"}} {
		if _, err := s.AddOrUpdateSetting(ctx, models.SettingType(pair[0]), pair[1]); err != nil {
			t.Fatalf("AddOrUpdateSetting failed: %v", err)
		}
	}
	if err := s.DeleteSetting(ctx, models.SettingTheme); err != nil {
		t.Fatalf("DeleteSetting failed: %v", err)
	}

	settings, err := s.ListSettings(ctx)
	if err != nil {
		t.Fatalf("ListSettings failed: %v", err)
	}
	if len(settings) != 2 {
		t.Fatalf("expected 2 settings, got %d", len(settings))
	}
	if settings[0].Type != models.SettingUnitSystem || settings[1].Value != "dog" {
		t.Errorf("unexpected settings: %+v, %+v", settings[0], settings[1])
	}
}
