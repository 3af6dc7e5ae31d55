// ABOUTME: Tests for full-store dump and restore, sealed and plain.
// ABOUTME: Invalid payloads must be rejected before any existing data changes.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/harperreed/fitlog/internal/events"
	"github.com/harperreed/fitlog/internal/models"
)

func seedStore(t *testing.T, s *Store) *models.WorkoutRecord {
	t.Helper()
	ctx := context.Background()

	if _, err := s.AddOrUpdateSetting(ctx, models.SettingWeightUnit, "lb"); err != nil {
		t.Fatalf("AddOrUpdateSetting failed: %v", err)
	}
	if _, err := s.AddOrUpdateSetting(ctx, models.SettingOAuthRefreshToken, "refresh-123"); err != nil {
		t.Fatalf("AddOrUpdateSetting failed: %v", err)
	}
	addChats(t, s, 3)
	if err := s.AddExercise(ctx, models.NewExercise("Squat", "legs", models.ExerciseWeighted)); err != nil {
		t.Fatalf("AddExercise failed: %v", err)
	}
	w := sampleWorkout()
	if err := s.AddWorkout(ctx, w); err != nil {
		t.Fatalf("AddWorkout failed: %v", err)
	}
	if err := s.AddUserMetric(ctx, models.NewUserMetric().WithDate(day(1, 8)).WithWeight(80)); err != nil {
		t.Fatalf("AddUserMetric failed: %v", err)
	}
	return w
}

func TestDumpRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := setupTestStore(t)
	w := seedStore(t, src)

	blob, err := src.DumpDatabase(ctx, "")
	if err != nil {
		t.Fatalf("DumpDatabase failed: %v", err)
	}

	dst := setupSQLiteStore(t)
	got := recordEvents(dst)
	if err := dst.RestoreDatabase(ctx, blob, ""); err != nil {
		t.Fatalf("RestoreDatabase failed: %v", err)
	}

	if len(*got) != len(events.AllTables) {
		t.Errorf("restore published %d events, want %d", len(*got), len(events.AllTables))
	}

	token, err := dst.GetSetting(ctx, models.SettingOAuthRefreshToken)
	if err != nil || token == nil || token.Value != "refresh-123" {
		t.Errorf("secret setting not restored: %v, %v", token, err)
	}

	chats, err := dst.ListChatsPaginated(ctx, 0, 0)
	if err != nil || len(chats) != 3 {
		t.Fatalf("chats = %d, %v; want 3", len(chats), err)
	}
	if chats[0].Content != "message 2" {
		t.Errorf("newest chat = %q, want message 2", chats[0].Content)
	}

	// New IDs continue after the restored ones.
	next := models.NewChatMessage(models.RoleUser, "after restore")
	if err := dst.AddChat(ctx, next); err != nil {
		t.Fatalf("AddChat failed: %v", err)
	}
	if next.ID <= chats[0].ID {
		t.Errorf("chat ID %d collides with restored IDs", next.ID)
	}

	tree, err := dst.GetWorkoutWithDetails(ctx, w.ID)
	if err != nil || tree == nil || tree.SetCount() != 3 {
		t.Errorf("workout tree not restored: %v, %v", tree, err)
	}

	weight, err := dst.GetClosestBodyWeight(ctx, day(2, 0))
	if err != nil || weight == nil || *weight != 80 {
		t.Errorf("metric not restored: %v, %v", weight, err)
	}

	// Upsert still finds the restored live row.
	if _, err := dst.AddOrUpdateSetting(ctx, models.SettingWeightUnit, "kg"); err != nil {
		t.Fatalf("AddOrUpdateSetting failed: %v", err)
	}
	if n := liveSettingRows(t, dst, models.SettingWeightUnit); n != 1 {
		t.Errorf("live weight_unit rows = %d, want 1", n)
	}
}

func TestRestoreMissingVersionLeavesDataUntouched(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedStore(t, s)

	before, err := s.DumpAllTables(ctx)
	if err != nil {
		t.Fatalf("DumpAllTables failed: %v", err)
	}

	payload := map[string]any{
		"format":   DumpFormat,
		"settings": []any{},
		"chats":    []any{},
	}
	blob, _ := json.Marshal(payload)

	err = s.RestoreDatabase(ctx, blob, "")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "version" {
		t.Fatalf("expected version ValidationError, got %v", err)
	}

	after, err := s.DumpAllTables(ctx)
	if err != nil {
		t.Fatalf("DumpAllTables failed: %v", err)
	}
	if len(after.Chats) != len(before.Chats) || len(after.Workouts) != len(before.Workouts) ||
		len(after.Settings) != len(before.Settings) || len(after.UserMetrics) != len(before.UserMetrics) {
		t.Error("existing data changed after rejected restore")
	}
}

func TestRestoreRejectsMalformedPayloads(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedStore(t, s)

	tests := []struct {
		name string
		blob string
	}{
		{"not json", `{{{`},
		{"wrong version", `{"format":"fitlog-dump","version":7}`},
		{"wrong format", `{"format":"other","version":1}`},
		{"unknown field", `{"format":"fitlog-dump","version":1,"extra":true}`},
		{"bad chat role", `{"format":"fitlog-dump","version":1,"chats":[{"id":1,"role":"bot","content":"x"}]}`},
		{"duplicate live setting", `{"format":"fitlog-dump","version":1,"settings":[{"id":1,"type":"theme","value":"a"},{"id":2,"type":"theme","value":"b"}]}`},
		{"reserved setting", `{"format":"fitlog-dump","version":1,"settings":[{"id":1,"type":"encryption_key","value":"a"}]}`},
		{"bad enum setting", `{"format":"fitlog-dump","version":1,"settings":[{"id":1,"type":"unit_system","value":"banana"}]}`},
		{"trailing data", `{"format":"fitlog-dump","version":1} garbage`},
		{"second document", `{"format":"fitlog-dump","version":1}{"format":"fitlog-dump","version":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.RestoreDatabase(ctx, []byte(tt.blob), "")
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}

	chats, err := s.ListChatsPaginated(ctx, 0, 0)
	if err != nil || len(chats) != 3 {
		t.Errorf("chats = %d, %v after rejected restores; want 3", len(chats), err)
	}
}

func TestSealedDumpRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := setupTestStore(t)
	seedStore(t, src)

	blob, err := src.DumpDatabase(ctx, "correct horse")
	if err != nil {
		t.Fatalf("DumpDatabase failed: %v", err)
	}
	if json.Valid(blob) {
		var probe map[string]any
		_ = json.Unmarshal(blob, &probe)
		if probe["format"] != "fitlog-sealed" {
			t.Errorf("sealed blob format = %v", probe["format"])
		}
		if _, ok := probe["chats"]; ok {
			t.Error("sealed blob exposes plaintext tables")
		}
	}

	dst := setupTestStore(t)
	err = dst.RestoreDatabase(ctx, blob, "wrong")
	var derr *DecryptionError
	if !errors.As(err, &derr) {
		t.Errorf("wrong passphrase err = %v, want DecryptionError", err)
	}

	err = dst.RestoreDatabase(ctx, blob, "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("missing passphrase err = %v, want ValidationError", err)
	}

	if err := dst.RestoreDatabase(ctx, blob, "correct horse"); err != nil {
		t.Fatalf("RestoreDatabase failed: %v", err)
	}
	chats, err := dst.ListChatsPaginated(ctx, 0, 0)
	if err != nil || len(chats) != 3 {
		t.Errorf("chats = %d, %v; want 3", len(chats), err)
	}
}

func TestRestoreRejectsMalformedEnvelopes(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedStore(t, s)

	tests := []struct {
		name string
		blob string
	}{
		{"missing version", `{"format":"fitlog-sealed"}`},
		{"unknown kdf", `{"format":"fitlog-sealed","version":1,"kdf":"scrypt","time":1,"memory":65536,"threads":4,"salt":"AAAA","ciphertext":"AAAA"}`},
		{"huge time cost", `{"format":"fitlog-sealed","version":1,"kdf":"argon2id","time":4294967295,"memory":65536,"threads":4,"salt":"AAAA","ciphertext":"AAAA"}`},
		{"huge memory cost", `{"format":"fitlog-sealed","version":1,"kdf":"argon2id","time":1,"memory":4294967295,"threads":4,"salt":"AAAA","ciphertext":"AAAA"}`},
		{"missing salt", `{"format":"fitlog-sealed","version":1,"kdf":"argon2id","time":1,"memory":65536,"threads":4,"ciphertext":"AAAA"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.RestoreDatabase(ctx, []byte(tt.blob), "pw")
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}

	chats, err := s.ListChatsPaginated(ctx, 0, 0)
	if err != nil || len(chats) != 3 {
		t.Errorf("chats = %d, %v after rejected restores; want 3", len(chats), err)
	}
}

func TestDumpIncludesSoftDeletedRows(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	w := seedStore(t, s)

	if err := s.SoftDeleteWorkout(ctx, w.ID); err != nil {
		t.Fatalf("SoftDeleteWorkout failed: %v", err)
	}
	d, err := s.DumpAllTables(ctx)
	if err != nil {
		t.Fatalf("DumpAllTables failed: %v", err)
	}
	if len(d.Workouts) != 1 || !d.Workouts[0].IsDeleted() {
		t.Errorf("expected soft-deleted workout in dump, got %v", d.Workouts)
	}
	if d.Version != DumpVersion || d.Format != DumpFormat {
		t.Errorf("dump header = %s v%d", d.Format, d.Version)
	}
}
