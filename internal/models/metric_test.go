// ABOUTME: Tests for UserMetric and ChatMessage models.
// ABOUTME: Validates sources, builders, and day bucketing.
package models

import (
	"testing"
	"time"
)

func TestNewUserMetric(t *testing.T) {
	m := NewUserMetric().WithWeight(82.5).WithFatPercentage(18)

	if m.ID.String() == "" {
		t.Error("expected UUID to be set")
	}
	if m.Source != SourceManual {
		t.Errorf("Source = %s, want manual", m.Source)
	}
	if m.Weight == nil || *m.Weight != 82.5 {
		t.Errorf("Weight = %v, want 82.5", m.Weight)
	}
	if m.Height != nil {
		t.Error("expected Height to be unset")
	}
	if m.FatPercentage == nil || *m.FatPercentage != 18 {
		t.Errorf("FatPercentage = %v, want 18", m.FatPercentage)
	}
}

func TestUserMetricDay(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	m := NewUserMetric().WithDate(time.Date(2025, 1, 31, 1, 0, 0, 0, loc))

	// Days are bucketed in UTC.
	if got := m.Day(); got != "2025-01-30" {
		t.Errorf("Day() = %s, want 2025-01-30", got)
	}
}

func TestIsValidMetricSource(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"manual", true},
		{"health_kit", true},
		{"google_fit", true},
		{"import", true},
		{"fitbit", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidMetricSource(tt.in); got != tt.want {
			t.Errorf("IsValidMetricSource(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewChatMessage(t *testing.T) {
	msg := NewChatMessage(RoleUser, "how many sets?")

	if msg.ID != 0 {
		t.Errorf("ID = %d, want 0 before storing", msg.ID)
	}
	if msg.Role != RoleUser {
		t.Errorf("Role = %s, want user", msg.Role)
	}
	if msg.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if !IsValidChatRole("assistant") || IsValidChatRole("bot") {
		t.Error("IsValidChatRole mismatch")
	}
}
