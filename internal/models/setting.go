// ABOUTME: Setting model and the typed setting values parsed at the store boundary.
// ABOUTME: Values are stored as strings; ParseSettingValue is the single conversion point.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SettingType is the unique key of a setting.
type SettingType string

const (
	SettingUnitSystem        SettingType = "unit_system"
	SettingWeightUnit        SettingType = "weight_unit"
	SettingHeightUnit        SettingType = "height_unit"
	SettingMacroUnit         SettingType = "macro_unit"
	SettingRestTimerSeconds  SettingType = "rest_timer_seconds"
	SettingBodyweightMetric  SettingType = "bodyweight_exercises_use_metric"
	SettingTheme             SettingType = "theme"
	SettingOpenAIAPIKey      SettingType = "openai_api_key"
	SettingOAuthRefreshToken SettingType = "oauth_refresh_token"
	SettingPassphraseHint    SettingType = "passphrase_hint"

	// SettingEncryptionKey is reserved for the device key and cannot be set by callers.
	SettingEncryptionKey SettingType = "encryption_key"
)

// sensitiveSettings lists the setting types whose values are encrypted at rest.
var sensitiveSettings = map[SettingType]bool{
	SettingOpenAIAPIKey:      true,
	SettingOAuthRefreshToken: true,
	SettingPassphraseHint:    true,
}

// IsSensitiveSetting reports whether values of t are stored encrypted.
func IsSensitiveSetting(t SettingType) bool {
	return sensitiveSettings[t]
}

// IsReservedSetting reports whether t is managed internally.
func IsReservedSetting(t SettingType) bool {
	return t == SettingEncryptionKey
}

// Setting is a single persisted preference. At most one live row exists per Type.
type Setting struct {
	ID        int64       `json:"id"`
	Type      SettingType `json:"type"`
	Value     string      `json:"value"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	DeletedAt *time.Time  `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the setting has been soft-deleted.
func (s *Setting) IsDeleted() bool {
	return s.DeletedAt != nil
}

// Typed returns the parsed value of the setting.
func (s *Setting) Typed() (SettingValue, error) {
	return ParseSettingValue(s.Type, s.Value)
}

// SettingValue is a parsed setting. String returns the storage representation.
type SettingValue interface {
	SettingType() SettingType
	String() string
}

// StringSetting is a free-form setting, also used for unknown types.
type StringSetting struct {
	Type  SettingType
	Value string
}

func (v StringSetting) SettingType() SettingType { return v.Type }
func (v StringSetting) String() string           { return v.Value }

// BoolSetting is a true/false setting.
type BoolSetting struct {
	Type  SettingType
	Value bool
}

func (v BoolSetting) SettingType() SettingType { return v.Type }
func (v BoolSetting) String() string           { return strconv.FormatBool(v.Value) }

// IntSetting is a non-negative integer setting.
type IntSetting struct {
	Type  SettingType
	Value int
}

func (v IntSetting) SettingType() SettingType { return v.Type }
func (v IntSetting) String() string           { return strconv.Itoa(v.Value) }

// EnumSetting is one of a fixed set of choices.
type EnumSetting struct {
	Type  SettingType
	Value string
}

func (v EnumSetting) SettingType() SettingType { return v.Type }
func (v EnumSetting) String() string           { return v.Value }

// settingChoices lists allowed values for enum settings.
var settingChoices = map[SettingType][]string{
	SettingUnitSystem: {"metric", "imperial"},
	SettingWeightUnit: {"kg", "lb"},
	SettingHeightUnit: {"m", "ft"},
	SettingMacroUnit:  {"g", "oz"},
}

// SettingChoices returns the allowed values for an enum setting, or nil.
func SettingChoices(t SettingType) []string {
	return settingChoices[t]
}

// ParseSettingValue converts a stored string into its typed form.
func ParseSettingValue(t SettingType, raw string) (SettingValue, error) {
	if choices, ok := settingChoices[t]; ok {
		v := strings.ToLower(strings.TrimSpace(raw))
		for _, c := range choices {
			if c == v {
				return EnumSetting{Type: t, Value: v}, nil
			}
		}
		return nil, fmt.Errorf("invalid %s %q: want one of %s", t, raw, strings.Join(choices, ", "))
	}

	switch t {
	case SettingRestTimerSeconds:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", t, raw, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid %s %q: must not be negative", t, raw)
		}
		return IntSetting{Type: t, Value: n}, nil
	case SettingBodyweightMetric:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", t, raw, err)
		}
		return BoolSetting{Type: t, Value: b}, nil
	default:
		return StringSetting{Type: t, Value: raw}, nil
	}
}
