// ABOUTME: UserMetric model for body measurements.
// ABOUTME: One logical entry per day per source; all measurements are optional.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MetricSource identifies where a body measurement came from.
type MetricSource string

const (
	SourceManual    MetricSource = "manual"
	SourceHealthKit MetricSource = "health_kit"
	SourceGoogleFit MetricSource = "google_fit"
	SourceImport    MetricSource = "import"
)

// AllMetricSources returns all valid metric sources.
var AllMetricSources = []MetricSource{SourceManual, SourceHealthKit, SourceGoogleFit, SourceImport}

// IsValidMetricSource checks if a string is a valid metric source.
func IsValidMetricSource(s string) bool {
	for _, src := range AllMetricSources {
		if string(src) == s {
			return true
		}
	}
	return false
}

// UserMetric is a dated body measurement. Weight is kilograms, Height meters.
type UserMetric struct {
	ID            uuid.UUID    `json:"id"`
	Date          time.Time    `json:"date"`
	Weight        *float64     `json:"weight,omitempty"`
	Height        *float64     `json:"height,omitempty"`
	FatPercentage *float64     `json:"fat_percentage,omitempty"`
	Source        MetricSource `json:"source"`
	CreatedAt     time.Time    `json:"created_at"`
	DeletedAt     *time.Time   `json:"deleted_at,omitempty"`
}

// NewUserMetric creates a manual UserMetric dated now.
func NewUserMetric() *UserMetric {
	now := time.Now()
	return &UserMetric{
		ID:        uuid.New(),
		Date:      now,
		Source:    SourceManual,
		CreatedAt: now,
	}
}

// WithDate sets the measurement date.
func (m *UserMetric) WithDate(t time.Time) *UserMetric {
	m.Date = t
	return m
}

// WithWeight sets the body weight in kilograms.
func (m *UserMetric) WithWeight(kg float64) *UserMetric {
	m.Weight = &kg
	return m
}

// WithHeight sets the height in meters.
func (m *UserMetric) WithHeight(meters float64) *UserMetric {
	m.Height = &meters
	return m
}

// WithFatPercentage sets the body fat percentage.
func (m *UserMetric) WithFatPercentage(pct float64) *UserMetric {
	m.FatPercentage = &pct
	return m
}

// WithSource sets the measurement source.
func (m *UserMetric) WithSource(src MetricSource) *UserMetric {
	m.Source = src
	return m
}

// Day returns the calendar day of the measurement used for de-duplication.
func (m *UserMetric) Day() string {
	return m.Date.UTC().Format("2006-01-02")
}
