// ABOUTME: Settings snapshot that refreshes lazily after settings change events.
// ABOUTME: Readers get a consistent map and never see a half-applied reload.
package views

import (
	"context"
	"sync"

	"github.com/harperreed/fitlog/internal/analytics"
	"github.com/harperreed/fitlog/internal/events"
	"github.com/harperreed/fitlog/internal/models"
)

// SettingsSource lists live settings.
type SettingsSource interface {
	ListSettings(ctx context.Context) ([]*models.Setting, error)
}

// SettingsCache holds the last loaded settings. A change on the settings
// table drops the snapshot; the next read reloads it.
type SettingsCache struct {
	source      SettingsSource
	unsubscribe func()

	mu         sync.Mutex
	snapshot   map[models.SettingType]string
	valid      bool
	generation uint64
	loads      int
}

// NewSettingsCache subscribes to bus. Call Close to unsubscribe.
func NewSettingsCache(source SettingsSource, bus *events.Bus) *SettingsCache {
	c := &SettingsCache{source: source}
	c.unsubscribe = bus.SubscribeTable(events.TableSettings, func(events.Event) {
		c.Invalidate()
	})
	return c
}

// Invalidate drops the snapshot. Loads already in flight will not install.
func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.valid = false
	c.snapshot = nil
}

// Snapshot returns a copy of all live setting values keyed by type.
func (c *SettingsCache) Snapshot(ctx context.Context) (map[models.SettingType]string, error) {
	c.mu.Lock()
	if c.valid {
		out := copyValues(c.snapshot)
		c.mu.Unlock()
		return out, nil
	}
	gen := c.generation
	c.mu.Unlock()

	settings, err := c.source.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	values := make(map[models.SettingType]string, len(settings))
	for _, s := range settings {
		values[s.Type] = s.Value
	}

	c.mu.Lock()
	c.loads++
	if gen == c.generation {
		c.snapshot = values
		c.valid = true
	}
	c.mu.Unlock()
	return copyValues(values), nil
}

// Get returns one setting value and whether it is set.
func (c *SettingsCache) Get(ctx context.Context, t models.SettingType) (string, bool, error) {
	values, err := c.Snapshot(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := values[t]
	return v, ok, nil
}

// Value returns one setting as its typed value, or nil when unset.
func (c *SettingsCache) Value(ctx context.Context, t models.SettingType) (models.SettingValue, error) {
	raw, ok, err := c.Get(ctx, t)
	if err != nil || !ok {
		return nil, err
	}
	return models.ParseSettingValue(t, raw)
}

// Preferences resolves display units from the current settings.
func (c *SettingsCache) Preferences(ctx context.Context) (analytics.Preferences, error) {
	values, err := c.Snapshot(ctx)
	if err != nil {
		return analytics.MetricPreferences, err
	}
	return analytics.PreferencesFrom(values), nil
}

// Loads reports how many times the source has been read.
func (c *SettingsCache) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

// Close unsubscribes from the bus.
func (c *SettingsCache) Close() {
	c.unsubscribe()
}

func copyValues(in map[models.SettingType]string) map[models.SettingType]string {
	out := make(map[models.SettingType]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
