// ABOUTME: UserMetric operations with encrypted measurements.
// ABOUTME: A day+source index keeps one live entry per calendar day and source.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/fitlog/internal/encryption"
	"github.com/harperreed/fitlog/internal/events"
	"github.com/harperreed/fitlog/internal/kv"
	"github.com/harperreed/fitlog/internal/models"
)

// metricRow is the persisted form; measurements are ciphertext or the empty sentinel.
type metricRow struct {
	ID            uuid.UUID           `json:"id"`
	Date          time.Time           `json:"date"`
	Weight        string              `json:"weight,omitempty"`
	Height        string              `json:"height,omitempty"`
	FatPercentage string              `json:"fat_percentage,omitempty"`
	Source        models.MetricSource `json:"source"`
	CreatedAt     time.Time           `json:"created_at"`
	DeletedAt     *time.Time          `json:"deleted_at,omitempty"`
}

func (r *metricRow) day() string {
	return r.Date.UTC().Format("2006-01-02")
}

func (r *metricRow) decode(key encryption.Key) (*models.UserMetric, error) {
	m := &models.UserMetric{
		ID:        r.ID,
		Date:      r.Date,
		Source:    r.Source,
		CreatedAt: r.CreatedAt,
		DeletedAt: r.DeletedAt,
	}
	var err error
	if m.Weight, err = encryption.DecryptFloat(r.Weight, key); err != nil {
		return nil, fmt.Errorf("decrypt metric %s weight: %w", r.ID, err)
	}
	if m.Height, err = encryption.DecryptFloat(r.Height, key); err != nil {
		return nil, fmt.Errorf("decrypt metric %s height: %w", r.ID, err)
	}
	if m.FatPercentage, err = encryption.DecryptFloat(r.FatPercentage, key); err != nil {
		return nil, fmt.Errorf("decrypt metric %s fat percentage: %w", r.ID, err)
	}
	return m, nil
}

func encodeMetric(m *models.UserMetric, key encryption.Key) (*metricRow, error) {
	row := &metricRow{
		ID:        m.ID,
		Date:      m.Date,
		Source:    m.Source,
		CreatedAt: m.CreatedAt,
		DeletedAt: m.DeletedAt,
	}
	var err error
	if row.Weight, err = encryption.EncryptFloat(m.Weight, key); err != nil {
		return nil, fmt.Errorf("encrypt metric weight: %w", err)
	}
	if row.Height, err = encryption.EncryptFloat(m.Height, key); err != nil {
		return nil, fmt.Errorf("encrypt metric height: %w", err)
	}
	if row.FatPercentage, err = encryption.EncryptFloat(m.FatPercentage, key); err != nil {
		return nil, fmt.Errorf("encrypt metric fat percentage: %w", err)
	}
	return row, nil
}

func validateUserMetric(m *models.UserMetric) error {
	if m == nil {
		return invalid("user_metric", "must not be nil")
	}
	if m.ID == uuid.Nil {
		return invalid("user_metric.id", "must be set")
	}
	if m.Date.IsZero() {
		return invalid("user_metric.date", "must be set")
	}
	if !models.IsValidMetricSource(string(m.Source)) {
		return invalid("user_metric.source", "unknown source %q", m.Source)
	}
	if m.Weight != nil && *m.Weight < 0 {
		return invalid("user_metric.weight", "must not be negative")
	}
	if m.Height != nil && *m.Height < 0 {
		return invalid("user_metric.height", "must not be negative")
	}
	if m.FatPercentage != nil && (*m.FatPercentage < 0 || *m.FatPercentage > 100) {
		return invalid("user_metric.fat_percentage", "must be between 0 and 100")
	}
	return nil
}

// putMetric writes a live metric row and claims its day+source slot,
// removing whichever row held it before. It reports whether a row was replaced.
func putMetric(txn kv.Txn, row *metricRow) (bool, error) {
	prev, err := getRow[metricRow](txn, userMetricKey(row.ID.String()))
	if err != nil {
		return false, err
	}
	replaced := prev != nil
	if prev != nil && prev.DeletedAt == nil {
		if err := txn.Delete(userMetricDayKey(prev.day(), string(prev.Source))); err != nil {
			return false, err
		}
	}

	dayKey := userMetricDayKey(row.day(), string(row.Source))
	holder, err := txn.Get(dayKey)
	switch {
	case errors.Is(err, kv.ErrKeyNotFound):
	case err != nil:
		return false, err
	case string(holder) != row.ID.String():
		if err := txn.Delete(userMetricKey(string(holder))); err != nil {
			return false, err
		}
		replaced = true
	}

	if err := putRow(txn, userMetricKey(row.ID.String()), row); err != nil {
		return false, err
	}
	if err := txn.Set(dayKey, []byte(row.ID.String())); err != nil {
		return false, err
	}
	return replaced, nil
}

// AddUserMetric stores m, replacing any live entry for the same UTC day and source.
func (s *Store) AddUserMetric(ctx context.Context, m *models.UserMetric) error {
	if m == nil {
		return validateUserMetric(m)
	}
	stored := *m
	if stored.Source == "" {
		stored.Source = models.SourceManual
	}
	if err := validateUserMetric(&stored); err != nil {
		return err
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.timestamp()
	}
	stored.DeletedAt = nil

	key, err := s.key(ctx)
	if err != nil {
		return err
	}
	row, err := encodeMetric(&stored, key)
	if err != nil {
		return err
	}

	var replaced bool
	err = s.kv.Update(ctx, func(txn kv.Txn) error {
		var err error
		replaced, err = putMetric(txn, row)
		return err
	})
	if err != nil {
		return fmt.Errorf("add user metric: %w", err)
	}

	*m = stored
	if replaced {
		s.publish(events.KindUpdate, events.TableUserMetrics)
	} else {
		s.publish(events.KindInsert, events.TableUserMetrics)
	}
	return nil
}

// GetUserMetricByID returns the metric, including soft-deleted ones, or nil.
func (s *Store) GetUserMetricByID(ctx context.Context, id uuid.UUID) (*models.UserMetric, error) {
	key, err := s.key(ctx)
	if err != nil {
		return nil, err
	}

	var row *metricRow
	err = s.kv.View(ctx, func(txn kv.Txn) error {
		var err error
		row, err = getRow[metricRow](txn, userMetricKey(id.String()))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get user metric: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return row.decode(key)
}

// DeleteUserMetric soft-deletes a metric and frees its day+source slot.
func (s *Store) DeleteUserMetric(ctx context.Context, id uuid.UUID) error {
	err := s.kv.Update(ctx, func(txn kv.Txn) error {
		row, err := getRow[metricRow](txn, userMetricKey(id.String()))
		if err != nil {
			return err
		}
		if row == nil || row.DeletedAt != nil {
			return &NotFoundError{Entity: "user metric", ID: id.String()}
		}
		now := s.timestamp()
		row.DeletedAt = &now
		if err := putRow(txn, userMetricKey(id.String()), row); err != nil {
			return err
		}
		return txn.Delete(userMetricDayKey(row.day(), string(row.Source)))
	})
	if err != nil {
		return fmt.Errorf("delete user metric: %w", err)
	}

	s.publish(events.KindDelete, events.TableUserMetrics)
	return nil
}

// liveMetrics decrypts every live metric, newest date first.
func (s *Store) liveMetrics(ctx context.Context) ([]*models.UserMetric, error) {
	key, err := s.key(ctx)
	if err != nil {
		return nil, err
	}

	var rows []*metricRow
	err = s.kv.View(ctx, func(txn kv.Txn) error {
		return scanRows(txn, []byte(UserMetricPrefix), false, func(row *metricRow) bool {
			if row.DeletedAt == nil {
				rows = append(rows, row)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}

	metrics := make([]*models.UserMetric, 0, len(rows))
	for _, row := range rows {
		m, err := row.decode(key)
		if err != nil {
			s.logger.Warn("unreadable user metric", "id", row.ID, "err", err)
			return nil, err
		}
		metrics = append(metrics, m)
	}
	sort.SliceStable(metrics, func(i, j int) bool {
		if !metrics[i].Date.Equal(metrics[j].Date) {
			return metrics[i].Date.After(metrics[j].Date)
		}
		return metrics[i].CreatedAt.After(metrics[j].CreatedAt)
	})
	return metrics, nil
}

// ListUserMetricsPaginated returns live metrics, newest date first.
func (s *Store) ListUserMetricsPaginated(ctx context.Context, offset, limit int) ([]*models.UserMetric, error) {
	metrics, err := s.liveMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user metrics: %w", err)
	}
	return window(metrics, offset, limit), nil
}

// GetClosestUserMetric returns the live metric with the latest Date not after
// date, or nil when there is none.
func (s *Store) GetClosestUserMetric(ctx context.Context, date time.Time) (*models.UserMetric, error) {
	return s.closestMetric(ctx, date, func(*models.UserMetric) bool { return true })
}

// GetClosestBodyWeight returns the weight of the closest metric at or before
// date that records one, or nil.
func (s *Store) GetClosestBodyWeight(ctx context.Context, date time.Time) (*float64, error) {
	m, err := s.closestMetric(ctx, date, func(m *models.UserMetric) bool { return m.Weight != nil })
	if err != nil || m == nil {
		return nil, err
	}
	return m.Weight, nil
}

func (s *Store) closestMetric(ctx context.Context, date time.Time, match func(*models.UserMetric) bool) (*models.UserMetric, error) {
	metrics, err := s.liveMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("closest user metric: %w", err)
	}
	for _, m := range metrics {
		if !m.Date.After(date) && match(m) {
			return m, nil
		}
	}
	return nil, nil
}
