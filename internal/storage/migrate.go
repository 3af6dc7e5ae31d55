// ABOUTME: Data migration between fitlog storage backends.
// ABOUTME: Copies every table from a source repository into an empty destination.

package storage

import (
	"context"
	"fmt"
)

// MigrateSummary holds counts of migrated rows, soft-deleted rows included.
type MigrateSummary struct {
	Settings    int
	Chats       int
	Exercises   int
	Workouts    int
	UserMetrics int
}

// Total returns the number of rows across all tables.
func (m *MigrateSummary) Total() int {
	return m.Settings + m.Chats + m.Exercises + m.Workouts + m.UserMetrics
}

// Summarize counts the rows in a snapshot.
func Summarize(d *Dump) *MigrateSummary {
	return &MigrateSummary{
		Settings:    len(d.Settings),
		Chats:       len(d.Chats),
		Exercises:   len(d.Exercises),
		Workouts:    len(d.Workouts),
		UserMetrics: len(d.UserMetrics),
	}
}

// MigrateData copies all data from src to dst. IDs, timestamps and
// soft-delete markers are kept; content is re-encrypted under dst's key.
// The destination must be empty.
func MigrateData(ctx context.Context, src, dst Repository) (*MigrateSummary, error) {
	existing, err := dst.DumpAllTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("read destination: %w", err)
	}
	if n := Summarize(existing).Total(); n > 0 {
		return nil, fmt.Errorf("destination is not empty: %d rows", n)
	}

	d, err := src.DumpAllTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	if err := dst.RestoreFromDump(ctx, d); err != nil {
		return nil, fmt.Errorf("write destination: %w", err)
	}
	return Summarize(d), nil
}
