// ABOUTME: Repository interface and the key/value backed Store implementing it.
// ABOUTME: Every write runs in one kv transaction and publishes change events after commit.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/harperreed/fitlog/internal/encryption"
	"github.com/harperreed/fitlog/internal/events"
	"github.com/harperreed/fitlog/internal/kv"
	"github.com/harperreed/fitlog/internal/models"
	"github.com/oklog/ulid/v2"
)

// Repository defines the storage interface for fitlog data.
// This interface allows swapping implementations (e.g., for testing).
type Repository interface {
	// Setting operations
	GetSetting(ctx context.Context, t models.SettingType) (*models.Setting, error)
	GetSettingValue(ctx context.Context, t models.SettingType) (models.SettingValue, bool, error)
	AddOrUpdateSetting(ctx context.Context, t models.SettingType, value string) (*models.Setting, error)
	DeleteSetting(ctx context.Context, t models.SettingType) error
	ListSettings(ctx context.Context) ([]*models.Setting, error)

	// Chat operations
	AddChat(ctx context.Context, msg *models.ChatMessage) error
	GetChatByID(ctx context.Context, id int64) (*models.ChatMessage, error)
	DeleteChatByID(ctx context.Context, id int64) error
	ListChatsPaginated(ctx context.Context, offset, limit int) ([]*models.ChatMessage, error)
	GetChatsPaginated(ctx context.Context, page, pageSize int) ([]*models.ChatMessage, error)
	ClearChats(ctx context.Context) (int, error)

	// Exercise catalog operations
	AddExercise(ctx context.Context, e *models.Exercise) error
	GetExerciseByID(ctx context.Context, id uuid.UUID) (*models.Exercise, error)
	UpdateExercise(ctx context.Context, e *models.Exercise) error
	SoftDeleteExercise(ctx context.Context, id uuid.UUID) error
	ListExercisesPaginated(ctx context.Context, offset, limit int) ([]*models.Exercise, error)
	FindExerciseByName(ctx context.Context, name string) (*models.Exercise, error)
	EnsureExercise(ctx context.Context, name, muscleGroup string, exerciseType models.ExerciseType) (*models.Exercise, error)

	// Workout operations
	AddWorkout(ctx context.Context, w *models.WorkoutRecord) error
	GetWorkoutByID(ctx context.Context, id ulid.ULID) (*models.WorkoutRecord, error)
	GetWorkoutWithDetails(ctx context.Context, id ulid.ULID) (*models.WorkoutRecord, error)
	GetRecentWorkoutByID(ctx context.Context, id ulid.ULID) (*models.WorkoutRecord, error)
	ResolveWorkoutID(ctx context.Context, idOrPrefix string) (ulid.ULID, error)
	UpdateWorkout(ctx context.Context, w *models.WorkoutRecord) error
	SoftDeleteWorkout(ctx context.Context, id ulid.ULID) error
	PurgeWorkout(ctx context.Context, id ulid.ULID) error
	ListWorkoutsPaginated(ctx context.Context, offset, limit int) ([]*models.WorkoutRecord, error)

	// User metric operations
	AddUserMetric(ctx context.Context, m *models.UserMetric) error
	GetUserMetricByID(ctx context.Context, id uuid.UUID) (*models.UserMetric, error)
	DeleteUserMetric(ctx context.Context, id uuid.UUID) error
	ListUserMetricsPaginated(ctx context.Context, offset, limit int) ([]*models.UserMetric, error)
	GetClosestUserMetric(ctx context.Context, date time.Time) (*models.UserMetric, error)
	GetClosestBodyWeight(ctx context.Context, date time.Time) (*float64, error)

	// Backup
	DumpAllTables(ctx context.Context) (*Dump, error)
	RestoreFromDump(ctx context.Context, d *Dump) error
	DumpDatabase(ctx context.Context, passphrase string) ([]byte, error)
	RestoreDatabase(ctx context.Context, blob []byte, passphrase string) error
	ExportYAML(ctx context.Context) ([]byte, error)
	ExportMarkdown(ctx context.Context, since *time.Time) (string, error)

	// Change notifications
	Bus() *events.Bus

	// Lifecycle
	Close() error
}

// RecentWorkoutWindow bounds GetRecentWorkoutByID.
const RecentWorkoutWindow = 30 * 24 * time.Hour

// Store implements Repository on a kv.Store.
type Store struct {
	kv     kv.Store
	enc    *encryption.Service
	bus    *events.Bus
	logger *log.Logger
	now    func() time.Time
}

var _ Repository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithBus publishes change events on bus instead of a private one.
func WithBus(bus *events.Bus) Option {
	return func(s *Store) { s.bus = bus }
}

// WithLogger sets the logger used by the store and its encryption service.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over an open kv.Store. The Store owns the kv.Store
// and closes it on Close.
func New(store kv.Store, opts ...Option) *Store {
	s := &Store{kv: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.bus == nil {
		s.bus = events.NewBus(s.logger)
	}
	s.enc = encryption.NewService(store, s.logger)
	return s
}

// Bus returns the bus the store publishes on.
func (s *Store) Bus() *events.Bus {
	return s.bus
}

// Encryption returns the store's key service.
func (s *Store) Encryption() *encryption.Service {
	return s.enc
}

// Close closes the underlying kv store.
func (s *Store) Close() error {
	return s.kv.Close()
}

// key returns the device key. It must be called before opening a kv
// transaction, since provisioning runs its own.
func (s *Store) key(ctx context.Context) (encryption.Key, error) {
	k, err := s.enc.GetOrCreateKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("get encryption key: %w", err)
	}
	return k, nil
}

// publish announces committed writes.
func (s *Store) publish(kind events.Kind, tables ...string) {
	evs := make([]events.Event, len(tables))
	for i, t := range tables {
		evs[i] = events.Event{Table: t, Kind: kind}
	}
	s.bus.PublishAll(evs...)
}

// update runs fn in a transaction and wraps failures as TransactionError.
func (s *Store) update(ctx context.Context, op string, fn func(kv.Txn) error) error {
	if err := s.kv.Update(ctx, fn); err != nil {
		return &TransactionError{Op: op, Err: err}
	}
	return nil
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}
