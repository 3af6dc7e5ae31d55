// ABOUTME: Paginated collection views that refresh when their tables change.
// ABOUTME: Chat and workout histories built on the generic loader.
package views

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"github.com/harperreed/fitlog/internal/events"
	"github.com/harperreed/fitlog/internal/models"
	"github.com/harperreed/fitlog/internal/pagination"
)

// DefaultPageSize is used when a view is created with a non-positive page size.
const DefaultPageSize = 20

// CollectionView keeps a loader in step with the repository. Any change event
// on one of its tables schedules a background reload of the visible rows.
type CollectionView[T any, K comparable] struct {
	loader   *pagination.Loader[T, K]
	pageSize int
	logger   *log.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()

	// mu guards closed together with wg.Add so no refresh starts after Close.
	mu     sync.Mutex
	closed bool
}

// NewCollectionView wires fetch to bus for the given tables.
func NewCollectionView[T any, K comparable](
	bus *events.Bus,
	fetch pagination.Fetcher[T],
	id func(T) K,
	pageSize int,
	logger *log.Logger,
	tables ...string,
) *CollectionView[T, K] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &CollectionView[T, K]{
		loader:   pagination.New(fetch, id),
		pageSize: pageSize,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	watched := make(map[string]bool, len(tables))
	for _, t := range tables {
		watched[t] = true
	}
	v.unsubscribe = bus.Subscribe(func(e events.Event) {
		if watched[e.Table] {
			v.scheduleRefresh()
		}
	})
	return v
}

func (v *CollectionView[T, K]) scheduleRefresh() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.wg.Add(1)
	v.mu.Unlock()
	go func() {
		defer v.wg.Done()
		if err := v.Refresh(v.ctx); err != nil && v.ctx.Err() == nil {
			v.logger.Warn("view refresh failed", "err", err)
		}
	}()
}

// Load fetches the first page.
func (v *CollectionView[T, K]) Load(ctx context.Context) error {
	return v.loader.LoadInitial(ctx, v.pageSize)
}

// Refresh reloads at least as many rows as are currently visible.
func (v *CollectionView[T, K]) Refresh(ctx context.Context) error {
	return v.loader.LoadInitial(ctx, max(v.pageSize, v.loader.Len()))
}

// LoadMore appends the next page.
func (v *CollectionView[T, K]) LoadMore(ctx context.Context) error {
	return v.loader.LoadMore(ctx, v.pageSize)
}

// Items returns the visible rows.
func (v *CollectionView[T, K]) Items() []T { return v.loader.Items() }

// HasMore reports whether another page may exist.
func (v *CollectionView[T, K]) HasMore() bool { return v.loader.HasMore() }

// Remove hides a row immediately, ahead of the backing delete.
func (v *CollectionView[T, K]) Remove(k K) bool { return v.loader.Remove(k) }

// Wait blocks until scheduled refreshes finish.
func (v *CollectionView[T, K]) Wait() { v.wg.Wait() }

// Close unsubscribes, cancels pending refreshes and waits for them.
func (v *CollectionView[T, K]) Close() {
	v.unsubscribe()
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.cancel()
	v.wg.Wait()
}

// remove hides k, runs del, and reloads when del fails so the row reappears.
func (v *CollectionView[T, K]) remove(ctx context.Context, k K, del func(context.Context) error) error {
	v.Remove(k)
	if err := del(ctx); err != nil {
		if rerr := v.Refresh(ctx); rerr != nil {
			v.logger.Warn("view reload after failed delete", "err", rerr)
		}
		return err
	}
	return nil
}

// ChatSource is the slice of the repository chat history needs.
type ChatSource interface {
	ListChatsPaginated(ctx context.Context, offset, limit int) ([]*models.ChatMessage, error)
	DeleteChatByID(ctx context.Context, id int64) error
}

// ChatHistory lists chat messages newest first.
type ChatHistory struct {
	*CollectionView[*models.ChatMessage, int64]
	source ChatSource
}

// NewChatHistory refreshes on chat table changes.
func NewChatHistory(source ChatSource, bus *events.Bus, pageSize int, logger *log.Logger) *ChatHistory {
	return &ChatHistory{
		CollectionView: NewCollectionView[*models.ChatMessage, int64](bus, source.ListChatsPaginated,
			func(m *models.ChatMessage) int64 { return m.ID },
			pageSize, logger, events.TableChats),
		source: source,
	}
}

// Delete removes a message from the view and then from storage.
func (h *ChatHistory) Delete(ctx context.Context, id int64) error {
	return h.remove(ctx, id, func(ctx context.Context) error {
		return h.source.DeleteChatByID(ctx, id)
	})
}

// WorkoutSource is the slice of the repository workout history needs.
type WorkoutSource interface {
	ListWorkoutsPaginated(ctx context.Context, offset, limit int) ([]*models.WorkoutRecord, error)
	SoftDeleteWorkout(ctx context.Context, id ulid.ULID) error
}

// WorkoutHistory lists live workouts newest first.
type WorkoutHistory struct {
	*CollectionView[*models.WorkoutRecord, ulid.ULID]
	source WorkoutSource
}

// NewWorkoutHistory refreshes on changes to any table of the workout tree.
func NewWorkoutHistory(source WorkoutSource, bus *events.Bus, pageSize int, logger *log.Logger) *WorkoutHistory {
	return &WorkoutHistory{
		CollectionView: NewCollectionView[*models.WorkoutRecord, ulid.ULID](bus, source.ListWorkoutsPaginated,
			func(w *models.WorkoutRecord) ulid.ULID { return w.ID },
			pageSize, logger,
			events.TableWorkouts, events.TableWorkoutExercises, events.TableSets),
		source: source,
	}
}

// Delete soft-deletes a workout, hiding it from the view first.
func (h *WorkoutHistory) Delete(ctx context.Context, id ulid.ULID) error {
	return h.remove(ctx, id, func(ctx context.Context) error {
		return h.source.SoftDeleteWorkout(ctx, id)
	})
}
