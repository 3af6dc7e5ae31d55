// ABOUTME: In-process change notification bus published after each committed write.
// ABOUTME: Delivery is synchronous and ordered; a panicking listener never blocks the rest.
package events

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Kind is the type of mutation a table experienced.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Table names carried by events.
const (
	TableSettings         = "settings"
	TableChats            = "chats"
	TableExercises        = "exercises"
	TableWorkouts         = "workouts"
	TableWorkoutExercises = "workout_exercises"
	TableSets             = "sets"
	TableUserMetrics      = "user_metrics"
)

// AllTables lists every table the store publishes for.
var AllTables = []string{
	TableSettings, TableChats, TableExercises, TableWorkouts,
	TableWorkoutExercises, TableSets, TableUserMetrics,
}

// Event says that a table changed. It carries no row data.
type Event struct {
	Table string `json:"table"`
	Kind  Kind   `json:"kind"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s:%s", e.Table, e.Kind)
}

// Listener receives events in the publisher's goroutine.
type Listener func(Event)

type subscription struct {
	id int
	fn Listener
}

// Bus fans events out to the listeners registered when Publish is called.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
	logger *log.Logger
}

// NewBus creates an empty bus. A nil logger uses log.Default().
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers fn and returns a func that removes it. Calling the
// returned func more than once is harmless.
func (b *Bus) Subscribe(fn Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// SubscribeTable registers fn for events on a single table.
func (b *Bus) SubscribeTable(table string, fn Listener) func() {
	return b.Subscribe(func(e Event) {
		if e.Table == table {
			fn(e)
		}
	})
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers e to every current listener in subscription order.
// Listeners added or removed during delivery take effect on the next event.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	snapshot := make([]subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	for _, s := range snapshot {
		b.deliver(s, e)
	}
}

// PublishAll delivers each event in order.
func (b *Bus) PublishAll(events ...Event) {
	for _, e := range events {
		b.Publish(e)
	}
}

// Len reports the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) deliver(s subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("change listener panicked", "event", e.String(), "listener", s.id, "panic", r)
		}
	}()
	s.fn(e)
}
