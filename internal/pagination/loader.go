// ABOUTME: Generic incremental fetch-and-merge over offset-paginated collections.
// ABOUTME: De-duplicates by identity and discards results from superseded loads.
package pagination

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidPageSize is returned for page sizes below one.
var ErrInvalidPageSize = errors.New("page size must be positive")

// Fetcher returns up to limit rows starting at offset.
type Fetcher[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// Loader accumulates pages from a Fetcher. The buffer never holds two rows
// with the same identity. Safe for concurrent use.
type Loader[T any, K comparable] struct {
	fetch Fetcher[T]
	id    func(T) K

	mu             sync.Mutex
	items          []T
	seen           map[K]struct{}
	removed        map[K]uint64
	cursor         int
	hasMore        bool
	inFlight       bool
	pendingInitial bool
	generation     uint64
}

// New creates an empty loader. Call LoadInitial before LoadMore.
func New[T any, K comparable](fetch Fetcher[T], id func(T) K) *Loader[T, K] {
	return &Loader[T, K]{
		fetch:   fetch,
		id:      id,
		seen:    make(map[K]struct{}),
		removed: make(map[K]uint64),
	}
}

// LoadInitial fetches the first page and replaces the buffer. A LoadInitial
// or LoadMore that started earlier and finishes later is discarded. Rows
// removed while the fetch was in flight stay removed.
func (l *Loader[T, K]) LoadInitial(ctx context.Context, pageSize int) error {
	if pageSize <= 0 {
		return ErrInvalidPageSize
	}

	l.mu.Lock()
	l.generation++
	gen := l.generation
	l.pendingInitial = true
	l.inFlight = false
	l.mu.Unlock()

	rows, err := l.fetch(ctx, 0, pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.generation {
		return nil
	}
	l.pendingInitial = false
	if err != nil {
		return err
	}

	// Tombstones stamped before this load started are reflected in rows.
	for k, stamp := range l.removed {
		if stamp < gen {
			delete(l.removed, k)
		}
	}

	l.items = make([]T, 0, len(rows))
	l.seen = make(map[K]struct{}, len(rows))
	skipped := 0
	for _, row := range rows {
		k := l.id(row)
		if _, gone := l.removed[k]; gone {
			skipped++
			continue
		}
		if _, dup := l.seen[k]; dup {
			continue
		}
		l.seen[k] = struct{}{}
		l.items = append(l.items, row)
	}
	l.cursor = len(rows) - skipped
	l.hasMore = len(rows) == pageSize
	return nil
}

// LoadMore fetches the page after the cursor and appends unseen rows. It is
// a no-op while another load is in flight or when no more rows are expected.
func (l *Loader[T, K]) LoadMore(ctx context.Context, pageSize int) error {
	if pageSize <= 0 {
		return ErrInvalidPageSize
	}

	l.mu.Lock()
	if l.inFlight || l.pendingInitial || !l.hasMore {
		l.mu.Unlock()
		return nil
	}
	l.inFlight = true
	gen := l.generation
	offset := l.cursor
	l.mu.Unlock()

	rows, err := l.fetch(ctx, offset, pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.generation {
		return nil
	}
	l.inFlight = false
	if err != nil {
		return err
	}

	for _, row := range rows {
		k := l.id(row)
		if _, dup := l.seen[k]; dup {
			continue
		}
		if _, gone := l.removed[k]; gone {
			continue
		}
		l.seen[k] = struct{}{}
		l.items = append(l.items, row)
	}
	l.cursor += len(rows)
	l.hasMore = len(rows) == pageSize
	return nil
}

// Remove drops the row with identity k from the buffer and the seen set.
// Later pages, and a LoadInitial already in flight, skip it. A LoadInitial
// started afterwards clears the mark. The cursor steps back by one because
// the row is expected to disappear from the backing collection.
func (l *Loader[T, K]) Remove(k K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removed[k] = l.generation
	if _, ok := l.seen[k]; !ok {
		return false
	}
	delete(l.seen, k)
	for i, row := range l.items {
		if l.id(row) == k {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			break
		}
	}
	if l.cursor > 0 {
		l.cursor--
	}
	return true
}

// Items returns a copy of the buffer in load order.
func (l *Loader[T, K]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of buffered rows.
func (l *Loader[T, K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// HasMore reports whether the last page was full.
func (l *Loader[T, K]) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

// Loading reports whether a load is in flight.
func (l *Loader[T, K]) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight || l.pendingInitial
}

// Generation returns the number of LoadInitial calls so far.
func (l *Loader[T, K]) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}
