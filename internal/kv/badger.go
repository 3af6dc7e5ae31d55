// ABOUTME: Badger-backed Store, the default fitlog persistence backend.
// ABOUTME: Wraps badger transactions and retries optimistic write conflicts.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v3"
)

// maxConflictRetries bounds how often Update re-runs fn after badger.ErrConflict.
const maxConflictRetries = 5

// BadgerStore implements Store on top of an embedded Badger database.
type BadgerStore struct {
	db *badger.DB
}

// Compile-time check that BadgerStore implements Store.
var _ Store = (*BadgerStore)(nil)

// OpenBadger opens or creates a Badger database in dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// OpenBadgerInMemory opens a Badger database that lives only in memory.
func OpenBadgerInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the value stored under key.
func (s *BadgerStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	var out []byte
	err := s.View(ctx, func(txn Txn) error {
		v, err := txn.Get(key)
		out = v
		return err
	})
	return out, err
}

// Set writes a single key.
func (s *BadgerStore) Set(ctx context.Context, key, value []byte) error {
	return s.Update(ctx, func(txn Txn) error { return txn.Set(key, value) })
}

// Delete removes a single key. Deleting a missing key is not an error.
func (s *BadgerStore) Delete(ctx context.Context, key []byte) error {
	return s.Update(ctx, func(txn Txn) error { return txn.Delete(key) })
}

// View runs fn in a read-only badger transaction.
func (s *BadgerStore) View(ctx context.Context, fn func(Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTxn{txn: txn})
	})
}

// Update runs fn in a read-write badger transaction, retrying on conflicts.
func (s *BadgerStore) Update(ctx context.Context, fn func(Txn) error) error {
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			return fn(&badgerTxn{txn: txn})
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("update after %d retries: %w", maxConflictRetries, err)
}

type badgerTxn struct {
	txn *badger.Txn
}

func (t *badgerTxn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *badgerTxn) Set(key, value []byte) error {
	return t.txn.Set(key, value)
}

func (t *badgerTxn) Delete(key []byte) error {
	return t.txn.Delete(key)
}

func (t *badgerTxn) Scan(prefix []byte, reverse bool, fn ScanFunc) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = reverse
	it := t.txn.NewIterator(opts)
	defer it.Close()

	seek := prefix
	if reverse {
		// Reverse iteration seeks to the largest key <= seek, so start past
		// every key sharing the prefix.
		seek = append(append([]byte{}, prefix...), 0xff)
	}

	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		more, err := fn(item.Key(), value)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}
