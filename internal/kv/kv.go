// ABOUTME: Key/value persistence contract shared by every fitlog backend.
// ABOUTME: Defines Store, Txn, and the prefix helpers used for ordered scans.
package kv

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when a key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// ErrClosed is returned when a store is used after Close.
var ErrClosed = errors.New("store closed")

// ScanFunc receives each key/value pair in order. Returning false stops the scan.
// The slices are only valid for the duration of the call, and the callback must
// not write to the transaction it is scanning.
type ScanFunc func(key, value []byte) (bool, error)

// Txn is a view of the store inside View or Update.
// Writes made through a Txn become visible atomically when Update returns nil.
type Txn interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Scan visits every key starting with prefix in lexical order, or in
	// reverse lexical order when reverse is true.
	Scan(prefix []byte, reverse bool, fn ScanFunc) error
}

// Store is the durable key/value substrate. One instance per process.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error

	// View runs fn against a read-only snapshot.
	View(ctx context.Context, fn func(Txn) error) error
	// Update runs fn in a read-write transaction. If fn returns an error
	// nothing it wrote is applied.
	Update(ctx context.Context, fn func(Txn) error) error

	Close() error
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists (prefix is all 0xff).
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// Keys collects every key under prefix. Useful before deleting a range,
// since ScanFunc callbacks must not write.
func Keys(txn Txn, prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := txn.Scan(prefix, false, func(key, _ []byte) (bool, error) {
		k := make([]byte, len(key))
		copy(k, key)
		keys = append(keys, k)
		return true, nil
	})
	return keys, err
}

// DeletePrefix removes every key under prefix and reports how many were removed.
func DeletePrefix(txn Txn, prefix []byte) (int, error) {
	keys, err := Keys(txn, prefix)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}
