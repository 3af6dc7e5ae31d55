// ABOUTME: SQLite-backed Store using a single ordered kv table.
// ABOUTME: Uses modernc.org/sqlite (pure Go, no CGO required).
package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates a SQLite key/value database at dbPath.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and keeps each transaction on a
	// single SQLite handle.
	db.SetMaxOpenConns(1)

	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		_ = db.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.configurePragmas(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure pragmas: %w", err)
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
		key BLOB PRIMARY KEY,
		value BLOB NOT NULL
	) WITHOUT ROWID;
	`)
	return err
}

// Get returns the value stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	var out []byte
	err := s.View(ctx, func(txn Txn) error {
		v, err := txn.Get(key)
		out = v
		return err
	})
	return out, err
}

// Set writes a single key.
func (s *SQLiteStore) Set(ctx context.Context, key, value []byte) error {
	return s.Update(ctx, func(txn Txn) error { return txn.Set(key, value) })
}

// Delete removes a single key.
func (s *SQLiteStore) Delete(ctx context.Context, key []byte) error {
	return s.Update(ctx, func(txn Txn) error { return txn.Delete(key) })
}

// View runs fn inside a read-only SQL transaction.
func (s *SQLiteStore) View(ctx context.Context, fn func(Txn) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin view: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&sqliteTxn{ctx: ctx, tx: tx, readOnly: true})
}

// Update runs fn inside a SQL transaction and commits only if fn succeeds.
func (s *SQLiteStore) Update(ctx context.Context, fn func(Txn) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	if err := fn(&sqliteTxn{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type sqliteTxn struct {
	ctx      context.Context
	tx       *sql.Tx
	readOnly bool
}

var errReadOnly = errors.New("write in read-only transaction")

func (t *sqliteTxn) Get(key []byte) ([]byte, error) {
	var value []byte
	err := t.tx.QueryRowContext(t.ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("get key: %w", err)
	}
	return value, nil
}

func (t *sqliteTxn) Set(key, value []byte) error {
	if t.readOnly {
		return errReadOnly
	}
	if value == nil {
		value = []byte{}
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set key: %w", err)
	}
	return nil
}

func (t *sqliteTxn) Delete(key []byte) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, err := t.tx.ExecContext(t.ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}

// Scan loads the matching rows before invoking fn so the callback never
// runs while a result set is open on the transaction's connection.
func (t *sqliteTxn) Scan(prefix []byte, reverse bool, fn ScanFunc) error {
	order := "ASC"
	if reverse {
		order = "DESC"
	}

	var rows *sql.Rows
	var err error
	if end := PrefixEnd(prefix); end != nil {
		rows, err = t.tx.QueryContext(t.ctx,
			"SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key "+order,
			prefix, end)
	} else {
		rows, err = t.tx.QueryContext(t.ctx,
			"SELECT key, value FROM kv WHERE key >= ? ORDER BY key "+order, prefix)
	}
	if err != nil {
		return fmt.Errorf("scan prefix: %w", err)
	}

	type pair struct{ key, value []byte }
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.key, &p.value); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan row: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, p := range pairs {
		more, err := fn(p.key, p.value)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}
