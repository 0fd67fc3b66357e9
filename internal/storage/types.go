package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (ASIN list + timestamped log + cursor)
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store persists everything the pipeline must remember across restarts:
// the dedup ledger and the keyword rotation cursor.
//
// MarkPublished is the only ledger mutator and flushes durably before
// returning; Seen and CanPost are pure queries over flushed state.
type Store interface {
	// Seen reports whether asin appears in the all-time published set.
	Seen(ctx context.Context, asin string) (bool, error)
	// CanPost reports whether no publish of asin happened within cooldown.
	CanPost(ctx context.Context, asin string, cooldown time.Duration) (bool, error)
	// MarkPublished appends asin to the all-time set and timestamped ledger.
	MarkPublished(ctx context.Context, asin string) error
	// Reset clears both ledgers (weekly maintenance). The cursor survives.
	Reset(ctx context.Context) error

	// Cursor returns the keyword rotation index (0 if unset or corrupt).
	Cursor(ctx context.Context) (int, error)
	SetCursor(ctx context.Context, v int) error

	Close() error
}

// PersistenceError wraps ledger/cursor I/O failures. A tick that hits one
// is abandoned; state stays as flushed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
