/*
store.go - Persistence interfaces for codes and audit events

PURPOSE:
  Defines the interface between the engine and the database. CodeStore
  owns the code records and their read/modify/write atomicity; AuditLog
  owns the append-only event sequence. Different implementations can use
  SQLite or in-memory storage.

DURABILITY CONTRACT:
  Every mutation must be durable before the call returns (write-through),
  so a crash immediately after a successful redemption never re-grants a
  used slot on restart.

COMPARE-AND-SWAP:
  CompareAndSwap is the only mutation primitive on existing codes. The
  service reads a record, computes the new state, and writes it back only
  if the version is unchanged; on conflict it re-reads and retries. This
  serializes redemptions of the same code without a global lock.

APPEND-ONLY CONTRACT:
  AuditLog has no Update or Delete. Ever. Events record what happened;
  they are never used to reconstruct code state.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite (WAL)
  - access/store/memory.go: In-memory for testing

SEE ALSO:
  - service.go: Uses these interfaces
*/
package access

import (
	"context"
	"time"
)

// =============================================================================
// CODE STORE
// =============================================================================

// CodeStore is the durable mapping from code string to record. Keys are
// canonical (NormalizeCode); implementations may assume callers normalize.
type CodeStore interface {
	// Create persists a new record. Returns ErrCodeExists if the code is
	// already present.
	Create(ctx context.Context, c Code) error

	// Get returns the record for a code, or ErrNotFound.
	Get(ctx context.Context, code string) (Code, error)

	// CompareAndSwap writes c only if the stored version still equals
	// expectedVersion, bumping the version on success. Returns
	// ErrConcurrentModification on a version mismatch, ErrNotFound if the
	// code does not exist.
	CompareAndSwap(ctx context.Context, code string, expectedVersion int64, c Code) error

	// List returns all records in creation order.
	List(ctx context.Context) ([]Code, error)
}

// UpdateCode applies mutate transactionally via a Get + CompareAndSwap
// retry loop. mutate sees the current record and returns the new one; it
// may be called more than once.
func UpdateCode(ctx context.Context, store CodeStore, code string, mutate func(Code) (Code, error)) (Code, error) {
	for {
		cur, err := store.Get(ctx, code)
		if err != nil {
			return Code{}, err
		}
		next, err := mutate(cur)
		if err != nil {
			return Code{}, err
		}
		err = store.CompareAndSwap(ctx, code, cur.Version, next)
		if err == nil {
			next.Version = cur.Version + 1
			return next, nil
		}
		if !IsRetryable(err) {
			return Code{}, err
		}
		if err := ctx.Err(); err != nil {
			return Code{}, err
		}
		// Lost the race; re-read and try again.
	}
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AuditLog stores redemption events. Append-only; insertion order is the
// authoritative event order.
type AuditLog interface {
	// Append persists an event. The store assigns Seq.
	Append(ctx context.Context, e Event) error

	// Recent returns the most recent limit events, newest first.
	// limit <= 0 means no limit.
	Recent(ctx context.Context, limit int) ([]Event, error)

	// CountLoginsSince counts login events strictly after t.
	CountLoginsSince(ctx context.Context, t time.Time) (int, error)
}

// EventFilter narrows an audit query. Zero values match everything.
type EventFilter struct {
	Code   string
	User   string
	Action EventAction
}

// Match reports whether e passes the filter.
func (f EventFilter) Match(e Event) bool {
	if f.Code != "" && e.Code != f.Code {
		return false
	}
	if f.User != "" && e.User != f.User {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	return true
}
