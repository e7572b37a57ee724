/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements access.CodeStore and access.AuditLog using SQLite. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  access.CodeStore: Code records with optimistic-versioned writes
  access.AuditLog:  Append-only redemption events

WRITE-THROUGH:
  Every mutation is committed before the call returns, so a crash right
  after a successful redemption never re-grants the consumed use on
  restart.

COMPARE-AND-SWAP:
  The version column backs the CAS contract: UPDATE ... WHERE code = ?
  AND version = ?. Zero rows affected means either the code is missing or
  another writer won the race; the two are distinguished with a follow-up
  existence check.

APPEND-ONLY ENFORCEMENT:
  audit_events has no UPDATE or DELETE statements. The AUTOINCREMENT
  sequence is the authoritative event order and survives restarts.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/access.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := access.NewService(store, store, nil, nil)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - access/store.go: Interface definitions
  - access/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/access-engine/access"
)

// Store implements access.CodeStore and access.AuditLog using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: SQLite has one writer anyway, and :memory:
	// databases are per-connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Access codes, keyed by the canonical code string
	CREATE TABLE IF NOT EXISTS access_codes (
		code TEXT PRIMARY KEY,
		assigned_to TEXT NOT NULL,
		email TEXT NOT NULL,
		access_level TEXT NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		total_uses INTEGER NOT NULL,
		uses_left INTEGER NOT NULL,
		status TEXT NOT NULL,
		notes TEXT,
		last_used_at TEXT,
		version INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_access_codes_status
		ON access_codes(status);
	CREATE INDEX IF NOT EXISTS idx_access_codes_expires_at
		ON access_codes(expires_at);

	-- Audit events (append-only; seq is the authoritative order)
	CREATE TABLE IF NOT EXISTS audit_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		ts TEXT NOT NULL,
		code TEXT NOT NULL,
		user TEXT,
		action TEXT NOT NULL,
		reason TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_code
		ON audit_events(code);
	CREATE INDEX IF NOT EXISTS idx_audit_events_action_ts
		ON audit_events(action, ts);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CODE STORE (access.CodeStore interface)
// =============================================================================

// Create inserts a new code record.
func (s *Store) Create(ctx context.Context, c access.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO access_codes
		(code, assigned_to, email, access_level, created_at, expires_at,
		 total_uses, uses_left, status, notes, last_used_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`

	_, err := s.db.ExecContext(ctx, query,
		access.NormalizeCode(c.Code),
		c.AssignedTo,
		c.Email,
		string(c.AccessLevel),
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
		c.ExpiresAt.UTC().Format(time.RFC3339Nano),
		c.TotalUses,
		c.UsesLeft,
		string(c.Status),
		nullString(c.Notes),
		nullTime(c.LastUsedAt),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return access.ErrCodeExists
		}
		return fmt.Errorf("failed to create access code: %w", err)
	}
	return nil
}

// Get returns the record for a code, or access.ErrNotFound.
func (s *Store) Get(ctx context.Context, code string) (access.Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.get(ctx, code)
}

func (s *Store) get(ctx context.Context, code string) (access.Code, error) {
	query := `
		SELECT code, assigned_to, email, access_level, created_at, expires_at,
		       total_uses, uses_left, status, notes, last_used_at, version
		FROM access_codes
		WHERE code = ?
	`

	row := s.db.QueryRowContext(ctx, query, access.NormalizeCode(code))
	c, err := scanCode(row)
	if err == sql.ErrNoRows {
		return access.Code{}, access.ErrNotFound
	}
	if err != nil {
		return access.Code{}, fmt.Errorf("failed to get access code: %w", err)
	}
	return c, nil
}

// CompareAndSwap writes c only if the stored version is unchanged.
func (s *Store) CompareAndSwap(ctx context.Context, code string, expectedVersion int64, c access.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := access.NormalizeCode(code)

	query := `
		UPDATE access_codes
		SET assigned_to = ?, email = ?, access_level = ?, expires_at = ?,
		    total_uses = ?, uses_left = ?, status = ?, notes = ?,
		    last_used_at = ?, version = version + 1
		WHERE code = ? AND version = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		c.AssignedTo,
		c.Email,
		string(c.AccessLevel),
		c.ExpiresAt.UTC().Format(time.RFC3339Nano),
		c.TotalUses,
		c.UsesLeft,
		string(c.Status),
		nullString(c.Notes),
		nullTime(c.LastUsedAt),
		key,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update access code: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update access code: %w", err)
	}
	if affected == 0 {
		// Missing code and lost race both affect zero rows; distinguish.
		if _, err := s.get(ctx, key); err != nil {
			return err
		}
		return access.ErrConcurrentModification
	}
	return nil
}

// List returns all records in creation order.
func (s *Store) List(ctx context.Context) ([]access.Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT code, assigned_to, email, access_level, created_at, expires_at,
		       total_uses, uses_left, status, notes, last_used_at, version
		FROM access_codes
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list access codes: %w", err)
	}
	defer rows.Close()

	var codes []access.Code
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCode(row rowScanner) (access.Code, error) {
	var (
		c          access.Code
		level      string
		createdAt  string
		expiresAt  string
		status     string
		notes      sql.NullString
		lastUsedAt sql.NullString
	)

	err := row.Scan(
		&c.Code, &c.AssignedTo, &c.Email, &level, &createdAt, &expiresAt,
		&c.TotalUses, &c.UsesLeft, &status, &notes, &lastUsedAt, &c.Version,
	)
	if err != nil {
		return c, err
	}

	c.AccessLevel = access.AccessLevel(level)
	c.Status = access.StoredStatus(status)
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expiresAt)
	c.Notes = notes.String
	if lastUsedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastUsedAt.String)
		c.LastUsedAt = &t
	}
	return c, nil
}

// =============================================================================
// AUDIT LOG (access.AuditLog interface)
// =============================================================================

// Append persists an event. The AUTOINCREMENT seq records true order.
func (s *Store) Append(ctx context.Context, e access.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO audit_events (id, ts, code, user, action, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Code,
		nullString(e.User),
		string(e.Action),
		string(e.Reason),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// Recent returns the most recent events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]access.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT seq, id, ts, code, user, action, reason
		FROM audit_events
		ORDER BY seq DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []access.Event
	for rows.Next() {
		var (
			e    access.Event
			ts   string
			user sql.NullString
		)
		if err := rows.Scan(&e.Seq, &e.ID, &ts, &e.Code, &user, &e.Action, &e.Reason); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		e.User = user.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountLoginsSince counts login events strictly after t.
func (s *Store) CountLoginsSince(ctx context.Context, t time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_events WHERE action = ? AND ts > ?",
		string(access.ActionLogin),
		t.UTC().Format(time.RFC3339Nano),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count logins: %w", err)
	}
	return count, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"access_codes", "audit_events"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
