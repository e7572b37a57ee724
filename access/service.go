/*
service.go - Orchestration of the access-code lifecycle

PURPOSE:
  Service wires the generator, code store, validator, and audit log into
  the operations the HTTP layer exposes: create, validate-and-redeem,
  disable, update, list, logs, stats.

CONCURRENCY DISCIPLINE:
  Redemptions of different codes proceed in parallel with no ordering
  constraint. Redemptions of the same code are serialized through the
  store's compare-and-swap: read the record, compute the new state, write
  only if the version is unchanged, otherwise re-read and retry. Two
  concurrent redemptions of a code with one use left yield exactly one
  success and one exhausted denial. Retry loops honor ctx so a caller's
  timeout fails cleanly with no partial decrement.

AUDIT ORDERING:
  The login event is appended after the decrement commits, as part of the
  same logical operation. The log is observability, not authorization: a
  failed audit write never fails a committed redemption, and the log is
  never used to reconstruct uses_remaining.

SEE ALSO:
  - validate.go: The decision logic applied here
  - store.go: CodeStore / AuditLog contracts
*/
package access

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// Limits on creation parameters.
const (
	MinExpiryDays = 1
	MaxExpiryDays = 365
	MinUses       = 1
	MaxUses       = 1000
)

// Service exposes the access-code lifecycle operations. All dependencies
// are injected; there are no process-wide singletons.
type Service struct {
	codes CodeStore
	audit AuditLog
	gen   *Generator
	clock Clock
}

// NewService creates a service. gen and clock may be nil, in which case a
// default generator and the system clock are used.
func NewService(codes CodeStore, audit AuditLog, gen *Generator, clock Clock) *Service {
	if gen == nil {
		gen = NewGenerator("", 0)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{codes: codes, audit: audit, gen: gen, clock: clock}
}

// =============================================================================
// CREATE
// =============================================================================

// CreateParams are the inputs to CreateCode. Defaults (expiry days, uses)
// are the caller's concern; the engine validates ranges only.
type CreateParams struct {
	AssignedTo  string
	Email       string
	ExpiryDays  int
	Uses        int
	AccessLevel AccessLevel
	Notes       string
}

func (p CreateParams) validate() error {
	if p.AssignedTo == "" {
		return &InvalidArgumentError{Field: "assigned_to", Detail: "required"}
	}
	if p.Email == "" {
		return &InvalidArgumentError{Field: "email", Detail: "required"}
	}
	if p.ExpiryDays < MinExpiryDays || p.ExpiryDays > MaxExpiryDays {
		return &InvalidArgumentError{Field: "expiry_days", Detail: "must be between 1 and 365"}
	}
	if p.Uses < MinUses || p.Uses > MaxUses {
		return &InvalidArgumentError{Field: "uses", Detail: "must be between 1 and 1000"}
	}
	if !ValidLevel(p.AccessLevel) {
		return &InvalidArgumentError{Field: "access_level", Detail: "must be standard, admin, or read_only"}
	}
	return nil
}

// CreateCode generates a fresh code and stores it. Returns the full
// record; this is the only time the code string is surfaced to the admin
// flow.
func (s *Service) CreateCode(ctx context.Context, p CreateParams) (Code, error) {
	if err := p.validate(); err != nil {
		return Code{}, err
	}

	code, err := s.gen.Generate(ctx, s.codes)
	if err != nil {
		return Code{}, err
	}

	now := s.clock.Now()
	record := Code{
		Code:        code,
		AssignedTo:  p.AssignedTo,
		Email:       p.Email,
		AccessLevel: p.AccessLevel,
		CreatedAt:   now,
		ExpiresAt:   now.AddDate(0, 0, p.ExpiryDays),
		TotalUses:   p.Uses,
		UsesLeft:    p.Uses,
		Status:      StoredActive,
		Notes:       p.Notes,
	}

	if err := s.codes.Create(ctx, record); err != nil {
		return Code{}, err
	}
	return record, nil
}

// =============================================================================
// REDEEM
// =============================================================================

// ValidateAndRedeem looks up a code (case-insensitive), checks validity,
// and on success atomically consumes one use. Every attempt, successful
// or not, is recorded in the audit log.
func (s *Service) ValidateAndRedeem(ctx context.Context, rawCode string) (Grant, error) {
	code := NormalizeCode(rawCode)
	now := s.clock.Now()

	updated, err := UpdateCode(ctx, s.codes, code, func(c Code) (Code, error) {
		if d := Evaluate(&c, now); !d.OK {
			return Code{}, &DeniedError{Code: code, Reason: d.Reason}
		}
		c.UsesLeft--
		last := now
		c.LastUsedAt = &last
		return c, nil
	})

	if err != nil {
		reason := ReasonNotFound
		user := ""
		var denied *DeniedError
		switch {
		case errors.As(err, &denied):
			reason = denied.Reason
			if c, getErr := s.codes.Get(ctx, code); getErr == nil {
				user = c.AssignedTo
			}
		case IsNotFound(err):
			err = &DeniedError{Code: code, Reason: ReasonNotFound}
		default:
			// Storage failure: no decrement happened, nothing to audit.
			return Grant{}, err
		}
		s.record(ctx, code, user, ActionDenied, reason, now)
		return Grant{}, err
	}

	s.record(ctx, code, updated.AssignedTo, ActionLogin, ReasonOK, now)

	return Grant{
		UserName:    updated.AssignedTo,
		AccessLevel: updated.AccessLevel,
		Permissions: PermissionsFor(updated.AccessLevel),
		ExpiresAt:   updated.ExpiresAt,
		UsesLeft:    updated.UsesLeft,
	}, nil
}

// record appends an audit event. A failed audit write is logged but does
// not fail the committed operation.
func (s *Service) record(ctx context.Context, code, user string, action EventAction, reason Reason, at time.Time) {
	e := Event{
		ID:        uuid.NewString(),
		Timestamp: at,
		Code:      code,
		User:      user,
		Action:    action,
		Reason:    reason,
	}
	if err := s.audit.Append(ctx, e); err != nil {
		log.Printf("audit append failed for code %s: %v", code, err)
	}
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

// DisableCode transitions a code to disabled. One-way and idempotent:
// disabling an already-disabled code succeeds without error.
func (s *Service) DisableCode(ctx context.Context, rawCode string) error {
	code := NormalizeCode(rawCode)
	_, err := UpdateCode(ctx, s.codes, code, func(c Code) (Code, error) {
		c.Status = StoredDisabled
		return c, nil
	})
	return err
}

// UpdatePatch describes an admin edit. Nil fields are left unchanged.
type UpdatePatch struct {
	AssignedTo  *string
	Email       *string
	Notes       *string
	AccessLevel *AccessLevel

	// ExpiresAt may only extend the current expiry.
	ExpiresAt *time.Time

	// AddUses grants additional uses; must be positive. Raises both
	// TotalUses and UsesLeft so the remaining count never exceeds total.
	AddUses *int

	// Reactivate explicitly resurrects a disabled code. Editing other
	// fields never does this implicitly.
	Reactivate *bool
}

// UpdateCode applies a patch to a code and returns the updated record.
func (s *Service) UpdateCode(ctx context.Context, rawCode string, patch UpdatePatch) (Code, error) {
	code := NormalizeCode(rawCode)
	return UpdateCode(ctx, s.codes, code, func(c Code) (Code, error) {
		if patch.AssignedTo != nil {
			if *patch.AssignedTo == "" {
				return Code{}, &InvalidArgumentError{Field: "assigned_to", Detail: "required"}
			}
			c.AssignedTo = *patch.AssignedTo
		}
		if patch.Email != nil {
			c.Email = *patch.Email
		}
		if patch.Notes != nil {
			c.Notes = *patch.Notes
		}
		if patch.AccessLevel != nil {
			if !ValidLevel(*patch.AccessLevel) {
				return Code{}, &InvalidArgumentError{Field: "access_level", Detail: "must be standard, admin, or read_only"}
			}
			c.AccessLevel = *patch.AccessLevel
		}
		if patch.ExpiresAt != nil {
			if !patch.ExpiresAt.After(c.ExpiresAt) {
				return Code{}, &InvalidArgumentError{Field: "expires_at", Detail: "may only extend the current expiry"}
			}
			c.ExpiresAt = *patch.ExpiresAt
		}
		if patch.AddUses != nil {
			if *patch.AddUses <= 0 {
				return Code{}, &InvalidArgumentError{Field: "add_uses", Detail: "must be positive"}
			}
			c.TotalUses += *patch.AddUses
			c.UsesLeft += *patch.AddUses
		}
		if patch.Reactivate != nil && *patch.Reactivate {
			c.Status = StoredActive
		}
		return c, nil
	})
}

// =============================================================================
// READ VIEWS
// =============================================================================

// ListCodes returns all codes in creation order, annotated with their
// derived status at the current time.
func (s *Service) ListCodes(ctx context.Context) ([]AnnotatedCode, error) {
	codes, err := s.codes.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := make([]AnnotatedCode, len(codes))
	for i, c := range codes {
		out[i] = AnnotatedCode{Code: c, DerivedStatus: DeriveStatus(c, now)}
	}
	return out, nil
}

// GetCode returns a single code record, or ErrNotFound.
func (s *Service) GetCode(ctx context.Context, rawCode string) (AnnotatedCode, error) {
	c, err := s.codes.Get(ctx, NormalizeCode(rawCode))
	if err != nil {
		return AnnotatedCode{}, err
	}
	return AnnotatedCode{Code: c, DerivedStatus: DeriveStatus(c, s.clock.Now())}, nil
}

// GetLogs returns the most recent events, newest first, narrowed by
// filter. limit <= 0 means no limit.
func (s *Service) GetLogs(ctx context.Context, limit int, filter EventFilter) ([]Event, error) {
	if filter == (EventFilter{}) {
		return s.audit.Recent(ctx, limit)
	}
	events, err := s.audit.Recent(ctx, 0)
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, e := range events {
		if !filter.Match(e) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetStats derives summary counts from the code population and audit log.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	codes, err := s.codes.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	events, err := s.audit.Recent(ctx, 0)
	if err != nil {
		return Stats{}, err
	}
	now := s.clock.Now()
	recent, err := s.audit.CountLoginsSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return Stats{}, err
	}
	stats := Aggregate(codes, events, now)
	stats.RecentLogins = recent
	return stats, nil
}
