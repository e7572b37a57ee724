/*
Package access provides the core access-code lifecycle engine.

PURPOSE:
  This package contains the types and algorithms for managing short-lived,
  usage-capped invitation codes: generation, validation, redemption
  accounting, and the audit trail that stats and admin views are derived
  from. The HTTP layer, persistence backends, and configuration live in
  sibling packages; everything here takes its collaborators as explicit
  constructor arguments.

KEY CONCEPTS IN THIS FILE (types.go):
  - Code: The durable record for a single access code
  - AccessLevel / Permissions: What a redeemed code grants
  - CodeStatus: Derived lifecycle state (never stored)
  - Event: An immutable audit record of a redemption attempt

DESIGN PRINCIPLES:
  1. Derived state: expiration and exhaustion are computed at read time
     from (record, now), never stored, so there is no stale-status sweep
  2. Immutability: audit events are append-only and never mutated
  3. Type safety: enums for access levels, statuses, and event actions
  4. Determinism: every decision is a pure function of (record, now)

SEE ALSO:
  - validate.go: Pure validity decisions and derived status
  - service.go: Orchestration and the redemption concurrency discipline
  - store.go: Persistence interfaces (CodeStore, AuditLog)
*/
package access

import (
	"strings"
	"time"
)

// =============================================================================
// ACCESS LEVELS - What a code grants once redeemed
// =============================================================================

type AccessLevel string

const (
	LevelStandard AccessLevel = "standard"
	LevelAdmin    AccessLevel = "admin"
	LevelReadOnly AccessLevel = "read_only"
)

// ValidLevel reports whether s names a known access level.
func ValidLevel(s AccessLevel) bool {
	switch s {
	case LevelStandard, LevelAdmin, LevelReadOnly:
		return true
	}
	return false
}

// Permissions is the capability set attached to an access level.
type Permissions struct {
	CanUploadImages    bool `json:"can_upload_images"`
	CanGenerateReports bool `json:"can_generate_reports"`
	CanAccessAdmin     bool `json:"can_access_admin"`
	CanModifyData      bool `json:"can_modify_data"`
}

// PermissionsFor maps an access level to its capability set.
// Unknown levels fall back to standard.
func PermissionsFor(level AccessLevel) Permissions {
	switch level {
	case LevelAdmin:
		return Permissions{
			CanUploadImages:    true,
			CanGenerateReports: true,
			CanAccessAdmin:     true,
			CanModifyData:      true,
		}
	case LevelReadOnly:
		return Permissions{}
	default:
		return Permissions{
			CanUploadImages:    true,
			CanGenerateReports: true,
		}
	}
}

// =============================================================================
// CODE - Durable record for a single access code
// =============================================================================

// StoredStatus is the persisted admin-controlled status. Only two values
// exist on disk; expiration and exhaustion are derived, never stored.
type StoredStatus string

const (
	StoredActive   StoredStatus = "active"
	StoredDisabled StoredStatus = "disabled"
)

// Code is the record for one access code. The code string is immutable
// after creation and compared case-insensitively.
type Code struct {
	Code        string
	AssignedTo  string
	Email       string
	AccessLevel AccessLevel
	CreatedAt   time.Time
	ExpiresAt   time.Time
	TotalUses   int
	UsesLeft    int
	Status      StoredStatus
	Notes       string
	LastUsedAt  *time.Time

	// Version backs the store's compare-and-swap. It is incremented on
	// every successful write and never exposed to callers.
	Version int64
}

// NormalizeCode canonicalizes a user-supplied code string for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// =============================================================================
// CODE STATUS - Derived lifecycle state
// =============================================================================

// CodeStatus is the effective state of a code at a point in time.
// Computed by DeriveStatus; never persisted.
type CodeStatus string

const (
	StatusActive    CodeStatus = "active"
	StatusDisabled  CodeStatus = "disabled"
	StatusExpired   CodeStatus = "expired"
	StatusExhausted CodeStatus = "exhausted"
)

// AnnotatedCode is a Code paired with its derived status, for admin views.
type AnnotatedCode struct {
	Code
	DerivedStatus CodeStatus
}

// =============================================================================
// AUDIT EVENT - Immutable record of a redemption attempt
// =============================================================================

type EventAction string

const (
	ActionLogin  EventAction = "login"
	ActionDenied EventAction = "denied"
)

// Event records a single redemption attempt. Seq is assigned by the
// AuditLog on append and reflects true insertion order; ID is a uuid
// assigned by the service.
type Event struct {
	Seq       int64
	ID        string
	Timestamp time.Time
	Code      string
	User      string // assignedTo at time of event
	Action    EventAction
	Reason    Reason // denial reason; ReasonOK for logins
}

// =============================================================================
// REDEMPTION RESULT
// =============================================================================

// Grant is the payload returned to a caller on successful redemption.
type Grant struct {
	UserName    string
	AccessLevel AccessLevel
	Permissions Permissions
	ExpiresAt   time.Time
	UsesLeft    int
}

// Stats is the summary derived from the code population and audit log.
type Stats struct {
	TotalCodes     int
	ActiveCodes    int
	ExpiredCodes   int
	DisabledCodes  int
	ExhaustedCodes int
	UniqueUsers    int
	TotalLogins    int
	RecentLogins   int    // logins in the trailing 24h window
	Utilization    string // uses consumed / uses issued, decimal string
}
