/*
validate.go - Pure validity decisions for access codes

PURPOSE:
  Given a code record and the current time, decide whether a redemption
  would succeed and what the effective status is. No side effects, no
  clock reads: fully deterministic given (record, now).

PRECEDENCE:
  When multiple conditions hold at once, the reported reason follows
  not_found > disabled > expired > exhausted > ok. An admin-disabled code
  reports disabled even if it has also expired: that is the more
  actionable, intentional state.

EXPIRY BOUNDARY:
  Validity requires strictly now < ExpiresAt. A code whose expiry equals
  now is already expired.

SEE ALSO:
  - service.go: Applies decisions and performs the state transition
*/
package access

import "time"

// Decision is the outcome of evaluating a code against a point in time.
type Decision struct {
	OK     bool
	Reason Reason
}

// Evaluate decides whether redeeming c at now would succeed. Pass nil for
// a code that was not found.
func Evaluate(c *Code, now time.Time) Decision {
	switch {
	case c == nil:
		return Decision{Reason: ReasonNotFound}
	case c.Status == StoredDisabled:
		return Decision{Reason: ReasonDisabled}
	case !now.Before(c.ExpiresAt):
		return Decision{Reason: ReasonExpired}
	case c.UsesLeft <= 0:
		return Decision{Reason: ReasonExhausted}
	default:
		return Decision{OK: true, Reason: ReasonOK}
	}
}

// DeriveStatus computes the effective lifecycle state of a code at now.
// Same precedence as Evaluate, minus not_found.
func DeriveStatus(c Code, now time.Time) CodeStatus {
	switch {
	case c.Status == StoredDisabled:
		return StatusDisabled
	case !now.Before(c.ExpiresAt):
		return StatusExpired
	case c.UsesLeft <= 0:
		return StatusExhausted
	default:
		return StatusActive
	}
}
