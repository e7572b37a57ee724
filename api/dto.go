/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Range validation lives in the engine; handlers only check shape
  (required fields present, parseable timestamps).

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/access-engine/access"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ValidateRequest is the public redemption request.
type ValidateRequest struct {
	AccessCode string `json:"access_code"`
}

// GrantDTO is the payload returned on successful redemption.
type GrantDTO struct {
	Status      string             `json:"status"`
	Message     string             `json:"message"`
	UserName    string             `json:"user_name"`
	AccessLevel string             `json:"access_level"`
	Permissions access.Permissions `json:"permissions"`
	ExpiresAt   string             `json:"expires_at"`
	UsesLeft    int                `json:"uses_remaining"`
}

// CreateCodeRequest is the admin request to create a code.
type CreateCodeRequest struct {
	AssignedTo  string `json:"assigned_to"`
	Email       string `json:"email"`
	ExpiryDays  *int   `json:"expiry_days,omitempty"`
	Uses        *int   `json:"uses,omitempty"`
	AccessLevel string `json:"access_level,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// CodeDTO represents an access code in admin responses.
type CodeDTO struct {
	Code        string `json:"code"`
	AssignedTo  string `json:"assigned_to"`
	Email       string `json:"email"`
	AccessLevel string `json:"access_level"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at"`
	TotalUses   int    `json:"total_uses"`
	UsesLeft    int    `json:"uses_remaining"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
	LastUsedAt  string `json:"last_used,omitempty"`
}

// UpdateCodeRequest is the admin patch request. Absent fields are left
// unchanged.
type UpdateCodeRequest struct {
	AssignedTo  *string `json:"assigned_to,omitempty"`
	Email       *string `json:"email,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	AccessLevel *string `json:"access_level,omitempty"`
	ExpiresAt   *string `json:"expires_at,omitempty"` // RFC3339
	AddUses     *int    `json:"add_uses,omitempty"`
	Reactivate  *bool   `json:"reactivate,omitempty"`
}

// EventDTO represents an audit event.
type EventDTO struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Code      string `json:"access_code"`
	User      string `json:"user"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
}

// StatsDTO is the admin stats payload.
type StatsDTO struct {
	TotalCodes     int    `json:"total_codes"`
	ActiveCodes    int    `json:"active_codes"`
	ExpiredCodes   int    `json:"expired_codes"`
	DisabledCodes  int    `json:"disabled_codes"`
	ExhaustedCodes int    `json:"exhausted_codes"`
	UniqueUsers    int    `json:"unique_users"`
	TotalLogins    int    `json:"total_logins"`
	RecentLogins   int    `json:"recent_logins"`
	Utilization    string `json:"utilization"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toCodeDTO(c access.AnnotatedCode) CodeDTO {
	dto := CodeDTO{
		Code:        c.Code.Code,
		AssignedTo:  c.AssignedTo,
		Email:       c.Email,
		AccessLevel: string(c.AccessLevel),
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		ExpiresAt:   c.ExpiresAt.Format(time.RFC3339),
		TotalUses:   c.TotalUses,
		UsesLeft:    c.UsesLeft,
		Status:      string(c.DerivedStatus),
		Notes:       c.Notes,
	}
	if c.LastUsedAt != nil {
		dto.LastUsedAt = c.LastUsedAt.Format(time.RFC3339)
	}
	return dto
}

func toEventDTO(e access.Event) EventDTO {
	dto := EventDTO{
		ID:        e.ID,
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Code:      e.Code,
		User:      e.User,
		Action:    string(e.Action),
	}
	if e.Action == access.ActionDenied {
		dto.Reason = string(e.Reason)
	}
	return dto
}

func toStatsDTO(s access.Stats) StatsDTO {
	return StatsDTO{
		TotalCodes:     s.TotalCodes,
		ActiveCodes:    s.ActiveCodes,
		ExpiredCodes:   s.ExpiredCodes,
		DisabledCodes:  s.DisabledCodes,
		ExhaustedCodes: s.ExhaustedCodes,
		UniqueUsers:    s.UniqueUsers,
		TotalLogins:    s.TotalLogins,
		RecentLogins:   s.RecentLogins,
		Utilization:    s.Utilization,
	}
}
