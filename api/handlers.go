/*
handlers.go - HTTP API handlers for the access-code engine

PURPOSE:
  Exposes the access-code lifecycle via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the engine.

ENDPOINTS:
  Public:
    POST   /api/access/validate              Redeem an access code

  Admin (X-API-Key):
    POST   /api/admin/access/create          Create a code
    GET    /api/admin/access/list            List codes with derived status
    POST   /api/admin/access/disable/{code}  Disable a code
    POST   /api/admin/access/update/{code}   Patch a code
    GET    /api/admin/access/logs            Audit events, newest first
    GET    /api/admin/access/stats           Summary counts

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Redemption denied (expired/disabled/exhausted/unknown)
  - 404: Code not found (admin operations)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/access-engine/access"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *access.Service

	// Defaults applied when a create request omits the fields.
	DefaultExpiryDays int
	DefaultUses       int
}

// NewHandler creates a handler around the engine service.
func NewHandler(svc *access.Service, defaultExpiryDays, defaultUses int) *Handler {
	return &Handler{
		Service:           svc,
		DefaultExpiryDays: defaultExpiryDays,
		DefaultUses:       defaultUses,
	}
}

// =============================================================================
// PUBLIC: VALIDATE
// =============================================================================

// ValidateCode redeems an access code.
// POST /api/access/validate
func (h *Handler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccessCode == "" {
		writeError(w, http.StatusBadRequest, "No access code provided", nil)
		return
	}

	grant, err := h.Service.ValidateAndRedeem(r.Context(), req.AccessCode)
	if err != nil {
		if denied, ok := access.IsDenied(err); ok {
			writeError(w, http.StatusUnauthorized, denied.Message(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to validate access code", err)
		return
	}

	writeJSON(w, http.StatusOK, GrantDTO{
		Status:      "success",
		Message:     access.ReasonOK.Message(),
		UserName:    grant.UserName,
		AccessLevel: string(grant.AccessLevel),
		Permissions: grant.Permissions,
		ExpiresAt:   grant.ExpiresAt.Format(time.RFC3339),
		UsesLeft:    grant.UsesLeft,
	})
}

// =============================================================================
// ADMIN: CREATE / LIST / DISABLE / UPDATE
// =============================================================================

// CreateCode creates a new access code.
// POST /api/admin/access/create
func (h *Handler) CreateCode(w http.ResponseWriter, r *http.Request) {
	var req CreateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	params := access.CreateParams{
		AssignedTo:  req.AssignedTo,
		Email:       req.Email,
		ExpiryDays:  h.DefaultExpiryDays,
		Uses:        h.DefaultUses,
		AccessLevel: access.LevelStandard,
		Notes:       req.Notes,
	}
	if req.ExpiryDays != nil {
		params.ExpiryDays = *req.ExpiryDays
	}
	if req.Uses != nil {
		params.Uses = *req.Uses
	}
	if req.AccessLevel != "" {
		params.AccessLevel = access.AccessLevel(req.AccessLevel)
	}

	code, err := h.Service.CreateCode(r.Context(), params)
	if err != nil {
		if errors.Is(err, access.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create access code", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":      "success",
		"message":     "Access code created successfully",
		"access_code": code.Code,
	})
}

// ListCodes returns all codes with their derived status.
// GET /api/admin/access/list
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.Service.ListCodes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list access codes", err)
		return
	}

	dtos := make([]CodeDTO, len(codes))
	for i, c := range codes {
		dtos[i] = toCodeDTO(c)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"count":        len(dtos),
		"access_codes": dtos,
	})
}

// DisableCode disables a code. Idempotent.
// POST /api/admin/access/disable/{code}
func (h *Handler) DisableCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.Service.DisableCode(r.Context(), code); err != nil {
		if access.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Access code not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to disable access code", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Access code disabled successfully",
	})
}

// UpdateCode patches a code's properties.
// POST /api/admin/access/update/{code}
func (h *Handler) UpdateCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req UpdateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := access.UpdatePatch{
		AssignedTo: req.AssignedTo,
		Email:      req.Email,
		Notes:      req.Notes,
		AddUses:    req.AddUses,
		Reactivate: req.Reactivate,
	}
	if req.AccessLevel != nil {
		level := access.AccessLevel(*req.AccessLevel)
		patch.AccessLevel = &level
	}
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expires_at format (use RFC3339)", err)
			return
		}
		patch.ExpiresAt = &t
	}

	updated, err := h.Service.UpdateCode(r.Context(), code, patch)
	if err != nil {
		switch {
		case access.IsNotFound(err):
			writeError(w, http.StatusNotFound, "Access code not found", nil)
		case errors.Is(err, access.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, err.Error(), nil)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to update access code", err)
		}
		return
	}

	annotated, err := h.Service.GetCode(r.Context(), updated.Code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load updated code", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"message":     "Access code updated successfully",
		"access_code": toCodeDTO(annotated),
	})
}

// =============================================================================
// ADMIN: LOGS / STATS
// =============================================================================

// GetLogs returns audit events, newest first.
// GET /api/admin/access/logs?limit=&access_code=&user=&action=
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", nil)
			return
		}
		limit = n
	}

	filter := access.EventFilter{
		Code:   access.NormalizeCode(r.URL.Query().Get("access_code")),
		User:   r.URL.Query().Get("user"),
		Action: access.EventAction(r.URL.Query().Get("action")),
	}

	events, err := h.Service.GetLogs(r.Context(), limit, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get access logs", err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"count":  len(dtos),
		"logs":   dtos,
	})
}

// GetStats returns summary counts.
// GET /api/admin/access/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get access statistics", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"stats":  toStatsDTO(stats),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Status: "error", Message: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
