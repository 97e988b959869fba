package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/fanvault/apiserver/internal/services"
	"github.com/fanvault/apiserver/internal/store"
	"github.com/fanvault/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// AdminHandler provides the moderation surface: the report queue, account
// suspension, role management, and fanwork takedowns.
type AdminHandler struct {
	userService    *services.UserService
	fanworkService *services.FanworkService
	reportService  *services.ReportService
}

// NewAdminHandler constructs a handler with the provided services.
func NewAdminHandler(
	userService *services.UserService,
	fanworkService *services.FanworkService,
	reportService *services.ReportService,
) *AdminHandler {
	return &AdminHandler{
		userService:    userService,
		fanworkService: fanworkService,
		reportService:  reportService,
	}
}

// AdminRouter registers moderation routes on the given router. Everything
// here requires at least the moderator role; role changes require admin.
func AdminRouter(
	r chi.Router,
	userService *services.UserService,
	fanworkService *services.FanworkService,
	reportService *services.ReportService,
	guard *Guard,
	jwtSecret string,
) {
	handler := NewAdminHandler(userService, fanworkService, reportService)

	moderator := guard.RequireRole(types.RoleModerator)
	admin := guard.RequireRole(types.RoleAdmin)

	r.Use(RequireAuth(jwtSecret))
	r.With(moderator).Get("/reports", handler.ListReports)
	r.With(moderator).Patch("/reports/{reportID}", handler.ReviewReport)
	r.With(moderator).Post("/users/{userID}/ban", handler.BanUser)
	r.With(moderator).Post("/users/{userID}/unban", handler.UnbanUser)
	r.With(admin).Patch("/users/{userID}/role", handler.ChangeRole)
	r.With(moderator).Patch("/fanworks/{fanworkID}/hide", handler.HideFanwork)
	r.With(moderator).Patch("/fanworks/{fanworkID}/unhide", handler.UnhideFanwork)
	r.With(moderator).Delete("/fanworks/{fanworkID}", handler.DeleteFanwork)
}

// ListReports returns the moderation queue, optionally narrowed by status.
func (h *AdminHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	switch status {
	case "", types.ReportPending, types.ReportReviewed, types.ReportDismissed:
	default:
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	reports, err := h.reportService.List(r.Context(), status)
	if err != nil {
		writeInternalError(w, r, "failed to list reports", err)
		return
	}

	writeJSON(w, http.StatusOK, reports)
}

// ReviewReport records the moderator's verdict on a report.
func (h *AdminHandler) ReviewReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reviewer, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req ReportReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := validateStruct(req); fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}

	report, err := h.reportService.Review(r.Context(), reviewer, id, req.Status, req.ModerationAction)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Report not found")
			return
		}
		writeInternalError(w, r, "failed to review report", err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// BanUser suspends an account. Only strictly lower roles can be banned.
func (h *AdminHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)

	banned, err := h.userService.Ban(r.Context(), actor, id, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, services.ErrNotAllowed):
			writeError(w, http.StatusForbidden, "Cannot ban an account with an equal or higher role")
		default:
			writeInternalError(w, r, "failed to ban user", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, banned)
}

// UnbanUser lifts a suspension.
func (h *AdminHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	unbanned, err := h.userService.Unban(r.Context(), actor, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeInternalError(w, r, "failed to unban user", err)
		return
	}

	writeJSON(w, http.StatusOK, unbanned)
}

// ChangeRole assigns a new role to an account. Admin only.
func (h *AdminHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req RoleChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := validateStruct(req); fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}

	updated, err := h.userService.ChangeRole(r.Context(), actor, id, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, services.ErrNotAllowed):
			writeError(w, http.StatusBadRequest, "invalid role")
		default:
			writeInternalError(w, r, "failed to change role", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// HideFanwork takes a work out of public circulation.
func (h *AdminHandler) HideFanwork(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "fanworkID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req HideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)

	if fieldErrors := validateStruct(req); fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}

	fanwork, err := h.fanworkService.Hide(r.Context(), actor, id, req.Reason)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Fanwork not found")
			return
		}
		writeInternalError(w, r, "failed to hide fanwork", err)
		return
	}

	writeJSON(w, http.StatusOK, fanwork)
}

// UnhideFanwork restores a hidden work.
func (h *AdminHandler) UnhideFanwork(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "fanworkID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	fanwork, err := h.fanworkService.Unhide(r.Context(), actor, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Fanwork not found")
			return
		}
		writeInternalError(w, r, "failed to unhide fanwork", err)
		return
	}

	writeJSON(w, http.StatusOK, fanwork)
}

// DeleteFanwork removes a work and its stored media.
func (h *AdminHandler) DeleteFanwork(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "fanworkID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.fanworkService.Delete(r.Context(), actor, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Fanwork not found")
			return
		}
		writeInternalError(w, r, "failed to delete fanwork", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type ReportReviewRequest struct {
	Status           string `json:"status" validate:"required,oneof=reviewed dismissed"`
	ModerationAction string `json:"moderation_action" validate:"max=200"`
}

type BanRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type RoleChangeRequest struct {
	Role string `json:"role" validate:"required,oneof=user moderator admin"`
}

type HideRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}
