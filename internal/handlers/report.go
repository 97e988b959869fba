package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fanvault/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// ReportHandler lets users flag content for the moderation queue.
type ReportHandler struct {
	reportService *services.ReportService
}

// NewReportHandler constructs a handler with the provided service.
func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// ReportRouter registers report routes on the given router.
func ReportRouter(r chi.Router, reportService *services.ReportService, guard *Guard, jwtSecret string) {
	handler := NewReportHandler(reportService)

	r.With(RequireAuth(jwtSecret), guard.RequireAccount).Post("/", handler.CreateReport)
}

// CreateReport files a report against a fanwork, comment, or user.
func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req ReportCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)

	if fieldErrors := validateStruct(req); fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}

	report, err := h.reportService.Create(r.Context(), user, req.TargetType, req.TargetID, req.Reason)
	if err != nil {
		writeInternalError(w, r, "failed to create report", err)
		return
	}

	writeJSON(w, http.StatusCreated, report)
}

type ReportCreateRequest struct {
	TargetType string `json:"target_type" validate:"required,oneof=fanwork comment user"`
	TargetID   int    `json:"target_id" validate:"required,min=1"`
	Reason     string `json:"reason" validate:"required,max=2000"`
}
