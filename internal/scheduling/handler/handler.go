package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vaxtrack/internal/scheduling/models"
	schedservice "vaxtrack/internal/scheduling/service"
	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	"vaxtrack/pkg/platform/httputil"
	"vaxtrack/pkg/requestcontext"
)

// Service defines the scheduling operations the handler exposes.
type Service interface {
	Schedule(ctx context.Context, in schedservice.ScheduleInput) (models.ScheduledVisit, error)
	Confirm(ctx context.Context, visitID id.VisitID) error
	Cancel(ctx context.Context, visitID id.VisitID) error
	MarkNoShow(ctx context.Context, visitID id.VisitID) error
	GetVisit(ctx context.Context, visitID id.VisitID) (models.ScheduledVisit, error)
	ListByPatient(ctx context.Context, patientID id.PatientID) ([]models.ScheduledVisit, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/visits", h.handleSchedule)
	r.Get("/visits/{visitID}", h.handleGetVisit)
	r.Post("/visits/{visitID}/confirm", h.handleConfirm)
	r.Post("/visits/{visitID}/cancel", h.handleCancel)
	r.Post("/visits/{visitID}/no-show", h.handleNoShow)
	r.Get("/patients/{patientID}/visits", h.handleListByPatient)
}

type scheduleRequest struct {
	PatientID   string   `json:"patient_id"`
	ScheduledAt string   `json:"scheduled_at"`
	Vaccines    []string `json:"vaccines"`
}

type visitResponse struct {
	ID          string   `json:"id"`
	PatientID   string   `json:"patient_id"`
	ScheduledAt string   `json:"scheduled_at"`
	Status      string   `json:"status"`
	Vaccines    []string `json:"vaccines"`
	CompletedAt *string  `json:"completed_at,omitempty"`
}

func toVisitResponse(visit models.ScheduledVisit) visitResponse {
	vaccines := make([]string, 0, len(visit.Vaccines))
	for _, vaccineID := range visit.Vaccines {
		vaccines = append(vaccines, vaccineID.String())
	}
	resp := visitResponse{
		ID:          visit.ID.String(),
		PatientID:   visit.PatientID.String(),
		ScheduledAt: visit.ScheduledAt.Format(time.RFC3339),
		Status:      string(visit.Status),
		Vaccines:    vaccines,
	}
	if visit.CompletedAt != nil {
		completed := visit.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	return resp
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[scheduleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	patientID, err := id.ParsePatientID(req.PatientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "scheduled_at must be RFC 3339"))
		return
	}
	vaccines := make([]id.VaccineID, 0, len(req.Vaccines))
	for _, raw := range req.Vaccines {
		vaccineID, err := id.ParseVaccineID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		vaccines = append(vaccines, vaccineID)
	}

	visit, err := h.service.Schedule(ctx, schedservice.ScheduleInput{
		PatientID:   patientID,
		ScheduledAt: scheduledAt,
		Vaccines:    vaccines,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toVisitResponse(visit))
}

func (h *Handler) handleGetVisit(w http.ResponseWriter, r *http.Request) {
	visitID, err := id.ParseVisitID(chi.URLParam(r, "visitID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	visit, err := h.service.GetVisit(r.Context(), visitID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVisitResponse(visit))
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Confirm)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel)
}

func (h *Handler) handleNoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkNoShow)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, id.VisitID) error) {
	visitID, err := id.ParseVisitID(chi.URLParam(r, "visitID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := fn(r.Context(), visitID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListByPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := id.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	visits, err := h.service.ListByPatient(r.Context(), patientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]visitResponse, 0, len(visits))
	for _, visit := range visits {
		out = append(out, toVisitResponse(visit))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"visits": out})
}
