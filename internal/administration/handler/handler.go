package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vaxtrack/internal/administration/models"
	admservice "vaxtrack/internal/administration/service"
	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	"vaxtrack/pkg/platform/httputil"
	"vaxtrack/pkg/requestcontext"
)

// Service defines the administration operations the handler exposes.
type Service interface {
	Administer(ctx context.Context, in admservice.AdministerInput) (models.AdministrationRecord, error)
	CorrectRecord(ctx context.Context, recordID id.RecordID, operatorID id.OperatorID, site, notes string) (models.AdministrationRecord, error)
	GetRecord(ctx context.Context, recordID id.RecordID) (models.AdministrationRecord, error)
	History(ctx context.Context, patientID id.PatientID, vaccineID id.VaccineID) ([]models.AdministrationRecord, error)
}

// Handler serves the administration workflow. The administering operator
// comes from the authenticated request context.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/administrations", h.handleAdminister)
	r.Get("/administrations/{recordID}", h.handleGetRecord)
	r.Patch("/administrations/{recordID}", h.handleCorrectRecord)
	r.Get("/patients/{patientID}/vaccines/{vaccineID}/administrations", h.handleHistory)
}

type administerRequest struct {
	PatientID  string `json:"patient_id"`
	VaccineID  string `json:"vaccine_id"`
	DoseNumber int    `json:"dose_number"`

	AdministeredAt string `json:"administered_at,omitempty"`
	Site           string `json:"site,omitempty"`
	Notes          string `json:"notes,omitempty"`
	NextDoseAt     string `json:"next_dose_at,omitempty"`
}

type recordResponse struct {
	ID             string  `json:"id"`
	PatientID      string  `json:"patient_id"`
	VaccineID      string  `json:"vaccine_id"`
	DoseNumber     int     `json:"dose_number"`
	BatchNumber    string  `json:"batch_number"`
	OperatorID     string  `json:"operator_id"`
	AdministeredAt string  `json:"administered_at"`
	Site           string  `json:"site,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	NextDoseAt     *string `json:"next_dose_at,omitempty"`
}

func toRecordResponse(record models.AdministrationRecord) recordResponse {
	resp := recordResponse{
		ID:             record.ID.String(),
		PatientID:      record.PatientID.String(),
		VaccineID:      record.VaccineID.String(),
		DoseNumber:     record.DoseNumber,
		BatchNumber:    record.BatchNumber.String(),
		OperatorID:     record.OperatorID.String(),
		AdministeredAt: record.AdministeredAt.Format(time.RFC3339),
		Site:           record.Site,
		Notes:          record.Notes,
	}
	if record.NextDoseAt != nil {
		next := record.NextDoseAt.Format(time.RFC3339)
		resp.NextDoseAt = &next
	}
	return resp
}

func (h *Handler) handleAdminister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[administerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	patientID, err := id.ParsePatientID(req.PatientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	vaccineID, err := id.ParseVaccineID(req.VaccineID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	in := admservice.AdministerInput{
		PatientID:  patientID,
		VaccineID:  vaccineID,
		OperatorID: requestcontext.OperatorID(ctx),
		DoseNumber: req.DoseNumber,
		Site:       req.Site,
		Notes:      req.Notes,
	}
	if req.AdministeredAt != "" {
		if in.AdministeredAt, err = time.Parse(time.RFC3339, req.AdministeredAt); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "administered_at must be RFC 3339"))
			return
		}
	}
	if req.NextDoseAt != "" {
		next, err := time.Parse(time.RFC3339, req.NextDoseAt)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "next_dose_at must be RFC 3339"))
			return
		}
		in.NextDoseAt = &next
	}

	record, err := h.service.Administer(ctx, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRecordResponse(record))
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.service.GetRecord(r.Context(), recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

type correctRecordRequest struct {
	Site  string `json:"site"`
	Notes string `json:"notes"`
}

func (h *Handler) handleCorrectRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[correctRecordRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	record, err := h.service.CorrectRecord(ctx, recordID, requestcontext.OperatorID(ctx), req.Site, req.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	patientID, err := id.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	vaccineID, err := id.ParseVaccineID(chi.URLParam(r, "vaccineID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	records, err := h.service.History(r.Context(), patientID, vaccineID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toRecordResponse(record))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": out})
}
