package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vaxtrack/internal/directory/models"
	dirservice "vaxtrack/internal/directory/service"
	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	"vaxtrack/pkg/platform/httputil"
	"vaxtrack/pkg/requestcontext"
)

// Service defines the directory operations the handler exposes.
type Service interface {
	RegisterPatient(ctx context.Context, in dirservice.RegisterPatientInput) (models.Patient, error)
	GetPatient(ctx context.Context, patientID id.PatientID) (models.Patient, error)
	DeletePatient(ctx context.Context, patientID id.PatientID) error
	CreateVaccine(ctx context.Context, in dirservice.CreateVaccineInput) (models.Vaccine, error)
	GetVaccine(ctx context.Context, vaccineID id.VaccineID) (models.Vaccine, error)
	SetVaccineActive(ctx context.Context, vaccineID id.VaccineID, active bool) error
	CreateOperator(ctx context.Context, in dirservice.CreateOperatorInput) (models.Operator, error)
	GetOperator(ctx context.Context, operatorID id.OperatorID) (models.Operator, error)
}

// Handler serves patient, vaccine, and operator reference data.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/patients", h.handleRegisterPatient)
	r.Get("/patients/{patientID}", h.handleGetPatient)
	r.Delete("/patients/{patientID}", h.handleDeletePatient)
	r.Post("/vaccines", h.handleCreateVaccine)
	r.Get("/vaccines/{vaccineID}", h.handleGetVaccine)
	r.Put("/vaccines/{vaccineID}/active", h.handleSetVaccineActive)
	r.Post("/operators", h.handleCreateOperator)
	r.Get("/operators/{operatorID}", h.handleGetOperator)
}

type registerPatientRequest struct {
	FullName  string `json:"full_name"`
	BirthDate string `json:"birth_date"`
}

type patientResponse struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	BirthDate string `json:"birth_date"`
	CreatedAt string `json:"created_at"`
}

func toPatientResponse(patient models.Patient) patientResponse {
	return patientResponse{
		ID:        patient.ID.String(),
		FullName:  patient.FullName,
		BirthDate: patient.BirthDate.Format(time.DateOnly),
		CreatedAt: patient.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) handleRegisterPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[registerPatientRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	birthDate, err := time.Parse(time.DateOnly, req.BirthDate)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "birth_date must be YYYY-MM-DD"))
		return
	}

	patient, err := h.service.RegisterPatient(ctx, dirservice.RegisterPatientInput{FullName: req.FullName, BirthDate: birthDate})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPatientResponse(patient))
}

func (h *Handler) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := id.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	patient, err := h.service.GetPatient(r.Context(), patientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPatientResponse(patient))
}

func (h *Handler) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := id.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeletePatient(r.Context(), patientID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createVaccineRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type vaccineResponse struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

func (h *Handler) handleCreateVaccine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[createVaccineRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	vaccine, err := h.service.CreateVaccine(ctx, dirservice.CreateVaccineInput{Code: req.Code, Name: req.Name})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, vaccineResponse{
		ID: vaccine.ID.String(), Code: vaccine.Code, Name: vaccine.Name, Active: vaccine.Active,
	})
}

func (h *Handler) handleGetVaccine(w http.ResponseWriter, r *http.Request) {
	vaccineID, err := id.ParseVaccineID(chi.URLParam(r, "vaccineID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	vaccine, err := h.service.GetVaccine(r.Context(), vaccineID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, vaccineResponse{
		ID: vaccine.ID.String(), Code: vaccine.Code, Name: vaccine.Name, Active: vaccine.Active,
	})
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) handleSetVaccineActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vaccineID, err := id.ParseVaccineID(chi.URLParam(r, "vaccineID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[setActiveRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.SetVaccineActive(ctx, vaccineID, req.Active); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createOperatorRequest struct {
	FullName string `json:"full_name"`
}

type operatorResponse struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Active   bool   `json:"active"`
}

func (h *Handler) handleCreateOperator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[createOperatorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	operator, err := h.service.CreateOperator(ctx, dirservice.CreateOperatorInput{FullName: req.FullName})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, operatorResponse{
		ID: operator.ID.String(), FullName: operator.FullName, Active: operator.Active,
	})
}

func (h *Handler) handleGetOperator(w http.ResponseWriter, r *http.Request) {
	operatorID, err := id.ParseOperatorID(chi.URLParam(r, "operatorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	operator, err := h.service.GetOperator(r.Context(), operatorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, operatorResponse{
		ID: operator.ID.String(), FullName: operator.FullName, Active: operator.Active,
	})
}
