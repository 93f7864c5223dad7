package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	"vaxtrack/pkg/platform/httputil"
)

// Service defines the read-side evaluators the handler exposes.
type Service interface {
	IsOverdue(ctx context.Context, patientID id.PatientID, vaccineID id.VaccineID, graceMonths int) (bool, error)
	Coverage(ctx context.Context, vaccineID id.VaccineID, from, to time.Time) (float64, error)
	GraceMonths() int
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/patients/{patientID}/vaccines/{vaccineID}/overdue", h.handleOverdue)
	r.Get("/vaccines/{vaccineID}/coverage", h.handleCoverage)
}

func (h *Handler) handleOverdue(w http.ResponseWriter, r *http.Request) {
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

	grace := h.service.GraceMonths()
	if raw := r.URL.Query().Get("grace_months"); raw != "" {
		if grace, err = strconv.Atoi(raw); err != nil || grace < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "grace_months must be a non-negative integer"))
			return
		}
	}

	overdue, err := h.service.IsOverdue(r.Context(), patientID, vaccineID, grace)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"overdue": overdue})
}

func (h *Handler) handleCoverage(w http.ResponseWriter, r *http.Request) {
	vaccineID, err := id.ParseVaccineID(chi.URLParam(r, "vaccineID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	from, err := time.Parse(time.DateOnly, r.URL.Query().Get("from"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "from must be YYYY-MM-DD"))
		return
	}
	to, err := time.Parse(time.DateOnly, r.URL.Query().Get("to"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "to must be YYYY-MM-DD"))
		return
	}

	coverage, err := h.service.Coverage(r.Context(), vaccineID, from, to.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]float64{"coverage_percent": coverage})
}
