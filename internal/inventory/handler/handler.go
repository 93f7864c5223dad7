package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vaxtrack/internal/inventory/models"
	invservice "vaxtrack/internal/inventory/service"
	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	"vaxtrack/pkg/platform/httputil"
	"vaxtrack/pkg/requestcontext"
)

// Service defines the ledger operations the handler exposes.
type Service interface {
	ReceiveBatch(ctx context.Context, in invservice.ReceiveBatchInput) (models.StockBatch, error)
	Deduct(ctx context.Context, in invservice.DeductInput) error
	Quarantine(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, operatorID id.OperatorID) error
	Release(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber, operatorID id.OperatorID) error
	MarkExpired(ctx context.Context) (int, error)
	GetBatch(ctx context.Context, vaccineID id.VaccineID, batchNumber id.BatchNumber) (models.StockBatch, error)
	ListByVaccine(ctx context.Context, vaccineID id.VaccineID) ([]models.StockBatch, error)
}

// Handler serves stock ledger endpoints. The acting operator comes from the
// authenticated request context, never from the body.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/vaccines/{vaccineID}/batches", h.handleReceiveBatch)
	r.Get("/vaccines/{vaccineID}/batches", h.handleListBatches)
	r.Get("/vaccines/{vaccineID}/batches/{batchNumber}", h.handleGetBatch)
	r.Post("/vaccines/{vaccineID}/batches/{batchNumber}/deduct", h.handleDeduct)
	r.Post("/vaccines/{vaccineID}/batches/{batchNumber}/quarantine", h.handleQuarantine)
	r.Post("/vaccines/{vaccineID}/batches/{batchNumber}/release", h.handleRelease)
	r.Post("/batches/expire-sweep", h.handleExpireSweep)
}

type receiveBatchRequest struct {
	BatchNumber    string `json:"batch_number"`
	Quantity       int    `json:"quantity"`
	ExpirationDate string `json:"expiration_date"`
}

type batchResponse struct {
	VaccineID      string `json:"vaccine_id"`
	BatchNumber    string `json:"batch_number"`
	QuantityOnHand int    `json:"quantity_on_hand"`
	ExpirationDate string `json:"expiration_date"`
	Status         string `json:"status"`
	ReceivedAt     string `json:"received_at"`
}

func toBatchResponse(batch models.StockBatch) batchResponse {
	return batchResponse{
		VaccineID:      batch.VaccineID.String(),
		BatchNumber:    batch.BatchNumber.String(),
		QuantityOnHand: batch.QuantityOnHand,
		ExpirationDate: batch.ExpirationDate.Format(time.DateOnly),
		Status:         string(batch.Status),
		ReceivedAt:     batch.ReceivedAt.Format(time.RFC3339),
	}
}

func (h *Handler) handleReceiveBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vaccineID, err := id.ParseVaccineID(chi.URLParam(r, "vaccineID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[receiveBatchRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	batchNumber, err := id.ParseBatchNumber(req.BatchNumber)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	expiration, err := time.Parse(time.DateOnly, req.ExpirationDate)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "expiration_date must be YYYY-MM-DD"))
		return
	}

	batch, err := h.service.ReceiveBatch(ctx, invservice.ReceiveBatchInput{
		VaccineID:      vaccineID,
		BatchNumber:    batchNumber,
		Quantity:       req.Quantity,
		ExpirationDate: expiration,
		ReceivedBy:     requestcontext.OperatorID(ctx),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toBatchResponse(batch))
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	vaccineID, err := id.ParseVaccineID(chi.URLParam(r, "vaccineID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	batches, err := h.service.ListByVaccine(r.Context(), vaccineID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]batchResponse, 0, len(batches))
	for _, batch := range batches {
		out = append(out, toBatchResponse(batch))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"batches": out})
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	vaccineID, batchNumber, err := pathBatch(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	batch, err := h.service.GetBatch(r.Context(), vaccineID, batchNumber)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBatchResponse(batch))
}

type deductRequest struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

func (h *Handler) handleDeduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vaccineID, batchNumber, err := pathBatch(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[deductRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	err = h.service.Deduct(ctx, invservice.DeductInput{
		VaccineID:   vaccineID,
		BatchNumber: batchNumber,
		Quantity:    req.Quantity,
		Reason:      models.DeductionReason(req.Reason),
		OperatorID:  requestcontext.OperatorID(ctx),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Quarantine)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Release)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, id.VaccineID, id.BatchNumber, id.OperatorID) error) {
	ctx := r.Context()
	vaccineID, batchNumber, err := pathBatch(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := fn(ctx, vaccineID, batchNumber, requestcontext.OperatorID(ctx)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExpireSweep(w http.ResponseWriter, r *http.Request) {
	changed, err := h.service.MarkExpired(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"expired": changed})
}

func pathBatch(r *http.Request) (id.VaccineID, id.BatchNumber, error) {
	vaccineID, err := id.ParseVaccineID(chi.URLParam(r, "vaccineID"))
	if err != nil {
		return id.VaccineID{}, "", err
	}
	batchNumber, err := id.ParseBatchNumber(chi.URLParam(r, "batchNumber"))
	if err != nil {
		return id.VaccineID{}, "", err
	}
	return vaccineID, batchNumber, nil
}
