package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vaxtrack/internal/administration/handler/mocks"
	"vaxtrack/internal/administration/models"
	admservice "vaxtrack/internal/administration/service"
	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	"vaxtrack/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type AdministrationHandlerSuite struct {
	suite.Suite
}

func TestAdministrationHandlerSuite(t *testing.T) {
	suite.Run(t, new(AdministrationHandlerSuite))
}

func newTestHandler(t *testing.T) (*chi.Mux, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)

	handler := New(mockService, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	handler.Register(r)
	return r, mockService
}

func (s *AdministrationHandlerSuite) TestHandleAdminister() {
	router, mockService := newTestHandler(s.T())

	patientID := id.PatientID(uuid.New())
	vaccineID := id.VaccineID(uuid.New())
	operatorID := id.OperatorID(uuid.New())
	administeredAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	mockService.EXPECT().Administer(gomock.Any(), admservice.AdministerInput{
		PatientID:  patientID,
		VaccineID:  vaccineID,
		OperatorID: operatorID,
		DoseNumber: 1,
		Site:       "left deltoid",
	}).Return(models.AdministrationRecord{
		ID:             id.RecordID(uuid.New()),
		PatientID:      patientID,
		VaccineID:      vaccineID,
		DoseNumber:     1,
		BatchNumber:    "B001",
		OperatorID:     operatorID,
		AdministeredAt: administeredAt,
		Site:           "left deltoid",
	}, nil)

	body, err := json.Marshal(administerRequest{
		PatientID:  patientID.String(),
		VaccineID:  vaccineID.String(),
		DoseNumber: 1,
		Site:       "left deltoid",
	})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/administrations", bytes.NewReader(body))
	req = req.WithContext(requestcontext.WithOperatorID(req.Context(), operatorID))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	s.Equal(http.StatusCreated, w.Code)
	var resp recordResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("B001", resp.BatchNumber)
	s.Equal(1, resp.DoseNumber)
}

func (s *AdministrationHandlerSuite) TestHandleAdministerExhausted() {
	router, mockService := newTestHandler(s.T())

	mockService.EXPECT().Administer(gomock.Any(), gomock.Any()).
		Return(models.AdministrationRecord{}, dErrors.New(dErrors.CodeInventoryExhausted, "no eligible batch for vaccine"))

	body, err := json.Marshal(administerRequest{
		PatientID:  uuid.NewString(),
		VaccineID:  uuid.NewString(),
		DoseNumber: 1,
	})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/administrations", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	s.Equal(http.StatusUnprocessableEntity, w.Code)
	var resp map[string]string
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("inventory_exhausted", resp["error"])
}

func (s *AdministrationHandlerSuite) TestHandleAdministerBadIdentifiers() {
	router, _ := newTestHandler(s.T())

	body, err := json.Marshal(administerRequest{
		PatientID:  "not-a-uuid",
		VaccineID:  uuid.NewString(),
		DoseNumber: 1,
	})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/administrations", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *AdministrationHandlerSuite) TestHandleCorrectRecord() {
	router, mockService := newTestHandler(s.T())

	recordID := id.RecordID(uuid.New())
	operatorID := id.OperatorID(uuid.New())

	mockService.EXPECT().
		CorrectRecord(gomock.Any(), recordID, operatorID, "right deltoid", "corrected").
		Return(models.AdministrationRecord{ID: recordID, Site: "right deltoid", Notes: "corrected"}, nil)

	body, err := json.Marshal(correctRecordRequest{Site: "right deltoid", Notes: "corrected"})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPatch, "/administrations/"+recordID.String(), bytes.NewReader(body))
	req = req.WithContext(requestcontext.WithOperatorID(req.Context(), operatorID))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)
}
