package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	dirservice "vaxtrack/internal/directory/service"
	dirstore "vaxtrack/internal/directory/store"
	invservice "vaxtrack/internal/inventory/service"
	invstore "vaxtrack/internal/inventory/store"
	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/platform/audit/publisher"
	auditmem "vaxtrack/pkg/platform/audit/store/memory"
	"vaxtrack/pkg/requestcontext"
	"vaxtrack/pkg/testutil"
)

// The suite runs the handler against a real service on memory stores; only
// the auth and request-time middleware are simulated via testutil.
type InventoryHandlerSuite struct {
	suite.Suite
	router     *chi.Mux
	now        time.Time
	vaccineID  id.VaccineID
	operatorID id.OperatorID
}

func TestInventoryHandlerSuite(t *testing.T) {
	suite.Run(t, new(InventoryHandlerSuite))
}

func (s *InventoryHandlerSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), s.now)

	logger := slog.New(slog.DiscardHandler)

	directory := dirservice.NewService(dirstore.NewInMemoryStore())
	vaccine, err := directory.CreateVaccine(ctx, dirservice.CreateVaccineInput{Code: "BCG", Name: "Bacillus Calmette-Guerin"})
	s.Require().NoError(err)
	s.vaccineID = vaccine.ID

	operator, err := directory.CreateOperator(ctx, dirservice.CreateOperatorInput{FullName: "Nurse Joy"})
	s.Require().NoError(err)
	s.operatorID = operator.ID

	auditor := publisher.NewPublisher(auditmem.NewInMemoryStore(), publisher.WithLogger(logger))
	service := invservice.NewService(invstore.NewInMemoryStore(), directory, auditor, logger)

	s.router = chi.NewRouter()
	New(service, logger).Register(s.router)
}

func (s *InventoryHandlerSuite) request(method, path string, body any) *http.Request {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req = testutil.WithOperator(req, s.operatorID.String())
	return testutil.WithFrozenTime(req, s.now)
}

func (s *InventoryHandlerSuite) receiveBatch(batchNumber string, quantity int) {
	rr := testutil.DoRequest(s.router, s.request(http.MethodPost, "/vaccines/"+s.vaccineID.String()+"/batches", receiveBatchRequest{
		BatchNumber:    batchNumber,
		Quantity:       quantity,
		ExpirationDate: s.now.AddDate(0, 6, 0).Format(time.DateOnly),
	}))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
}

func (s *InventoryHandlerSuite) TestReceiveBatch() {
	rr := testutil.DoRequest(s.router, s.request(http.MethodPost, "/vaccines/"+s.vaccineID.String()+"/batches", receiveBatchRequest{
		BatchNumber:    "B001",
		Quantity:       50,
		ExpirationDate: "2025-12-01",
	}))

	s.Equal(http.StatusCreated, rr.Code)
	resp := testutil.UnmarshalResponse[batchResponse](s.T(), rr)
	s.Equal("B001", resp.BatchNumber)
	s.Equal(50, resp.QuantityOnHand)
	s.Equal("AVAILABLE", resp.Status)
	s.Equal("2025-12-01", resp.ExpirationDate)
}

func (s *InventoryHandlerSuite) TestReceiveBatchDuplicate() {
	s.receiveBatch("B001", 50)

	rr := testutil.DoRequest(s.router, s.request(http.MethodPost, "/vaccines/"+s.vaccineID.String()+"/batches", receiveBatchRequest{
		BatchNumber:    "B001",
		Quantity:       10,
		ExpirationDate: "2025-12-01",
	}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "duplicate_resource")
}

func (s *InventoryHandlerSuite) TestReceiveBatchBadExpiration() {
	rr := testutil.DoRequest(s.router, s.request(http.MethodPost, "/vaccines/"+s.vaccineID.String()+"/batches", receiveBatchRequest{
		BatchNumber:    "B001",
		Quantity:       10,
		ExpirationDate: "01/12/2025",
	}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
}

func (s *InventoryHandlerSuite) TestDeduct() {
	s.receiveBatch("B001", 50)

	base := "/vaccines/" + s.vaccineID.String() + "/batches/B001"
	rr := testutil.DoRequest(s.router, s.request(http.MethodPost, base+"/deduct", deductRequest{
		Quantity: 5,
		Reason:   "WASTAGE",
	}))
	s.Equal(http.StatusNoContent, rr.Code)

	rr = testutil.DoRequest(s.router, s.request(http.MethodGet, base, nil))
	s.Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[batchResponse](s.T(), rr)
	s.Equal(45, resp.QuantityOnHand)
}

func (s *InventoryHandlerSuite) TestDeductInsufficient() {
	s.receiveBatch("B001", 3)

	rr := testutil.DoRequest(s.router, s.request(http.MethodPost, "/vaccines/"+s.vaccineID.String()+"/batches/B001/deduct", deductRequest{
		Quantity: 10,
		Reason:   "LOSS",
	}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "insufficient_stock")
}

func (s *InventoryHandlerSuite) TestQuarantineAndRelease() {
	s.receiveBatch("B001", 50)
	base := "/vaccines/" + s.vaccineID.String() + "/batches/B001"

	rr := testutil.DoRequest(s.router, s.request(http.MethodPost, base+"/quarantine", nil))
	s.Equal(http.StatusNoContent, rr.Code)

	rr = testutil.DoRequest(s.router, s.request(http.MethodGet, base, nil))
	resp := testutil.UnmarshalResponse[batchResponse](s.T(), rr)
	s.Equal("QUARANTINED", resp.Status)

	// A quarantined batch cannot be quarantined again.
	rr = testutil.DoRequest(s.router, s.request(http.MethodPost, base+"/quarantine", nil))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "invalid_state")

	rr = testutil.DoRequest(s.router, s.request(http.MethodPost, base+"/release", nil))
	s.Equal(http.StatusNoContent, rr.Code)
}

func (s *InventoryHandlerSuite) TestGetBatchNotFound() {
	rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/vaccines/"+s.vaccineID.String()+"/batches/NOPE", nil))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *InventoryHandlerSuite) TestExpireSweep() {
	s.receiveBatch("B001", 50)

	// Re-run the sweep well past expiry; the frozen request time drives it.
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/batches/expire-sweep", nil)
	req = testutil.WithOperator(req, s.operatorID.String())
	req = testutil.WithFrozenTime(req, s.now.AddDate(1, 0, 0))

	rr := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[map[string]int](s.T(), rr)
	s.Equal(1, (*resp)["expired"])
}
