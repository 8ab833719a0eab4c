package ordercontrollers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dropship-backend/api/middleware"
	"github.com/angelmondragon/dropship-backend/internal/orders"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

type fakeOrderService struct {
	orders.Service
	submitted []orders.SubmitOrderInput
}

func (f *fakeOrderService) Submit(_ context.Context, input orders.SubmitOrderInput) (*orders.OrderDetailDTO, error) {
	f.submitted = append(f.submitted, input)
	return &orders.OrderDetailDTO{SellerID: input.SellerID}, nil
}

type fakeValidator struct {
	err error
}

func (f fakeValidator) Validate(context.Context, orders.SubmitOrderInput) error {
	return f.err
}

const submitBody = `{
	"client_name": "Amira",
	"client_phone": "+21620000000",
	"client_address": "12 rue de Marseille",
	"client_city": "Tunis",
	"client_state": "Tunis",
	"lines": [{"product_id": "6f1c2a9e-1b7a-4a39-9d55-1f8e2b7c9a01", "quantity": 2, "detail_price": "60"}]
}`

func submitRequest(seller uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/seller/orders", bytes.NewBufferString(submitBody))
	return req.WithContext(middleware.WithActor(req.Context(), seller, enums.UserRoleSeller))
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "orders-controller-test", Output: io.Discard})
}

func TestSubmitOrderUsesActorAsSeller(t *testing.T) {
	svc := &fakeOrderService{}
	seller := uuid.New()

	rec := httptest.NewRecorder()
	SubmitOrder(svc, fakeValidator{}, testLogger())(rec, submitRequest(seller))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, svc.submitted, 1)
	require.Equal(t, seller, svc.submitted[0].SellerID)
	require.Equal(t, 2, svc.submitted[0].Lines[0].Quantity)
}

func TestSubmitOrderStopsOnValidationIssues(t *testing.T) {
	svc := &fakeOrderService{}
	check := fakeValidator{err: pkgerrors.New(pkgerrors.CodeValidation, "order lines rejected").
		WithReason(pkgerrors.ReasonInsufficientStock)}

	rec := httptest.NewRecorder()
	SubmitOrder(svc, check, testLogger())(rec, submitRequest(uuid.New()))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "insufficient-stock")
	require.Empty(t, svc.submitted)
}

func TestSubmitOrderRejectsUnknownFields(t *testing.T) {
	svc := &fakeOrderService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/seller/orders", bytes.NewBufferString(`{"bogus": true}`))
	req = req.WithContext(middleware.WithActor(req.Context(), uuid.New(), enums.UserRoleSeller))

	rec := httptest.NewRecorder()
	SubmitOrder(svc, nil, testLogger())(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, svc.submitted)
}
