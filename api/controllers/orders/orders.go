package ordercontrollers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/api/middleware"
	"github.com/angelmondragon/dropship-backend/api/responses"
	"github.com/angelmondragon/dropship-backend/api/validators"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/internal/orders"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

// FulfillmentService is the state machine surface exposed over HTTP.
type FulfillmentService interface {
	Cancel(ctx context.Context, input fulfillment.CancelInput) (*fulfillment.TransitionResult, error)
	CancelOrder(ctx context.Context, input fulfillment.CancelOrderInput) ([]*fulfillment.TransitionResult, error)
	ApplyCourierStatus(ctx context.Context, input fulfillment.ApplyStatusInput) (*fulfillment.TransitionResult, error)
	History(ctx context.Context, input fulfillment.HistoryInput) ([]fulfillment.HistoryEntryDTO, error)
}

type transitionView struct {
	SubOrderID   uuid.UUID            `json:"sub_order_id"`
	SubOrderCode string               `json:"sub_order_code"`
	OrderID      uuid.UUID            `json:"order_id"`
	From         enums.SubOrderStatus `json:"from"`
	To           enums.SubOrderStatus `json:"to"`
	Changed      bool                 `json:"changed"`
	Settled      bool                 `json:"settled"`
}

func viewTransition(t *fulfillment.TransitionResult) transitionView {
	return transitionView{
		SubOrderID:   t.SubOrderID,
		SubOrderCode: t.SubOrderCode,
		OrderID:      t.OrderID,
		From:         t.From.Stored(),
		To:           t.To.Stored(),
		Changed:      t.Changed,
		Settled:      t.Settled,
	}
}

// OrderValidator runs the business checks on a client order before submit.
type OrderValidator interface {
	Validate(ctx context.Context, input orders.SubmitOrderInput) error
}

// SubmitOrder splits a seller's client order into supplier sub-orders.
func SubmitOrder(svc orders.Service, check OrderValidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input orders.SubmitOrderInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.SellerID = sellerID
		if check != nil {
			if err := check.Validate(r.Context(), input); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		detail, err := svc.Submit(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}

func ListSellerOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListSellerOrders(r.Context(), sellerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// GetOrder returns the order detail; suppliers only see their sub-orders.
func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.URLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.GetOrder(r.Context(), orders.GetOrderInput{
			OrderID:     orderID,
			ActorUserID: actorID,
			ActorRole:   role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// ListSupplierSubOrders lists the caller's sub-orders, optionally by status.
func ListSupplierSubOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		supplierID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filter orders.SupplierSubOrderFilter
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status := enums.SubOrderStatus(raw)
			filter.Status = &status
		}
		page, err := svc.ListSupplierSubOrders(r.Context(), supplierID, filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
