package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/api/middleware"
	"github.com/angelmondragon/dropship-backend/api/responses"
	"github.com/angelmondragon/dropship-backend/api/validators"
	"github.com/angelmondragon/dropship-backend/internal/pickups"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

// PickupService is the pickup surface the HTTP layer needs.
type PickupService interface {
	RequestPickup(ctx context.Context, input pickups.RequestPickupInput) (*pickups.BatchResult, error)
	GetPickup(ctx context.Context, id, actorID uuid.UUID, role enums.UserRole) (*pickups.PickupDTO, []uuid.UUID, error)
}

type requestPickupRequest struct {
	SubOrderIDs []uuid.UUID `json:"sub_order_ids"`
	OrderIDs    []uuid.UUID `json:"order_ids"`
}

type pickupGroupView struct {
	SupplierID uuid.UUID          `json:"supplier_id"`
	Pickup     *pickups.PickupDTO `json:"pickup,omitempty"`
	Matched    []uuid.UUID        `json:"matched_sub_order_ids"`
	Unmatched  []uuid.UUID        `json:"unmatched_sub_order_ids"`
	Error      string             `json:"error,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

type pickupView struct {
	*pickups.PickupDTO
	SubOrderIDs []uuid.UUID `json:"sub_order_ids"`
}

// RequestPickup books one courier pickup per supplier in the selection. The
// response is 200 when at least one group succeeded, listing every group's
// outcome; when all groups fail the combined error is returned.
func RequestPickup(svc PickupService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req requestPickupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(req.SubOrderIDs) == 0 && len(req.OrderIDs) == 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "sub_order_ids or order_ids is required"))
			return
		}

		batch, err := svc.RequestPickup(r.Context(), pickups.RequestPickupInput{
			ActorUserID: actorID,
			ActorRole:   role,
			SubOrderIDs: req.SubOrderIDs,
			OrderIDs:    req.OrderIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !batch.Succeeded() {
			batchErr := batch.Err()
			if batchErr == nil {
				batchErr = pkgerrors.New(pkgerrors.CodeStateConflict, "no pickup was created")
			}
			responses.WriteError(r.Context(), logg, w, batchErr)
			return
		}

		views := make([]pickupGroupView, 0, len(batch.Groups))
		for _, g := range batch.Groups {
			view := pickupGroupView{
				SupplierID: g.SupplierID,
				Pickup:     g.Pickup,
				Matched:    g.Matched,
				Unmatched:  g.Unmatched,
			}
			if g.Err != nil {
				view.Error = g.Err.Error()
				view.Reason = string(pkgerrors.ReasonOf(g.Err))
			}
			views = append(views, view)
		}
		responses.WriteSuccess(w, map[string]any{"groups": views})
	}
}

func GetPickup(svc PickupService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.URLParamUUID(r, "pickupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pickup, subOrderIDs, err := svc.GetPickup(r.Context(), id, actorID, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pickupView{PickupDTO: pickup, SubOrderIDs: subOrderIDs})
	}
}
