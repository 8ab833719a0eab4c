package fulfillment

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

type CancelInput struct {
	SubOrderID  uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

type CancelOrderInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// ApplyStatusInput is a courier status for a known sub-order. DeliveryID is
// stored when non-empty.
type ApplyStatusInput struct {
	SubOrderID  uuid.UUID
	Code        string
	Description string
	DeliveryID  string
}

// CourierUpdate is a status report identified by the courier's ids: the
// shipment id (our delivery id) or the echoed reference (sub-order code).
type CourierUpdate struct {
	DeliveryID  string
	Reference   string
	Code        string
	Description string
}

type UpdateResult struct {
	Ignored    bool
	Reason     string
	Transition *TransitionResult
}

// TransitionResult describes one applied (or skipped) status change.
type TransitionResult struct {
	SubOrderID   uuid.UUID
	SubOrderCode string
	OrderID      uuid.UUID
	OrderCode    string
	SellerID     uuid.UUID
	SupplierID   uuid.UUID
	From         Status
	To           Status
	Changed      bool
	Settled      bool
}

type HistoryInput struct {
	SubOrderID  uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

type HistoryEntryDTO struct {
	Sequence    int                  `json:"sequence"`
	Status      enums.SubOrderStatus `json:"status"`
	CourierCode *string              `json:"courier_code,omitempty"`
	Description string               `json:"description"`
	CreatedAt   time.Time            `json:"created_at"`
}

func historyFromModel(e models.StatusHistoryEntry) HistoryEntryDTO {
	return HistoryEntryDTO{
		Sequence:    e.Sequence,
		Status:      e.Status,
		CourierCode: e.CourierCode,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}
