package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once an order and its sub-orders are committed.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID       `json:"order_id"`
	OrderCode       string          `json:"order_code"`
	SellerID        uuid.UUID       `json:"seller_id"`
	SubOrderIDs     []uuid.UUID     `json:"sub_order_ids"`
	SupplierIDs     []uuid.UUID     `json:"supplier_ids"`
	Total           decimal.Decimal `json:"total"`
	SellerProfit    decimal.Decimal `json:"seller_profit"`
	PlatformProfit  decimal.Decimal `json:"platform_profit"`
	IsComposedOrder bool            `json:"is_composed_order"`
}

// SubOrderStatusChangedEvent mirrors one status history append.
type SubOrderStatusChangedEvent struct {
	SubOrderID  uuid.UUID            `json:"sub_order_id"`
	OrderID     uuid.UUID            `json:"order_id"`
	From        enums.SubOrderStatus `json:"from"`
	To          enums.SubOrderStatus `json:"to"`
	CourierCode string               `json:"courier_code,omitempty"`
	DeliveryID  string               `json:"delivery_id,omitempty"`
	Settled     bool                 `json:"settled"`
}

type SubOrderCancelledEvent struct {
	SubOrderID  uuid.UUID `json:"sub_order_id"`
	OrderID     uuid.UUID `json:"order_id"`
	SupplierID  uuid.UUID `json:"supplier_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type PickupCreatedEvent struct {
	PickupID    uuid.UUID   `json:"pickup_id"`
	PickupCode  string      `json:"pickup_code"`
	SupplierID  uuid.UUID   `json:"supplier_id"`
	PickupDate  time.Time   `json:"pickup_date"`
	SubOrderIDs []uuid.UUID `json:"sub_order_ids"`
}

type LedgerTransactionCreatedEvent struct {
	TransactionID uuid.UUID             `json:"transaction_id"`
	Code          string                `json:"code"`
	UserID        uuid.UUID             `json:"user_id"`
	Type          enums.TransactionType `json:"type"`
	Amount        decimal.Decimal       `json:"amount"`
	OrderID       *uuid.UUID            `json:"order_id,omitempty"`
}

type WithdrawDecidedEvent struct {
	WithdrawRequestID uuid.UUID            `json:"withdraw_request_id"`
	UserID            uuid.UUID            `json:"user_id"`
	Amount            decimal.Decimal      `json:"amount"`
	Status            enums.WithdrawStatus `json:"status"`
	DecidedBy         uuid.UUID            `json:"decided_by"`
}
