package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// Order is a seller's client order. It never changes after creation; all
// lifecycle state lives on its sub-orders.
type Order struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Code              string          `gorm:"column:code;not null;uniqueIndex"`
	SellerID          uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index"`
	ClientName        string          `gorm:"column:client_name;not null"`
	ClientPhone       string          `gorm:"column:client_phone;not null"`
	ClientAddress     string          `gorm:"column:client_address;not null"`
	ClientCity        string          `gorm:"column:client_city;not null"`
	ClientState       string          `gorm:"column:client_state;not null"`
	Total             decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	SellerProfit      decimal.Decimal `gorm:"column:seller_profit;type:numeric(12,2);not null"`
	PlatformProfit    decimal.Decimal `gorm:"column:platform_profit;type:numeric(12,2);not null"`
	DeliverySurcharge decimal.Decimal `gorm:"column:delivery_surcharge;type:numeric(12,2);not null"`
	IsComposedOrder   bool            `gorm:"column:is_composed_order;not null"`
	Openable          bool            `gorm:"column:openable;not null"`
	Fragile           bool            `gorm:"column:fragile;not null"`
	Note              *string         `gorm:"column:note"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`

	SubOrders []SubOrder  `gorm:"foreignKey:OrderID"`
	Lines     []OrderLine `gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// SubOrder is the supplier-scoped unit of fulfillment.
type SubOrder struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	SupplierID     uuid.UUID            `gorm:"column:supplier_id;type:uuid;not null;index"`
	Code           string               `gorm:"column:code;not null;uniqueIndex"`
	Position       int                  `gorm:"column:position;not null"`
	DeliveryID     *string              `gorm:"column:delivery_id;index"`
	Status         enums.SubOrderStatus `gorm:"column:status;type:text;not null;index"`
	PickupID       *uuid.UUID           `gorm:"column:pickup_id;type:uuid;index"`
	SellerProfit   decimal.Decimal      `gorm:"column:seller_profit;type:numeric(12,2);not null"`
	SupplierProfit decimal.Decimal      `gorm:"column:supplier_profit;type:numeric(12,2);not null"`
	SettledAt      *time.Time           `gorm:"column:settled_at"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Lines []OrderLine `gorm:"foreignKey:SubOrderID"`
}

func (SubOrder) TableName() string { return "sub_orders" }

func (s *SubOrder) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// OrderLine snapshots the product pricing at order time.
type OrderLine struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	SubOrderID         uuid.UUID       `gorm:"column:sub_order_id;type:uuid;not null;index"`
	ProductID          uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	SupplierID         uuid.UUID       `gorm:"column:supplier_id;type:uuid;not null"`
	ProductName        string          `gorm:"column:product_name;not null"`
	Quantity           int             `gorm:"column:quantity;not null"`
	DetailPrice        decimal.Decimal `gorm:"column:detail_price;type:numeric(12,2);not null"`
	WholesalePrice     decimal.Decimal `gorm:"column:wholesale_price;type:numeric(12,2);not null"`
	PlatformUnitProfit decimal.Decimal `gorm:"column:platform_unit_profit;type:numeric(12,2);not null"`
	SupplierProfit     decimal.Decimal `gorm:"column:supplier_profit;type:numeric(12,2);not null"`
	Color              string          `gorm:"column:color"`
	Size               string          `gorm:"column:size"`
	WeightKg           float64         `gorm:"column:weight_kg;not null"`
}

func (OrderLine) TableName() string { return "order_lines" }

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// StatusHistoryEntry is one append-only row of a sub-order's transition log.
type StatusHistoryEntry struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	SubOrderID  uuid.UUID            `gorm:"column:sub_order_id;type:uuid;not null;uniqueIndex:idx_status_history_sub_order_seq"`
	Sequence    int                  `gorm:"column:sequence;not null;uniqueIndex:idx_status_history_sub_order_seq"`
	Status      enums.SubOrderStatus `gorm:"column:status;type:text;not null"`
	CourierCode *string              `gorm:"column:courier_code"`
	Description string               `gorm:"column:description;not null"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (StatusHistoryEntry) TableName() string { return "sub_order_status_history" }

func (e *StatusHistoryEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// Pickup is one accepted courier pickup for a single supplier.
type Pickup struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Code             string    `gorm:"column:code;not null;uniqueIndex"`
	SupplierID       uuid.UUID `gorm:"column:supplier_id;type:uuid;not null;index"`
	PickupDate       time.Time `gorm:"column:pickup_date;not null"`
	CourierReference string    `gorm:"column:courier_reference"`
	CreatedBy        uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`

	SubOrders []SubOrder `gorm:"foreignKey:PickupID"`
}

func (Pickup) TableName() string { return "pickups" }

func (p *Pickup) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
