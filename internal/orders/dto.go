package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// SubmitLine is one requested product line.
type SubmitLine struct {
	ProductID   uuid.UUID       `json:"product_id" validate:"required"`
	Quantity    int             `json:"quantity" validate:"required,gt=0"`
	DetailPrice decimal.Decimal `json:"detail_price" validate:"required"`
	Color       string          `json:"color" validate:"omitempty,max=64"`
	Size        string          `json:"size" validate:"omitempty,max=64"`
}

// SubmitOrderInput is a seller's client order before it is split.
type SubmitOrderInput struct {
	SellerID      uuid.UUID    `json:"-"`
	ClientName    string       `json:"client_name" validate:"required,max=120"`
	ClientPhone   string       `json:"client_phone" validate:"required,max=32"`
	ClientAddress string       `json:"client_address" validate:"required,max=255"`
	ClientCity    string       `json:"client_city" validate:"required,max=120"`
	ClientState   string       `json:"client_state" validate:"required,max=120"`
	Openable      bool         `json:"openable"`
	Fragile       bool         `json:"fragile"`
	Note          *string      `json:"note,omitempty" validate:"omitempty,max=500"`
	Lines         []SubmitLine `json:"lines" validate:"required,min=1,dive"`
}

type LineDTO struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	DetailPrice    decimal.Decimal `json:"detail_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	SupplierProfit decimal.Decimal `json:"supplier_profit"`
	Color          string          `json:"color,omitempty"`
	Size           string          `json:"size,omitempty"`
}

type SubOrderDTO struct {
	ID             uuid.UUID            `json:"id"`
	OrderID        uuid.UUID            `json:"order_id"`
	Code           string               `json:"code"`
	Position       int                  `json:"position"`
	SupplierID     uuid.UUID            `json:"supplier_id"`
	Status         enums.SubOrderStatus `json:"status"`
	DeliveryID     *string              `json:"delivery_id,omitempty"`
	PickupID       *uuid.UUID           `json:"pickup_id,omitempty"`
	SellerProfit   decimal.Decimal      `json:"seller_profit"`
	SupplierProfit decimal.Decimal      `json:"supplier_profit"`
	SettledAt      *time.Time           `json:"settled_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	Lines          []LineDTO            `json:"lines,omitempty"`
}

type OrderSummaryDTO struct {
	ID                uuid.UUID       `json:"id"`
	Code              string          `json:"code"`
	ClientName        string          `json:"client_name"`
	ClientCity        string          `json:"client_city"`
	Total             decimal.Decimal `json:"total"`
	SellerProfit      decimal.Decimal `json:"seller_profit"`
	DeliverySurcharge decimal.Decimal `json:"delivery_surcharge"`
	IsComposedOrder   bool            `json:"is_composed_order"`
	CreatedAt         time.Time       `json:"created_at"`
}

// OrderDetailDTO is an order with its sub-orders and their lines.
type OrderDetailDTO struct {
	OrderSummaryDTO
	SellerID       uuid.UUID       `json:"seller_id"`
	ClientPhone    string          `json:"client_phone"`
	ClientAddress  string          `json:"client_address"`
	ClientState    string          `json:"client_state"`
	PlatformProfit decimal.Decimal `json:"platform_profit"`
	Openable       bool            `json:"openable"`
	Fragile        bool            `json:"fragile"`
	Note           *string         `json:"note,omitempty"`
	SubOrders      []SubOrderDTO   `json:"sub_orders"`
}

// SupplierSubOrderFilter narrows the supplier's sub-order list.
type SupplierSubOrderFilter struct {
	Status *enums.SubOrderStatus
}

type GetOrderInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

func lineFromModel(l models.OrderLine) LineDTO {
	return LineDTO{
		ID:             l.ID,
		ProductID:      l.ProductID,
		ProductName:    l.ProductName,
		Quantity:       l.Quantity,
		DetailPrice:    l.DetailPrice,
		WholesalePrice: l.WholesalePrice,
		SupplierProfit: l.SupplierProfit,
		Color:          l.Color,
		Size:           l.Size,
	}
}

func subOrderFromModel(s models.SubOrder) SubOrderDTO {
	dto := SubOrderDTO{
		ID:             s.ID,
		OrderID:        s.OrderID,
		Code:           s.Code,
		Position:       s.Position,
		SupplierID:     s.SupplierID,
		Status:         s.Status,
		DeliveryID:     s.DeliveryID,
		PickupID:       s.PickupID,
		SellerProfit:   s.SellerProfit,
		SupplierProfit: s.SupplierProfit,
		SettledAt:      s.SettledAt,
		CreatedAt:      s.CreatedAt,
	}
	for _, l := range s.Lines {
		dto.Lines = append(dto.Lines, lineFromModel(l))
	}
	return dto
}

func summaryFromModel(o models.Order) OrderSummaryDTO {
	return OrderSummaryDTO{
		ID:                o.ID,
		Code:              o.Code,
		ClientName:        o.ClientName,
		ClientCity:        o.ClientCity,
		Total:             o.Total,
		SellerProfit:      o.SellerProfit,
		DeliverySurcharge: o.DeliverySurcharge,
		IsComposedOrder:   o.IsComposedOrder,
		CreatedAt:         o.CreatedAt,
	}
}

func detailFromModel(o models.Order) *OrderDetailDTO {
	detail := &OrderDetailDTO{
		OrderSummaryDTO: summaryFromModel(o),
		SellerID:        o.SellerID,
		ClientPhone:     o.ClientPhone,
		ClientAddress:   o.ClientAddress,
		ClientState:     o.ClientState,
		PlatformProfit:  o.PlatformProfit,
		Openable:        o.Openable,
		Fragile:         o.Fragile,
		Note:            o.Note,
		SubOrders:       make([]SubOrderDTO, 0, len(o.SubOrders)),
	}
	for _, s := range o.SubOrders {
		detail.SubOrders = append(detail.SubOrders, subOrderFromModel(s))
	}
	return detail
}
