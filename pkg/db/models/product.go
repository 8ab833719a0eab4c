package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is owned by the catalog; this service only reads it and moves Stock.
type Product struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID         uuid.UUID       `gorm:"column:supplier_id;type:uuid;not null;index"`
	Name               string          `gorm:"column:name;not null"`
	WholesalePrice     decimal.Decimal `gorm:"column:wholesale_price;type:numeric(12,2);not null"`
	PlatformUnitProfit decimal.Decimal `gorm:"column:platform_unit_profit;type:numeric(12,2);not null"`
	Stock              int             `gorm:"column:stock;not null"`
	WeightKg           float64         `gorm:"column:weight_kg;not null;default:0.5"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// SellerListing records that a seller lists a product in their shop.
type SellerListing struct {
	SellerID  uuid.UUID `gorm:"column:seller_id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (SellerListing) TableName() string { return "seller_listings" }
