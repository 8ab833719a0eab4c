package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// Transaction is an immutable ledger entry; its Amount has already been
// applied to the owning user's balance in the same database transaction.
type Transaction struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Code       string                `gorm:"column:code;not null;uniqueIndex"`
	UserID     uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Type       enums.TransactionType `gorm:"column:type;type:text;not null"`
	Amount     decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	OrderID    *uuid.UUID            `gorm:"column:order_id;type:uuid;index"`
	SubOrderID *uuid.UUID            `gorm:"column:sub_order_id;type:uuid"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (Transaction) TableName() string { return "transactions" }

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

type WithdrawRequest struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	Amount    decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Status    enums.WithdrawStatus `gorm:"column:status;type:text;not null;index"`
	DecidedBy *uuid.UUID           `gorm:"column:decided_by;type:uuid"`
	DecidedAt *time.Time           `gorm:"column:decided_at"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (WithdrawRequest) TableName() string { return "withdraw_requests" }

func (w *WithdrawRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
