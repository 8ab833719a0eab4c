package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// User is the marketplace account row. Identity data is owned by the auth
// service; this service reads the profile and owns Balance.
type User struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Role      enums.UserRole      `gorm:"column:role;type:text;not null;index"`
	Name      string              `gorm:"column:name;not null"`
	Email     string              `gorm:"column:email;not null"`
	Phone     string              `gorm:"column:phone"`
	Address   string              `gorm:"column:address"`
	City      string              `gorm:"column:city"`
	State     string              `gorm:"column:state"`
	Balance   decimal.NullDecimal `gorm:"column:balance;type:numeric(12,2)"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
