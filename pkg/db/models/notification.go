package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// Notification is an in-app message for one user. Link points at the
// resource that triggered it, e.g. "/orders/<id>".
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index:idx_notifications_user_created,priority:1"`
	Type      enums.NotificationType `gorm:"column:type;type:text;not null"`
	Link      string                 `gorm:"column:link;not null"`
	Subject   *string                `gorm:"column:subject"`
	Read      bool                   `gorm:"column:read;not null;default:false"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime;index:idx_notifications_user_created,priority:2,sort:desc;index:idx_notifications_created_at"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
