package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

// Notifier is the fire-and-forget sink used by the fulfillment services.
// Implementations never return errors; failures are logged.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, typ enums.NotificationType, link, subject string)
	NotifyAllAdmins(ctx context.Context, typ enums.NotificationType, link, subject string)
}

// AdminDirectory lists the admins that receive platform-wide notifications.
type AdminDirectory interface {
	ListAdminIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Dispatcher persists notifications. Callers invoke it after their database
// transaction committed.
type Dispatcher struct {
	repo   Repository
	admins AdminDirectory
	logg   *logger.Logger
}

func NewDispatcher(repo Repository, admins AdminDirectory, logg *logger.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, admins: admins, logg: logg}
}

func (d *Dispatcher) NotifyUser(ctx context.Context, userID uuid.UUID, typ enums.NotificationType, link, subject string) {
	if d == nil || d.repo == nil {
		return
	}
	ctx = d.logg.WithFields(ctx, map[string]any{"notification_type": typ, "recipient_id": userID.String()})
	if userID == uuid.Nil || !typ.IsValid() {
		d.logg.Warn(ctx, "notification dropped: invalid recipient or type")
		return
	}
	row := newNotification(userID, typ, link, subject)
	if err := d.repo.Create(ctx, &row); err != nil {
		d.logg.Error(ctx, "notification write failed", err)
	}
}

func (d *Dispatcher) NotifyAllAdmins(ctx context.Context, typ enums.NotificationType, link, subject string) {
	if d == nil || d.repo == nil || d.admins == nil {
		return
	}
	ctx = d.logg.WithField(ctx, "notification_type", typ)
	if !typ.IsValid() {
		d.logg.Warn(ctx, "notification dropped: invalid type")
		return
	}
	adminIDs, err := d.admins.ListAdminIDs(ctx)
	if err != nil {
		d.logg.Error(ctx, "list admins for notification failed", err)
		return
	}
	rows := make([]models.Notification, 0, len(adminIDs))
	for _, id := range adminIDs {
		rows = append(rows, newNotification(id, typ, link, subject))
	}
	if err := d.repo.CreateBatch(ctx, rows); err != nil {
		d.logg.Error(ctx, "admin notification write failed", err)
	}
}

func newNotification(userID uuid.UUID, typ enums.NotificationType, link, subject string) models.Notification {
	n := models.Notification{UserID: userID, Type: typ, Link: link}
	if subject != "" {
		n.Subject = &subject
	}
	return n
}

// Links used in notifications, relative to the web app.
func OrderLink(orderID uuid.UUID) string       { return "/orders/" + orderID.String() }
func SubOrderLink(subOrderID uuid.UUID) string { return "/sub-orders/" + subOrderID.String() }
func PickupLink(pickupID uuid.UUID) string     { return "/pickups/" + pickupID.String() }
func WithdrawLink(requestID uuid.UUID) string  { return "/withdraws/" + requestID.String() }
func ProductLink(productID uuid.UUID) string   { return "/products/" + productID.String() }
