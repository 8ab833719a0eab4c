package enums

import "fmt"

// NotificationType identifies what a notification is about; clients map it to
// a translated message.
type NotificationType string

const (
	NotificationSupplierNewOrder       NotificationType = "SUPPLIER_NEW_ORDER"
	NotificationAdminNewOrder          NotificationType = "ADMIN_NEW_ORDER"
	NotificationProductStockChanged    NotificationType = "PRODUCT_STOCK_CHANGED"
	NotificationSubOrderStatusChanged  NotificationType = "SUB_ORDER_STATUS_CHANGED"
	NotificationSupplierOrderCancelled NotificationType = "SUPPLIER_ORDER_CANCELLED"
	NotificationAdminOrderCancelled    NotificationType = "ADMIN_ORDER_CANCELLED"
	NotificationPickupCreated          NotificationType = "PICKUP_CREATED"
	NotificationAdminWithdrawRequested NotificationType = "ADMIN_WITHDRAW_REQUESTED"
	NotificationWithdrawApproved       NotificationType = "WITHDRAW_APPROVED"
	NotificationWithdrawDeclined       NotificationType = "WITHDRAW_DECLINED"
)

var validNotificationTypes = []NotificationType{
	NotificationSupplierNewOrder,
	NotificationAdminNewOrder,
	NotificationProductStockChanged,
	NotificationSubOrderStatusChanged,
	NotificationSupplierOrderCancelled,
	NotificationAdminOrderCancelled,
	NotificationPickupCreated,
	NotificationAdminWithdrawRequested,
	NotificationWithdrawApproved,
	NotificationWithdrawDeclined,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
