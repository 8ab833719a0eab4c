package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their sub-orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateSubOrders(ctx context.Context, subOrders []models.SubOrder) error
	CreateLines(ctx context.Context, lines []models.OrderLine) error
	FindOrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListSellerOrders(ctx context.Context, sellerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	ListSupplierSubOrders(ctx context.Context, supplierID uuid.UUID, status *enums.SubOrderStatus, limit int, cursor *pagination.Cursor) ([]models.SubOrder, error)
}
