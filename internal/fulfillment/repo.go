package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/angelmondragon/dropship-backend/pkg/db"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// ErrSubOrderNotFound is returned when no sub-order matches a lookup.
var ErrSubOrderNotFound = errors.New("sub-order not found")

// ErrHistoryRace means another writer appended to the same sub-order's
// history first.
var ErrHistoryRace = errors.New("status history sequence taken")

// Target is a sub-order together with its parent order.
type Target struct {
	SubOrder models.SubOrder
	Order    models.Order
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LoadTarget(ctx context.Context, subOrderID uuid.UUID) (*Target, error)
	FindIDByDeliveryID(ctx context.Context, deliveryID string) (uuid.UUID, error)
	FindIDByCode(ctx context.Context, code string) (uuid.UUID, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error)
	Lines(ctx context.Context, subOrderID uuid.UUID) ([]models.OrderLine, error)
	UpdateStatus(ctx context.Context, subOrderID uuid.UUID, from, to enums.SubOrderStatus, deliveryID *string, at time.Time) (bool, error)
	AppendHistory(ctx context.Context, subOrderID uuid.UUID, status enums.SubOrderStatus, courierCode, description string) (*models.StatusHistoryEntry, error)
	History(ctx context.Context, subOrderID uuid.UUID) ([]models.StatusHistoryEntry, error)
	ListTrackable(ctx context.Context, afterID uuid.UUID, limit int) ([]models.SubOrder, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LoadTarget(ctx context.Context, subOrderID uuid.UUID) (*Target, error) {
	var target Target
	if err := r.db.WithContext(ctx).First(&target.SubOrder, "id = ?", subOrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubOrderNotFound
		}
		return nil, err
	}
	if err := r.db.WithContext(ctx).First(&target.Order, "id = ?", target.SubOrder.OrderID).Error; err != nil {
		return nil, err
	}
	return &target, nil
}

func (r *repository) FindIDByDeliveryID(ctx context.Context, deliveryID string) (uuid.UUID, error) {
	return r.findID(ctx, "delivery_id = ?", deliveryID)
}

func (r *repository) FindIDByCode(ctx context.Context, code string) (uuid.UUID, error) {
	return r.findID(ctx, "code = ?", code)
}

func (r *repository) findID(ctx context.Context, query string, arg any) (uuid.UUID, error) {
	var sub models.SubOrder
	err := r.db.WithContext(ctx).Select("id").Where(query, arg).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, ErrSubOrderNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return sub.ID, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error) {
	var subs []models.SubOrder
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("position ASC").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) Lines(ctx context.Context, subOrderID uuid.UUID) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	if err := r.db.WithContext(ctx).Where("sub_order_id = ?", subOrderID).Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// UpdateStatus moves the sub-order from one status to another only if it is
// still in from. It reports whether the row changed.
func (r *repository) UpdateStatus(ctx context.Context, subOrderID uuid.UUID, from, to enums.SubOrderStatus, deliveryID *string, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	if deliveryID != nil && *deliveryID != "" {
		updates["delivery_id"] = *deliveryID
	}
	res := r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Where("id = ? AND status = ?", subOrderID, from).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AppendHistory adds the next entry of the sub-order's history. The sequence
// is unique per sub-order, so two writers racing on the same sub-order
// cannot both append at the same position.
func (r *repository) AppendHistory(ctx context.Context, subOrderID uuid.UUID, status enums.SubOrderStatus, courierCode, description string) (*models.StatusHistoryEntry, error) {
	var last int
	if err := r.db.WithContext(ctx).
		Model(&models.StatusHistoryEntry{}).
		Where("sub_order_id = ?", subOrderID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error; err != nil {
		return nil, err
	}
	entry := &models.StatusHistoryEntry{
		SubOrderID:  subOrderID,
		Sequence:    last + 1,
		Status:      status,
		Description: description,
	}
	if courierCode != "" {
		entry.CourierCode = &courierCode
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			return nil, ErrHistoryRace
		}
		return nil, err
	}
	return entry, nil
}

func (r *repository) History(ctx context.Context, subOrderID uuid.UUID) ([]models.StatusHistoryEntry, error) {
	var entries []models.StatusHistoryEntry
	if err := r.db.WithContext(ctx).
		Where("sub_order_id = ?", subOrderID).
		Order("sequence ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListTrackable pages through sub-orders the courier still moves: they have
// a delivery id and are not in a final status.
func (r *repository) ListTrackable(ctx context.Context, afterID uuid.UUID, limit int) ([]models.SubOrder, error) {
	query := r.db.WithContext(ctx).
		Where("delivery_id IS NOT NULL AND delivery_id <> ''").
		Where("status NOT IN ?", []enums.SubOrderStatus{
			enums.SubOrderStatusDelivered,
			enums.SubOrderStatusReturned,
			enums.SubOrderStatusSellerCancelled,
		})
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}
	var subs []models.SubOrder
	if err := query.Order("id ASC").Limit(limit).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
