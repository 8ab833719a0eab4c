package pickups

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/pkg/db/models"
)

var errPickupNotFound = errors.New("pickup not found")

// Candidate is a sub-order considered for a pickup, with its parent order
// and the number of sub-orders that order was split into.
type Candidate struct {
	SubOrder models.SubOrder
	Order    models.Order
	Parts    int
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LoadCandidates(ctx context.Context, subOrderIDs, orderIDs []uuid.UUID) ([]Candidate, error)
	CreatePickup(ctx context.Context, pickup *models.Pickup) error
	AttachPickup(ctx context.Context, subOrderID, pickupID uuid.UUID) (bool, error)
	FindPickup(ctx context.Context, id uuid.UUID) (*models.Pickup, error)
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

// LoadCandidates returns the sub-orders named directly plus every sub-order
// of the named orders, ordered by order then position.
func (r *repository) LoadCandidates(ctx context.Context, subOrderIDs, orderIDs []uuid.UUID) ([]Candidate, error) {
	if len(subOrderIDs) == 0 && len(orderIDs) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx).Preload("Lines")
	switch {
	case len(subOrderIDs) > 0 && len(orderIDs) > 0:
		query = query.Where("id IN ? OR order_id IN ?", subOrderIDs, orderIDs)
	case len(subOrderIDs) > 0:
		query = query.Where("id IN ?", subOrderIDs)
	default:
		query = query.Where("order_id IN ?", orderIDs)
	}
	var subs []models.SubOrder
	if err := query.Order("order_id ASC").Order("position ASC").Find(&subs).Error; err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(subs))
	seen := map[uuid.UUID]struct{}{}
	for _, s := range subs {
		if _, ok := seen[s.OrderID]; !ok {
			seen[s.OrderID] = struct{}{}
			ids = append(ids, s.OrderID)
		}
	}
	var orders []models.Order
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&orders).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	var counts []struct {
		OrderID uuid.UUID
		Parts   int
	}
	if err := r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Select("order_id, COUNT(*) AS parts").
		Where("order_id IN ?", ids).
		Group("order_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	parts := make(map[uuid.UUID]int, len(counts))
	for _, c := range counts {
		parts[c.OrderID] = c.Parts
	}

	out := make([]Candidate, 0, len(subs))
	for _, s := range subs {
		out = append(out, Candidate{SubOrder: s, Order: byID[s.OrderID], Parts: parts[s.OrderID]})
	}
	return out, nil
}

func (r *repository) CreatePickup(ctx context.Context, pickup *models.Pickup) error {
	return r.db.WithContext(ctx).Omit("SubOrders").Create(pickup).Error
}

// AttachPickup links a sub-order to a pickup unless it already has one.
func (r *repository) AttachPickup(ctx context.Context, subOrderID, pickupID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Where("id = ? AND pickup_id IS NULL", subOrderID).
		UpdateColumn("pickup_id", pickupID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindPickup(ctx context.Context, id uuid.UUID) (*models.Pickup, error) {
	var pickup models.Pickup
	err := r.db.WithContext(ctx).
		Preload("SubOrders", func(db *gorm.DB) *gorm.DB { return db.Order("code ASC") }).
		Where("id = ?", id).
		First(&pickup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errPickupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pickup, nil
}
