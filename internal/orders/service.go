package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/internal/catalog"
	"github.com/angelmondragon/dropship-backend/internal/commission"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/internal/notifications"
	"github.com/angelmondragon/dropship-backend/internal/users"
	"github.com/angelmondragon/dropship-backend/pkg/codes"
	"github.com/angelmondragon/dropship-backend/pkg/db"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	"github.com/angelmondragon/dropship-backend/pkg/outbox"
	"github.com/angelmondragon/dropship-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/dropship-backend/pkg/pagination"
	"github.com/angelmondragon/dropship-backend/pkg/types"
)

// Service splits client orders into supplier sub-orders and serves the
// order read paths.
type Service interface {
	Submit(ctx context.Context, input SubmitOrderInput) (*OrderDetailDTO, error)
	GetOrder(ctx context.Context, input GetOrderInput) (*OrderDetailDTO, error)
	ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*types.Page[OrderSummaryDTO], error)
	ListSupplierSubOrders(ctx context.Context, supplierID uuid.UUID, filter SupplierSubOrderFilter, params pagination.Params) (*types.Page[SubOrderDTO], error)
}

type ServiceParams struct {
	TxRunner db.TxRunner
	Repo     Repository
	Catalog  *catalog.Repository
	Users    *users.Repository
	History  fulfillment.Repository
	Engine   *commission.Engine
	Outbox   outbox.Emitter
	Notifier notifications.Notifier
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	tx       db.TxRunner
	repo     Repository
	catalog  *catalog.Repository
	users    *users.Repository
	history  fulfillment.Repository
	engine   *commission.Engine
	outbox   outbox.Emitter
	notifier notifications.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order splitter with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.TxRunner == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	case params.Catalog == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	case params.Users == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	case params.History == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "status history repository required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	if params.Engine == nil {
		params.Engine = commission.NewEngine(commission.DefaultRates())
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:       params.TxRunner,
		repo:     params.Repo,
		catalog:  params.Catalog,
		users:    params.Users,
		history:  params.History,
		engine:   params.Engine,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		logg:     params.Logger,
		now:      params.Now,
	}, nil
}

// Submit persists the order, one sub-order per supplier, and decrements
// stock for every line in a single transaction. Notifications go out after
// commit.
func (s *service) Submit(ctx context.Context, input SubmitOrderInput) (*OrderDetailDTO, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "seller identity missing")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one line")
	}
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil || line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each line needs a product and a positive quantity")
		}
	}
	ctx = s.logg.WithUserID(ctx, input.SellerID.String())

	var (
		order    models.Order
		products map[uuid.UUID]models.Product
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.users.WithTx(tx).FindWithRole(ctx, input.SellerID, enums.UserRoleSeller); err != nil {
			if errors.Is(err, users.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "seller not found").WithReason(pkgerrors.ReasonUserNotFound)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
		}

		stock := s.catalog.WithTx(tx)
		var err error
		products, err = stock.GetProductsByIDs(ctx, productIDs(input.Lines))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}
		priced := make([]commission.Line, len(input.Lines))
		for i, line := range input.Lines {
			product, ok := products[line.ProductID]
			if !ok {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s not found", line.ProductID)
			}
			priced[i] = commission.Line{
				SupplierID:         product.SupplierID,
				Quantity:           line.Quantity,
				DetailPrice:        line.DetailPrice,
				WholesalePrice:     product.WholesalePrice,
				PlatformUnitProfit: product.PlatformUnitProfit,
			}
		}
		quote := s.engine.Quote(priced)

		for _, line := range input.Lines {
			if err := stock.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				return saveError(err, "decrement stock")
			}
		}

		now := s.now()
		order = models.Order{
			ID:                uuid.New(),
			Code:              codes.New(codes.PrefixOrder, now),
			SellerID:          input.SellerID,
			ClientName:        input.ClientName,
			ClientPhone:       input.ClientPhone,
			ClientAddress:     input.ClientAddress,
			ClientCity:        input.ClientCity,
			ClientState:       input.ClientState,
			Total:             quote.Total,
			SellerProfit:      quote.SellerProfit,
			PlatformProfit:    quote.PlatformProfit,
			DeliverySurcharge: quote.Surcharge,
			IsComposedOrder:   quote.IsComposedOrder,
			Openable:          input.Openable,
			Fragile:           input.Fragile,
			Note:              input.Note,
			CreatedAt:         now,
		}

		bySupplier := map[uuid.UUID]int{}
		subOrders := make([]models.SubOrder, 0, len(quote.Suppliers))
		for i, sq := range quote.Suppliers {
			bySupplier[sq.SupplierID] = i
			subOrders = append(subOrders, models.SubOrder{
				ID:             uuid.New(),
				OrderID:        order.ID,
				SupplierID:     sq.SupplierID,
				Code:           codes.SubOrder(order.Code, i+1),
				Position:       i + 1,
				Status:         enums.SubOrderStatusAwaitingPackaging,
				SellerProfit:   sq.SellerProfit,
				SupplierProfit: sq.SupplierProfit,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
		}
		lines := make([]models.OrderLine, 0, len(input.Lines))
		for i, line := range input.Lines {
			product := products[line.ProductID]
			sub := subOrders[bySupplier[product.SupplierID]]
			lines = append(lines, models.OrderLine{
				OrderID:            order.ID,
				SubOrderID:         sub.ID,
				ProductID:          product.ID,
				SupplierID:         product.SupplierID,
				ProductName:        product.Name,
				Quantity:           line.Quantity,
				DetailPrice:        line.DetailPrice,
				WholesalePrice:     product.WholesalePrice,
				PlatformUnitProfit: product.PlatformUnitProfit,
				SupplierProfit:     quote.LineSupplierProfits[i],
				Color:              line.Color,
				Size:               line.Size,
				WeightKg:           product.WeightKg,
			})
		}

		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrder(ctx, &order); err != nil {
			return saveError(err, "create order")
		}
		if err := repo.CreateSubOrders(ctx, subOrders); err != nil {
			return saveError(err, "create sub-orders")
		}
		if err := repo.CreateLines(ctx, lines); err != nil {
			return saveError(err, "create order lines")
		}
		history := s.history.WithTx(tx)
		for _, sub := range subOrders {
			if _, err := history.AppendHistory(ctx, sub.ID, enums.SubOrderStatusAwaitingPackaging, "", "Awaiting packaging"); err != nil {
				return saveError(err, "append status history")
			}
		}

		event := payloads.OrderCreatedEvent{
			OrderID:         order.ID,
			OrderCode:       order.Code,
			SellerID:        order.SellerID,
			Total:           order.Total,
			SellerProfit:    order.SellerProfit,
			PlatformProfit:  order.PlatformProfit,
			IsComposedOrder: order.IsComposedOrder,
		}
		for _, sub := range subOrders {
			event.SubOrderIDs = append(event.SubOrderIDs, sub.ID)
			event.SupplierIDs = append(event.SupplierIDs, sub.SupplierID)
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.SellerID, Role: enums.UserRoleSeller},
			OccurredAt:    now,
			Data:          event,
		}); err != nil {
			return saveError(err, "emit order event")
		}

		for i := range subOrders {
			for _, l := range lines {
				if l.SubOrderID == subOrders[i].ID {
					subOrders[i].Lines = append(subOrders[i].Lines, l)
				}
			}
		}
		order.SubOrders = subOrders
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":   order.ID.String(),
		"order_code": order.Code,
		"sub_orders": len(order.SubOrders),
	}), "order submitted")
	s.announce(ctx, order, products)
	return detailFromModel(order), nil
}

func (s *service) announce(ctx context.Context, order models.Order, products map[uuid.UUID]models.Product) {
	if s.notifier == nil {
		return
	}
	for _, sub := range order.SubOrders {
		s.notifier.NotifyUser(ctx, sub.SupplierID, enums.NotificationSupplierNewOrder,
			notifications.SubOrderLink(sub.ID), sub.Code)
	}
	s.notifier.NotifyAllAdmins(ctx, enums.NotificationAdminNewOrder, notifications.OrderLink(order.ID), order.Code)

	notified := map[uuid.UUID]struct{}{}
	for _, sub := range order.SubOrders {
		for _, line := range sub.Lines {
			if _, done := notified[line.ProductID]; done {
				continue
			}
			notified[line.ProductID] = struct{}{}
			sellers, err := s.catalog.ListSellersForProduct(ctx, line.ProductID)
			if err != nil {
				s.logg.Error(ctx, "list sellers for stock notification", err)
				continue
			}
			for _, sellerID := range sellers {
				if sellerID == order.SellerID {
					continue
				}
				s.notifier.NotifyUser(ctx, sellerID, enums.NotificationProductStockChanged,
					notifications.ProductLink(line.ProductID), products[line.ProductID].Name)
			}
		}
	}
}

// GetOrder returns the order detail to its seller, an admin, or a supplier
// serving one of its sub-orders. Suppliers only see their own sub-orders.
func (s *service) GetOrder(ctx context.Context, input GetOrderInput) (*OrderDetailDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrderDetail(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	switch input.ActorRole {
	case enums.UserRoleAdmin:
	case enums.UserRoleSeller:
		if order.SellerID != input.ActorUserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another seller")
		}
	case enums.UserRoleSupplier:
		own := order.SubOrders[:0]
		for _, sub := range order.SubOrders {
			if sub.SupplierID == input.ActorUserID {
				own = append(own, sub)
			}
		}
		if len(own) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order has no sub-order for this supplier")
		}
		order.SubOrders = own
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role not allowed")
	}
	return detailFromModel(*order), nil
}

func (s *service) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*types.Page[OrderSummaryDTO], error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListSellerOrders(ctx, sellerID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return types.MapPage(rows, next, summaryFromModel), nil
}

func (s *service) ListSupplierSubOrders(ctx context.Context, supplierID uuid.UUID, filter SupplierSubOrderFilter, params pagination.Params) (*types.Page[SubOrderDTO], error) {
	if supplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListSupplierSubOrders(ctx, supplierID, filter.Status, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sub-orders")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(so models.SubOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: so.CreatedAt, ID: so.ID}
	})
	return types.MapPage(rows, next, subOrderFromModel), nil
}

func productIDs(lines []SubmitLine) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func saveError(err error, message string) error {
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message).WithReason(pkgerrors.ReasonSaveError)
}
