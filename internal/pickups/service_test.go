package pickups

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/internal/catalog"
	"github.com/angelmondragon/dropship-backend/internal/commission"
	"github.com/angelmondragon/dropship-backend/internal/courier"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/internal/ledger"
	"github.com/angelmondragon/dropship-backend/internal/notifications/notificationstest"
	"github.com/angelmondragon/dropship-backend/internal/users"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db"
	"github.com/angelmondragon/dropship-backend/pkg/db/dbtest"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/outbox"
)

type fakeGateway struct {
	mu       sync.Mutex
	requests []courier.PickupRequest
	createFn func(ctx context.Context, req courier.PickupRequest) (courier.PickupOutcome, error)
}

func (f *fakeGateway) CreatePickup(ctx context.Context, req courier.PickupRequest) (courier.PickupOutcome, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return acceptAll(req), nil
}

func (f *fakeGateway) TrackShipments(context.Context, []string) (map[string][]courier.TrackingUpdate, error) {
	return nil, nil
}

func acceptAll(req courier.PickupRequest) courier.PickupAccepted {
	accepted := courier.PickupAccepted{ID: "PU-" + req.Reference[:8], GUID: uuid.NewString()}
	for _, s := range req.Shipments {
		accepted.Shipments = append(accepted.Shipments, courier.ProcessedShipment{ID: "D-" + s.Reference1, Reference: s.Reference1})
	}
	return accepted
}

type fixture struct {
	conn      *gorm.DB
	svc       *Service
	gateway   *fakeGateway
	notifier  *notificationstest.Recorder
	admin     *models.User
	seller    *models.User
	supplierA *models.User
	supplierB *models.User
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		TxRunner: db.NewFromGorm(conn),
		Repo:     ledger.NewRepository(conn),
		Outbox:   emitter,
	})
	require.NoError(t, err)
	recorder := &notificationstest.Recorder{}
	machine, err := fulfillment.NewMachine(fulfillment.MachineParams{
		TxRunner: db.NewFromGorm(conn),
		Repo:     fulfillment.NewRepository(conn),
		Catalog:  catalog.NewRepository(conn),
		Settler:  commission.NewSettler(commission.NewEngine(commission.DefaultRates()), ledgerSvc, nil),
		Outbox:   emitter,
		Notifier: recorder,
	})
	require.NoError(t, err)

	gateway := &fakeGateway{}
	svc, err := NewService(ServiceParams{
		TxRunner: db.NewFromGorm(conn),
		Repo:     NewRepository(conn),
		Users:    users.NewRepository(conn),
		Gateway:  gateway,
		Machine:  machine,
		Outbox:   emitter,
		Notifier: recorder,
		Config:   config.CourierConfig{Timezone: "UTC", MaxConcurrentCalls: 2},
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)

	return &fixture{
		conn:      conn,
		svc:       svc,
		gateway:   gateway,
		notifier:  recorder,
		admin:     dbtest.CreateUser(t, conn, enums.UserRoleAdmin, "0"),
		seller:    dbtest.CreateUser(t, conn, enums.UserRoleSeller, "0"),
		supplierA: dbtest.CreateUser(t, conn, enums.UserRoleSupplier, "0"),
		supplierB: dbtest.CreateUser(t, conn, enums.UserRoleSupplier, "0"),
	}
}

// seedOrder creates an order with one awaiting sub-order per supplier.
func (f *fixture) seedOrder(t *testing.T, suppliers ...uuid.UUID) (models.Order, []models.SubOrder) {
	t.Helper()
	order := models.Order{
		Code:          "ORD-260302-" + uuid.NewString()[:8],
		SellerID:      f.seller.ID,
		ClientName:    "Youssef Trabelsi",
		ClientPhone:   "+21698111222",
		ClientAddress: "3 Rue Ibn Khaldoun",
		ClientCity:    "Sfax",
		ClientState:   "Sfax",
		Fragile:       true,
	}
	require.NoError(t, f.conn.Create(&order).Error)
	subs := make([]models.SubOrder, 0, len(suppliers))
	for i, supplierID := range suppliers {
		product := dbtest.CreateProduct(t, f.conn, supplierID, "50", "5", 10)
		sub := models.SubOrder{
			OrderID:    order.ID,
			SupplierID: supplierID,
			Code:       order.Code + "-" + string(rune('1'+i)),
			Position:   i + 1,
			Status:     enums.SubOrderStatusAwaitingPackaging,
		}
		require.NoError(t, f.conn.Create(&sub).Error)
		require.NoError(t, f.conn.Create(&models.OrderLine{
			OrderID:     order.ID,
			SubOrderID:  sub.ID,
			ProductID:   product.ID,
			SupplierID:  supplierID,
			ProductName: product.Name,
			Quantity:    2,
			DetailPrice: decimal.NewFromInt(60),
			Color:       "black",
			WeightKg:    0.75,
		}).Error)
		subs = append(subs, sub)
	}
	return order, subs
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) models.SubOrder {
	t.Helper()
	var sub models.SubOrder
	require.NoError(t, f.conn.First(&sub, "id = ?", id).Error)
	return sub
}

func TestRequestPickupTwoSuppliers(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	f := newFixture(t, now)
	order, subs := f.seedOrder(t, f.supplierA.ID, f.supplierB.ID)

	batch, err := f.svc.RequestPickup(context.Background(), RequestPickupInput{
		ActorUserID: f.admin.ID,
		ActorRole:   enums.UserRoleAdmin,
		OrderIDs:    []uuid.UUID{order.ID},
	})
	require.NoError(t, err)
	require.NoError(t, batch.Err())
	require.True(t, batch.Succeeded())
	require.Len(t, batch.Groups, 2)
	assert.Equal(t, f.supplierA.ID, batch.Groups[0].SupplierID)
	assert.Equal(t, f.supplierB.ID, batch.Groups[1].SupplierID)

	wantDate := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	for i, g := range batch.Groups {
		require.NotNil(t, g.Pickup)
		assert.True(t, g.Pickup.PickupDate.Equal(wantDate))
		assert.Equal(t, []uuid.UUID{subs[i].ID}, g.Matched)
		assert.Empty(t, g.Unmatched)

		got := f.reload(t, subs[i].ID)
		assert.Equal(t, enums.SubOrderStatusRecordCreated, got.Status)
		require.NotNil(t, got.DeliveryID)
		assert.Equal(t, "D-"+subs[i].Code, *got.DeliveryID)
		require.NotNil(t, got.PickupID)
		assert.Equal(t, g.Pickup.ID, *got.PickupID)
	}

	require.Len(t, f.gateway.requests, 2)
	for _, req := range f.gateway.requests {
		require.Len(t, req.Shipments, 1)
		assert.True(t, req.PickupDate.Equal(wantDate))
		ship := req.Shipments[0]
		assert.Contains(t, ship.Reference2, " of 2")
		assert.True(t, ship.CashOnDelivery.Equal(decimal.NewFromInt(120)))
		assert.InDelta(t, 1.5, ship.WeightKg(), 1e-9)
	}

	var pickups []models.Pickup
	require.NoError(t, f.conn.Preload("SubOrders").Find(&pickups).Error)
	require.Len(t, pickups, 2)
	for _, p := range pickups {
		for _, sub := range p.SubOrders {
			assert.Equal(t, p.SupplierID, sub.SupplierID)
		}
	}
	assert.Len(t, f.notifier.OfType(enums.NotificationPickupCreated), 2)
}

func TestPickupAfterNoonIsNextDay(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	_, subs := f.seedOrder(t, f.supplierA.ID)

	batch, err := f.svc.RequestPickup(context.Background(), RequestPickupInput{
		ActorUserID: f.supplierA.ID,
		ActorRole:   enums.UserRoleSupplier,
		SubOrderIDs: []uuid.UUID{subs[0].ID},
	})
	require.NoError(t, err)
	require.NotNil(t, batch.Groups[0].Pickup)
	assert.True(t, batch.Groups[0].Pickup.PickupDate.Equal(time.Date(2026, 3, 3, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, subs[0].Code[:len(subs[0].Code)-2], f.gateway.requests[0].Shipments[0].Reference2)
}

func TestSecondPickupOnSameSetIsInvalid(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	_, subs := f.seedOrder(t, f.supplierA.ID)
	input := RequestPickupInput{ActorUserID: f.admin.ID, ActorRole: enums.UserRoleAdmin, SubOrderIDs: []uuid.UUID{subs[0].ID}}

	_, err := f.svc.RequestPickup(context.Background(), input)
	require.NoError(t, err)

	_, err = f.svc.RequestPickup(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.ReasonPickupInvalid, pkgerrors.ReasonOf(err))
	assert.Len(t, f.gateway.requests, 1)
}

func TestCancelledSubOrderFailsWholeRequest(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	_, subs := f.seedOrder(t, f.supplierA.ID, f.supplierB.ID)
	require.NoError(t, f.conn.Model(&models.SubOrder{}).Where("id = ?", subs[1].ID).
		UpdateColumn("status", enums.SubOrderStatusSellerCancelled).Error)

	_, err := f.svc.RequestPickup(context.Background(), RequestPickupInput{
		ActorUserID: f.admin.ID,
		ActorRole:   enums.UserRoleAdmin,
		SubOrderIDs: []uuid.UUID{subs[0].ID, subs[1].ID},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.ReasonPickupOrderCancelled, pkgerrors.ReasonOf(err))
	assert.Empty(t, f.gateway.requests)
	assert.Equal(t, enums.SubOrderStatusAwaitingPackaging, f.reload(t, subs[0].ID).Status)
}

func TestRequestPickupRejectsBadSelections(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	_, subs := f.seedOrder(t, f.supplierA.ID, f.supplierB.ID)
	ctx := context.Background()

	_, err := f.svc.RequestPickup(ctx, RequestPickupInput{ActorUserID: f.admin.ID, ActorRole: enums.UserRoleAdmin})
	assert.Equal(t, pkgerrors.ReasonPickupInvalid, pkgerrors.ReasonOf(err))

	_, err = f.svc.RequestPickup(ctx, RequestPickupInput{ActorUserID: f.admin.ID, ActorRole: enums.UserRoleAdmin, SubOrderIDs: []uuid.UUID{uuid.New()}})
	assert.Equal(t, pkgerrors.ReasonPickupInvalid, pkgerrors.ReasonOf(err))

	_, err = f.svc.RequestPickup(ctx, RequestPickupInput{ActorUserID: f.supplierA.ID, ActorRole: enums.UserRoleSupplier, SubOrderIDs: []uuid.UUID{subs[1].ID}})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = f.svc.RequestPickup(ctx, RequestPickupInput{ActorUserID: f.seller.ID, ActorRole: enums.UserRoleSeller, SubOrderIDs: []uuid.UUID{subs[0].ID}})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	assert.Empty(t, f.gateway.requests)
}

func TestRejectedGroupLeavesSiblingIntact(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	order, subs := f.seedOrder(t, f.supplierA.ID, f.supplierB.ID)
	f.gateway.createFn = func(_ context.Context, req courier.PickupRequest) (courier.PickupOutcome, error) {
		if req.Reference == f.supplierB.ID.String() {
			return courier.PickupRejected{Notifications: []courier.Notification{{Code: "ERR01", Message: "invalid address"}}}, nil
		}
		return acceptAll(req), nil
	}

	batch, err := f.svc.RequestPickup(context.Background(), RequestPickupInput{
		ActorUserID: f.admin.ID,
		ActorRole:   enums.UserRoleAdmin,
		OrderIDs:    []uuid.UUID{order.ID},
	})
	require.NoError(t, err)
	assert.True(t, batch.Succeeded())
	require.Error(t, batch.Err())
	assert.Equal(t, pkgerrors.ReasonCourier, pkgerrors.ReasonOf(batch.Groups[1].Err))
	assert.Nil(t, batch.Groups[1].Pickup)
	assert.Equal(t, []uuid.UUID{subs[1].ID}, batch.Groups[1].Unmatched)

	assert.Equal(t, enums.SubOrderStatusRecordCreated, f.reload(t, subs[0].ID).Status)
	rejected := f.reload(t, subs[1].ID)
	assert.Equal(t, enums.SubOrderStatusAwaitingPackaging, rejected.Status)
	assert.Nil(t, rejected.PickupID)

	var count int64
	require.NoError(t, f.conn.Model(&models.Pickup{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestTransportErrorIsGroupError(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	_, subs := f.seedOrder(t, f.supplierA.ID)
	f.gateway.createFn = func(context.Context, courier.PickupRequest) (courier.PickupOutcome, error) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("timeout"), "courier call").WithReason(pkgerrors.ReasonCourier)
	}

	batch, err := f.svc.RequestPickup(context.Background(), RequestPickupInput{
		ActorUserID: f.admin.ID,
		ActorRole:   enums.UserRoleAdmin,
		SubOrderIDs: []uuid.UUID{subs[0].ID},
	})
	require.NoError(t, err)
	assert.False(t, batch.Succeeded())
	assert.Equal(t, pkgerrors.ReasonCourier, pkgerrors.ReasonOf(batch.Err()))
	assert.Equal(t, enums.SubOrderStatusAwaitingPackaging, f.reload(t, subs[0].ID).Status)
}

func TestUnechoedShipmentStaysAwaiting(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	_, first := f.seedOrder(t, f.supplierA.ID)
	_, second := f.seedOrder(t, f.supplierA.ID)
	f.gateway.createFn = func(_ context.Context, req courier.PickupRequest) (courier.PickupOutcome, error) {
		accepted := acceptAll(req)
		accepted.Shipments[1].HasErrors = true
		return accepted, nil
	}

	batch, err := f.svc.RequestPickup(context.Background(), RequestPickupInput{
		ActorUserID: f.supplierA.ID,
		ActorRole:   enums.UserRoleSupplier,
		SubOrderIDs: []uuid.UUID{first[0].ID, second[0].ID},
	})
	require.NoError(t, err)
	require.Len(t, batch.Groups, 1)
	g := batch.Groups[0]
	require.NoError(t, g.Err)
	assert.Len(t, g.Matched, 1)
	assert.Len(t, g.Unmatched, 1)
	assert.Equal(t, enums.SubOrderStatusAwaitingPackaging, f.reload(t, g.Unmatched[0]).Status)
	assert.Equal(t, enums.SubOrderStatusRecordCreated, f.reload(t, g.Matched[0]).Status)

	dto, ids, err := f.svc.GetPickup(context.Background(), g.Pickup.ID, f.supplierA.ID, enums.UserRoleSupplier)
	require.NoError(t, err)
	assert.Equal(t, g.Pickup.Code, dto.Code)
	assert.Equal(t, g.Matched, ids)

	_, _, err = f.svc.GetPickup(context.Background(), g.Pickup.ID, f.supplierB.ID, enums.UserRoleSupplier)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestAcceptedPickupWithoutEchoesPersistsNothing(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	_, subs := f.seedOrder(t, f.supplierA.ID)
	f.gateway.createFn = func(context.Context, courier.PickupRequest) (courier.PickupOutcome, error) {
		return courier.PickupAccepted{ID: "PU-1"}, nil
	}

	batch, err := f.svc.RequestPickup(context.Background(), RequestPickupInput{
		ActorUserID: f.admin.ID,
		ActorRole:   enums.UserRoleAdmin,
		SubOrderIDs: []uuid.UUID{subs[0].ID},
	})
	require.NoError(t, err)
	require.Len(t, batch.Groups, 1)
	g := batch.Groups[0]
	assert.False(t, batch.Succeeded())
	assert.Equal(t, pkgerrors.ReasonCourier, pkgerrors.ReasonOf(g.Err))
	assert.Nil(t, g.Pickup)
	assert.Empty(t, g.Matched)
	assert.Equal(t, []uuid.UUID{subs[0].ID}, g.Unmatched)

	var count int64
	require.NoError(t, f.conn.Model(&models.Pickup{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, enums.SubOrderStatusAwaitingPackaging, f.reload(t, subs[0].ID).Status)
}
