package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/internal/catalog"
	"github.com/angelmondragon/dropship-backend/internal/commission"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/internal/ledger"
	"github.com/angelmondragon/dropship-backend/internal/notifications/notificationstest"
	"github.com/angelmondragon/dropship-backend/internal/users"
	"github.com/angelmondragon/dropship-backend/pkg/db"
	"github.com/angelmondragon/dropship-backend/pkg/db/dbtest"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/outbox"
	"github.com/angelmondragon/dropship-backend/pkg/pagination"
)

type fixture struct {
	conn      *gorm.DB
	svc       Service
	notifier  *notificationstest.Recorder
	seller    *models.User
	supplierA *models.User
	supplierB *models.User
	productA  *models.Product
	productB  *models.Product
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{
		conn:     conn,
		notifier: &notificationstest.Recorder{},
		clock:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		TxRunner: db.NewFromGorm(conn),
		Repo:     NewRepository(conn),
		Catalog:  catalog.NewRepository(conn),
		Users:    users.NewRepository(conn),
		History:  fulfillment.NewRepository(conn),
		Engine:   commission.NewEngine(commission.DefaultRates()),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		Notifier: f.notifier,
		Now: func() time.Time {
			f.clock = f.clock.Add(time.Second)
			return f.clock
		},
	})
	require.NoError(t, err)
	f.svc = svc

	f.seller = dbtest.CreateUser(t, conn, enums.UserRoleSeller, "0")
	f.supplierA = dbtest.CreateUser(t, conn, enums.UserRoleSupplier, "0")
	f.supplierB = dbtest.CreateUser(t, conn, enums.UserRoleSupplier, "0")
	f.productA = dbtest.CreateProduct(t, conn, f.supplierA.ID, "50", "5", 20)
	f.productB = dbtest.CreateProduct(t, conn, f.supplierB.ID, "30", "3", 20)
	return f
}

func (f *fixture) input(lines ...SubmitLine) SubmitOrderInput {
	return SubmitOrderInput{
		SellerID:      f.seller.ID,
		ClientName:    "Amira Ben Salah",
		ClientPhone:   "+21655123456",
		ClientAddress: "5 Avenue Habib Bourguiba",
		ClientCity:    "Sousse",
		ClientState:   "Sousse",
		Openable:      true,
		Lines:         lines,
	}
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.First(&p, "id = ?", id).Error)
	return p.Stock
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestSubmitSingleSupplier(t *testing.T) {
	f := newFixture(t)

	detail, err := f.svc.Submit(context.Background(), f.input(
		SubmitLine{ProductID: f.productA.ID, Quantity: 2, DetailPrice: dec("60")},
	))
	require.NoError(t, err)

	assert.True(t, detail.Total.Equal(dec("120")))
	assert.True(t, detail.SellerProfit.Equal(dec("18")))
	assert.True(t, detail.PlatformProfit.Equal(dec("10")))
	assert.True(t, detail.DeliverySurcharge.Equal(dec("8")))
	assert.False(t, detail.IsComposedOrder)
	require.Len(t, detail.SubOrders, 1)
	sub := detail.SubOrders[0]
	assert.Equal(t, detail.Code+"-1", sub.Code)
	assert.Equal(t, enums.SubOrderStatusAwaitingPackaging, sub.Status)
	assert.True(t, sub.SupplierProfit.Equal(dec("90")))
	require.Len(t, sub.Lines, 1)
	assert.True(t, sub.Lines[0].SupplierProfit.Equal(dec("90")))

	assert.Equal(t, 18, f.stock(t, f.productA.ID))
}

func TestSubmitSplitsBySupplier(t *testing.T) {
	f := newFixture(t)
	other := dbtest.CreateUser(t, f.conn, enums.UserRoleSeller, "0")
	dbtest.ListProduct(t, f.conn, other.ID, f.productA.ID)
	dbtest.ListProduct(t, f.conn, f.seller.ID, f.productA.ID)

	detail, err := f.svc.Submit(context.Background(), f.input(
		SubmitLine{ProductID: f.productA.ID, Quantity: 2, DetailPrice: dec("60")},
		SubmitLine{ProductID: f.productB.ID, Quantity: 1, DetailPrice: dec("40")},
	))
	require.NoError(t, err)

	assert.True(t, detail.IsComposedOrder)
	assert.True(t, detail.Total.Equal(dec("160")))
	assert.True(t, detail.DeliverySurcharge.Equal(dec("14")))
	assert.True(t, detail.SellerProfit.Equal(dec("27")))
	assert.True(t, detail.PlatformProfit.Equal(dec("17")))

	require.Len(t, detail.SubOrders, 2)
	first, second := detail.SubOrders[0], detail.SubOrders[1]
	assert.Equal(t, f.supplierA.ID, first.SupplierID)
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, f.supplierB.ID, second.SupplierID)
	assert.Equal(t, 2, second.Position)
	assert.True(t, first.SellerProfit.Add(second.SellerProfit).Equal(detail.SellerProfit))
	assert.True(t, second.SupplierProfit.Equal(dec("27")))

	var history []models.StatusHistoryEntry
	require.NoError(t, f.conn.Where("sub_order_id IN ?", []uuid.UUID{first.ID, second.ID}).Find(&history).Error)
	require.Len(t, history, 2)
	for _, entry := range history {
		assert.Equal(t, enums.SubOrderStatusAwaitingPackaging, entry.Status)
		assert.Equal(t, 1, entry.Sequence)
	}

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCreated).Count(&events).Error)
	assert.EqualValues(t, 1, events)

	assert.Len(t, f.notifier.OfType(enums.NotificationSupplierNewOrder), 2)
	assert.Len(t, f.notifier.OfType(enums.NotificationAdminNewOrder), 1)
	stockChanged := f.notifier.OfType(enums.NotificationProductStockChanged)
	require.Len(t, stockChanged, 1)
	assert.Equal(t, other.ID, stockChanged[0].UserID)
}

func TestSubmitInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	scarce := dbtest.CreateProduct(t, f.conn, f.supplierB.ID, "10", "1", 1)

	_, err := f.svc.Submit(context.Background(), f.input(
		SubmitLine{ProductID: f.productA.ID, Quantity: 2, DetailPrice: dec("60")},
		SubmitLine{ProductID: scarce.ID, Quantity: 2, DetailPrice: dec("20")},
	))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.ReasonSaveError, pkgerrors.ReasonOf(err))

	assert.Equal(t, 20, f.stock(t, f.productA.ID))
	assert.Equal(t, 1, f.stock(t, scarce.ID))
	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, f.conn.Model(&models.SubOrder{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.notifier.Sent())
}

func TestSubmitRequiresSeller(t *testing.T) {
	f := newFixture(t)
	input := f.input(SubmitLine{ProductID: f.productA.ID, Quantity: 1, DetailPrice: dec("60")})
	input.SellerID = f.supplierA.ID

	_, err := f.svc.Submit(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Equal(t, pkgerrors.ReasonUserNotFound, pkgerrors.ReasonOf(err))
	assert.Equal(t, 20, f.stock(t, f.productA.ID))
}

func TestStockRoundTripThroughCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emitter := outbox.NewService(outbox.NewRepository(f.conn), nil)
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		TxRunner: db.NewFromGorm(f.conn),
		Repo:     ledger.NewRepository(f.conn),
		Outbox:   emitter,
	})
	require.NoError(t, err)
	machine, err := fulfillment.NewMachine(fulfillment.MachineParams{
		TxRunner: db.NewFromGorm(f.conn),
		Repo:     fulfillment.NewRepository(f.conn),
		Catalog:  catalog.NewRepository(f.conn),
		Settler:  commission.NewSettler(commission.NewEngine(commission.DefaultRates()), ledgerSvc, nil),
		Outbox:   emitter,
	})
	require.NoError(t, err)

	detail, err := f.svc.Submit(ctx, f.input(
		SubmitLine{ProductID: f.productA.ID, Quantity: 3, DetailPrice: dec("60")},
		SubmitLine{ProductID: f.productA.ID, Quantity: 1, DetailPrice: dec("60"), Color: "red"},
		SubmitLine{ProductID: f.productB.ID, Quantity: 2, DetailPrice: dec("40")},
	))
	require.NoError(t, err)
	assert.Equal(t, 16, f.stock(t, f.productA.ID))
	assert.Equal(t, 18, f.stock(t, f.productB.ID))

	_, err = machine.CancelOrder(ctx, fulfillment.CancelOrderInput{
		OrderID:     detail.ID,
		ActorUserID: f.seller.ID,
		ActorRole:   enums.UserRoleSeller,
	})
	require.NoError(t, err)
	assert.Equal(t, 20, f.stock(t, f.productA.ID))
	assert.Equal(t, 20, f.stock(t, f.productB.ID))
}

func TestGetOrderAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail, err := f.svc.Submit(ctx, f.input(
		SubmitLine{ProductID: f.productA.ID, Quantity: 1, DetailPrice: dec("60")},
		SubmitLine{ProductID: f.productB.ID, Quantity: 1, DetailPrice: dec("40")},
	))
	require.NoError(t, err)

	got, err := f.svc.GetOrder(ctx, GetOrderInput{OrderID: detail.ID, ActorUserID: f.seller.ID, ActorRole: enums.UserRoleSeller})
	require.NoError(t, err)
	assert.Len(t, got.SubOrders, 2)

	got, err = f.svc.GetOrder(ctx, GetOrderInput{OrderID: detail.ID, ActorUserID: f.supplierB.ID, ActorRole: enums.UserRoleSupplier})
	require.NoError(t, err)
	require.Len(t, got.SubOrders, 1)
	assert.Equal(t, f.supplierB.ID, got.SubOrders[0].SupplierID)

	stranger := dbtest.CreateUser(t, f.conn, enums.UserRoleSeller, "0")
	_, err = f.svc.GetOrder(ctx, GetOrderInput{OrderID: detail.ID, ActorUserID: stranger.ID, ActorRole: enums.UserRoleSeller})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = f.svc.GetOrder(ctx, GetOrderInput{OrderID: uuid.New(), ActorUserID: f.seller.ID, ActorRole: enums.UserRoleSeller})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestListSellerOrdersPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var codes []string
	for i := 0; i < 3; i++ {
		detail, err := f.svc.Submit(ctx, f.input(SubmitLine{ProductID: f.productA.ID, Quantity: 1, DetailPrice: dec("60")}))
		require.NoError(t, err)
		codes = append(codes, detail.Code)
	}

	page, err := f.svc.ListSellerOrders(ctx, f.seller.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, codes[2], page.Items[0].Code)
	assert.Equal(t, codes[1], page.Items[1].Code)
	require.NotEmpty(t, page.NextCursor)

	page, err = f.svc.ListSellerOrders(ctx, f.seller.ID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, codes[0], page.Items[0].Code)
	assert.Empty(t, page.NextCursor)
}

func TestListSupplierSubOrdersFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, f.input(
		SubmitLine{ProductID: f.productA.ID, Quantity: 1, DetailPrice: dec("60")},
		SubmitLine{ProductID: f.productB.ID, Quantity: 1, DetailPrice: dec("40")},
	))
	require.NoError(t, err)

	page, err := f.svc.ListSupplierSubOrders(ctx, f.supplierA.ID, SupplierSubOrderFilter{}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Len(t, page.Items[0].Lines, 1)

	delivered := enums.SubOrderStatusDelivered
	page, err = f.svc.ListSupplierSubOrders(ctx, f.supplierA.ID, SupplierSubOrderFilter{Status: &delivered}, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}
