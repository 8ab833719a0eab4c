package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dropship-backend/internal/users"
	"github.com/angelmondragon/dropship-backend/pkg/db/dbtest"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

type fakeAdmins struct {
	ids []uuid.UUID
	err error
}

func (f fakeAdmins) ListAdminIDs(context.Context) ([]uuid.UUID, error) {
	return f.ids, f.err
}

func TestDispatcherNotifyAllAdminsPersistsOnePerAdmin(t *testing.T) {
	conn := dbtest.Open(t)
	a1 := dbtest.CreateUser(t, conn, enums.UserRoleAdmin, "0")
	a2 := dbtest.CreateUser(t, conn, enums.UserRoleAdmin, "0")
	d := NewDispatcher(NewRepository(conn), users.NewRepository(conn), nil)

	orderID := uuid.New()
	d.NotifyAllAdmins(context.Background(), enums.NotificationAdminNewOrder, OrderLink(orderID), "ORD-1")

	var rows []models.Notification
	require.NoError(t, conn.Order("user_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	require.ElementsMatch(t, []uuid.UUID{a1.ID, a2.ID}, []uuid.UUID{rows[0].UserID, rows[1].UserID})
	require.Equal(t, "/orders/"+orderID.String(), rows[0].Link)
	require.NotNil(t, rows[0].Subject)
	require.Equal(t, "ORD-1", *rows[0].Subject)
}

func TestDispatcherNotifyUserWithoutSubject(t *testing.T) {
	conn := dbtest.Open(t)
	u := dbtest.CreateUser(t, conn, enums.UserRoleSeller, "0")
	d := NewDispatcher(NewRepository(conn), fakeAdmins{}, nil)

	d.NotifyUser(context.Background(), u.ID, enums.NotificationWithdrawDeclined, "/withdraws/x", "")

	var row models.Notification
	require.NoError(t, conn.First(&row, "user_id = ?", u.ID).Error)
	require.Nil(t, row.Subject)
	require.False(t, row.Read)
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	repo := &fakeRepository{
		createFn: func(context.Context, *models.Notification) error { return errors.New("db down") },
		createBatchFn: func(context.Context, []models.Notification) error {
			t.Fatalf("batch should not be written when admin lookup fails")
			return nil
		},
	}
	d := NewDispatcher(repo, fakeAdmins{err: errors.New("lookup failed")}, nil)

	d.NotifyUser(context.Background(), uuid.New(), enums.NotificationPickupCreated, "/pickups/1", "")
	d.NotifyAllAdmins(context.Background(), enums.NotificationAdminOrderCancelled, "/orders/1", "")
	d.NotifyUser(context.Background(), uuid.New(), enums.NotificationType("NOPE"), "/x", "")

	var nilDispatcher *Dispatcher
	nilDispatcher.NotifyUser(context.Background(), uuid.New(), enums.NotificationPickupCreated, "/x", "")
}
