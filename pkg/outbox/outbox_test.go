package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db/dbtest"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/outbox/payloads"
)

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		OrdersTopic:      "orders",
		FulfillmentTopic: "fulfillment",
		LedgerTopic:      "ledger",
	})
	require.NoError(t, err)
	return reg
}

func TestEmitThenResolveRoundTrip(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	pickupID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventPickupCreated,
			AggregateType: enums.AggregatePickup,
			AggregateID:   pickupID,
			Data: payloads.PickupCreatedEvent{
				PickupID:   pickupID,
				PickupCode: "PK-1",
				PickupDate: time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC),
			},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		rows, err = repo.FetchUnpublishedForPublish(tx, 10, 5)
		return err
	}))
	require.Len(t, rows, 1)

	resolved, err := testRegistry(t).Resolve(rows[0])
	require.NoError(t, err)
	assert.Equal(t, "fulfillment", resolved.Descriptor.Topic)
	assert.Equal(t, 1, resolved.Envelope.Version)
	payload, ok := resolved.Payload.(*payloads.PickupCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "PK-1", payload.PickupCode)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	boom := errors.New("boom")

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventLedgerTransactionCreated,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   uuid.New(),
			Data:          payloads.LedgerTransactionCreatedEvent{Amount: decimal.NewFromInt(5)},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRejectsUnknownTypes(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	err := svc.Emit(context.Background(), conn, DomainEvent{EventType: "nope", AggregateType: enums.AggregateOrder})
	require.Error(t, err)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := testRegistry(t)
	envelope, _ := json.Marshal(PayloadEnvelope{Version: 1, EventID: "e", Data: json.RawMessage(`null`)})

	tests := []struct {
		name string
		row  models.OutboxEvent
	}{
		{"unknown type", models.OutboxEvent{EventType: "mystery", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()}},
		{"aggregate mismatch", models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregatePickup, AggregateID: uuid.New()}},
		{"missing aggregate", models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder}},
		{"null payload", models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: envelope}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Resolve(tt.row)
			var nonRetry NonRetryableError
			require.ErrorAs(t, err, &nonRetry)
		})
	}
}

func TestMarkFailedAndDeletePublished(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	row := &models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	require.NoError(t, repo.Insert(conn, row))
	require.NoError(t, repo.MarkFailedTx(conn, row.ID, errors.New("unavailable")))

	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", row.ID).Error)
	assert.Equal(t, 1, reloaded.AttemptCount)
	require.NotNil(t, reloaded.LastError)

	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("id = ?", row.ID).Update("published_at", old).Error)
	deleted, err := repo.DeletePublishedBefore(context.Background(), time.Now().UTC().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}
