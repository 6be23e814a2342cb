package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/db/dbtest"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
)

func TestEmitStoresEnvelope(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	aggregate := uuid.New()
	actor := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventDepositRecorded,
			AggregateType: enums.AggregateMovement,
			AggregateID:   aggregate,
			Actor:         &ActorRef{UserID: actor, Role: "committee"},
			Data:          MovementRecorded{MovementID: aggregate, Amount: 1000, BalanceAfter: 6400},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventDepositRecorded, rows[0].EventType)
	assert.Equal(t, aggregate, rows[0].AggregateID)

	env, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, 1, env.Version)
	assert.Equal(t, rows[0].ID.String(), env.EventID)
	assert.True(t, env.OccurredAt.Equal(rows[0].CreatedAt))
	require.NotNil(t, env.Actor)
	assert.Equal(t, actor, env.Actor.UserID)

	var data MovementRecorded
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(6400), data.BalanceAfter)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	_ = db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventTransactionRecorded,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   uuid.New(),
			Data:          map[string]int{"n": 1},
		}))
		return assert.AnError
	})

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRejectsUnknownTypesAndMissingTx(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))

	db := dbtest.Open(t)
	for name, event := range map[string]DomainEvent{
		"unknown type":  {EventType: "order_created", AggregateType: enums.AggregateTransaction, AggregateID: uuid.New(), Data: 1},
		"no aggregate":  {EventType: enums.EventTransactionRecorded, AggregateType: enums.AggregateTransaction, Data: 1},
		"no data":       {EventType: enums.EventTransactionRecorded, AggregateType: enums.AggregateTransaction, AggregateID: uuid.New()},
		"unmarshalable": {EventType: enums.EventTransactionRecorded, AggregateType: enums.AggregateTransaction, AggregateID: uuid.New(), Data: func() {}},
	} {
		assert.Error(t, svc.Emit(context.Background(), db, event), name)
	}
}

func TestDecodeEnvelopeRejectsEmpty(t *testing.T) {
	_, err := DecodeEnvelope(json.RawMessage(`{"version":1}`))
	assert.ErrorIs(t, err, errEmptyEnvelope)

	_, err = DecodeEnvelope(json.RawMessage(`[`))
	assert.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	old := time.Now().UTC().Add(-40 * 24 * time.Hour)

	published := models.OutboxEvent{EventType: enums.EventDepositRecorded, AggregateType: enums.AggregateMovement, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: old}
	pending := models.OutboxEvent{EventType: enums.EventDepositRecorded, AggregateType: enums.AggregateMovement, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, repo.Insert(db, published))
	require.NoError(t, repo.Insert(db, pending))

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublishedTx(db, rows[0].ID))
	var delivered models.OutboxEvent
	require.NoError(t, db.First(&delivered, "id = ?", rows[0].ID).Error)
	assert.True(t, delivered.Delivered())
	require.NoError(t, repo.MarkFailedTx(db, rows[1].ID, assert.AnError))

	n, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var failed models.OutboxEvent
	require.NoError(t, db.First(&failed, "id = ?", rows[1].ID).Error)
	assert.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)

	deleted, err := repo.DeleteSettledBefore(ctx, db, time.Now().UTC().Add(time.Minute), 5, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestLedgerDecoders(t *testing.T) {
	decoders := LedgerDecoders()

	out, err := decoders.Decode(enums.EventWithdrawalRecorded, 1, json.RawMessage(`{"movementId":"`+uuid.NewString()+`","amount":500}`))
	require.NoError(t, err)
	movement, ok := out.(*MovementRecorded)
	require.True(t, ok)
	assert.Equal(t, int64(500), movement.Amount)

	_, err = decoders.Decode(enums.EventTransactionRecorded, 2, json.RawMessage(`{}`))
	assert.Error(t, err)

	_, err = decoders.Decode(enums.EventBatchRecorded, 1, json.RawMessage(`{"totalAmount":"lots"}`))
	assert.Error(t, err)
}
