package audit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/db/dbtest"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/metrics"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

type failingRepository struct {
	Repository
}

func (f failingRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f failingRepository) Create(context.Context, *models.AuditLogEntry) error {
	return errors.New("audit table unavailable")
}

func newService(t *testing.T, repo Repository, out *bytes.Buffer) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repository: repo,
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: out}),
		Metrics:    metrics.NewLedgerMetrics(prometheus.NewRegistry()),
		Now:        func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc
}

func TestAppendTxPersistsWithCallerTransaction(t *testing.T) {
	db := dbtest.Open(t)
	svc := newService(t, NewRepository(db), &bytes.Buffer{})
	actor := dbtest.Actor(t, db, enums.ActorRoleCommittee)

	err := db.Transaction(func(tx *gorm.DB) error {
		degraded := svc.AppendTx(context.Background(), tx, Entry{
			ActorID: actor,
			Action:  enums.AuditActionDeposit,
			Details: Details("resident", "r-1", "amount", 1000),
		})
		assert.False(t, degraded)
		return nil
	})
	require.NoError(t, err)

	var rows []models.AuditLogEntry
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, actor, rows[0].ActorID)
	assert.Equal(t, "resident=r-1 amount=1000", rows[0].Details)
}

func TestAppendTxDegradesWithoutFailingCaller(t *testing.T) {
	db := dbtest.Open(t)
	var out bytes.Buffer
	svc := newService(t, failingRepository{}, &out)

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&models.Category{Name: "Kardus", PricePerKg: 1500}).Error)
		degraded := svc.AppendTx(context.Background(), tx, Entry{ActorID: uuid.New(), Action: enums.AuditActionWithdrawal, Details: "amount=500"})
		assert.True(t, degraded)
		return tx.Create(&models.Category{Name: "Kaca", PricePerKg: 500}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Category{}).Count(&count).Error)
	assert.Equal(t, int64(2), count, "primary writes must survive an audit failure")

	logged := out.String()
	assert.True(t, strings.Contains(logged, "audit.degraded"))
	assert.True(t, strings.Contains(logged, "amount=500"), "degraded record must be logged in full")
}

func TestAppendTxRollsBackToSavepointOnConstraintFailure(t *testing.T) {
	db := dbtest.Open(t)
	var out bytes.Buffer
	svc := newService(t, NewRepository(db), &out)

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&models.Category{Name: "Besi", PricePerKg: 2500}).Error)
		degraded := svc.AppendTx(context.Background(), tx, Entry{ActorID: uuid.New(), Action: enums.AuditActionUpdatePrice, Details: "price=2600"})
		assert.True(t, degraded, "unknown actor violates audit_log.actor_id")
		return tx.Model(&models.Category{}).Where("name = ?", "Besi").Update("price_per_kg", 2600).Error
	})
	require.NoError(t, err)

	var category models.Category
	require.NoError(t, db.Where("name = ?", "Besi").First(&category).Error)
	assert.Equal(t, int64(2600), category.PricePerKg)
	var entries int64
	require.NoError(t, db.Model(&models.AuditLogEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)
	assert.True(t, strings.Contains(out.String(), "audit.degraded"))
}

func TestAppendStandaloneAndList(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	actor := dbtest.Actor(t, db, enums.ActorRoleSuperAdmin)
	other := dbtest.Actor(t, db, enums.ActorRoleCommittee)
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		svc, err := NewService(ServiceParams{Repository: repo, Logger: logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}), Now: func() time.Time { return at }})
		require.NoError(t, err)
		assert.False(t, svc.Append(ctx, Entry{ActorID: actor, Action: enums.AuditActionUpdatePrice, Details: "n"}))
	}
	svc := newService(t, repo, &bytes.Buffer{})
	assert.False(t, svc.Append(ctx, Entry{ActorID: other, Action: enums.AuditActionCreateCategory}))

	rows, next, err := svc.List(ctx, Filter{ActorID: &actor}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NotEmpty(t, next)
	assert.True(t, rows[0].CreatedAt.After(rows[1].CreatedAt))

	rest, next, err := svc.List(ctx, Filter{ActorID: &actor}, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Empty(t, next)

	action := enums.AuditActionCreateCategory
	rows, _, err = svc.List(ctx, Filter{Action: &action}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, other, rows[0].ActorID)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
