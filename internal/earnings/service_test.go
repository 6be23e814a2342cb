package earnings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/db/dbtest"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

var (
	march = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	april = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
)

type seed struct {
	db        *gorm.DB
	category  uuid.UUID
	committee uuid.UUID
}

func newSeed(t *testing.T) *seed {
	db := dbtest.Open(t)
	return &seed{
		db:        db,
		category:  dbtest.Category(t, db, "Plastik", 3000),
		committee: dbtest.Actor(t, db, enums.ActorRoleCommittee),
	}
}

func (s *seed) resident(t *testing.T, name string) uuid.UUID {
	r := &models.Resident{Username: name, PasswordHash: "x", FullName: name, Role: enums.ActorRoleResident, Active: true}
	require.NoError(t, s.db.Create(r).Error)
	return r.ID
}

// drop stores a transaction and, when withEarning is set, its earning.
func (s *seed) drop(t *testing.T, residentID uuid.UUID, fee int64, at time.Time, withEarning bool) uuid.UUID {
	txn := &models.Transaction{
		ResidentID: residentID, CategoryID: s.category, WeightKg: decimal.NewFromInt(1),
		PricePerKg: fee * 10, TotalAmount: fee * 10, CommitteeFee: fee, NetAmount: fee * 9,
		BalanceAfter: fee * 9, ProcessedBy: s.committee, CreatedAt: at,
	}
	require.NoError(t, s.db.Create(txn).Error)
	if withEarning {
		require.NoError(t, s.db.Create(&models.CommitteeEarning{TransactionID: txn.ID, Amount: fee, CreatedAt: at}).Error)
	}
	return txn.ID
}

func TestTotals(t *testing.T) {
	s := newSeed(t)
	svc, err := NewService(NewRepository(s.db))
	require.NoError(t, err)
	ctx := context.Background()

	siti := s.resident(t, "siti")
	budi := s.resident(t, "budi")
	s.drop(t, siti, 600, march, true)
	s.drop(t, budi, 150, march.Add(time.Hour), true)
	s.drop(t, siti, 300, april, true)

	total, err := svc.Total(ctx, Range{})
	require.NoError(t, err)
	assert.Equal(t, int64(1050), total)

	from, to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	total, err = svc.Total(ctx, Range{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, int64(750), total)

	total, err = svc.TotalForResident(ctx, siti, Range{})
	require.NoError(t, err)
	assert.Equal(t, int64(900), total)

	_, err = svc.Total(ctx, Range{From: &to, To: &from})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListJoinsNames(t *testing.T) {
	s := newSeed(t)
	svc, err := NewService(NewRepository(s.db))
	require.NoError(t, err)
	siti := s.resident(t, "siti")
	first := s.drop(t, siti, 600, march, true)
	second := s.drop(t, siti, 300, april, true)

	rows, next, err := svc.List(context.Background(), Range{}, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, second, rows[0].TransactionID)
	assert.Equal(t, "siti", rows[0].ResidentName)
	assert.Equal(t, "Plastik", rows[0].CategoryName)
	assert.True(t, rows[0].WeightKg.Equal(decimal.NewFromInt(1)))

	rows, next, err = svc.List(context.Background(), Range{}, pagination.Params{Limit: 1, Cursor: next})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first, rows[0].TransactionID)
	assert.Empty(t, next)
}

func TestCheckConsistency(t *testing.T) {
	s := newSeed(t)
	svc, err := NewService(NewRepository(s.db))
	require.NoError(t, err)
	ctx := context.Background()
	siti := s.resident(t, "siti")

	s.drop(t, siti, 600, march, true)
	report, err := svc.CheckConsistency(ctx, Range{})
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(600), report.EarningsTotal)

	s.drop(t, siti, 200, april, false)
	report, err = svc.CheckConsistency(ctx, Range{})
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, int64(1), report.MissingEarnings)
	assert.Equal(t, int64(800), report.FeesTotal)

	txn := s.drop(t, siti, 100, april, true)
	require.NoError(t, s.db.Model(&models.CommitteeEarning{}).Where("transaction_id = ?", txn).Update("amount", 99).Error)
	report, err = svc.CheckConsistency(ctx, Range{From: &april})
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.MismatchedRows)
	assert.Equal(t, int64(1), report.MissingEarnings)
}
