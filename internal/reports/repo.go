package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
)

// Range bounds a report. From is inclusive, To exclusive.
type Range struct {
	From *time.Time
	To   *time.Time
}

// Totals aggregates transaction rows.
type Totals struct {
	TransactionCount int64           `json:"transaction_count"`
	TotalWeightKg    decimal.Decimal `json:"total_weight_kg"`
	TotalRevenue     int64           `json:"total_revenue"`
	CommitteeFees    int64           `json:"committee_earnings"`
	NetToResidents   int64           `json:"net_to_residents"`
}

type CategoryTotals struct {
	CategoryID   uuid.UUID `json:"category_id"`
	CategoryName string    `json:"category_name"`
	PricePerKg   int64     `json:"current_price_per_kg"`
	Totals
}

type MovementTotals struct {
	Deposits    int64 `json:"deposits"`
	Withdrawals int64 `json:"withdrawals"`
}

type Repository interface {
	TransactionTotals(ctx context.Context, r Range, residentID *uuid.UUID) (Totals, error)
	CategoryTotals(ctx context.Context, r Range) ([]CategoryTotals, error)
	MovementTotals(ctx context.Context, r Range, residentID *uuid.UUID) (MovementTotals, error)
	ActorsByRole(ctx context.Context) (map[enums.ActorRole]int64, error)
	BalanceHeld(ctx context.Context) (int64, error)
	Resident(ctx context.Context, id uuid.UUID) (*models.Resident, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

const totalsSelect = `COUNT(*) AS transaction_count,
	COALESCE(SUM(weight_kg), 0) AS total_weight_kg,
	COALESCE(SUM(total_amount), 0) AS total_revenue,
	COALESCE(SUM(committee_fee), 0) AS committee_fees,
	COALESCE(SUM(net_amount), 0) AS net_to_residents`

func between(query *gorm.DB, column string, r Range) *gorm.DB {
	if r.From != nil {
		query = query.Where(column+" >= ?", r.From.UTC())
	}
	if r.To != nil {
		query = query.Where(column+" < ?", r.To.UTC())
	}
	return query
}

func (r *repository) TransactionTotals(ctx context.Context, rng Range, residentID *uuid.UUID) (Totals, error) {
	query := between(r.db.WithContext(ctx).Model(&models.Transaction{}), "created_at", rng)
	if residentID != nil {
		query = query.Where("resident_id = ?", *residentID)
	}
	var out Totals
	err := query.Select(totalsSelect).Scan(&out).Error
	out.TotalWeightKg = out.TotalWeightKg.Round(3)
	return out, err
}

func (r *repository) CategoryTotals(ctx context.Context, rng Range) ([]CategoryTotals, error) {
	var rows []CategoryTotals
	err := between(r.db.WithContext(ctx).
		Table("transactions").
		Joins("JOIN categories ON categories.id = transactions.category_id"), "transactions.created_at", rng).
		Select(`categories.id AS category_id, categories.name AS category_name,
			categories.price_per_kg AS price_per_kg, ` + totalsSelect).
		Group("categories.id, categories.name, categories.price_per_kg").
		Order("total_revenue DESC, category_name ASC").
		Scan(&rows).Error
	for i := range rows {
		rows[i].TotalWeightKg = rows[i].TotalWeightKg.Round(3)
	}
	return rows, err
}

func (r *repository) MovementTotals(ctx context.Context, rng Range, residentID *uuid.UUID) (MovementTotals, error) {
	query := between(r.db.WithContext(ctx).Model(&models.FinancialMovement{}), "created_at", rng)
	if residentID != nil {
		query = query.Where("resident_id = ?", *residentID)
	}
	var out MovementTotals
	err := query.Select(
		`COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS deposits,
		COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS withdrawals`,
		enums.MovementTypeDeposit, enums.MovementTypeWithdrawal,
	).Scan(&out).Error
	return out, err
}

func (r *repository) ActorsByRole(ctx context.Context) (map[enums.ActorRole]int64, error) {
	var rows []struct {
		Role  enums.ActorRole
		Total int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Resident{}).
		Select("role, COUNT(*) AS total").
		Where("active = ?", true).
		Group("role").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.ActorRole]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Total
	}
	return out, nil
}

func (r *repository) BalanceHeld(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Resident{}).
		Select("COALESCE(SUM(balance), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) Resident(ctx context.Context, id uuid.UUID) (*models.Resident, error) {
	var resident models.Resident
	err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&resident).Error
	if err != nil {
		return nil, err
	}
	if resident.ID == uuid.Nil {
		return nil, nil
	}
	return &resident, nil
}
