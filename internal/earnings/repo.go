package earnings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

// Range bounds a query by creation time. From is inclusive, To exclusive.
type Range struct {
	From *time.Time
	To   *time.Time
}

// Earning is a committee earning joined with the drop-off that produced it.
type Earning struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Amount        int64           `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
	ResidentID    uuid.UUID       `json:"resident_id"`
	ResidentName  string          `json:"resident_name"`
	CategoryName  string          `json:"category_name"`
	WeightKg      decimal.Decimal `json:"weight_kg"`
	TotalAmount   int64           `json:"total_amount"`
}

type Repository interface {
	Sum(ctx context.Context, r Range) (int64, error)
	SumForResident(ctx context.Context, residentID uuid.UUID, r Range) (int64, error)
	SumTransactionFees(ctx context.Context, r Range) (int64, error)
	CountMissing(ctx context.Context, r Range) (int64, error)
	CountMismatched(ctx context.Context, r Range) (int64, error)
	List(ctx context.Context, r Range, params pagination.Params) ([]Earning, string, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func between(query *gorm.DB, column string, r Range) *gorm.DB {
	if r.From != nil {
		query = query.Where(column+" >= ?", r.From.UTC())
	}
	if r.To != nil {
		query = query.Where(column+" < ?", r.To.UTC())
	}
	return query
}

func (r *repository) Sum(ctx context.Context, rng Range) (int64, error) {
	var total int64
	err := between(r.db.WithContext(ctx).Table("committee_earnings"), "created_at", rng).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) SumForResident(ctx context.Context, residentID uuid.UUID, rng Range) (int64, error) {
	var total int64
	err := between(r.db.WithContext(ctx).
		Table("committee_earnings AS e").
		Joins("JOIN transactions t ON t.id = e.transaction_id").
		Where("t.resident_id = ?", residentID), "e.created_at", rng).
		Select("COALESCE(SUM(e.amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) SumTransactionFees(ctx context.Context, rng Range) (int64, error) {
	var total int64
	err := between(r.db.WithContext(ctx).Table("transactions"), "created_at", rng).
		Select("COALESCE(SUM(committee_fee), 0)").
		Scan(&total).Error
	return total, err
}

// CountMissing counts transactions without an earning row.
func (r *repository) CountMissing(ctx context.Context, rng Range) (int64, error) {
	var n int64
	err := between(r.db.WithContext(ctx).
		Table("transactions AS t").
		Joins("LEFT JOIN committee_earnings e ON e.transaction_id = t.id").
		Where("e.id IS NULL"), "t.created_at", rng).
		Count(&n).Error
	return n, err
}

// CountMismatched counts earnings whose amount differs from the fee on
// their transaction.
func (r *repository) CountMismatched(ctx context.Context, rng Range) (int64, error) {
	var n int64
	err := between(r.db.WithContext(ctx).
		Table("committee_earnings AS e").
		Joins("JOIN transactions t ON t.id = e.transaction_id").
		Where("e.amount <> t.committee_fee"), "t.created_at", rng).
		Count(&n).Error
	return n, err
}

func (r *repository) List(ctx context.Context, rng Range, params pagination.Params) ([]Earning, string, error) {
	query := between(r.db.WithContext(ctx).
		Table("committee_earnings AS e").
		Select(`e.id, e.transaction_id, e.amount, e.created_at,
			t.resident_id, u.full_name AS resident_name, c.name AS category_name,
			t.weight_kg, t.total_amount`).
		Joins("JOIN transactions t ON t.id = e.transaction_id").
		Joins("JOIN users u ON u.id = t.resident_id").
		Joins("JOIN categories c ON c.id = t.category_id"), "e.created_at", rng)

	var rows []Earning
	if err := query.Scopes(pagination.Keyset(params, "e.")).Scan(&rows).Error; err != nil {
		return nil, "", err
	}
	page, next := pagination.Page(rows, params.Limit, func(e Earning) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return page, next, nil
}
