package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
)

// BalanceState is the slice of a resident row the ledger reads.
type BalanceState struct {
	ID             uuid.UUID
	Balance        int64
	BalanceVersion int64
	Active         bool
}

// HistoryTotals sums every row that contributes to a balance.
type HistoryTotals struct {
	TransactionNet int64
	Deposits       int64
	Withdrawals    int64
}

func (h HistoryTotals) Balance() int64 {
	return h.TransactionNet + h.Deposits - h.Withdrawals
}

// Repository is the only writer of users.balance.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindState(ctx context.Context, residentID uuid.UUID) (*BalanceState, error)
	LockResident(ctx context.Context, residentID uuid.UUID) (*BalanceState, error)
	CompareAndSwapBalance(ctx context.Context, residentID uuid.UUID, expectedVersion, balance int64) (bool, error)
	HistoryTotals(ctx context.Context, residentID uuid.UUID) (HistoryTotals, error)
	ListResidentIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindState(ctx context.Context, residentID uuid.UUID) (*BalanceState, error) {
	return r.state(r.db.WithContext(ctx), residentID)
}

// LockResident reads the balance under a row lock. SQLite ignores the
// locking clause; its writer lock plus the Locker serialize instead.
func (r *repository) LockResident(ctx context.Context, residentID uuid.UUID) (*BalanceState, error) {
	return r.state(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), residentID)
}

func (r *repository) state(query *gorm.DB, residentID uuid.UUID) (*BalanceState, error) {
	var st BalanceState
	err := query.Model(&models.Resident{}).
		Select("id, balance, balance_version, active").
		Where("id = ?", residentID).
		Take(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *repository) CompareAndSwapBalance(ctx context.Context, residentID uuid.UUID, expectedVersion, balance int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Resident{}).
		Where("id = ? AND balance_version = ?", residentID, expectedVersion).
		Updates(map[string]any{
			"balance":         balance,
			"balance_version": gorm.Expr("balance_version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) HistoryTotals(ctx context.Context, residentID uuid.UUID) (HistoryTotals, error) {
	var totals HistoryTotals
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(net_amount), 0)").
		Where("resident_id = ?", residentID).
		Scan(&totals.TransactionNet).Error; err != nil {
		return totals, err
	}
	if err := db.Model(&models.FinancialMovement{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("resident_id = ? AND type = ?", residentID, enums.MovementTypeDeposit).
		Scan(&totals.Deposits).Error; err != nil {
		return totals, err
	}
	if err := db.Model(&models.FinancialMovement{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("resident_id = ? AND type = ?", residentID, enums.MovementTypeWithdrawal).
		Scan(&totals.Withdrawals).Error; err != nil {
		return totals, err
	}
	return totals, nil
}

// ListResidentIDs pages through every actor id in id order.
func (r *repository) ListResidentIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).Model(&models.Resident{}).Order("id ASC").Limit(limit)
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	var ids []uuid.UUID
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
