package movements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

// Filter narrows movement listings. To is exclusive.
type Filter struct {
	ResidentID *uuid.UUID
	Type       *enums.MovementType
	From       *time.Time
	To         *time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, movement *models.FinancialMovement) error
	List(ctx context.Context, filter Filter, params pagination.Params) ([]models.FinancialMovement, string, error)
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

func (r *repository) Create(ctx context.Context, movement *models.FinancialMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) List(ctx context.Context, filter Filter, params pagination.Params) ([]models.FinancialMovement, string, error) {
	query := r.db.WithContext(ctx).Model(&models.FinancialMovement{})
	if filter.ResidentID != nil {
		query = query.Where("resident_id = ?", *filter.ResidentID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", filter.To.UTC())
	}
	var rows []models.FinancialMovement
	if err := query.Scopes(pagination.Keyset(params, "")).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	page, next := pagination.Page(rows, params.Limit, func(m models.FinancialMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return page, next, nil
}
