package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

// Filter narrows audit log queries. Zero values are ignored.
type Filter struct {
	ActorID *uuid.UUID
	Action  *enums.AuditAction
	From    *time.Time
	To      *time.Time
}

// Repository persists audit log rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.AuditLogEntry) error
	List(ctx context.Context, filter Filter, params pagination.Params) ([]models.AuditLogEntry, string, error)
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

func (r *repository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) List(ctx context.Context, filter Filter, params pagination.Params) ([]models.AuditLogEntry, string, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLogEntry{})
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.Action != nil {
		query = query.Where("action = ?", *filter.Action)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", filter.To.UTC())
	}
	var rows []models.AuditLogEntry
	if err := query.Scopes(pagination.Keyset(params, "")).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	page, next := pagination.Page(rows, params.Limit, func(e models.AuditLogEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return page, next, nil
}
