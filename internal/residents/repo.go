package residents

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

// Filter narrows directory listings. Zero values are ignored.
type Filter struct {
	Role   *enums.ActorRole
	Active *bool
	Search string
}

// Repository persists actor records. It never writes the balance columns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, resident *models.Resident) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Resident, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Resident, error)
	FindByUsername(ctx context.Context, username string) (*models.Resident, error)
	List(ctx context.Context, filter Filter, params pagination.Params) ([]models.Resident, string, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	CountByRole(ctx context.Context) (map[enums.ActorRole]int64, error)
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

func (r *repository) Create(ctx context.Context, resident *models.Resident) error {
	return r.db.WithContext(ctx).Create(resident).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Resident, error) {
	return r.take(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Resident, error) {
	return r.take(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repository) FindByUsername(ctx context.Context, username string) (*models.Resident, error) {
	return r.take(r.db.WithContext(ctx).Where("username = ?", username))
}

// take returns nil, nil when nothing matches.
func (r *repository) take(query *gorm.DB) (*models.Resident, error) {
	var resident models.Resident
	err := query.Take(&resident).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resident, nil
}

func (r *repository) List(ctx context.Context, filter Filter, params pagination.Params) ([]models.Resident, string, error) {
	query := r.db.WithContext(ctx).Model(&models.Resident{})
	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("(username LIKE ? OR full_name LIKE ?)", like, like)
	}
	var rows []models.Resident
	if err := query.Scopes(pagination.Keyset(params, "")).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	page, next := pagination.Page(rows, params.Limit, func(m models.Resident) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return page, next, nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Resident{}).
		Where("id = ?", id).
		Update("active", active).Error
}

func (r *repository) CountByRole(ctx context.Context) (map[enums.ActorRole]int64, error) {
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
