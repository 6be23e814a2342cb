package categories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/internal/audit"
	"github.com/angelmondragon/banksampah-backend/pkg/auth"
	dbpkg "github.com/angelmondragon/banksampah-backend/pkg/db"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/outbox"
)

const maxPricePerKg = 1_000_000_000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditor interface {
	AppendTx(ctx context.Context, tx *gorm.DB, entry audit.Entry) bool
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ServiceParams struct {
	DB         txRunner
	Repository Repository
	Audit      auditor
	Outbox     eventEmitter
	Logger     *logger.Logger
}

// Service owns the category catalog: price lookups for the ledger and
// upkeep for super admins.
type Service struct {
	db     txRunner
	repo   Repository
	audit  auditor
	outbox eventEmitter
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("category repository required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		db:     params.DB,
		repo:   params.Repository,
		audit:  params.Audit,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

type CreateInput struct {
	Name       string
	PricePerKg int64
}

type Result struct {
	Category      *models.Category `json:"category"`
	AuditDegraded bool             `json:"audit_degraded"`
}

type PriceChange struct {
	Category      *models.Category `json:"category"`
	OldPrice      int64            `json:"old_price_per_kg"`
	NewPrice      int64            `json:"new_price_per_kg"`
	AuditDegraded bool             `json:"audit_degraded"`
}

// Get returns the category or NOT_FOUND.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return s.LookupTx(ctx, nil, id)
}

// LookupTx reads a category through tx so the price snapshot belongs to
// the caller's unit of work. A nil tx uses the base connection.
func (s *Service) LookupTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Category, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id is required")
	}
	category, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	if category == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found").WithDetails(map[string]any{"category_id": id})
	}
	return category, nil
}

// GetPrice returns the current price per kilogram.
func (s *Service) GetPrice(ctx context.Context, id uuid.UUID) (int64, error) {
	category, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return category.PricePerKg, nil
}

func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.Get(ctx, id)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) List(ctx context.Context) ([]models.Category, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return rows, nil
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, input CreateInput) (*Result, error) {
	if err := actor.Require(auth.CapSetPrices); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}
	if err := validatePrice(input.PricePerKg); err != nil {
		return nil, err
	}

	result := &Result{}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByName(ctx, name)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check category name")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
		}
		category := &models.Category{Name: name, PricePerKg: input.PricePerKg}
		if err := repo.Create(ctx, category); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
		}
		result.Category = category
		result.AuditDegraded = s.audit.AppendTx(ctx, tx, audit.Entry{
			ActorID: actor.ID,
			Action:  enums.AuditActionCreateCategory,
			Details: audit.Details("category", name, "price_per_kg", input.PricePerKg),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdatePrice changes the price for future transactions. Recorded
// transactions keep their snapshot.
func (s *Service) UpdatePrice(ctx context.Context, actor auth.Actor, id uuid.UUID, price int64) (*PriceChange, error) {
	if err := actor.Require(auth.CapSetPrices); err != nil {
		return nil, err
	}
	if err := validatePrice(price); err != nil {
		return nil, err
	}

	change := &PriceChange{}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		category, err := s.LookupTx(ctx, tx, id)
		if err != nil {
			return err
		}
		change.OldPrice = category.PricePerKg
		change.NewPrice = price
		if err := s.repo.WithTx(tx).UpdatePrice(ctx, id, price); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category price")
		}
		category.PricePerKg = price
		change.Category = category

		change.AuditDegraded = s.audit.AppendTx(ctx, tx, audit.Entry{
			ActorID: actor.ID,
			Action:  enums.AuditActionUpdatePrice,
			Details: audit.Details("category", category.Name, "old_price_per_kg", change.OldPrice, "new_price_per_kg", price),
		})
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCategoryPriceUpdate,
			AggregateType: enums.AggregateCategory,
			AggregateID:   category.ID,
			Actor:         &outbox.ActorRef{UserID: actor.ID, Role: actor.Role.String()},
			Data: outbox.CategoryPriceUpdated{
				CategoryID: category.ID,
				Name:       category.Name,
				OldPrice:   change.OldPrice,
				NewPrice:   price,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"category_id": id.String(),
		"old_price":   change.OldPrice,
		"new_price":   price,
	})
	s.logg.Info(logCtx, "category.price_updated")
	return change, nil
}

// SeedDefaults installs any missing default categories and returns how
// many were created. Existing prices are left untouched.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	created := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, def := range Defaults {
			existing, err := repo.FindByName(ctx, def.Name)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			if err := repo.Create(ctx, &models.Category{Name: def.Name, PricePerKg: def.PricePerKg}); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed categories")
	}
	return created, nil
}

func validatePrice(price int64) error {
	if price <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price_per_kg must be positive")
	}
	if price > maxPricePerKg {
		return pkgerrors.New(pkgerrors.CodeValidation, "price_per_kg is too large")
	}
	return nil
}
