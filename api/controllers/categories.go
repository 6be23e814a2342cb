package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/banksampah-backend/api/responses"
	"github.com/angelmondragon/banksampah-backend/api/validators"
	"github.com/angelmondragon/banksampah-backend/internal/categories"
	"github.com/angelmondragon/banksampah-backend/internal/transactions"
	"github.com/angelmondragon/banksampah-backend/pkg/auth"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
)

type categoryService interface {
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, actor auth.Actor, input categories.CreateInput) (*categories.Result, error)
	UpdatePrice(ctx context.Context, actor auth.Actor, id uuid.UUID, price int64) (*categories.PriceChange, error)
}

type quoteService interface {
	Quote(ctx context.Context, categoryID uuid.UUID, weight decimal.Decimal) (*transactions.Quote, error)
}

type createCategoryRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	PricePerKg int64  `json:"price_per_kg" validate:"required,gt=0"`
}

type updatePriceRequest struct {
	PricePerKg int64 `json:"price_per_kg" validate:"required,gt=0"`
}

// CategoryList returns the full catalog ordered by name.
func CategoryList(svc categoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if rows == nil {
			rows = []models.Category{}
		}
		responses.WriteSuccess(w, rows)
	}
}

func CategoryCreate(svc categoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createCategoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), actor, categories.CreateInput{
			Name:       validators.SanitizeString(body.Name, 100),
			PricePerKg: body.PricePerKg,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func CategoryUpdatePrice(svc categoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		categoryID, err := uuidParam(r, "categoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updatePriceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		change, err := svc.UpdatePrice(r.Context(), actor, categoryID, body.PricePerKg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, change)
	}
}

// CategoryQuote previews the breakdown of a drop-off at the current price.
func CategoryQuote(svc quoteService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categoryID, err := uuidParam(r, "categoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		weight, err := validators.ParseQueryDecimal(r, "weight_kg")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), categoryID, weight)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}
