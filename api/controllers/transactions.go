package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/banksampah-backend/api/responses"
	"github.com/angelmondragon/banksampah-backend/api/validators"
	"github.com/angelmondragon/banksampah-backend/internal/transactions"
	"github.com/angelmondragon/banksampah-backend/pkg/auth"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

const maxNoteLength = 500

type transactionService interface {
	RecordTransaction(ctx context.Context, actor auth.Actor, input transactions.RecordInput) (*transactions.Result, error)
	RecordBatch(ctx context.Context, actor auth.Actor, input transactions.BatchInput) (*transactions.BatchResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	List(ctx context.Context, filter transactions.Filter, params pagination.Params) ([]models.Transaction, string, error)
}

type recordTransactionRequest struct {
	ResidentID         uuid.UUID       `json:"resident_id" validate:"required"`
	CategoryID         uuid.UUID       `json:"category_id" validate:"required"`
	WeightKg           decimal.Decimal `json:"weight_kg" validate:"gt=0"`
	Note               *string         `json:"note,omitempty" validate:"omitempty,max=500"`
	ExpectedPricePerKg *int64          `json:"expected_price_per_kg,omitempty" validate:"omitempty,gt=0"`
}

type batchItemRequest struct {
	CategoryID         uuid.UUID       `json:"category_id" validate:"required"`
	WeightKg           decimal.Decimal `json:"weight_kg" validate:"gt=0"`
	Note               *string         `json:"note,omitempty" validate:"omitempty,max=500"`
	ExpectedPricePerKg *int64          `json:"expected_price_per_kg,omitempty" validate:"omitempty,gt=0"`
}

type recordBatchRequest struct {
	ResidentID uuid.UUID          `json:"resident_id" validate:"required"`
	Items      []batchItemRequest `json:"items" validate:"required,min=1,dive"`
	Note       *string            `json:"note,omitempty" validate:"omitempty,max=500"`
}

// TransactionRecord prices and records one drop-off, crediting the
// resident's net amount.
func TransactionRecord(svc transactionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body recordTransactionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RecordTransaction(r.Context(), actor, transactions.RecordInput{
			ResidentID:         body.ResidentID,
			CategoryID:         body.CategoryID,
			WeightKg:           body.WeightKg,
			Note:               sanitizeNote(body.Note),
			ExpectedPricePerKg: body.ExpectedPricePerKg,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// TransactionRecordBatch records every item or none of them.
func TransactionRecordBatch(svc transactionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body recordBatchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := transactions.BatchInput{
			ResidentID: body.ResidentID,
			Items:      make([]transactions.BatchItem, 0, len(body.Items)),
			Note:       sanitizeNote(body.Note),
		}
		for _, item := range body.Items {
			input.Items = append(input.Items, transactions.BatchItem{
				CategoryID:         item.CategoryID,
				WeightKg:           item.WeightKg,
				Note:               sanitizeNote(item.Note),
				ExpectedPricePerKg: item.ExpectedPricePerKg,
			})
		}

		result, err := svc.RecordBatch(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func TransactionList(svc transactionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, params, err := transactionFilter(r, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newListResponse(rows, next))
	}
}

func TransactionDetail(svc transactionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := uuidParam(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := requireResidentAccess(actor, txn.ResidentID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

func transactionFilter(r *http.Request, actor auth.Actor) (transactions.Filter, pagination.Params, error) {
	var filter transactions.Filter
	residentID, err := scopedResidentFilter(r, actor)
	if err != nil {
		return filter, pagination.Params{}, err
	}
	filter.ResidentID = residentID
	if filter.CategoryID, err = validators.ParseQueryUUID(r, "category_id"); err != nil {
		return filter, pagination.Params{}, err
	}
	if filter.BatchID, err = validators.ParseQueryUUID(r, "batch_id"); err != nil {
		return filter, pagination.Params{}, err
	}
	if filter.From, filter.To, err = timeRange(r); err != nil {
		return filter, pagination.Params{}, err
	}
	params, err := pageParams(r)
	if err != nil {
		return filter, pagination.Params{}, err
	}
	return filter, params, nil
}

func sanitizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	clean := validators.SanitizeString(*note, maxNoteLength)
	if clean == "" {
		return nil
	}
	return &clean
}
