package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/banksampah-backend/api/responses"
	"github.com/angelmondragon/banksampah-backend/api/validators"
	"github.com/angelmondragon/banksampah-backend/internal/movements"
	"github.com/angelmondragon/banksampah-backend/pkg/auth"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

type movementService interface {
	Deposit(ctx context.Context, actor auth.Actor, input movements.MovementInput) (*movements.Result, error)
	Withdraw(ctx context.Context, actor auth.Actor, input movements.MovementInput) (*movements.Result, error)
	List(ctx context.Context, filter movements.Filter, params pagination.Params) ([]models.FinancialMovement, string, error)
}

type movementRequest struct {
	ResidentID uuid.UUID `json:"resident_id" validate:"required"`
	Amount     int64     `json:"amount" validate:"required"`
	Note       *string   `json:"note,omitempty" validate:"omitempty,max=500"`
}

type movementFunc func(ctx context.Context, actor auth.Actor, input movements.MovementInput) (*movements.Result, error)

func MovementDeposit(svc movementService, logg *logger.Logger) http.HandlerFunc {
	return movementHandler(svc.Deposit, logg)
}

// MovementWithdraw debits a resident. Overdrafts fail with
// INSUFFICIENT_BALANCE and leave the balance untouched.
func MovementWithdraw(svc movementService, logg *logger.Logger) http.HandlerFunc {
	return movementHandler(svc.Withdraw, logg)
}

func movementHandler(move movementFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body movementRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := move(r.Context(), actor, movements.MovementInput{
			ResidentID: body.ResidentID,
			Amount:     body.Amount,
			Note:       sanitizeNote(body.Note),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func MovementList(svc movementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter movements.Filter
		if filter.ResidentID, err = scopedResidentFilter(r, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			mt, err := enums.ParseMovementType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
				return
			}
			filter.Type = &mt
		}
		if filter.From, filter.To, err = timeRange(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
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
