package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/banksampah-backend/api/responses"
	"github.com/angelmondragon/banksampah-backend/api/validators"
	"github.com/angelmondragon/banksampah-backend/internal/ledger"
	"github.com/angelmondragon/banksampah-backend/internal/residents"
	"github.com/angelmondragon/banksampah-backend/pkg/auth"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

type residentService interface {
	Register(ctx context.Context, actor auth.Actor, input residents.RegisterInput) (*residents.RegisterResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Resident, error)
	List(ctx context.Context, actor auth.Actor, filter residents.Filter, params pagination.Params) ([]models.Resident, string, error)
	Deactivate(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Resident, error)
}

type balanceService interface {
	GetBalance(ctx context.Context, residentID uuid.UUID) (int64, error)
	Reconcile(ctx context.Context, residentID uuid.UUID) (*ledger.Reconciliation, error)
}

type registerResidentRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=64,username"`
	Password string  `json:"password,omitempty" validate:"omitempty,min=8,max=256"`
	FullName string  `json:"full_name" validate:"required,max=200"`
	Nickname *string `json:"nickname,omitempty" validate:"omitempty,max=100"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=500"`
	RT       *string `json:"rt,omitempty" validate:"omitempty,max=10"`
	RW       *string `json:"rw,omitempty" validate:"omitempty,max=10"`
	WhatsApp *string `json:"whatsapp,omitempty" validate:"omitempty,max=32"`
	Role     string  `json:"role,omitempty"`
}

type balanceResponse struct {
	ResidentID uuid.UUID `json:"resident_id"`
	Balance    int64     `json:"balance"`
}

func ResidentRegister(svc residentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body registerResidentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := enums.ActorRoleResident
		if raw := strings.TrimSpace(body.Role); raw != "" {
			if role, err = enums.ParseActorRole(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
				return
			}
		}

		result, err := svc.Register(r.Context(), actor, residents.RegisterInput{
			Username: strings.TrimSpace(body.Username),
			Password: body.Password,
			FullName: validators.SanitizeString(body.FullName, 200),
			Nickname: body.Nickname,
			Address:  body.Address,
			RT:       body.RT,
			RW:       body.RW,
			WhatsApp: body.WhatsApp,
			Role:     role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func ResidentList(svc residentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		filter := residents.Filter{Search: validators.SanitizeString(query.Get("search"), 100)}
		if raw := strings.TrimSpace(query.Get("role")); raw != "" {
			role, err := enums.ParseActorRole(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
				return
			}
			filter.Role = &role
		}
		if raw := strings.TrimSpace(query.Get("active")); raw != "" {
			active, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid active value"))
				return
			}
			filter.Active = &active
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := svc.List(r.Context(), actor, filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newListResponse(residents.FromModels(rows), next))
	}
}

func ResidentDetail(svc residentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "residentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := requireBalanceAccess(actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resident, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, residents.FromModel(resident))
	}
}

// Me returns the authenticated actor's own profile.
func Me(svc residentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resident, err := svc.Get(r.Context(), actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, residents.FromModel(resident))
	}
}

func ResidentDeactivate(svc residentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "residentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resident, err := svc.Deactivate(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, residents.FromModel(resident))
	}
}

// ResidentBalance returns the cached balance. Residents may read only
// their own; staff need view_balances.
func ResidentBalance(svc balanceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "residentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := requireBalanceAccess(actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.GetBalance(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceResponse{ResidentID: id, Balance: balance})
	}
}

func ResidentReconciliation(svc balanceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "residentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, err := svc.Reconcile(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rec)
	}
}

func requireBalanceAccess(actor auth.Actor, residentID uuid.UUID) error {
	if actor.ID == residentID {
		return nil
	}
	return actor.Require(auth.CapViewBalances)
}
