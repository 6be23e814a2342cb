package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/banksampah-backend/api/responses"
	"github.com/angelmondragon/banksampah-backend/api/validators"
	"github.com/angelmondragon/banksampah-backend/internal/audit"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

type auditService interface {
	List(ctx context.Context, filter audit.Filter, params pagination.Params) ([]models.AuditLogEntry, string, error)
}

// AuditList pages through the audit trail, newest first.
func AuditList(svc auditService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			filter audit.Filter
			err    error
		)
		if filter.ActorID, err = validators.ParseQueryUUID(r, "actor_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("action")); raw != "" {
			action, err := enums.ParseAuditAction(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action"))
				return
			}
			filter.Action = &action
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
