package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/banksampah-backend/api/responses"
	"github.com/angelmondragon/banksampah-backend/internal/earnings"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

type earningsService interface {
	Total(ctx context.Context, r earnings.Range) (int64, error)
	List(ctx context.Context, r earnings.Range, params pagination.Params) ([]earnings.Earning, string, error)
	CheckConsistency(ctx context.Context, r earnings.Range) (*earnings.Consistency, error)
}

type earningsTotalResponse struct {
	Total int64      `json:"total"`
	From  *time.Time `json:"from,omitempty"`
	To    *time.Time `json:"to,omitempty"`
}

func EarningsList(svc earningsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := timeRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := svc.List(r.Context(), earnings.Range{From: from, To: to}, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newListResponse(rows, next))
	}
}

func EarningsTotal(svc earningsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := timeRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		total, err := svc.Total(r.Context(), earnings.Range{From: from, To: to})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, earningsTotalResponse{Total: total, From: from, To: to})
	}
}

// EarningsConsistency compares recorded earnings with the fees on the
// transactions that produced them.
func EarningsConsistency(svc earningsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := timeRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.CheckConsistency(r.Context(), earnings.Range{From: from, To: to})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
