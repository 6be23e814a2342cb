package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/banksampah-backend/internal/ledger"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
)

type driftScanner interface {
	ScanDrift(ctx context.Context, pageSize int) (*ledger.DriftReport, error)
}

type ReconcileJobParams struct {
	Logger   *logger.Logger
	Ledger   driftScanner
	PageSize int
}

// NewReconcileJob recomputes every balance from history and reports
// residents whose cached balance drifted. Balances are never rewritten.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	return &reconcileJob{logg: params.Logger, ledger: params.Ledger, pageSize: params.PageSize}, nil
}

type reconcileJob struct {
	logg     *logger.Logger
	ledger   driftScanner
	pageSize int
}

func (j *reconcileJob) Name() string { return "ledger-reconcile" }

func (j *reconcileJob) Run(ctx context.Context) error {
	report, err := j.ledger.ScanDrift(ctx, j.pageSize)
	if report != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"scanned": report.Scanned,
			"drifted": len(report.Drifted),
		})
		if len(report.Drifted) > 0 {
			ids := make([]string, 0, len(report.Drifted))
			for _, rec := range report.Drifted {
				ids = append(ids, rec.ResidentID.String())
			}
			logCtx = j.logg.WithField(logCtx, "drifted_residents", ids)
			j.logg.Warn(logCtx, "ledger.reconcile.drift_found")
		} else {
			j.logg.Info(logCtx, "ledger.reconcile.clean")
		}
	}
	if err != nil {
		return fmt.Errorf("scan drift: %w", err)
	}
	return nil
}
