package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/banksampah-backend/internal/earnings"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
)

var errEarningsInconsistent = errors.New("committee earnings disagree with transaction fees")

type consistencyChecker interface {
	CheckConsistency(ctx context.Context, r earnings.Range) (*earnings.Consistency, error)
}

type EarningsConsistencyJobParams struct {
	Logger   *logger.Logger
	Earnings consistencyChecker
}

// NewEarningsConsistencyJob fails when any transaction lacks its earning
// row or an earning differs from the fee it mirrors.
func NewEarningsConsistencyJob(params EarningsConsistencyJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Earnings == nil {
		return nil, fmt.Errorf("earnings service required")
	}
	return &earningsConsistencyJob{logg: params.Logger, earnings: params.Earnings}, nil
}

type earningsConsistencyJob struct {
	logg     *logger.Logger
	earnings consistencyChecker
}

func (j *earningsConsistencyJob) Name() string { return "earnings-consistency" }

func (j *earningsConsistencyJob) Run(ctx context.Context) error {
	report, err := j.earnings.CheckConsistency(ctx, earnings.Range{})
	if err != nil {
		return fmt.Errorf("check earnings: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"earnings_total":   report.EarningsTotal,
		"fees_total":       report.FeesTotal,
		"missing_earnings": report.MissingEarnings,
		"mismatched_rows":  report.MismatchedRows,
	})
	if !report.Consistent {
		j.logg.Warn(logCtx, "earnings.inconsistent")
		return errEarningsInconsistent
	}
	j.logg.Info(logCtx, "earnings.consistent")
	return nil
}
