package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/banksampah-backend/internal/earnings"
	"github.com/angelmondragon/banksampah-backend/internal/ledger"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
)

type fakeDriftScanner struct {
	report   *ledger.DriftReport
	err      error
	pageSize int
}

func (f *fakeDriftScanner) ScanDrift(_ context.Context, pageSize int) (*ledger.DriftReport, error) {
	f.pageSize = pageSize
	return f.report, f.err
}

func TestReconcileJobReportsDriftWithoutFailing(t *testing.T) {
	scanner := &fakeDriftScanner{report: &ledger.DriftReport{
		Scanned: 3,
		Drifted: []ledger.Reconciliation{{ResidentID: uuid.New(), Cached: 500, Computed: 400, Drift: 100}},
	}}
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Ledger:   scanner,
		PageSize: 50,
	})
	require.NoError(t, err)
	require.Equal(t, "ledger-reconcile", job.Name())

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 50, scanner.pageSize)
}

func TestReconcileJobPropagatesScanErrors(t *testing.T) {
	scanner := &fakeDriftScanner{report: &ledger.DriftReport{Scanned: 1}, err: errors.New("db gone")}
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Ledger: scanner,
	})
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))
}

type fakeConsistencyChecker struct {
	report *earnings.Consistency
	err    error
}

func (f fakeConsistencyChecker) CheckConsistency(context.Context, earnings.Range) (*earnings.Consistency, error) {
	return f.report, f.err
}

func TestEarningsConsistencyJob(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})

	job, err := NewEarningsConsistencyJob(EarningsConsistencyJobParams{
		Logger:   logg,
		Earnings: fakeConsistencyChecker{report: &earnings.Consistency{EarningsTotal: 600, FeesTotal: 600, Consistent: true}},
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	job, err = NewEarningsConsistencyJob(EarningsConsistencyJobParams{
		Logger:   logg,
		Earnings: fakeConsistencyChecker{report: &earnings.Consistency{EarningsTotal: 0, FeesTotal: 600, MissingEarnings: 1}},
	})
	require.NoError(t, err)
	require.ErrorIs(t, job.Run(context.Background()), errEarningsInconsistent)

	job, err = NewEarningsConsistencyJob(EarningsConsistencyJobParams{
		Logger:   logg,
		Earnings: fakeConsistencyChecker{err: errors.New("query failed")},
	})
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))
}
