package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/metrics"
)

const (
	defaultConflictRetries = 5
	defaultRetryBase       = 10 * time.Millisecond
	defaultScanPageSize    = 200
)

// Guard decides whether a proposed balance is acceptable.
type Guard func(after int64) bool

// NonNegative rejects any change that would leave the balance below zero.
func NonNegative(after int64) bool { return after >= 0 }

// BalanceChange is the outcome of a single balance mutation.
type BalanceChange struct {
	ResidentID uuid.UUID `json:"resident_id"`
	Before     int64     `json:"balance_before"`
	After      int64     `json:"balance_after"`
	Delta      int64     `json:"delta"`
}

// Reconciliation compares the cached balance with the history it summarizes.
type Reconciliation struct {
	ResidentID uuid.UUID     `json:"resident_id"`
	Cached     int64         `json:"cached_balance"`
	Computed   int64         `json:"computed_balance"`
	Drift      int64         `json:"drift"`
	Consistent bool          `json:"consistent"`
	History    HistoryTotals `json:"-"`
}

// DriftReport summarizes a full reconciliation sweep.
type DriftReport struct {
	Scanned int              `json:"scanned"`
	Drifted []Reconciliation `json:"drifted"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	DB         txRunner
	Repository Repository
	Locker     Locker
	Logger     *logger.Logger
	Metrics    *metrics.LedgerMetrics
	Config     config.LedgerConfig
}

// Service owns every write to a resident balance.
type Service struct {
	db        txRunner
	repo      Repository
	locker    Locker
	logg      *logger.Logger
	metrics   *metrics.LedgerMetrics
	retries   uint64
	retryBase time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("ledger locker required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	retries := uint64(defaultConflictRetries)
	if params.Config.ConflictRetries > 0 {
		retries = uint64(params.Config.ConflictRetries)
	}
	base := params.Config.RetryBase
	if base <= 0 {
		base = defaultRetryBase
	}
	return &Service{
		db:        params.DB,
		repo:      params.Repository,
		locker:    params.Locker,
		logg:      params.Logger,
		metrics:   params.Metrics,
		retries:   retries,
		retryBase: base,
	}, nil
}

// GetBalance returns the cached balance.
func (s *Service) GetBalance(ctx context.Context, residentID uuid.UUID) (int64, error) {
	st, err := s.repo.FindState(ctx, residentID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	if st == nil {
		return 0, residentNotFound(residentID)
	}
	return st.Balance, nil
}

// ApplyDelta runs ApplyDeltaTx in its own locked unit of work.
func (s *Service) ApplyDelta(ctx context.Context, residentID uuid.UUID, delta int64, guard Guard) (*BalanceChange, error) {
	var change *BalanceChange
	err := s.RunLocked(ctx, residentID, func(tx *gorm.DB) error {
		var err error
		change, err = s.ApplyDeltaTx(ctx, tx, residentID, delta, guard)
		return err
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// ApplyDeltaTx reads the balance under a row lock, checks guard against
// the proposed value and writes it back with a version compare-and-swap.
// Nothing is written when any check fails.
func (s *Service) ApplyDeltaTx(ctx context.Context, tx *gorm.DB, residentID uuid.UUID, delta int64, guard Guard) (*BalanceChange, error) {
	repo := s.repo.WithTx(tx)
	st, err := repo.LockResident(ctx, residentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock balance")
	}
	if st == nil {
		return nil, residentNotFound(residentID)
	}
	if !st.Active {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "resident is inactive").
			WithDetails(map[string]any{"resident_id": residentID})
	}
	if (delta > 0 && st.Balance > math.MaxInt64-delta) || (delta < 0 && st.Balance < math.MinInt64-delta) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "balance overflow")
	}

	after := st.Balance + delta
	if guard != nil && !guard(after) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient balance").
			WithDetails(map[string]any{
				"attempted": abs(delta),
				"available": st.Balance,
			})
	}

	swapped, err := repo.CompareAndSwapBalance(ctx, residentID, st.BalanceVersion, after)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update balance")
	}
	if !swapped {
		return nil, pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "balance changed while updating")
	}
	return &BalanceChange{ResidentID: residentID, Before: st.Balance, After: after, Delta: delta}, nil
}

// RunLocked holds the resident lock for one unit of work and replays the
// whole unit when a version conflict aborts it.
func (s *Service) RunLocked(ctx context.Context, residentID uuid.UUID, fn func(tx *gorm.DB) error) error {
	unlock, err := s.locker.Lock(ctx, residentID)
	if err != nil {
		return err
	}
	defer unlock()

	backoff := retry.WithMaxRetries(s.retries, retry.NewExponential(s.retryBase))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempt > 0 {
			s.metrics.IncConflictRetry()
		}
		attempt++
		err := s.db.WithTx(ctx, fn)
		if pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// Reconcile recomputes the balance from history. It never rewrites the
// cached value.
func (s *Service) Reconcile(ctx context.Context, residentID uuid.UUID) (*Reconciliation, error) {
	var out *Reconciliation
	err := s.RunLocked(ctx, residentID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		st, err := repo.FindState(ctx, residentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
		}
		if st == nil {
			return residentNotFound(residentID)
		}
		totals, err := repo.HistoryTotals(ctx, residentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum history")
		}
		computed := totals.Balance()
		out = &Reconciliation{
			ResidentID: residentID,
			Cached:     st.Balance,
			Computed:   computed,
			Drift:      st.Balance - computed,
			Consistent: st.Balance == computed,
			History:    totals,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.Consistent {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"resident_id":      residentID.String(),
			"cached_balance":   out.Cached,
			"computed_balance": out.Computed,
			"drift":            out.Drift,
		})
		s.logg.Warn(logCtx, "ledger.balance.drift")
	}
	return out, nil
}

// ScanDrift reconciles every actor page by page. Per-resident failures are
// collected and returned together after the sweep finishes.
func (s *Service) ScanDrift(ctx context.Context, pageSize int) (*DriftReport, error) {
	if pageSize <= 0 {
		pageSize = defaultScanPageSize
	}
	report := &DriftReport{}
	var errs error
	after := uuid.Nil
	for {
		ids, err := s.repo.ListResidentIDs(ctx, after, pageSize)
		if err != nil {
			return report, multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list residents"))
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return report, multierr.Append(errs, err)
			}
			rec, err := s.Reconcile(ctx, id)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", id, err))
				continue
			}
			report.Scanned++
			if !rec.Consistent {
				report.Drifted = append(report.Drifted, *rec)
			}
		}
		if len(ids) < pageSize {
			break
		}
		after = ids[len(ids)-1]
	}
	s.metrics.SetDriftResidents(len(report.Drifted))
	return report, errs
}

func residentNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "resident not found").
		WithDetails(map[string]any{"resident_id": id})
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
