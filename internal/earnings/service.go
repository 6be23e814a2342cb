package earnings

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

// Service aggregates the committee's fee income. It never writes.
type Service struct {
	repo Repository
}

func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("earnings repository required")
	}
	return &Service{repo: repo}, nil
}

// Consistency compares earning rows against the fees stored on transactions.
type Consistency struct {
	EarningsTotal   int64 `json:"earnings_total"`
	FeesTotal       int64 `json:"fees_total"`
	MissingEarnings int64 `json:"missing_earnings"`
	MismatchedRows  int64 `json:"mismatched_rows"`
	Consistent      bool  `json:"consistent"`
}

func (s *Service) Total(ctx context.Context, r Range) (int64, error) {
	if err := validateRange(r); err != nil {
		return 0, err
	}
	total, err := s.repo.Sum(ctx, r)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum earnings")
	}
	return total, nil
}

func (s *Service) TotalForResident(ctx context.Context, residentID uuid.UUID, r Range) (int64, error) {
	if residentID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "resident id is required")
	}
	if err := validateRange(r); err != nil {
		return 0, err
	}
	total, err := s.repo.SumForResident(ctx, residentID, r)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum resident earnings")
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, r Range, params pagination.Params) ([]Earning, string, error) {
	if err := validateRange(r); err != nil {
		return nil, "", err
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, r, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list earnings")
	}
	return rows, next, nil
}

// CheckConsistency reports whether every transaction has exactly one
// earning carrying its committee fee.
func (s *Service) CheckConsistency(ctx context.Context, r Range) (*Consistency, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	var (
		out Consistency
		err error
	)
	if out.EarningsTotal, err = s.repo.Sum(ctx, r); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum earnings")
	}
	if out.FeesTotal, err = s.repo.SumTransactionFees(ctx, r); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum fees")
	}
	if out.MissingEarnings, err = s.repo.CountMissing(ctx, r); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count missing earnings")
	}
	if out.MismatchedRows, err = s.repo.CountMismatched(ctx, r); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count mismatched earnings")
	}
	out.Consistent = out.EarningsTotal == out.FeesTotal && out.MissingEarnings == 0 && out.MismatchedRows == 0
	return &out, nil
}

func validateRange(r Range) error {
	if r.From != nil && r.To != nil && !r.From.Before(*r.To) {
		return pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	return nil
}
