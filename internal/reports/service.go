package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
)

const (
	minYear = 2000
	maxYear = 2100
)

// Period is a calendar month or year with its aggregates.
type Period struct {
	Year      int            `json:"year"`
	Month     int            `json:"month,omitempty"`
	From      time.Time      `json:"from"`
	To        time.Time      `json:"to"`
	Totals    Totals         `json:"totals"`
	Movements MovementTotals `json:"movements"`
}

type YearReport struct {
	Period
	Months []Period `json:"months"`
}

type Overview struct {
	ActorsByRole map[enums.ActorRole]int64 `json:"actors_by_role"`
	BalanceHeld  int64                     `json:"balance_held"`
	AllTime      Totals                    `json:"all_time"`
	Movements    MovementTotals            `json:"movements"`
	CurrentMonth Period                    `json:"current_month"`
}

type ResidentReport struct {
	ResidentID uuid.UUID      `json:"resident_id"`
	FullName   string         `json:"full_name"`
	Balance    int64          `json:"balance"`
	Totals     Totals         `json:"totals"`
	Movements  MovementTotals `json:"movements"`
}

// Service answers statistics questions over the ledger tables.
// Calendar boundaries are computed in loc.
type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

func NewService(repo Repository, loc *time.Location, now func() time.Time) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, loc: loc, now: now}, nil
}

func (s *Service) Monthly(ctx context.Context, year, month int) (*Period, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "month must be between 1 and 12")
	}
	p, err := s.period(ctx, year, month)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Yearly reports each month of year plus the year as a whole.
func (s *Service) Yearly(ctx context.Context, year int) (*YearReport, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, s.loc)
	out := &YearReport{
		Period: Period{Year: year, From: from, To: from.AddDate(1, 0, 0), Totals: Totals{TotalWeightKg: decimal.Zero}},
		Months: make([]Period, 0, 12),
	}
	for month := 1; month <= 12; month++ {
		p, err := s.period(ctx, year, month)
		if err != nil {
			return nil, err
		}
		out.Months = append(out.Months, p)
		out.Totals = addTotals(out.Totals, p.Totals)
		out.Movements.Deposits += p.Movements.Deposits
		out.Movements.Withdrawals += p.Movements.Withdrawals
	}
	return out, nil
}

func (s *Service) Categories(ctx context.Context, r Range) ([]CategoryTotals, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	rows, err := s.repo.CategoryTotals(ctx, r)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "category report")
	}
	return rows, nil
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	roles, err := s.repo.ActorsByRole(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count actors")
	}
	held, err := s.repo.BalanceHeld(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum balances")
	}
	all, err := s.repo.TransactionTotals(ctx, Range{}, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum transactions")
	}
	moves, err := s.repo.MovementTotals(ctx, Range{}, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum movements")
	}
	now := s.now().In(s.loc)
	current, err := s.period(ctx, now.Year(), int(now.Month()))
	if err != nil {
		return nil, err
	}
	return &Overview{ActorsByRole: roles, BalanceHeld: held, AllTime: all, Movements: moves, CurrentMonth: current}, nil
}

func (s *Service) Resident(ctx context.Context, residentID uuid.UUID, r Range) (*ResidentReport, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	resident, err := s.repo.Resident(ctx, residentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load resident")
	}
	if resident == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "resident not found")
	}
	totals, err := s.repo.TransactionTotals(ctx, r, &residentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum resident transactions")
	}
	moves, err := s.repo.MovementTotals(ctx, r, &residentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum resident movements")
	}
	return &ResidentReport{
		ResidentID: resident.ID,
		FullName:   resident.FullName,
		Balance:    resident.Balance,
		Totals:     totals,
		Movements:  moves,
	}, nil
}

func (s *Service) period(ctx context.Context, year, month int) (Period, error) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 1, 0)
	r := Range{From: &from, To: &to}
	totals, err := s.repo.TransactionTotals(ctx, r, nil)
	if err != nil {
		return Period{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum transactions")
	}
	moves, err := s.repo.MovementTotals(ctx, r, nil)
	if err != nil {
		return Period{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum movements")
	}
	return Period{Year: year, Month: month, From: from, To: to, Totals: totals, Movements: moves}, nil
}

func addTotals(a, b Totals) Totals {
	return Totals{
		TransactionCount: a.TransactionCount + b.TransactionCount,
		TotalWeightKg:    a.TotalWeightKg.Add(b.TotalWeightKg),
		TotalRevenue:     a.TotalRevenue + b.TotalRevenue,
		CommitteeFees:    a.CommitteeFees + b.CommitteeFees,
		NetToResidents:   a.NetToResidents + b.NetToResidents,
	}
}

func validateYear(year int) error {
	if year < minYear || year > maxYear {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("year must be between %d and %d", minYear, maxYear))
	}
	return nil
}

func validateRange(r Range) error {
	if r.From != nil && r.To != nil && !r.From.Before(*r.To) {
		return pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	return nil
}
