package movements

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/internal/audit"
	"github.com/angelmondragon/banksampah-backend/internal/ledger"
	"github.com/angelmondragon/banksampah-backend/pkg/auth"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/metrics"
	"github.com/angelmondragon/banksampah-backend/pkg/outbox"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

const (
	maxAmount     = 1_000_000_000_000
	maxNoteLength = 500
)

type balanceLedger interface {
	RunLocked(ctx context.Context, residentID uuid.UUID, fn func(tx *gorm.DB) error) error
	ApplyDeltaTx(ctx context.Context, tx *gorm.DB, residentID uuid.UUID, delta int64, guard ledger.Guard) (*ledger.BalanceChange, error)
}

type auditor interface {
	AppendTx(ctx context.Context, tx *gorm.DB, entry audit.Entry) bool
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ServiceParams struct {
	Repository Repository
	Ledger     balanceLedger
	Audit      auditor
	Outbox     eventEmitter
	Logger     *logger.Logger
	Metrics    *metrics.LedgerMetrics
	Now        func() time.Time
}

// Service records deposits and withdrawals against resident balances.
type Service struct {
	repo    Repository
	ledger  balanceLedger
	audit   auditor
	outbox  eventEmitter
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("movement repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:    params.Repository,
		ledger:  params.Ledger,
		audit:   params.Audit,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

type MovementInput struct {
	ResidentID uuid.UUID
	Amount     int64
	Note       *string
}

type Result struct {
	Movement      *models.FinancialMovement `json:"movement"`
	Balance       *ledger.BalanceChange     `json:"balance"`
	AuditDegraded bool                      `json:"audit_degraded"`
}

// Deposit credits amount to the resident.
func (s *Service) Deposit(ctx context.Context, actor auth.Actor, input MovementInput) (*Result, error) {
	res, err := s.move(ctx, actor, enums.MovementTypeDeposit, input)
	s.metrics.IncOperation("deposit", metrics.Outcome(err))
	return res, err
}

// Withdraw debits amount from the resident. A withdrawal that would leave
// a negative balance fails with INSUFFICIENT_BALANCE and writes nothing.
func (s *Service) Withdraw(ctx context.Context, actor auth.Actor, input MovementInput) (*Result, error) {
	res, err := s.move(ctx, actor, enums.MovementTypeWithdrawal, input)
	s.metrics.IncOperation("withdraw", metrics.Outcome(err))
	if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientBalance) {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"resident_id": input.ResidentID.String(),
			"amount":      input.Amount,
		})
		s.logg.Warn(logCtx, "ledger.withdrawal.rejected")
	}
	return res, err
}

func (s *Service) move(ctx context.Context, actor auth.Actor, kind enums.MovementType, input MovementInput) (*Result, error) {
	if err := actor.Require(auth.CapMoveFunds); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var guard ledger.Guard
	action := enums.AuditActionDeposit
	event := enums.EventDepositRecorded
	if kind == enums.MovementTypeWithdrawal {
		guard = ledger.NonNegative
		action = enums.AuditActionWithdrawal
		event = enums.EventWithdrawalRecorded
	}
	note := cleanNote(input.Note)

	var result *Result
	err := s.ledger.RunLocked(ctx, input.ResidentID, func(tx *gorm.DB) error {
		change, err := s.ledger.ApplyDeltaTx(ctx, tx, input.ResidentID, kind.Sign()*input.Amount, guard)
		if err != nil {
			return err
		}
		movement := &models.FinancialMovement{
			ResidentID:    input.ResidentID,
			Type:          kind,
			Amount:        input.Amount,
			BalanceBefore: change.Before,
			BalanceAfter:  change.After,
			ProcessedBy:   actor.ID,
			Note:          note,
			CreatedAt:     s.now().UTC(),
		}
		if err := s.repo.WithTx(tx).Create(ctx, movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert movement")
		}
		degraded := s.audit.AppendTx(ctx, tx, audit.Entry{
			ActorID: actor.ID,
			Action:  action,
			Details: audit.Details(
				"movement", movement.ID,
				"resident", input.ResidentID,
				"amount", input.Amount,
				"balance_before", change.Before,
				"balance_after", change.After,
			),
		})
		result = &Result{Movement: movement, Balance: change, AuditDegraded: degraded}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     event,
			AggregateType: enums.AggregateMovement,
			AggregateID:   movement.ID,
			Actor:         &outbox.ActorRef{UserID: actor.ID, Role: actor.Role.String()},
			OccurredAt:    movement.CreatedAt,
			Data: outbox.MovementRecorded{
				MovementID:    movement.ID,
				ResidentID:    input.ResidentID,
				Type:          kind.String(),
				Amount:        input.Amount,
				BalanceBefore: change.Before,
				BalanceAfter:  change.After,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"movement_id":   result.Movement.ID.String(),
		"resident_id":   input.ResidentID.String(),
		"type":          kind,
		"amount":        input.Amount,
		"balance_after": result.Balance.After,
	})
	s.logg.Info(logCtx, "ledger.movement.recorded")
	return result, nil
}

func (s *Service) List(ctx context.Context, filter Filter, params pagination.Params) ([]models.FinancialMovement, string, error) {
	if filter.Type != nil && !filter.Type.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	return rows, next, nil
}

func validateInput(input MovementInput) error {
	if input.ResidentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "resident_id is required")
	}
	if input.Amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if input.Amount > maxAmount {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount is too large")
	}
	if input.Note != nil && len(strings.TrimSpace(*input.Note)) > maxNoteLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("note exceeds %d characters", maxNoteLength))
	}
	return nil
}

func cleanNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
