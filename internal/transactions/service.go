package transactions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
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
	maxBatchItems = 100
	maxNoteLength = 500
)

type balanceLedger interface {
	RunLocked(ctx context.Context, residentID uuid.UUID, fn func(tx *gorm.DB) error) error
	ApplyDeltaTx(ctx context.Context, tx *gorm.DB, residentID uuid.UUID, delta int64, guard ledger.Guard) (*ledger.BalanceChange, error)
}

type catalog interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Category, error)
	LookupTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Category, error)
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
	Categories catalog
	Audit      auditor
	Outbox     eventEmitter
	Logger     *logger.Logger
	Metrics    *metrics.LedgerMetrics
	Now        func() time.Time
}

// Service turns weighed drop-offs into credited balances.
type Service struct {
	repo       Repository
	ledger     balanceLedger
	categories catalog
	audit      auditor
	outbox     eventEmitter
	logg       *logger.Logger
	metrics    *metrics.LedgerMetrics
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Categories == nil {
		return nil, fmt.Errorf("category catalog required")
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
		repo:       params.Repository,
		ledger:     params.Ledger,
		categories: params.Categories,
		audit:      params.Audit,
		outbox:     params.Outbox,
		logg:       params.Logger,
		metrics:    params.Metrics,
		now:        now,
	}, nil
}

type RecordInput struct {
	ResidentID uuid.UUID
	CategoryID uuid.UUID
	WeightKg   decimal.Decimal
	Note       *string
	BatchID    *uuid.UUID
	// ExpectedPricePerKg pins the price shown in a quote. A different
	// current price fails with STATE_CONFLICT.
	ExpectedPricePerKg *int64
}

type Result struct {
	Transaction   *models.Transaction   `json:"transaction"`
	Breakdown     Breakdown             `json:"breakdown"`
	Balance       *ledger.BalanceChange `json:"balance"`
	AuditDegraded bool                  `json:"audit_degraded"`
}

// RecordTransaction prices one drop-off, credits the net amount and
// writes the transaction, its committee earning, the audit entry and the
// outbox event in a single unit of work.
func (s *Service) RecordTransaction(ctx context.Context, actor auth.Actor, input RecordInput) (*Result, error) {
	if err := actor.Require(auth.CapRecordTransactions); err != nil {
		return nil, err
	}
	if err := validateRecordInput(input); err != nil {
		s.metrics.IncOperation("record_transaction", metrics.Outcome(err))
		return nil, err
	}

	var result *Result
	err := s.ledger.RunLocked(ctx, input.ResidentID, func(tx *gorm.DB) error {
		var err error
		result, err = s.recordTx(ctx, tx, actor, line{
			categoryID:    input.CategoryID,
			weight:        input.WeightKg,
			note:          cleanNote(input.Note),
			expectedPrice: input.ExpectedPricePerKg,
		}, input.ResidentID, input.BatchID)
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTransactionRecorded,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   result.Transaction.ID,
			Actor:         actorRef(actor),
			OccurredAt:    result.Transaction.CreatedAt,
			Data:          transactionPayload(result.Transaction),
		})
	})
	s.metrics.IncOperation("record_transaction", metrics.Outcome(err))
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"transaction_id": result.Transaction.ID.String(),
		"resident_id":    input.ResidentID.String(),
		"net_amount":     result.Breakdown.NetAmount,
		"balance_after":  result.Balance.After,
	})
	s.logg.Info(logCtx, "ledger.transaction.recorded")
	return result, nil
}

type line struct {
	categoryID    uuid.UUID
	weight        decimal.Decimal
	note          *string
	expectedPrice *int64
}

// recordTx applies the credit first so the row can carry the balance
// before and after it. Everything commits or rolls back together.
func (s *Service) recordTx(ctx context.Context, tx *gorm.DB, actor auth.Actor, item line, residentID uuid.UUID, batchID *uuid.UUID) (*Result, error) {
	category, err := s.categories.LookupTx(ctx, tx, item.categoryID)
	if err != nil {
		return nil, err
	}
	if item.expectedPrice != nil && *item.expectedPrice != category.PricePerKg {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "category price changed since quote").
			WithDetails(map[string]any{
				"category_id":    category.ID,
				"expected_price": *item.expectedPrice,
				"current_price":  category.PricePerKg,
			})
	}
	breakdown, err := ComputeBreakdown(item.weight, category.PricePerKg)
	if err != nil {
		return nil, err
	}

	change, err := s.ledger.ApplyDeltaTx(ctx, tx, residentID, breakdown.NetAmount, nil)
	if err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	now := s.now().UTC()
	txn := &models.Transaction{
		ResidentID:    residentID,
		CategoryID:    category.ID,
		WeightKg:      breakdown.WeightKg,
		PricePerKg:    breakdown.PricePerKg,
		TotalAmount:   breakdown.TotalAmount,
		CommitteeFee:  breakdown.CommitteeFee,
		NetAmount:     breakdown.NetAmount,
		BalanceBefore: change.Before,
		BalanceAfter:  change.After,
		ProcessedBy:   actor.ID,
		BatchID:       batchID,
		Note:          item.note,
		CreatedAt:     now,
	}
	if err := repo.Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert transaction")
	}
	if err := repo.CreateEarning(ctx, &models.CommitteeEarning{
		TransactionID: txn.ID,
		Amount:        breakdown.CommitteeFee,
		CreatedAt:     now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert committee earning")
	}

	degraded := s.audit.AppendTx(ctx, tx, audit.Entry{
		ActorID: actor.ID,
		Action:  enums.AuditActionCreateTransaction,
		Details: audit.Details(
			"transaction", txn.ID,
			"resident", residentID,
			"category", category.Name,
			"weight_kg", breakdown.WeightKg.String(),
			"total", breakdown.TotalAmount,
			"fee", breakdown.CommitteeFee,
			"net", breakdown.NetAmount,
		),
	})
	return &Result{Transaction: txn, Breakdown: breakdown, Balance: change, AuditDegraded: degraded}, nil
}

type BatchItem struct {
	CategoryID         uuid.UUID
	WeightKg           decimal.Decimal
	Note               *string
	ExpectedPricePerKg *int64
}

type BatchInput struct {
	ResidentID uuid.UUID
	Items      []BatchItem
	Note       *string
}

type BatchResult struct {
	BatchID       uuid.UUID            `json:"batch_id"`
	ResidentID    uuid.UUID            `json:"resident_id"`
	Transactions  []models.Transaction `json:"transactions"`
	TotalAmount   int64                `json:"total_amount"`
	CommitteeFee  int64                `json:"committee_fee"`
	NetAmount     int64                `json:"net_amount"`
	BalanceBefore int64                `json:"balance_before"`
	BalanceAfter  int64                `json:"balance_after"`
	AuditDegraded bool                 `json:"audit_degraded"`
}

// RecordBatch records several lines for one resident under a shared batch
// id. Either every line commits or none does.
func (s *Service) RecordBatch(ctx context.Context, actor auth.Actor, input BatchInput) (*BatchResult, error) {
	if err := actor.Require(auth.CapRecordTransactions); err != nil {
		return nil, err
	}
	if err := validateBatch(input); err != nil {
		s.metrics.IncOperation("record_batch", metrics.Outcome(err))
		return nil, err
	}

	batchNote := cleanNote(input.Note)
	result := &BatchResult{BatchID: uuid.New(), ResidentID: input.ResidentID}
	err := s.ledger.RunLocked(ctx, input.ResidentID, func(tx *gorm.DB) error {
		// reset state from a previous conflicted attempt
		result.Transactions = result.Transactions[:0]
		result.TotalAmount, result.CommitteeFee, result.NetAmount = 0, 0, 0
		result.AuditDegraded = false

		ids := make([]uuid.UUID, 0, len(input.Items))
		for i, item := range input.Items {
			note := cleanNote(item.Note)
			if note == nil {
				note = batchNote
			}
			res, err := s.recordTx(ctx, tx, actor, line{
				categoryID:    item.CategoryID,
				weight:        item.WeightKg,
				note:          note,
				expectedPrice: item.ExpectedPricePerKg,
			}, input.ResidentID, &result.BatchID)
			if err != nil {
				return itemError(i, err)
			}
			if i == 0 {
				result.BalanceBefore = res.Balance.Before
			}
			result.BalanceAfter = res.Balance.After
			result.TotalAmount += res.Breakdown.TotalAmount
			result.CommitteeFee += res.Breakdown.CommitteeFee
			result.NetAmount += res.Breakdown.NetAmount
			result.AuditDegraded = result.AuditDegraded || res.AuditDegraded
			result.Transactions = append(result.Transactions, *res.Transaction)
			ids = append(ids, res.Transaction.ID)
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBatchRecorded,
			AggregateType: enums.AggregateBatch,
			AggregateID:   result.BatchID,
			Actor:         actorRef(actor),
			Data: outbox.BatchRecorded{
				BatchID:        result.BatchID,
				ResidentID:     input.ResidentID,
				TransactionIDs: ids,
				TotalAmount:    result.TotalAmount,
				CommitteeFee:   result.CommitteeFee,
				NetAmount:      result.NetAmount,
				BalanceAfter:   result.BalanceAfter,
			},
		})
	})
	s.metrics.IncOperation("record_batch", metrics.Outcome(err))
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"batch_id":      result.BatchID.String(),
		"resident_id":   input.ResidentID.String(),
		"items":         len(result.Transactions),
		"net_amount":    result.NetAmount,
		"balance_after": result.BalanceAfter,
	})
	s.logg.Info(logCtx, "ledger.batch.recorded")
	return result, nil
}

type Quote struct {
	CategoryID   uuid.UUID `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Breakdown
}

// Quote previews a drop-off at the current price without writing anything.
func (s *Service) Quote(ctx context.Context, categoryID uuid.UUID, weight decimal.Decimal) (*Quote, error) {
	if err := ValidateWeight(weight); err != nil {
		return nil, err
	}
	category, err := s.categories.Get(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	breakdown, err := ComputeBreakdown(weight, category.PricePerKg)
	if err != nil {
		return nil, err
	}
	return &Quote{CategoryID: category.ID, CategoryName: category.Name, Breakdown: breakdown}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

func (s *Service) List(ctx context.Context, filter Filter, params pagination.Params) ([]models.Transaction, string, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return rows, next, nil
}

func validateRecordInput(input RecordInput) error {
	if input.ResidentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "resident_id is required")
	}
	if input.CategoryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "category_id is required")
	}
	if err := validateNote(input.Note); err != nil {
		return err
	}
	return ValidateWeight(input.WeightKg)
}

// validateBatch checks every item and reports all problems in one error.
func validateBatch(input BatchInput) error {
	if input.ResidentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "resident_id is required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "batch needs at least one item")
	}
	if len(input.Items) > maxBatchItems {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("batch accepts at most %d items", maxBatchItems))
	}
	if err := validateNote(input.Note); err != nil {
		return err
	}

	var errs error
	for i, item := range input.Items {
		if item.CategoryID == uuid.Nil {
			errs = multierr.Append(errs, fmt.Errorf("items[%d]: category_id is required", i))
		}
		if err := ValidateWeight(item.WeightKg); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("items[%d]: %s", i, pkgerrors.As(err).Message()))
		}
		if err := validateNote(item.Note); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("items[%d]: %s", i, pkgerrors.As(err).Message()))
		}
	}
	if errs == nil {
		return nil
	}
	all := multierr.Errors(errs)
	messages := make([]string, 0, len(all))
	for _, err := range all {
		messages = append(messages, err.Error())
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, errs, "batch items are invalid").
		WithDetails(map[string]any{"items": messages})
}

// itemError tags a failure with the batch position while keeping its code.
func itemError(index int, err error) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err
	}
	details := map[string]any{"item": index}
	if existing, ok := typed.Details().(map[string]any); ok {
		for k, v := range existing {
			details[k] = v
		}
	}
	return pkgerrors.Wrap(typed.Code(), err, fmt.Sprintf("items[%d]: %s", index, typed.Message())).WithDetails(details)
}

func validateNote(note *string) error {
	if note != nil && len(strings.TrimSpace(*note)) > maxNoteLength {
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

func actorRef(actor auth.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.ID, Role: actor.Role.String()}
}

func transactionPayload(txn *models.Transaction) outbox.TransactionRecorded {
	return outbox.TransactionRecorded{
		TransactionID: txn.ID,
		ResidentID:    txn.ResidentID,
		CategoryID:    txn.CategoryID,
		BatchID:       txn.BatchID,
		WeightKg:      txn.WeightKg.String(),
		PricePerKg:    txn.PricePerKg,
		TotalAmount:   txn.TotalAmount,
		CommitteeFee:  txn.CommitteeFee,
		NetAmount:     txn.NetAmount,
		BalanceAfter:  txn.BalanceAfter,
	}
}
