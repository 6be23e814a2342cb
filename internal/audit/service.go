package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/metrics"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

const savepointName = "audit_append"

// Entry is a single audit record before persistence.
type Entry struct {
	ActorID uuid.UUID
	Action  enums.AuditAction
	Details string
}

// Details renders key=value pairs in a stable, human readable order.
func Details(pairs ...any) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v=%v", pairs[i], pairs[i+1])
	}
	return b.String()
}

type ServiceParams struct {
	Repository Repository
	Logger     *logger.Logger
	Metrics    *metrics.LedgerMetrics
	Now        func() time.Time
}

// Service appends to and reads from the audit trail. Appends never fail
// the caller: a failed write is reported as degraded instead.
type Service struct {
	repo    Repository
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repository, logg: params.Logger, metrics: params.Metrics, now: now}, nil
}

// AppendTx writes entry inside the caller's unit of work behind a savepoint.
// It reports true when the entry could not be stored; the caller's
// transaction stays usable either way.
func (s *Service) AppendTx(ctx context.Context, tx *gorm.DB, entry Entry) bool {
	row := s.row(entry)
	if err := tx.SavePoint(savepointName).Error; err != nil {
		s.degraded(ctx, row, err)
		return true
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		if rbErr := tx.RollbackTo(savepointName).Error; rbErr != nil {
			err = fmt.Errorf("%w (rollback to savepoint: %v)", err, rbErr)
		}
		s.degraded(ctx, row, err)
		return true
	}
	return false
}

// Append writes entry outside any unit of work.
func (s *Service) Append(ctx context.Context, entry Entry) bool {
	row := s.row(entry)
	if err := s.repo.Create(ctx, row); err != nil {
		s.degraded(ctx, row, err)
		return true
	}
	return false
}

func (s *Service) List(ctx context.Context, filter Filter, params pagination.Params) ([]models.AuditLogEntry, string, error) {
	rows, next, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit log")
	}
	return rows, next, nil
}

func (s *Service) row(entry Entry) *models.AuditLogEntry {
	return &models.AuditLogEntry{
		ActorID:   entry.ActorID,
		Action:    entry.Action,
		Details:   entry.Details,
		CreatedAt: s.now().UTC(),
	}
}

// degraded keeps the full record in the log stream so it can be replayed.
func (s *Service) degraded(ctx context.Context, row *models.AuditLogEntry, err error) {
	s.metrics.IncAuditDegraded(string(row.Action))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"audit_actor_id":   row.ActorID.String(),
		"audit_action":     row.Action,
		"audit_details":    row.Details,
		"audit_created_at": row.CreatedAt,
	})
	s.logg.Error(logCtx, "audit.degraded", err)
}
