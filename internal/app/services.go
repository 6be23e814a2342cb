// Package app assembles the ledger service graph shared by the binaries.
package app

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/banksampah-backend/internal/audit"
	"github.com/angelmondragon/banksampah-backend/internal/categories"
	"github.com/angelmondragon/banksampah-backend/internal/earnings"
	"github.com/angelmondragon/banksampah-backend/internal/ledger"
	"github.com/angelmondragon/banksampah-backend/internal/movements"
	"github.com/angelmondragon/banksampah-backend/internal/reports"
	"github.com/angelmondragon/banksampah-backend/internal/residents"
	"github.com/angelmondragon/banksampah-backend/internal/transactions"
	"github.com/angelmondragon/banksampah-backend/pkg/config"
	"github.com/angelmondragon/banksampah-backend/pkg/db"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/metrics"
	"github.com/angelmondragon/banksampah-backend/pkg/outbox"
	"github.com/angelmondragon/banksampah-backend/pkg/redis"
)

type Params struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	// Redis is required only when the ledger lock mode is redis.
	Redis      *redis.Client
	Registerer prometheus.Registerer
}

type Services struct {
	Metrics      *metrics.LedgerMetrics
	Outbox       *outbox.Service
	Audit        *audit.Service
	Ledger       *ledger.Service
	Categories   *categories.Service
	Residents    *residents.Service
	Transactions *transactions.Service
	Movements    *movements.Service
	Earnings     *earnings.Service
	Reports      *reports.Service
}

// NewLocker picks the per-resident lock: in-process for a single instance,
// Redis when several API replicas share the database.
func NewLocker(cfg config.LedgerConfig, client *redis.Client) (ledger.Locker, error) {
	if !cfg.UsesRedisLock() {
		return ledger.NewKeyedMutex(), nil
	}
	if client == nil {
		return nil, fmt.Errorf("redis ledger lock requires a redis client")
	}
	return ledger.NewRedisLocker(client, cfg.LockTTL, cfg.LockWait), nil
}

func Build(ctx context.Context, p Params) (*Services, error) {
	if p.Config == nil || p.Logger == nil || p.DB == nil {
		return nil, fmt.Errorf("config, logger and db are required")
	}
	cfg, logg, conn := p.Config, p.Logger, p.DB.DB()

	locker, err := NewLocker(cfg.Ledger, p.Redis)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.App.ReportTimeZone)
	if err != nil {
		return nil, fmt.Errorf("report time zone: %w", err)
	}

	out := &Services{
		Metrics: metrics.NewLedgerMetrics(p.Registerer),
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logg),
	}

	if out.Audit, err = audit.NewService(audit.ServiceParams{
		Repository: audit.NewRepository(conn),
		Logger:     logg,
		Metrics:    out.Metrics,
	}); err != nil {
		return nil, fmt.Errorf("audit service: %w", err)
	}

	if out.Ledger, err = ledger.NewService(ledger.ServiceParams{
		DB:         p.DB,
		Repository: ledger.NewRepository(conn),
		Locker:     locker,
		Logger:     logg,
		Metrics:    out.Metrics,
		Config:     cfg.Ledger,
	}); err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	if out.Categories, err = categories.NewService(categories.ServiceParams{
		DB:         p.DB,
		Repository: categories.NewRepository(conn),
		Audit:      out.Audit,
		Outbox:     out.Outbox,
		Logger:     logg,
	}); err != nil {
		return nil, fmt.Errorf("category service: %w", err)
	}

	if out.Residents, err = residents.NewService(residents.ServiceParams{
		Repository:     residents.NewRepository(conn),
		Ledger:         out.Ledger,
		Audit:          out.Audit,
		Logger:         logg,
		PasswordConfig: cfg.Password,
	}); err != nil {
		return nil, fmt.Errorf("resident service: %w", err)
	}

	if out.Transactions, err = transactions.NewService(transactions.ServiceParams{
		Repository: transactions.NewRepository(conn),
		Ledger:     out.Ledger,
		Categories: out.Categories,
		Audit:      out.Audit,
		Outbox:     out.Outbox,
		Logger:     logg,
		Metrics:    out.Metrics,
	}); err != nil {
		return nil, fmt.Errorf("transaction service: %w", err)
	}

	if out.Movements, err = movements.NewService(movements.ServiceParams{
		Repository: movements.NewRepository(conn),
		Ledger:     out.Ledger,
		Audit:      out.Audit,
		Outbox:     out.Outbox,
		Logger:     logg,
		Metrics:    out.Metrics,
	}); err != nil {
		return nil, fmt.Errorf("movement service: %w", err)
	}

	if out.Earnings, err = earnings.NewService(earnings.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("earnings service: %w", err)
	}

	if out.Reports, err = reports.NewService(reports.NewRepository(conn), loc, nil); err != nil {
		return nil, fmt.Errorf("report service: %w", err)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"ledger_lock": cfg.Ledger.LockMode,
		"report_tz":   loc.String(),
	}), "app.services.ready")
	return out, nil
}
