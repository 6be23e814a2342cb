package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/banksampah-backend/api/controllers"
	"github.com/angelmondragon/banksampah-backend/api/middleware"
	"github.com/angelmondragon/banksampah-backend/internal/audit"
	"github.com/angelmondragon/banksampah-backend/internal/auth"
	"github.com/angelmondragon/banksampah-backend/internal/categories"
	"github.com/angelmondragon/banksampah-backend/internal/earnings"
	"github.com/angelmondragon/banksampah-backend/internal/ledger"
	"github.com/angelmondragon/banksampah-backend/internal/movements"
	"github.com/angelmondragon/banksampah-backend/internal/reports"
	"github.com/angelmondragon/banksampah-backend/internal/residents"
	"github.com/angelmondragon/banksampah-backend/internal/transactions"
	pkgAuth "github.com/angelmondragon/banksampah-backend/pkg/auth"
	"github.com/angelmondragon/banksampah-backend/pkg/auth/session"
	"github.com/angelmondragon/banksampah-backend/pkg/config"
	"github.com/angelmondragon/banksampah-backend/pkg/db"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/redis"
)

// Dependencies carries everything the router wires into handlers. Redis and
// Sessions are optional: without Redis, idempotency replay and login rate
// limiting are disabled.
type Dependencies struct {
	DB       db.Pinger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker
	Gatherer prometheus.Gatherer

	Auth         auth.Service
	Ledger       *ledger.Service
	Categories   *categories.Service
	Residents    *residents.Service
	Transactions *transactions.Service
	Movements    *movements.Service
	Earnings     *earnings.Service
	Audit        *audit.Service
	Reports      *reports.Service
}

func passthrough(next http.Handler) http.Handler { return next }

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	if cfg.App.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	var (
		cache      = deps.readyCache()
		loginLimit = passthrough
		replay     = func(middleware.IdempotencyPolicy) func(http.Handler) http.Handler { return passthrough }
	)
	if deps.Redis != nil {
		replay = func(p middleware.IdempotencyPolicy) func(http.Handler) http.Handler {
			return middleware.Idempotency(deps.Redis, logg, p)
		}
		loginLimit = middleware.AuthRateLimit(middleware.NewAuthRateLimitPolicy(
			"login",
			cfg.AuthRateLimit.LoginWindow,
			cfg.AuthRateLimit.LoginIPLimit,
			cfg.AuthRateLimit.LoginUsernameLimit,
		), deps.Redis, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, cache))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	can := func(capability pkgAuth.Capability) func(http.Handler) http.Handler {
		return middleware.RequireCapability(capability, logg)
	}
	// Replay sits on the endpoint so the full route pattern is resolved.
	write := func(capability pkgAuth.Capability) chi.Middlewares {
		return chi.Middlewares{can(capability), replay(middleware.AdminIdempotency)}
	}
	money := func(capability pkgAuth.Capability) chi.Middlewares {
		return chi.Middlewares{can(capability), replay(middleware.MoneyIdempotency)}
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimit).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.With(loginLimit).Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
			r.With(middleware.Auth(cfg.JWT, deps.Sessions, logg)).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))

			r.Get("/me", controllers.Me(deps.Residents, logg))

			r.Route("/categories", func(r chi.Router) {
				r.With(can(pkgAuth.CapViewCatalog)).Get("/", controllers.CategoryList(deps.Categories, logg))
				r.With(write(pkgAuth.CapSetPrices)...).Post("/", controllers.CategoryCreate(deps.Categories, logg))
				r.With(write(pkgAuth.CapSetPrices)...).Put("/{categoryId}/price", controllers.CategoryUpdatePrice(deps.Categories, logg))
				r.With(can(pkgAuth.CapRecordTransactions)).Get("/{categoryId}/quote", controllers.CategoryQuote(deps.Transactions, logg))
			})

			r.Route("/residents", func(r chi.Router) {
				r.With(can(pkgAuth.CapManageResidents)).Get("/", controllers.ResidentList(deps.Residents, logg))
				r.With(write(pkgAuth.CapManageResidents)...).Post("/", controllers.ResidentRegister(deps.Residents, logg))
				r.Get("/{residentId}", controllers.ResidentDetail(deps.Residents, logg))
				r.Get("/{residentId}/balance", controllers.ResidentBalance(deps.Ledger, logg))
				r.With(can(pkgAuth.CapReconcile)).Get("/{residentId}/reconciliation", controllers.ResidentReconciliation(deps.Ledger, logg))
				r.With(write(pkgAuth.CapManageResidents)...).Post("/{residentId}/deactivate", controllers.ResidentDeactivate(deps.Residents, logg))
			})

			r.Route("/transactions", func(r chi.Router) {
				r.With(money(pkgAuth.CapRecordTransactions)...).Post("/", controllers.TransactionRecord(deps.Transactions, logg))
				r.With(money(pkgAuth.CapRecordTransactions)...).Post("/batch", controllers.TransactionRecordBatch(deps.Transactions, logg))
				r.With(can(pkgAuth.CapViewLedger)).Get("/", controllers.TransactionList(deps.Transactions, logg))
				r.With(can(pkgAuth.CapViewLedger)).Get("/{transactionId}", controllers.TransactionDetail(deps.Transactions, logg))
			})

			r.Route("/movements", func(r chi.Router) {
				r.With(money(pkgAuth.CapMoveFunds)...).Post("/deposit", controllers.MovementDeposit(deps.Movements, logg))
				r.With(money(pkgAuth.CapMoveFunds)...).Post("/withdraw", controllers.MovementWithdraw(deps.Movements, logg))
				r.With(can(pkgAuth.CapViewLedger)).Get("/", controllers.MovementList(deps.Movements, logg))
			})

			r.Route("/earnings", func(r chi.Router) {
				r.With(can(pkgAuth.CapViewReports)).Get("/", controllers.EarningsList(deps.Earnings, logg))
				r.With(can(pkgAuth.CapViewReports)).Get("/total", controllers.EarningsTotal(deps.Earnings, logg))
				r.With(can(pkgAuth.CapReconcile)).Get("/consistency", controllers.EarningsConsistency(deps.Earnings, logg))
			})

			r.With(can(pkgAuth.CapViewAudit)).Get("/audit", controllers.AuditList(deps.Audit, logg))

			r.Route("/reports", func(r chi.Router) {
				r.Use(can(pkgAuth.CapViewReports))
				r.Get("/monthly", controllers.ReportMonthly(deps.Reports, logg))
				r.Get("/yearly", controllers.ReportYearly(deps.Reports, logg))
				r.Get("/categories", controllers.ReportCategories(deps.Reports, logg))
				r.Get("/overview", controllers.ReportOverview(deps.Reports, logg))
				r.Get("/residents/{residentId}", controllers.ReportResident(deps.Reports, logg))
			})
		})
	})

	return r
}

// readyCache avoids handing a typed nil client to the readiness probe.
func (d Dependencies) readyCache() interface {
	Ping(ctx context.Context) error
} {
	if d.Redis == nil {
		return nil
	}
	return d.Redis
}
