package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AuthRateLimit AuthRateLimitConfig
	CORS          CORSConfig
	Password      PasswordConfig
	Ledger        LedgerConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Seed          SeedConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	if cfg.Ledger.UsesRedisLock() && !cfg.Redis.Configured() {
		return nil, fmt.Errorf("%s=%s requires a redis url or address", EnvLedgerLockMode, LedgerLockModeRedis)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BANKSAMPAH_APP_ENV" required:"true"`
	Port         string `envconfig:"BANKSAMPAH_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BANKSAMPAH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BANKSAMPAH_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"BANKSAMPAH_LOG_FORMAT" default:"json"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `envconfig:"BANKSAMPAH_TRUST_PROXY_HEADERS" default:"false"`
	// ReportTimeZone sets the calendar used for monthly and yearly reports.
	ReportTimeZone string `envconfig:"BANKSAMPAH_REPORT_TIMEZONE" default:"Asia/Jakarta"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BANKSAMPAH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BANKSAMPAH_DB_DSN"`
	Driver string `envconfig:"BANKSAMPAH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BANKSAMPAH_DB_HOST"`
	LegacyPort     int    `envconfig:"BANKSAMPAH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BANKSAMPAH_DB_USER"`
	LegacyPassword string `envconfig:"BANKSAMPAH_DB_PASSWORD"`
	LegacyName     string `envconfig:"BANKSAMPAH_DB_NAME"`
	LegacySSLMode  string `envconfig:"BANKSAMPAH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BANKSAMPAH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BANKSAMPAH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BANKSAMPAH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BANKSAMPAH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	ConnectAttempts int           `envconfig:"BANKSAMPAH_DB_CONNECT_ATTEMPTS" default:"5"`
	SlowQuery       time.Duration `envconfig:"BANKSAMPAH_DB_SLOW_QUERY" default:"500ms"`
}

// IsSQLite reports whether the local single-file driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"BANKSAMPAH_REDIS_URL"`
	Address      string        `envconfig:"BANKSAMPAH_REDIS_ADDR"`
	Password     string        `envconfig:"BANKSAMPAH_REDIS_PASSWORD"`
	DB           int           `envconfig:"BANKSAMPAH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BANKSAMPAH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BANKSAMPAH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BANKSAMPAH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BANKSAMPAH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BANKSAMPAH_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"BANKSAMPAH_REDIS_KEY_PREFIX" default:"bs"`
}

// Configured reports whether a Redis endpoint was supplied. Redis is
// optional for single-instance deployments using the local ledger lock.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret                 string `envconfig:"BANKSAMPAH_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"BANKSAMPAH_JWT_ISSUER" default:"banksampah"`
	ExpirationMinutes      int    `envconfig:"BANKSAMPAH_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"BANKSAMPAH_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

// RefreshTokenTTL is how long a refresh session survives in Redis.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"BANKSAMPAH_AUTH_LOGIN_WINDOW" default:"15m"`
	LoginIPLimit       int           `envconfig:"BANKSAMPAH_AUTH_LOGIN_IP_LIMIT" default:"30"`
	LoginUsernameLimit int           `envconfig:"BANKSAMPAH_AUTH_LOGIN_USERNAME_LIMIT" default:"10"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"BANKSAMPAH_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BANKSAMPAH_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BANKSAMPAH_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BANKSAMPAH_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BANKSAMPAH_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BANKSAMPAH_ARGON_KEY_LEN" default:"32"`
}

// LedgerConfig tunes per-resident serialization of balance mutations.
type LedgerConfig struct {
	LockMode        string        `envconfig:"BANKSAMPAH_LEDGER_LOCK_MODE" default:"local"`
	LockTTL         time.Duration `envconfig:"BANKSAMPAH_LEDGER_LOCK_TTL" default:"15s"`
	LockWait        time.Duration `envconfig:"BANKSAMPAH_LEDGER_LOCK_WAIT" default:"5s"`
	ConflictRetries int           `envconfig:"BANKSAMPAH_LEDGER_CONFLICT_RETRIES" default:"5"`
	RetryBase       time.Duration `envconfig:"BANKSAMPAH_LEDGER_RETRY_BASE" default:"10ms"`
}

func (l LedgerConfig) UsesRedisLock() bool {
	return strings.EqualFold(strings.TrimSpace(l.LockMode), LedgerLockModeRedis)
}

func (l LedgerConfig) validate() error {
	mode := strings.ToLower(strings.TrimSpace(l.LockMode))
	if mode != LedgerLockModeLocal && mode != LedgerLockModeRedis {
		return fmt.Errorf("%s must be %q or %q", EnvLedgerLockMode, LedgerLockModeLocal, LedgerLockModeRedis)
	}
	if l.ConflictRetries < 0 {
		return fmt.Errorf("%s must be >= 0", EnvLedgerConflictRetries)
	}
	return nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BANKSAMPAH_AUTO_MIGRATE" default:"false"`
	SeedOnStart bool `envconfig:"BANKSAMPAH_SEED_ON_START" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BANKSAMPAH_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BANKSAMPAH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BANKSAMPAH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LedgerTopic string `envconfig:"BANKSAMPAH_PUBSUB_LEDGER_TOPIC" default:"banksampah-ledger-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BANKSAMPAH_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BANKSAMPAH_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BANKSAMPAH_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"BANKSAMPAH_CRON_INTERVAL" default:"1h"`
	LockTTL             time.Duration `envconfig:"BANKSAMPAH_CRON_LOCK_TTL" default:"10m"`
	ReconcilePageSize   int           `envconfig:"BANKSAMPAH_CRON_RECONCILE_PAGE_SIZE" default:"200"`
	OutboxRetentionDays int           `envconfig:"BANKSAMPAH_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

type SeedConfig struct {
	AdminUsername string `envconfig:"BANKSAMPAH_SEED_ADMIN_USERNAME" default:"superadmin"`
	AdminPassword string `envconfig:"BANKSAMPAH_SEED_ADMIN_PASSWORD"`
	AdminFullName string `envconfig:"BANKSAMPAH_SEED_ADMIN_FULL_NAME" default:"Super Admin"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
