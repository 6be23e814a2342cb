package config

const EnvPrefix = "BANKSAMPAH"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "file:banksampah.db?_foreign_keys=on"

	LedgerLockModeLocal = "local"
	LedgerLockModeRedis = "redis"
)

const (
	EnvAppEnv   = "BANKSAMPAH_APP_ENV"
	EnvPort     = "BANKSAMPAH_APP_PORT"
	EnvLogLevel = "BANKSAMPAH_LOG_LEVEL"

	EnvDBDSN    = "BANKSAMPAH_DB_DSN"
	EnvDBDriver = "BANKSAMPAH_DB_DRIVER"
	EnvDBHost   = "BANKSAMPAH_DB_HOST"
	EnvDBUser   = "BANKSAMPAH_DB_USER"
	EnvDBName   = "BANKSAMPAH_DB_NAME"

	EnvRedisURL = "BANKSAMPAH_REDIS_URL"

	EnvJWTSecret  = "BANKSAMPAH_JWT_SECRET"
	EnvJWTIssuer  = "BANKSAMPAH_JWT_ISSUER"
	EnvJWTExpMins = "BANKSAMPAH_JWT_EXPIRATION_MINUTES"

	EnvLedgerLockMode        = "BANKSAMPAH_LEDGER_LOCK_MODE"
	EnvLedgerConflictRetries = "BANKSAMPAH_LEDGER_CONFLICT_RETRIES"

	EnvGCPProjectID      = "BANKSAMPAH_GCP_PROJECT_ID"
	EnvPubSubLedgerTopic = "BANKSAMPAH_PUBSUB_LEDGER_TOPIC"

	EnvCronOutboxRetentionDays = "BANKSAMPAH_CRON_OUTBOX_RETENTION_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
