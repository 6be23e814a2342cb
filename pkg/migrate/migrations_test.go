package migrate_test

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	"github.com/angelmondragon/banksampah-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestLedgerMigrationsCarryConstraints(t *testing.T) {
	cases := map[string][]string{
		"*_create_users.sql": {
			"CREATE TABLE IF NOT EXISTS users",
			"CHECK (balance >= 0)",
			"balance_version BIGINT NOT NULL DEFAULT 0",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username",
		},
		"*_create_transactions.sql": {
			"FOREIGN KEY (resident_id) REFERENCES users(id)",
			"CHECK (net_amount = total_amount - committee_fee)",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_committee_earnings_transaction",
			"DROP TABLE IF EXISTS committee_earnings",
		},
		"*_create_financial_movements.sql": {
			"CHECK (type IN ('deposit', 'withdrawal'))",
			"CHECK (amount > 0)",
		},
	}
	for pattern, checks := range cases {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		require.NoError(t, err)
		require.Len(t, matches, 1, pattern)
		data, err := os.ReadFile(matches[0])
		require.NoError(t, err)
		for _, sub := range checks {
			require.True(t, strings.Contains(string(data), sub), "%s missing %q", pattern, sub)
		}
	}
}

func TestMigrationsApplyAndRollBackOnSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "ledger.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	m, err := migrate.New(db, migrate.DialectSQLite, os.DirFS("migrations"))
	require.NoError(t, err)
	applied, err := m.Up(ctx)
	require.NoError(t, err)
	require.Positive(t, applied)

	_, err = db.Exec(`INSERT INTO users (id, username, password_hash, full_name, balance, created_at, updated_at)
		VALUES ('7f8c1a52-0000-4000-8000-000000000001', 'budi', 'x', 'Budi', -1, '2026-01-01', '2026-01-01')`)
	require.Error(t, err, "negative balance must be rejected")

	_, err = db.Exec(`INSERT INTO financial_movements (id, resident_id, type, amount, balance_before, balance_after, processed_by, created_at)
		VALUES ('7f8c1a52-0000-4000-8000-000000000002', '7f8c1a52-0000-4000-8000-0000000000ff', 'deposit', 10, 0, 10,
		'7f8c1a52-0000-4000-8000-0000000000ff', '2026-01-01')`)
	require.Error(t, err, "movement for unknown resident must be rejected")

	require.NoError(t, m.To(ctx, 20260105090100))
	version, err := m.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(20260105090100), version)
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'transactions'`).Scan(&count))
	require.Zero(t, count)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'categories'`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Resident Notes!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_resident_notes.sql"))
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, migrate.ValidateDir(dir))
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	require.NoError(t, migrate.ValidateFS(migrate.Embedded()))

	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	require.NoError(t, err)
	require.Len(t, embedded, len(onDisk))
}

func TestEmbeddedMigrationsApplyOnSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "embedded.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	m, err := migrate.New(db, migrate.DialectSQLite, nil)
	require.NoError(t, err)
	_, err = m.Up(ctx)
	require.NoError(t, err)

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		require.True(t, s.Applied, s.Name)
	}

	again, err := m.Up(ctx)
	require.NoError(t, err)
	require.Zero(t, again)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'outbox_events'`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestValidateDirRejectsUnbalancedStatements(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_broken.sql"), []byte(body), 0o644))
	require.Error(t, migrate.ValidateDir(dir))
}

func TestSQLiteTimestampsScanAsTime(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "times.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	m, err := migrate.New(db, migrate.DialectSQLite, nil)
	require.NoError(t, err)
	_, err = m.Up(ctx)
	require.NoError(t, err)

	created := time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)
	_, err = db.Exec(`INSERT INTO categories (id, name, price_per_kg, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		"7f8c1a52-0000-4000-8000-000000000010", "Kardus", 1500, created, created)
	require.NoError(t, err)

	var got time.Time
	require.NoError(t, db.QueryRow(`SELECT created_at FROM categories`).Scan(&got))
	require.True(t, created.Equal(got), "got %v", got)
}

func TestAuditLogAcceptsEveryAction(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_audit_log.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	for _, action := range enums.AuditActions() {
		require.Contains(t, string(data), "'"+string(action)+"'")
	}
}
