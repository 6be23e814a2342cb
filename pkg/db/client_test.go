package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/config"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	conn := newTestDB(t)
	client := Wrap(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	var count int64
	require.NoError(t, conn.Model(&testModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWrapSharesConnection(t *testing.T) {
	conn := newTestDB(t)
	client := Wrap(conn)

	require.Same(t, conn, client.DB())
	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.DB().Create(&testModel{Name: "shared"}).Error)

	var count int64
	require.NoError(t, conn.Model(&testModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := newTestDB(t)
	client := Wrap(conn)

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&testModel{Name: "doomed"})
			panic("kaboom")
		})
	})

	var count int64
	require.NoError(t, conn.Model(&testModel{}).Where("name = ?", "doomed").Count(&count).Error)
	assert.Zero(t, count)
}

func TestNewSQLiteEnablesForeignKeys(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    "file:client_new_test?mode=memory&cache=shared",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, "sqlite", client.DB().Dialector.Name())
	require.NoError(t, client.Ping(context.Background()))

	var enabled int
	require.NoError(t, client.DB().Raw("PRAGMA foreign_keys").Scan(&enabled).Error)
	assert.Equal(t, 1, enabled)
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{Driver: "postgres"}, nil)
	assert.EqualError(t, err, "database DSN is required")
}

func TestQueryLoggerSkipsFastAndNotFound(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	ql := newQueryLogger(logg, 100*time.Millisecond)
	fc := func() (string, int64) { return "SELECT 1", 1 }

	ql.Trace(context.Background(), time.Now(), fc, nil)
	ql.Trace(context.Background(), time.Now(), fc, gorm.ErrRecordNotFound)
	assert.Zero(t, buf.Len())

	ql.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
	assert.Contains(t, buf.String(), "db.query.slow")

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), fc, errors.New("syntax error"))
	assert.Contains(t, buf.String(), "db.query.failed")
	assert.Contains(t, buf.String(), "SELECT 1")
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error must not be a violation")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: categories.name"), "") {
		t.Fatal("expected sqlite unique message to match")
	}
	if !IsUniqueViolation(errors.New(`duplicate key value violates unique constraint "categories_name_key"`), "categories_name_key") {
		t.Fatal("expected named postgres constraint to match")
	}
	if IsUniqueViolation(errors.New("connection refused"), "") {
		t.Fatal("unexpected match")
	}
}

func TestIsUniqueViolationTypedErrors(t *testing.T) {
	pgErr := fmt.Errorf("insert category: %w", &pgconn.PgError{Code: "23505", ConstraintName: "categories_name_key"})
	if !IsUniqueViolation(pgErr, "") || !IsUniqueViolation(pgErr, "categories_name_key") {
		t.Fatal("expected typed postgres violation to match")
	}
	if IsUniqueViolation(pgErr, "residents_username_key") {
		t.Fatal("different constraint must not match")
	}
	fkErr := &pgconn.PgError{Code: "23503", ConstraintName: "transactions_resident_id_fkey"}
	if IsUniqueViolation(fkErr, "") {
		t.Fatal("foreign key violation is not a unique violation")
	}
}

func TestUniqueViolationFromSQLite(t *testing.T) {
	conn := newTestDB(t)
	type uniqueModel struct {
		ID   int
		Name string `gorm:"uniqueIndex"`
	}
	if err := conn.AutoMigrate(&uniqueModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := conn.Create(&uniqueModel{Name: "kardus"}).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := conn.Create(&uniqueModel{Name: "kardus"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
}
