// Package dbtest opens throwaway sqlite databases carrying the ledger schema.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	"github.com/angelmondragon/banksampah-backend/pkg/migrate"
)

// Open returns an isolated in-memory database migrated with the embedded
// goose migrations, foreign keys enforced. The pool is pinned to one
// connection so nested reads inside a transaction never wait on a second
// sqlite connection.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=on", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migrate.New(sqlDB, migrate.DialectSQLite, nil)
	if err != nil {
		t.Fatalf("migrator: %v", err)
	}
	if _, err := m.Up(context.Background()); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	return conn
}

// Actor inserts an active actor with role and returns its id. Ledger rows
// reference their processor, so tests need real actors behind those ids.
func Actor(t testing.TB, db *gorm.DB, role enums.ActorRole) uuid.UUID {
	t.Helper()
	id := uuid.New()
	SeedActor(t, db, id, role)
	return id
}

// SeedActor inserts an active actor under a caller-chosen id.
func SeedActor(t testing.TB, db *gorm.DB, id uuid.UUID, role enums.ActorRole) {
	t.Helper()
	actor := models.Resident{
		ID:           id,
		Username:     string(role) + "-" + id.String()[:8],
		PasswordHash: "x",
		FullName:     string(role),
		Role:         role,
		Active:       true,
	}
	if err := db.Create(&actor).Error; err != nil {
		t.Fatalf("create actor: %v", err)
	}
}

// Category inserts a category at price and returns its id.
func Category(t testing.TB, db *gorm.DB, name string, price int64) uuid.UUID {
	t.Helper()
	category := models.Category{Name: name, PricePerKg: price}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category.ID
}
