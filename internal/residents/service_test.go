package residents

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/internal/audit"
	"github.com/angelmondragon/banksampah-backend/internal/ledger"
	"github.com/angelmondragon/banksampah-backend/pkg/auth"
	"github.com/angelmondragon/banksampah-backend/pkg/config"
	dbpkg "github.com/angelmondragon/banksampah-backend/pkg/db"
	"github.com/angelmondragon/banksampah-backend/pkg/db/dbtest"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
	"github.com/angelmondragon/banksampah-backend/pkg/security"
)

var (
	superAdmin = auth.Actor{ID: uuid.New(), Role: enums.ActorRoleSuperAdmin}
	committee  = auth.Actor{ID: uuid.New(), Role: enums.ActorRoleCommittee}
)

// fast argon2 settings keep the suite quick.
var testPasswordConfig = config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 8, ArgonKeyLen: 16}

func newTestService(t *testing.T) (*Service, *ledger.Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	dbtest.SeedActor(t, db, superAdmin.ID, superAdmin.Role)
	dbtest.SeedActor(t, db, committee.ID, committee.Role)
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
	auditSvc, err := audit.NewService(audit.ServiceParams{Repository: audit.NewRepository(db), Logger: logg})
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		DB:         dbpkg.Wrap(db),
		Repository: ledger.NewRepository(db),
		Locker:     ledger.NewKeyedMutex(),
		Logger:     logg,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repository:     NewRepository(db),
		Ledger:         ledgerSvc,
		Audit:          auditSvc,
		Logger:         logg,
		PasswordConfig: testPasswordConfig,
	})
	require.NoError(t, err)
	return svc, ledgerSvc, db
}

func strPtr(v string) *string { return &v }

func TestRegister(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, superAdmin, RegisterInput{
		Username: "  Siti ",
		Password: "rahasia123",
		FullName: "Siti Aminah",
		RT:       strPtr(" 03 "),
		Nickname: strPtr("  "),
	})
	require.NoError(t, err)
	assert.False(t, res.AuditDegraded)
	assert.Empty(t, res.TemporaryPassword)

	r := res.Resident
	assert.Equal(t, "siti", r.Username)
	assert.Equal(t, enums.ActorRoleResident, r.Role)
	assert.Equal(t, int64(0), r.Balance)
	assert.True(t, r.Active)
	require.NotNil(t, r.RT)
	assert.Equal(t, "03", *r.RT)
	assert.Nil(t, r.Nickname)

	ok, err := security.VerifyPassword("rahasia123", r.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	var entries []models.AuditLogEntry
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.AuditActionCreateUser, entries[0].Action)
}

func TestRegisterGeneratesPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	res, err := svc.Register(context.Background(), superAdmin, RegisterInput{
		Username: "budi",
		FullName: "Budi",
		Role:     enums.ActorRoleCommittee,
	})
	require.NoError(t, err)
	require.Len(t, res.TemporaryPassword, tempPasswordLength)

	ok, err := security.VerifyPassword(res.TemporaryPassword, res.Resident.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, enums.ActorRoleCommittee, res.Resident.Role)
}

func TestRegisterRejections(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, committee, RegisterInput{Username: "a", FullName: "A"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = svc.Register(ctx, superAdmin, RegisterInput{Username: "", FullName: "A"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Register(ctx, superAdmin, RegisterInput{Username: "a", FullName: "A", Role: "owner"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Register(ctx, superAdmin, RegisterInput{Username: "a", FullName: "A", Password: "x"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, superAdmin, RegisterInput{Username: "A", FullName: "A", Password: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestGetAndExists(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	res, err := svc.Register(ctx, superAdmin, RegisterInput{Username: "dewi", FullName: "Dewi", Password: "x"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, res.Resident.ID)
	require.NoError(t, err)
	assert.Equal(t, "dewi", got.Username)

	_, err = svc.Get(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	exists, err := svc.Exists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListFiltersAndPages(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"ani", "bayu", "citra"} {
		_, err := svc.Register(ctx, superAdmin, RegisterInput{Username: name, FullName: name, Password: "x"})
		require.NoError(t, err)
	}
	_, err := svc.Register(ctx, superAdmin, RegisterInput{Username: "pak-rt", FullName: "Pak RT", Password: "x", Role: enums.ActorRoleCommittee})
	require.NoError(t, err)

	role := enums.ActorRoleResident
	first, next, err := svc.List(ctx, committee, Filter{Role: &role}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, first, 2)
	require.NotEmpty(t, next)

	second, next, err := svc.List(ctx, committee, Filter{Role: &role}, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	assert.Len(t, second, 1)
	assert.Empty(t, next)

	seen := map[string]bool{}
	for _, r := range append(first, second...) {
		seen[r.Username] = true
	}
	assert.Equal(t, map[string]bool{"ani": true, "bayu": true, "citra": true}, seen)

	matches, _, err := svc.List(ctx, committee, Filter{Search: "Pak"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "pak-rt", matches[0].Username)

	_, _, err = svc.List(ctx, auth.Actor{ID: uuid.New(), Role: enums.ActorRoleResident}, Filter{}, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestDeactivate(t *testing.T) {
	svc, ledgerSvc, db := newTestService(t)
	ctx := context.Background()
	res, err := svc.Register(ctx, superAdmin, RegisterInput{Username: "eko", FullName: "Eko", Password: "x"})
	require.NoError(t, err)
	id := res.Resident.ID

	_, err = ledgerSvc.ApplyDelta(ctx, id, 1500, nil)
	require.NoError(t, err)

	_, err = svc.Deactivate(ctx, superAdmin, id)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = ledgerSvc.ApplyDelta(ctx, id, -1500, ledger.NonNegative)
	require.NoError(t, err)

	deactivated, err := svc.Deactivate(ctx, superAdmin, id)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	_, err = ledgerSvc.ApplyDelta(ctx, id, 100, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var count int64
	require.NoError(t, db.Model(&models.AuditLogEntry{}).Where("action = ?", enums.AuditActionDeactivateUser).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = svc.Deactivate(ctx, superAdmin, superAdmin.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = svc.Deactivate(ctx, superAdmin, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSeedSuperAdminIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	input := SeedAdminInput{Username: "admin", Password: "admin-secret"}
	before, err := svc.CountByRole(ctx)
	require.NoError(t, err)

	created, err := svc.SeedSuperAdmin(ctx, input)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.SeedSuperAdmin(ctx, input)
	require.NoError(t, err)
	assert.False(t, created)

	counts, err := svc.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, before[enums.ActorRoleSuperAdmin]+1, counts[enums.ActorRoleSuperAdmin])
}
