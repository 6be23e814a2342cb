package residents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/internal/audit"
	"github.com/angelmondragon/banksampah-backend/pkg/auth"
	"github.com/angelmondragon/banksampah-backend/pkg/config"
	dbpkg "github.com/angelmondragon/banksampah-backend/pkg/db"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
	"github.com/angelmondragon/banksampah-backend/pkg/security"
)

const tempPasswordLength = 12

// balanceLocker serializes directory changes that depend on the balance
// with in-flight ledger mutations for the same resident.
type balanceLocker interface {
	RunLocked(ctx context.Context, residentID uuid.UUID, fn func(tx *gorm.DB) error) error
}

type auditor interface {
	Append(ctx context.Context, entry audit.Entry) bool
	AppendTx(ctx context.Context, tx *gorm.DB, entry audit.Entry) bool
}

type ServiceParams struct {
	Repository     Repository
	Ledger         balanceLocker
	Audit          auditor
	Logger         *logger.Logger
	PasswordConfig config.PasswordConfig
}

type Service struct {
	repo        Repository
	ledger      balanceLocker
	audit       auditor
	logg        *logger.Logger
	passwordCfg config.PasswordConfig
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("resident repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:        params.Repository,
		ledger:      params.Ledger,
		audit:       params.Audit,
		logg:        params.Logger,
		passwordCfg: params.PasswordConfig,
	}, nil
}

type RegisterInput struct {
	Username string
	Password string
	FullName string
	Nickname *string
	Address  *string
	RT       *string
	RW       *string
	WhatsApp *string
	Role     enums.ActorRole
}

type RegisterResult struct {
	Resident *models.Resident `json:"resident"`
	// TemporaryPassword is set only when the caller did not supply one.
	TemporaryPassword string `json:"temporary_password,omitempty"`
	AuditDegraded     bool   `json:"audit_degraded"`
}

// Register creates an actor record with a salted argon2id credential and a
// zero balance.
func (s *Service) Register(ctx context.Context, actor auth.Actor, input RegisterInput) (*RegisterResult, error) {
	if err := actor.Require(auth.CapManageResidents); err != nil {
		return nil, err
	}
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full_name is required")
	}
	role := input.Role
	if role == "" {
		role = enums.ActorRoleResident
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}

	result := &RegisterResult{}
	password := input.Password
	if password == "" {
		generated, err := security.GenerateTempPassword(tempPasswordLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
		}
		password = generated
		result.TemporaryPassword = generated
	}

	resident, err := s.create(ctx, username, password, fullName, role, input)
	if err != nil {
		return nil, err
	}
	result.Resident = resident
	result.AuditDegraded = s.audit.Append(ctx, audit.Entry{
		ActorID: actor.ID,
		Action:  enums.AuditActionCreateUser,
		Details: audit.Details("username", username, "role", role),
	})
	return result, nil
}

func (s *Service) create(ctx context.Context, username, password, fullName string, role enums.ActorRole, input RegisterInput) (*models.Resident, error) {
	existing, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check username")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already exists")
	}

	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	resident := &models.Resident{
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		Nickname:     trimmed(input.Nickname),
		Address:      trimmed(input.Address),
		RT:           trimmed(input.RT),
		RW:           trimmed(input.RW),
		WhatsApp:     trimmed(input.WhatsApp),
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, resident); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create resident")
	}
	return resident, nil
}

// Get returns the actor or NOT_FOUND.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Resident, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resident id is required")
	}
	resident, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load resident")
	}
	if resident == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "resident not found").WithDetails(map[string]any{"resident_id": id})
	}
	return resident, nil
}

func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.Get(ctx, id)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) List(ctx context.Context, actor auth.Actor, filter Filter, params pagination.Params) ([]models.Resident, string, error) {
	if err := actor.Require(auth.CapViewBalances); err != nil {
		return nil, "", err
	}
	filter.Search = strings.TrimSpace(filter.Search)
	rows, next, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list residents")
	}
	return rows, next, nil
}

// Deactivate freezes an account. Accounts still holding money are refused
// so no balance is stranded.
func (s *Service) Deactivate(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Resident, error) {
	if err := actor.Require(auth.CapManageResidents); err != nil {
		return nil, err
	}
	if id == actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "actors cannot deactivate themselves")
	}

	var out *models.Resident
	err := s.ledger.RunLocked(ctx, id, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		resident, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load resident")
		}
		if resident == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "resident not found")
		}
		if !resident.Active {
			out = resident
			return nil
		}
		if resident.Balance != 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "resident still holds a balance").
				WithDetails(map[string]any{"balance": resident.Balance})
		}
		if err := repo.SetActive(ctx, id, false); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate resident")
		}
		resident.Active = false
		out = resident
		s.audit.AppendTx(ctx, tx, audit.Entry{
			ActorID: actor.ID,
			Action:  enums.AuditActionDeactivateUser,
			Details: audit.Details("resident", id, "username", resident.Username),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type SeedAdminInput struct {
	Username string
	Password string
	FullName string
}

// SeedSuperAdmin creates the bootstrap super admin when it is missing.
// It reports whether a row was created.
func (s *Service) SeedSuperAdmin(ctx context.Context, input SeedAdminInput) (bool, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" || input.Password == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "seed admin username and password are required")
	}
	existing, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check seed admin")
	}
	if existing != nil {
		return false, nil
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		fullName = "Super Admin"
	}
	if _, err := s.create(ctx, username, input.Password, fullName, enums.ActorRoleSuperAdmin, RegisterInput{}); err != nil {
		return false, err
	}
	s.logg.Info(s.logg.WithField(ctx, "username", username), "residents.super_admin_seeded")
	return true, nil
}

func (s *Service) CountByRole(ctx context.Context) (map[enums.ActorRole]int64, error) {
	counts, err := s.repo.CountByRole(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count residents")
	}
	return counts, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
