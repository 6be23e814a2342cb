package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/banksampah-backend/internal/audit"
	"github.com/angelmondragon/banksampah-backend/internal/residents"
	pkgAuth "github.com/angelmondragon/banksampah-backend/pkg/auth"
	"github.com/angelmondragon/banksampah-backend/pkg/auth/session"
	"github.com/angelmondragon/banksampah-backend/pkg/config"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*LoginResponse, error)
	Logout(ctx context.Context, sessionID string) error
}

type actorRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.Resident, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Resident, error)
}

type auditAppender interface {
	Append(ctx context.Context, entry audit.Entry) bool
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, actorID uuid.UUID) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (*session.Rotation, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
// Sessions is optional: without it tokens are stateless and cannot be
// refreshed or revoked. Audit, when set, records every successful login.
type ServiceParams struct {
	Actors    actorRepository
	Sessions  sessionManager
	Audit     auditAppender
	JWTConfig config.JWTConfig
	Now       func() time.Time
}

type service struct {
	actors   actorRepository
	sessions sessionManager
	audit    auditAppender
	jwtCfg   config.JWTConfig
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Actors == nil {
		return nil, fmt.Errorf("actor repository is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		actors:   params.Actors,
		sessions: params.Sessions,
		audit:    params.Audit,
		jwtCfg:   params.JWTConfig,
		now:      now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	actor, err := s.actors.FindByUsername(ctx, username)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup actor")
	}
	if actor == nil {
		security.BurnVerification(req.Password)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	valid, err := security.VerifyPassword(req.Password, actor.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !actor.Active {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	resp, err := s.issue(ctx, actor)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.Append(ctx, audit.Entry{
			ActorID: actor.ID,
			Action:  enums.AuditActionLogin,
			Details: audit.Details("session", resp.SessionID, "role", actor.Role),
		})
	}
	return resp, nil
}

func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*LoginResponse, error) {
	if s.sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "refresh sessions are disabled")
	}
	rotation, err := s.sessions.Rotate(ctx, strings.TrimSpace(req.SessionID), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	actor, err := s.actors.FindByID(ctx, rotation.ActorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup actor")
	}
	if actor == nil || !actor.Active {
		_ = s.sessions.Revoke(ctx, rotation.AccessID)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := s.now().UTC()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: actor.ID,
		Role:   actor.Role,
		JTI:    rotation.AccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &LoginResponse{
		AccessToken:  token,
		RefreshToken: rotation.RefreshToken,
		SessionID:    rotation.AccessID,
		ExpiresAt:    now.Add(s.jwtCfg.Expiration()),
		Actor:        residents.FromModel(actor),
	}, nil
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	if s.sessions == nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) issue(ctx context.Context, actor *models.Resident) (*LoginResponse, error) {
	now := s.now().UTC()
	accessID := session.NewAccessID()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: actor.ID,
		Role:   actor.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	resp := &LoginResponse{
		AccessToken: token,
		SessionID:   accessID,
		ExpiresAt:   now.Add(s.jwtCfg.Expiration()),
		Actor:       residents.FromModel(actor),
	}
	if s.sessions != nil {
		refresh, err := s.sessions.Generate(ctx, accessID, actor.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
		}
		resp.RefreshToken = refresh
	}
	return resp, nil
}
