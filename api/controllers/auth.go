package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/banksampah-backend/api/middleware"
	"github.com/angelmondragon/banksampah-backend/api/responses"
	"github.com/angelmondragon/banksampah-backend/api/validators"
	"github.com/angelmondragon/banksampah-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
)

// tokenHeader mirrors the issued access token for clients that cannot read
// the body before redirecting.
const tokenHeader = "X-BS-Token"

var errAuthUnavailable = pkgerrors.New(pkgerrors.CodeDependency, "auth service unavailable")

// AuthLogin trades a username and password for an access token.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return issueTokens(svc, logg, func(ctx context.Context, body auth.LoginRequest) (*auth.LoginResponse, error) {
		return svc.Login(ctx, body)
	})
}

// AuthRefresh rotates the refresh token and mints a new access token.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return issueTokens(svc, logg, func(ctx context.Context, body auth.RefreshRequest) (*auth.LoginResponse, error) {
		return svc.Refresh(ctx, body)
	})
}

func issueTokens[T any](svc auth.Service, logg *logger.Logger, exchange func(context.Context, T) (*auth.LoginResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, errAuthUnavailable)
			return
		}
		var body T
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := exchange(ctx, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set(tokenHeader, result.AccessToken)
		responses.WriteSuccess(w, result)
	}
}

// AuthLogout revokes the session behind the presented access token.
func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, errAuthUnavailable)
			return
		}
		sessionID := middleware.SessionIDFromContext(ctx)
		if sessionID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
			return
		}
		if err := svc.Logout(ctx, sessionID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}
