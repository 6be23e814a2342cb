package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/banksampah-backend/api/middleware"
	"github.com/angelmondragon/banksampah-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
)

type stubAuthService struct {
	login     *auth.LoginResponse
	err       error
	loggedOut string
}

func (s *stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
	return s.login, s.err
}

func (s *stubAuthService) Refresh(context.Context, auth.RefreshRequest) (*auth.LoginResponse, error) {
	return s.login, s.err
}

func (s *stubAuthService) Logout(_ context.Context, sessionID string) error {
	s.loggedOut = sessionID
	return s.err
}

func TestAuthLogin(t *testing.T) {
	t.Run("success sets token header", func(t *testing.T) {
		svc := &stubAuthService{login: &auth.LoginResponse{AccessToken: "access", SessionID: "sid", ExpiresAt: time.Now()}}
		rec := httptest.NewRecorder()
		AuthLogin(svc, testLogger).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/auth/login", `{"username":"admin","password":"secret"}`, nil, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "access", rec.Header().Get(tokenHeader))
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	})

	t.Run("no auth service", func(t *testing.T) {
		rec := httptest.NewRecorder()
		AuthLogin(nil, testLogger).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/auth/login", `{"username":"admin","password":"secret"}`, nil, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("missing password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		AuthLogin(&stubAuthService{}, testLogger).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/auth/login", `{"username":"admin"}`, nil, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := httptest.NewRecorder()
		AuthLogin(&stubAuthService{}, testLogger).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/auth/login", `{"username":"a","password":"b","role":"super_admin"}`, nil, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad credentials", func(t *testing.T) {
		svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
		rec := httptest.NewRecorder()
		AuthLogin(svc, testLogger).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/auth/login", `{"username":"admin","password":"wrong"}`, nil, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthRefresh(t *testing.T) {
	svc := &stubAuthService{login: &auth.LoginResponse{AccessToken: "rotated", RefreshToken: "r2", SessionID: "sid2"}}
	rec := httptest.NewRecorder()
	AuthRefresh(svc, testLogger).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/auth/refresh", `{"session_id":"sid","refresh_token":"r1"}`, nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rotated", rec.Header().Get(tokenHeader))
	assert.Contains(t, rec.Body.String(), `"refresh_token":"r2"`)
}

func TestAuthLogout(t *testing.T) {
	svc := &stubAuthService{}

	rec := httptest.NewRecorder()
	AuthLogout(svc, testLogger).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	staff := committee()
	var seen string
	handler := middleware.Auth(testJWT, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.SessionIDFromContext(r.Context())
		AuthLogout(svc, testLogger).ServeHTTP(w, r)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, staff))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, svc.loggedOut)
}
