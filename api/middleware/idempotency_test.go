package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func depositRequest(body, key string) *http.Request {
	req := requestWithPattern(http.MethodPost, "/api/v1/movements/deposit", "/api/v1/movements/deposit", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotencyRequiresHeaderWhenPolicySaysSo(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), nil, MoneyIdempotency)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, depositRequest(`{"amount":1}`, ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, called)
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	handler := Idempotency(newFakeStore(), nil, MoneyIdempotency)(okHandler(http.StatusOK))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, depositRequest(`{"amount":1}`, strings.Repeat("k", maxIdempotencyKey+1)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotencyOptionalPolicyPassesWithoutHeader(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil, AdminIdempotency)(okHandler(http.StatusCreated))

	req := requestWithPattern(http.MethodPost, "/api/v1/categories", "/api/v1/categories", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Empty(t, store.data)
}

func TestIdempotencyWithoutStoreIsPassthrough(t *testing.T) {
	handler := Idempotency(nil, nil, MoneyIdempotency)(okHandler(http.StatusCreated))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, depositRequest(`{"amount":1}`, ""))
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestIdempotencyScopeUsesRoutePattern(t *testing.T) {
	req := requestWithPattern(http.MethodPut, "/api/v1/categories/abc/price", "/api/v1/categories/{categoryId}/price", nil)
	require.Equal(t, "|PUT|/api/v1/categories/{categoryId}/price", idempotencyScope(req))

	bare := httptest.NewRequest(http.MethodPost, "/api/v1/movements/deposit", nil)
	require.Equal(t, "|POST|/api/v1/movements/deposit", idempotencyScope(bare))
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil, MoneyIdempotency)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"balance":5000}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, depositRequest(`{"amount":5000}`, "abc"))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, depositRequest(`{"amount":5000}`, "abc"))
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
	require.Equal(t, "true", second.Header().Get(replayedHeader))
	require.Equal(t, `{"data":{"balance":5000}}`, strings.TrimSpace(second.Body.String()))
	require.Equal(t, 1, calls)
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	handler := Idempotency(newFakeStore(), nil, MoneyIdempotency)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), depositRequest(`{"amount":1}`, "xyz"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, depositRequest(`{"amount":2}`, "xyz"))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyRejectsDuplicateWhileInFlight(t *testing.T) {
	store := newFakeStore()
	req := depositRequest(`{"amount":1}`, "same")
	store.data[store.IdempotencyKey(idempotencyScope(req), "same")] = pendingMarker

	called := false
	handler := Idempotency(store, nil, MoneyIdempotency)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, rec))
	require.False(t, called)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	status := http.StatusServiceUnavailable
	calls := 0
	handler := Idempotency(store, nil, MoneyIdempotency)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), depositRequest(`{"amount":1}`, "retry-me"))
	require.Empty(t, store.data)

	status = http.StatusCreated
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, depositRequest(`{"amount":1}`, "retry-me"))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 2, calls)
}
