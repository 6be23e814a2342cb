package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataTable(t *testing.T) {
	tests := map[Code]Metadata{
		CodeValidation:          {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeUnauthorized:        {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
		CodeForbidden:           {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
		CodeNotFound:            {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
		CodeConflict:            {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected"},
		CodeStateConflict:       {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
		CodeIdempotency:         {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true},
		CodeRateLimit:           {HTTPStatus: http.StatusTooManyRequests, Retryable: true, PublicMessage: "too many attempts, try again later"},
		CodeInternal:            {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
		CodeDependency:          {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
		CodeInsufficientBalance: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "insufficient balance", DetailsAllowed: true},
		CodeConcurrencyConflict: {HTTPStatus: http.StatusConflict, Retryable: true, PublicMessage: "balance was modified concurrently"},
	}
	require.Len(t, metadataByCode, len(tests))
	for code, want := range tests {
		assert.Equal(t, want, MetadataFor(code), code)
	}
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestNewAndWrap(t *testing.T) {
	e := Newf(CodeValidation, "missing %s", "weight_kg")
	assert.Equal(t, CodeValidation, e.Code())
	assert.Equal(t, "missing weight_kg", e.Message())
	assert.Nil(t, e.Details())
	assert.Equal(t, "VALIDATION_ERROR: missing weight_kg", e.Error())

	e.WithDetails(map[string]any{"field": "weight_kg"})
	assert.Equal(t, map[string]any{"field": "weight_kg"}, e.Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "insert")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "CONFLICT: insert: boom", wrapped.Error())
	assert.Equal(t, CodeConflict, Wrap(CodeConflict, nil, "bare").Code())
}

func TestNilErrorIsInternal(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatus())
	assert.True(t, e.Retryable())
	assert.Empty(t, e.Message())
	assert.Nil(t, e.WithDetails("x"))
	assert.NoError(t, e.Unwrap())
}

func TestAsAndIsCode(t *testing.T) {
	inner := New(CodeInsufficientBalance, "not enough").WithDetails(map[string]int64{"attempted": 10, "available": 5})
	outer := fmt.Errorf("withdraw: %w", inner)

	require.Same(t, inner, As(outer))
	assert.Nil(t, As(nil))
	assert.Nil(t, As(stdErrors.New("plain")))

	assert.True(t, IsCode(outer, CodeInsufficientBalance))
	assert.False(t, IsCode(outer, CodeNotFound))
	assert.False(t, IsCode(nil, CodeInternal))
	assert.Equal(t, http.StatusUnprocessableEntity, As(outer).HTTPStatus())
	assert.False(t, As(outer).Retryable())
}

func TestDumpWalksChain(t *testing.T) {
	err := fmt.Errorf("record transaction: %w", Wrap(CodeDependency, stdErrors.New("dial tcp: refused"), "database unavailable"))
	d := Dump(err)
	assert.Equal(t, CodeDependency, d.Code)
	assert.Len(t, d.Chain, 3)
	assert.Empty(t, d.Driver)
	assert.Contains(t, d.TopMessage, "dial tcp: refused")
	assert.Equal(t, ErrorDump{}, Dump(nil))
}
