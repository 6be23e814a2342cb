package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
)

const DateLayout = "2006-01-02"

func queryError(key, message string, extra map[string]any) *pkgerrors.Error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(details)
}

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// optionalQuery parses key when present. Absent or blank values yield nil.
func optionalQuery[T any](r *http.Request, key, expected string, parse func(string) (T, error)) (*T, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	v, err := parse(raw)
	if err != nil {
		return nil, queryError(key, "invalid "+key, map[string]any{"expected": expected})
	}
	return &v, nil
}

// ParseQueryInt reads an optional bounded integer, returning def when absent.
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	v, err := optionalQuery(r, key, "integer", strconv.Atoi)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return def, nil
	}
	if *v < lo || *v > hi {
		return 0, queryError(key, key+" out of range", map[string]any{"min": lo, "max": hi})
	}
	return *v, nil
}

// ParseQueryDecimal reads a required decimal such as a weight in kilograms.
func ParseQueryDecimal(r *http.Request, key string) (decimal.Decimal, error) {
	v, err := optionalQuery(r, key, "decimal number", decimal.NewFromString)
	if err != nil {
		return decimal.Zero, err
	}
	if v == nil {
		return decimal.Zero, queryError(key, key+" is required", nil)
	}
	return *v, nil
}

func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	return optionalQuery(r, key, "uuid", uuid.Parse)
}

// ParseQueryTime accepts RFC3339 timestamps or plain dates, read as UTC
// midnight.
func ParseQueryTime(r *http.Request, key string) (*time.Time, error) {
	return optionalQuery(r, key, "RFC3339 or YYYY-MM-DD", func(raw string) (time.Time, error) {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		return time.Parse(DateLayout, raw)
	})
}
