package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/banksampah-backend/api/middleware"
	"github.com/angelmondragon/banksampah-backend/api/validators"
	"github.com/angelmondragon/banksampah-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
	"github.com/angelmondragon/banksampah-backend/pkg/pagination"
)

// listResponse is the envelope payload for cursor-paginated collections.
type listResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func newListResponse[T any](items []T, next string) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, NextCursor: next}
}

func requestActor(r *http.Request) (auth.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return auth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	if err := actor.Validate(); err != nil {
		return auth.Actor{}, err
	}
	return actor, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

func timeRange(r *http.Request) (*time.Time, *time.Time, error) {
	from, err := validators.ParseQueryTime(r, "from")
	if err != nil {
		return nil, nil, err
	}
	to, err := validators.ParseQueryTime(r, "to")
	if err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	return from, to, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}, nil
}

// scopedResidentFilter narrows a ledger listing to the caller when the
// caller is a resident. Staff may filter by any resident_id.
func scopedResidentFilter(r *http.Request, actor auth.Actor) (*uuid.UUID, error) {
	requested, err := validators.ParseQueryUUID(r, "resident_id")
	if err != nil {
		return nil, err
	}
	if actor.Role.IsStaff() {
		return requested, nil
	}
	if requested != nil && *requested != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "residents may only view their own records")
	}
	own := actor.ID
	return &own, nil
}

func requireResidentAccess(actor auth.Actor, residentID uuid.UUID) error {
	if !actor.CanAccessResident(residentID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "residents may only view their own records")
	}
	return nil
}
