package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
)

// Actor is the already-authenticated caller of a ledger operation.
type Actor struct {
	ID   uuid.UUID
	Role enums.ActorRole
}

// Validate rejects zero-valued or unknown actors.
func (a Actor) Validate() error {
	if a.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor id is required")
	}
	if !a.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "actor role is not recognized")
	}
	return nil
}

// Require returns a FORBIDDEN error unless the actor holds the capability.
func (a Actor) Require(capability Capability) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if !Can(a.Role, capability) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "actor lacks capability "+string(capability))
	}
	return nil
}

// CanAccessResident reports whether the actor may read data scoped to the
// given resident: staff may read anyone, residents only themselves.
func (a Actor) CanAccessResident(residentID uuid.UUID) bool {
	if a.Role.IsStaff() {
		return true
	}
	return a.ID == residentID
}
