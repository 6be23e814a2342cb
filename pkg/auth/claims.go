package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/banksampah-backend/pkg/enums"
)

var errSubjectMismatch = errors.New("token subject does not match user id")

// AccessTokenPayload is what the caller supplies when minting.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.ActorRole
	JTI    string
}

// AccessTokenClaims is the JWT body. ID (jti) names the session.
type AccessTokenClaims struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

var _ jwt.ClaimsValidator = (*AccessTokenClaims)(nil)

func newAccessClaims(issuer string, now time.Time, ttl time.Duration, p AccessTokenPayload, jti string) AccessTokenClaims {
	return AccessTokenClaims{
		UserID: p.UserID,
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    issuer,
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// Validate runs after the parser's own time and issuer checks.
func (c *AccessTokenClaims) Validate() error {
	if !c.Role.IsValid() {
		return fmt.Errorf("invalid actor role %q", c.Role)
	}
	if c.UserID == uuid.Nil || c.Subject != c.UserID.String() {
		return errSubjectMismatch
	}
	return nil
}

// Actor returns the authenticated caller described by the claims.
func (c *AccessTokenClaims) Actor() Actor {
	return Actor{ID: c.UserID, Role: c.Role}
}
