package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/banksampah-backend/pkg/config"
)

// Access tokens are HS256 only; any other alg header is rejected before the
// key is handed out.
var signingMethod = jwt.SigningMethodHS256

// clockSkew tolerated between the API replicas that mint and verify tokens.
const clockSkew = 30 * time.Second

var (
	ErrSecretMissing = errors.New("jwt secret is required")
	ErrIssuerMissing = errors.New("jwt issuer is required")
)

func checkConfig(cfg config.JWTConfig, needIssuer bool) error {
	if cfg.Secret == "" {
		return ErrSecretMissing
	}
	if needIssuer && cfg.Issuer == "" {
		return ErrIssuerMissing
	}
	return nil
}

// MintAccessToken signs an access token for payload that expires
// cfg.Expiration() after now. A JTI is generated when payload has none.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkConfig(cfg, true); err != nil {
		return "", err
	}
	switch {
	case payload.UserID == uuid.Nil:
		return "", errors.New("user id is required")
	case !payload.Role.IsValid():
		return "", fmt.Errorf("invalid actor role %q", payload.Role)
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := newAccessClaims(cfg.Issuer, now, cfg.Expiration(), payload, jti)
	signed, err := jwt.NewWithClaims(signingMethod, &claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry and returns the
// claims. AccessTokenClaims.Validate adds the role and subject checks.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if err := checkConfig(cfg, false); err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)

	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}
