package auth

import (
	"time"

	"github.com/angelmondragon/banksampah-backend/internal/residents"
)

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	SessionID    string `json:"session_id" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse contains the tokens and the actor produced by a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	SessionID    string         `json:"session_id"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Actor        *residents.DTO `json:"actor"`
}
