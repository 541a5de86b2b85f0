package session

import (
	"errors"

	"collab-platform/internal/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is the codec sentinel, so the principal middleware treats
	// session failures as "no principal" rather than as server errors.
	ErrInvalidToken = auth.ErrInvalidToken
	ErrTokenRevoked = errors.New("token revoked")
	ErrTokenExpired = errors.New("token expired")
	ErrRateLimited  = errors.New("too many login attempts")
)
