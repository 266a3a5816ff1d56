package service

import (
	"errors"

	"github.com/iliyamo/identity-api/internal/token"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password; the two cases are not distinguished.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefreshToken is returned when the presented refresh token
	// does not match the stored one.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrExpiredRefreshToken is returned when the stored refresh token is
	// past its expiry.
	ErrExpiredRefreshToken = errors.New("refresh token expired")
	// ErrSessionConflict is returned when a concurrent login or rotation
	// for the same user won the session credential update.
	ErrSessionConflict = errors.New("session credential changed concurrently")
)

// IsUnauthorized reports whether err is an authentication failure that
// must be surfaced to the client as a bare unauthorized response.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, token.ErrInvalidToken) ||
		errors.Is(err, ErrInvalidRefreshToken) ||
		errors.Is(err, ErrExpiredRefreshToken) ||
		errors.Is(err, ErrSessionConflict)
}
