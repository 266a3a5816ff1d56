package token

import "errors"

var (
	// ErrInvalidIdentity is returned when claims cannot be built for a user.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrInvalidToken covers malformed tokens, bad signatures and
	// unexpected signing algorithms.
	ErrInvalidToken = errors.New("invalid token")
	// ErrConfiguration is returned by NewSigner for a missing or
	// undersized secret.  It is fatal at startup.
	ErrConfiguration = errors.New("invalid token configuration")
)
