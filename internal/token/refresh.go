package token

import (
	"crypto/rand"     // secure random number generation
	"encoding/base64" // standard base64 encoding of the random bytes
	"fmt"
	"time"
)

// RefreshTokenBytes is the amount of entropy in a refresh token.
const RefreshTokenBytes = 32

// RefreshTokenLifetime is how long a stored refresh token stays usable.
const RefreshTokenLifetime = 7 * 24 * time.Hour

// RefreshToken represents a long-lived opaque token used to obtain a new
// token pair.  Raw is returned to the client; Exp is tracked server-side
// and is never embedded in the token itself.
type RefreshToken struct {
	Raw string    // base64 token string returned to the client
	Exp time.Time // UTC expiration time
}

// GenerateRefreshToken returns RefreshTokenBytes of cryptographically
// secure random data, base64 encoded.  Uniqueness relies on the entropy
// of the source; no lookup is performed.
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, RefreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// NewRefreshToken generates a refresh token expiring RefreshTokenLifetime
// after issuedAt.
func NewRefreshToken(issuedAt time.Time) (RefreshToken, error) {
	raw, err := GenerateRefreshToken()
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: issuedAt.UTC().Add(RefreshTokenLifetime),
	}, nil
}
