package token_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/iliyamo/identity-api/internal/model"
	"github.com/iliyamo/identity-api/internal/token"
	"github.com/stretchr/testify/require"
)

const (
	testSecret  = "0123456789abcdef0123456789abcdef"
	otherSecret = "fedcba9876543210fedcba9876543210"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newSigner(t *testing.T, cfg token.Config) *token.Signer {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = testSecret
	}
	s, err := token.NewSigner(cfg)
	require.NoError(t, err)
	return s
}

func testClaims(t *testing.T) token.ClaimSet {
	t.Helper()
	cs, err := token.BuildClaims(&model.User{
		Email:     "user@gmail.com",
		FirstName: "Test",
		LastName:  "User",
		Roles:     []string{"User"},
	})
	require.NoError(t, err)
	return cs
}

func TestNewSigner_Configuration(t *testing.T) {
	t.Run("empty secret", func(t *testing.T) {
		_, err := token.NewSigner(token.Config{})
		require.ErrorIs(t, err, token.ErrConfiguration)
	})

	t.Run("undersized secret", func(t *testing.T) {
		_, err := token.NewSigner(token.Config{Secret: strings.Repeat("x", token.MinSecretLength-1)})
		require.ErrorIs(t, err, token.ErrConfiguration)
	})

	t.Run("minimum length secret", func(t *testing.T) {
		_, err := token.NewSigner(token.Config{Secret: strings.Repeat("x", token.MinSecretLength)})
		require.NoError(t, err)
	})

	t.Run("negative lifetime", func(t *testing.T) {
		_, err := token.NewSigner(token.Config{Secret: testSecret, Lifetime: -time.Second})
		require.ErrorIs(t, err, token.ErrConfiguration)
	})
}

func TestSigner_Sign(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newSigner(t, token.Config{Now: fixedClock(now)})

	at, err := s.Sign(testClaims(t))
	require.NoError(t, err)
	require.True(t, now.Add(token.AccessTokenLifetime).Equal(at.Exp))

	parts := strings.Split(at.Token, ".")
	require.Len(t, parts, 3)

	hdr, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	var header map[string]any
	require.NoError(t, json.Unmarshal(hdr, &header))
	require.Equal(t, "HS256", header["alg"])

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(payload, &body))
	require.Equal(t, "User", body["role"])
	require.Equal(t, "user@gmail.com", body["email"])
	require.Equal(t, float64(now.Unix()), body["iat"])
	require.Equal(t, float64(now.Add(time.Hour).Unix()), body["exp"])
	require.NotContains(t, body, "iss")
	require.NotContains(t, body, "aud")
}

func TestSigner_SignRejectsReservedClaims(t *testing.T) {
	s := newSigner(t, token.Config{})
	_, err := s.Sign(token.ClaimSet{{Type: "exp", Value: "0"}})
	require.ErrorIs(t, err, token.ErrInvalidIdentity)
}

func TestSigner_PrincipalFromExpiredToken(t *testing.T) {
	issued := time.Now().Add(-3 * time.Hour)
	issuer := newSigner(t, token.Config{Now: fixedClock(issued)})
	claims := testClaims(t)

	at, err := issuer.Sign(claims)
	require.NoError(t, err)
	require.True(t, at.Exp.Before(time.Now()))

	verifier := newSigner(t, token.Config{})

	t.Run("expired token still yields its claims", func(t *testing.T) {
		p, err := verifier.PrincipalFromExpiredToken(at.Token)
		require.NoError(t, err)
		require.Equal(t, claims, p.Claims)
		require.Equal(t, "user@gmail.com", p.Name())
		require.True(t, at.Exp.Equal(p.ExpiresAt))
	})

	t.Run("verify enforces expiry", func(t *testing.T) {
		_, err := verifier.Verify(at.Token)
		require.ErrorIs(t, err, token.ErrInvalidToken)
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("different secret", func(t *testing.T) {
		other := newSigner(t, token.Config{Secret: otherSecret})
		_, err := other.PrincipalFromExpiredToken(at.Token)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("tampered signature", func(t *testing.T) {
		parts := strings.Split(at.Token, ".")
		sig := []byte(parts[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		tampered := parts[0] + "." + parts[1] + "." + string(sig)
		_, err := verifier.PrincipalFromExpiredToken(tampered)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(at.Token, ".")
		forged, _ := json.Marshal(map[string]any{"unique_name": "admin@gmail.com", "role": "Admin"})
		tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString(forged) + "." + parts[2]
		_, err := verifier.PrincipalFromExpiredToken(tampered)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, raw := range []string{"", "abc", "a.b", "a.b.c"} {
			_, err := verifier.PrincipalFromExpiredToken(raw)
			require.ErrorIs(t, err, token.ErrInvalidToken, raw)
		}
	})
}

func TestSigner_RejectsOtherAlgorithms(t *testing.T) {
	s := newSigner(t, token.Config{})
	mc := jwt.MapClaims{"unique_name": "user@gmail.com", "role": "User"}

	t.Run("HS384 with the same secret", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS384, mc).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = s.PrincipalFromExpiredToken(raw)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, mc).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.PrincipalFromExpiredToken(raw)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("lower-case hs256 header with a valid HMAC-SHA256 signature", func(t *testing.T) {
		header, err := json.Marshal(map[string]string{"alg": "hs256", "typ": "JWT"})
		require.NoError(t, err)
		payload, err := json.Marshal(mc)
		require.NoError(t, err)
		signing := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
		sig, err := jwt.SigningMethodHS256.Sign(signing, []byte(testSecret))
		require.NoError(t, err)
		raw := signing + "." + base64.RawURLEncoding.EncodeToString(sig)

		_, err = s.PrincipalFromExpiredToken(raw)
		require.ErrorIs(t, err, token.ErrInvalidToken)
		require.ErrorIs(t, err, jwt.ErrTokenUnverifiable)
		_, err = s.Verify(raw)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})
}

func TestSigner_IssuerAndAudience(t *testing.T) {
	scoped := newSigner(t, token.Config{Issuer: "identity-api", Audience: "web"})
	plain := newSigner(t, token.Config{})

	at, err := scoped.Sign(testClaims(t))
	require.NoError(t, err)

	p, err := scoped.Verify(at.Token)
	require.NoError(t, err)
	require.Equal(t, "user@gmail.com", p.Name())

	// Without issuer/audience configured, validation of those claims is off.
	_, err = plain.Verify(at.Token)
	require.NoError(t, err)

	unscoped, err := plain.Sign(testClaims(t))
	require.NoError(t, err)
	_, err = scoped.Verify(unscoped.Token)
	require.ErrorIs(t, err, token.ErrInvalidToken)

	// The expired-token path never checks issuer or audience.
	_, err = scoped.PrincipalFromExpiredToken(unscoped.Token)
	require.NoError(t, err)
}
