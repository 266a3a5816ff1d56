// Package token issues and verifies the service's credentials: HS256
// access tokens built from a user's claim set, and opaque refresh tokens
// whose state is tracked server-side.
package token

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// AccessTokenLifetime is how long an access token stays valid.
const AccessTokenLifetime = time.Hour

// MinSecretLength is the HS256 key size in bytes.  Shorter secrets are
// rejected by NewSigner.
const MinSecretLength = 32

// registered claim names that a ClaimSet may not override.
var registered = map[string]bool{
	"iss": true, "sub": true, "aud": true, "exp": true,
	"nbf": true, "iat": true, "jti": true,
}

// Config holds the signing settings.  Issuer and Audience are optional;
// when empty they are neither written nor validated.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	// Lifetime overrides AccessTokenLifetime when positive.
	Lifetime time.Duration
	// Now overrides the wall clock.
	Now func() time.Time
}

// AccessToken is a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Principal is the identity recovered from an access token.
type Principal struct {
	Claims    ClaimSet
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Name returns the user name claim, which is the user's email.
func (p *Principal) Name() string {
	v, _ := p.Claims.Get(ClaimName)
	return v
}

// Signer mints and verifies HS256 access tokens with a shared secret.
// It holds no mutable state and is safe for concurrent use.
type Signer struct {
	secret   []byte
	issuer   string
	audience string
	lifetime time.Duration
	now      func() time.Time
}

// NewSigner validates cfg and returns a Signer.  A missing or undersized
// secret yields ErrConfiguration; callers are expected to abort startup.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: signing secret is empty", ErrConfiguration)
	}
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: signing secret must be at least %d bytes, got %d",
			ErrConfiguration, MinSecretLength, len(cfg.Secret))
	}
	if cfg.Lifetime < 0 {
		return nil, fmt.Errorf("%w: negative token lifetime", ErrConfiguration)
	}
	s := &Signer{
		secret:   []byte(cfg.Secret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		lifetime: cfg.Lifetime,
		now:      cfg.Now,
	}
	if s.lifetime == 0 {
		s.lifetime = AccessTokenLifetime
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Sign serializes claims into a signed access token issued now and
// expiring after the configured lifetime.
func (s *Signer) Sign(claims ClaimSet) (AccessToken, error) {
	now := s.now().UTC()
	exp := now.Add(s.lifetime)

	mc := jwt.MapClaims{}
	for _, c := range claims {
		if registered[c.Type] {
			return AccessToken{}, fmt.Errorf("%w: reserved claim type %q", ErrInvalidIdentity, c.Type)
		}
		mc[c.Type] = c.Value
	}
	mc["iat"] = now.Unix()
	mc["nbf"] = now.Unix()
	mc["exp"] = exp.Unix()
	if s.issuer != "" {
		mc["iss"] = s.issuer
	}
	if s.audience != "" {
		mc["aud"] = s.audience
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(s.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign access token: %w", err)
	}
	return AccessToken{Token: signed, Exp: time.Unix(exp.Unix(), 0).UTC()}, nil
}

// PrincipalFromExpiredToken recovers the claims of a token this service
// issued without enforcing its lifetime.  The signature and the HS256
// algorithm are still checked; any failure wraps ErrInvalidToken.
func (s *Signer) PrincipalFromExpiredToken(raw string) (*Principal, error) {
	tok, err := jwt.NewParser(jwt.WithoutClaimsValidation()).Parse(raw, s.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return principalFrom(tok)
}

// Verify parses raw as a currently valid access token: signature,
// algorithm and expiry are enforced, and issuer/audience when configured.
func (s *Signer) Verify(raw string) (*Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}
	tok, err := jwt.NewParser(opts...).Parse(raw, s.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return principalFrom(tok)
}

// keyFunc accepts only HS256.  The parser resolves the alg header
// case-sensitively before calling it, so a header such as "hs256" never
// reaches this point and is rejected as an unavailable method.
func (s *Signer) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	if alg := t.Method.Alg(); alg != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm %q", alg)
	}
	return s.secret, nil
}

func principalFrom(tok *jwt.Token) (*Principal, error) {
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("%w: unreadable claims", ErrInvalidToken)
	}

	p := &Principal{}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		p.IssuedAt = iat.UTC()
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.UTC()
	}

	seen := make(map[string]bool, len(canonicalOrder))
	for _, t := range canonicalOrder {
		seen[t] = true
		if v, ok := mc[t].(string); ok {
			p.Claims = append(p.Claims, Claim{Type: t, Value: v})
		}
	}
	var extra []string
	for k, v := range mc {
		if _, isString := v.(string); isString && !seen[k] && !registered[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		p.Claims = append(p.Claims, Claim{Type: k, Value: mc[k].(string)})
	}
	return p, nil
}
