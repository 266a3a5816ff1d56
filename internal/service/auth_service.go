// Package service implements the token rotation protocol on top of an
// identity store: login issues a fresh access/refresh pair, refresh
// exchanges a possibly expired access token plus the current refresh
// token for a new pair, and logout clears the stored refresh token.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/identity-api/internal/model"
	"github.com/iliyamo/identity-api/internal/queue"
	"github.com/iliyamo/identity-api/internal/repository"
	"github.com/iliyamo/identity-api/internal/token"
)

// IdentityStore is the persistence the token service depends on.  All
// methods are treated as fallible remote calls.  UpdateSessionCredential
// must serialize writes per user: it fails with
// repository.ErrStaleSession when the user was updated after u was read.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	CheckPassword(ctx context.Context, u *model.User, password string) (bool, error)
	UpdateSessionCredential(ctx context.Context, u *model.User, refreshToken string, expiresAt time.Time) error
	Create(ctx context.Context, u *model.User, password string) error
}

// EventPublisher receives session state transitions.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// Options carries the optional collaborators of AuthService.
type Options struct {
	Logger zerolog.Logger
	Events EventPublisher    // nil disables audit events
	Now    func() time.Time // defaults to time.Now
}

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RegisterInput is the data needed to create a user.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthService coordinates claims building, signing, refresh token
// generation and the session credential store.  It keeps no state of
// its own and is safe for concurrent use.
type AuthService struct {
	store  IdentityStore
	signer *token.Signer
	events EventPublisher
	log    zerolog.Logger
	now    func() time.Time
}

func NewAuthService(store IdentityStore, signer *token.Signer, opts Options) *AuthService {
	s := &AuthService{
		store:  store,
		signer: signer,
		events: opts.Events,
		log:    opts.Logger,
		now:    opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Login verifies the credentials and issues a new token pair, replacing
// any refresh token the user held before.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	u, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return s.reject(ctx, queue.EventLoginRejected, email, StateAnonymous, ErrInvalidCredentials)
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}
	ok, err := s.store.CheckPassword(ctx, u, password)
	if err != nil {
		return TokenPair{}, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return s.reject(ctx, queue.EventLoginRejected, u.Email, StateAnonymous, ErrInvalidCredentials)
	}

	pair, err := s.issue(ctx, u)
	if errors.Is(err, ErrSessionConflict) {
		// The credentials were valid; a concurrent login or refresh moved
		// the session version.  Re-read the user and issue once more.
		pair, err = s.reissue(ctx, u)
	}
	if errors.Is(err, ErrSessionConflict) {
		return s.reject(ctx, queue.EventLoginRejected, u.Email, StateAnonymous, err)
	}
	if err != nil {
		return TokenPair{}, err
	}
	s.publish(ctx, queue.EventLoginSucceeded, u.Email, StateAnonymous, StateAuthenticated, "")
	return pair, nil
}

// Refresh exchanges a previously issued access token, expired or not,
// and the user's current refresh token for a new pair.  The presented
// refresh token is invalidated by the overwrite.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (TokenPair, error) {
	p, err := s.signer.PrincipalFromExpiredToken(accessToken)
	if err != nil {
		return s.reject(ctx, queue.EventTokenRejected, "", StateExpiredPendingRefresh, err)
	}
	email := p.Name()

	u, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return s.reject(ctx, queue.EventTokenRejected, email, StateExpiredPendingRefresh,
			fmt.Errorf("%w: unknown principal", token.ErrInvalidToken))
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}
	if u.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(u.RefreshToken), []byte(refreshToken)) != 1 {
		return s.reject(ctx, queue.EventTokenRejected, u.Email, StateExpiredPendingRefresh, ErrInvalidRefreshToken)
	}
	if u.RefreshTokenExpiresAt.Before(s.now()) {
		return s.reject(ctx, queue.EventTokenRejected, u.Email, StateExpiredPendingRefresh, ErrExpiredRefreshToken)
	}

	pair, err := s.issue(ctx, u)
	if errors.Is(err, ErrSessionConflict) {
		return s.reject(ctx, queue.EventTokenRejected, u.Email, StateExpiredPendingRefresh, err)
	}
	if err != nil {
		return TokenPair{}, err
	}
	s.publish(ctx, queue.EventTokenRotated, u.Email, StateExpiredPendingRefresh, StateAuthenticated, "")
	return pair, nil
}

// Register creates a user without roles.  Validation failures are
// returned as repository.ValidationErrors.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) error {
	u := &model.User{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
	if err := s.store.Create(ctx, u, in.Password); err != nil {
		return err
	}
	s.log.Info().Uint64("user_id", u.ID).Msg("user registered")
	return nil
}

// Logout clears the stored refresh token so it can no longer be used to
// renew the session.  Access tokens already issued stay valid until
// they expire.
func (s *AuthService) Logout(ctx context.Context, email string) error {
	u, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if err := s.store.UpdateSessionCredential(ctx, u, "", time.Time{}); err != nil {
		if errors.Is(err, repository.ErrStaleSession) {
			return ErrSessionConflict
		}
		return fmt.Errorf("clear session credential: %w", err)
	}
	s.publish(ctx, queue.EventLogout, u.Email, StateAuthenticated, StateAnonymous, "")
	return nil
}

// issue builds claims for u, signs an access token, generates a refresh
// token and persists it as u's session credential.
func (s *AuthService) issue(ctx context.Context, u *model.User) (TokenPair, error) {
	claims, err := token.BuildClaims(u)
	if err != nil {
		return TokenPair{}, err
	}
	at, err := s.signer.Sign(claims)
	if err != nil {
		return TokenPair{}, err
	}
	rt, err := token.NewRefreshToken(s.now())
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.UpdateSessionCredential(ctx, u, rt.Raw, rt.Exp); err != nil {
		if errors.Is(err, repository.ErrStaleSession) {
			return TokenPair{}, ErrSessionConflict
		}
		return TokenPair{}, fmt.Errorf("store session credential: %w", err)
	}
	return TokenPair{AccessToken: at.Token, RefreshToken: rt.Raw}, nil
}

// reissue reloads u and issues a pair for the fresh record.  It fails
// with ErrSessionConflict if the user vanished or was replaced.
func (s *AuthService) reissue(ctx context.Context, u *model.User) (TokenPair, error) {
	fresh, err := s.store.FindByEmail(ctx, u.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, ErrSessionConflict
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}
	if fresh.ID != u.ID {
		return TokenPair{}, ErrSessionConflict
	}
	return s.issue(ctx, fresh)
}

func (s *AuthService) reject(ctx context.Context, eventType, email string, from SessionState, cause error) (TokenPair, error) {
	s.log.Info().Str("event", eventType).Str("email", email).Str("reason", cause.Error()).Msg("request rejected")
	s.publish(ctx, eventType, email, from, StateRejected, cause.Error())
	return TokenPair{}, cause
}

func (s *AuthService) publish(ctx context.Context, eventType, email string, from, to SessionState, reason string) {
	if s.events == nil {
		return
	}
	ev := queue.NewAuthEvent(eventType, email, string(from), string(to), s.now())
	ev.Reason = reason
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("publish auth event failed")
	}
}
