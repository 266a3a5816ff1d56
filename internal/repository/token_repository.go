package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/identity-api/internal/model"
)

// UpdateSessionCredential overwrites the user's refresh token and expiry.
// The write only applies if session_version still matches the version
// read with u, which serializes concurrent rotations for one user: the
// loser gets ErrStaleSession.  An empty token clears the credential.
// On success the new values and version are written back into u.
func (r *UserRepo) UpdateSessionCredential(ctx context.Context, u *model.User, refreshToken string, exp time.Time) error {
	var expiresAt sql.NullTime
	if refreshToken != "" {
		expiresAt = sql.NullTime{Time: exp.UTC(), Valid: true}
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET refresh_token=?, refresh_token_expires_at=?, session_version=session_version+1
		WHERE id=? AND session_version=?`,
		nullString(refreshToken), expiresAt, u.ID, u.SessionVersion)
	if err != nil {
		return fmt.Errorf("update session credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleSession
	}

	u.RefreshToken = refreshToken
	u.RefreshTokenExpiresAt = expiresAt.Time
	u.SessionVersion++
	return nil
}
