package model

import "time"

// User represents an identity record as stored in the `users` table
// together with the names of the roles assigned through `user_roles`.
// The email doubles as the user name.  FirstName and LastName are
// optional; an empty string means the column is NULL.
//
// The session credential (RefreshToken, RefreshTokenExpiresAt) is the
// only part of the record the token service writes.  SessionVersion is
// bumped on every credential write so that concurrent rotations for the
// same user can be detected by the store.
//
// Fields:
//  ID                    – primary key identifier of the user.
//  Email                 – unique email address, also used as user name.
//  FirstName / LastName  – optional display name parts.
//  PasswordHash          – bcrypt hashed password.
//  Roles                 – assigned role names, no duplicates.
//  RefreshToken          – current refresh token (empty when none).
//  RefreshTokenExpiresAt – UTC expiry of RefreshToken.
//  SessionVersion        – optimistic lock for the session credential.
type User struct {
	ID                    uint64    // users.id
	Email                 string    // users.email
	FirstName             string    // users.first_name (nullable)
	LastName              string    // users.last_name (nullable)
	PasswordHash          string    // users.password_hash
	Roles                 []string  // roles.name via user_roles
	RefreshToken          string    // users.refresh_token (nullable)
	RefreshTokenExpiresAt time.Time // users.refresh_token_expires_at (nullable)
	SessionVersion        uint64    // users.session_version
	CreatedAt             time.Time // users.created_at
	UpdatedAt             time.Time // users.updated_at
}

// UserName returns the login name of the user.  Identities use their
// email address as user name.
func (u *User) UserName() string {
	return u.Email
}

// HasRole reports whether the named role is assigned to the user.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// Well-known role names created at startup.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)
