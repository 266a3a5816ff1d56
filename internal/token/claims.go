package token

import (
	"fmt"
	"strings"

	"github.com/iliyamo/identity-api/internal/model"
)

// Claim types carried in access tokens.  The names are the short JWT
// names used by the clients of this service.
const (
	ClaimNameIdentifier = "nameid"      // display name
	ClaimEmail          = "email"       // email address
	ClaimName           = "unique_name" // user name (email)
	ClaimRole           = "role"        // comma-joined role names
)

// canonicalOrder lists the claim types in the order BuildClaims emits them.
var canonicalOrder = []string{ClaimNameIdentifier, ClaimEmail, ClaimName, ClaimRole}

// Claim is a single (type, value) pair.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ClaimSet is an ordered sequence of claims describing one identity.
type ClaimSet []Claim

// Get returns the value of the first claim with the given type.
func (cs ClaimSet) Get(claimType string) (string, bool) {
	for _, c := range cs {
		if c.Type == claimType {
			return c.Value, true
		}
	}
	return "", false
}

// Email returns the email claim or "".
func (cs ClaimSet) Email() string {
	v, _ := cs.Get(ClaimEmail)
	return v
}

// Roles splits the role claim back into role names.  An empty role
// claim yields no roles.
func (cs ClaimSet) Roles() []string {
	v, _ := cs.Get(ClaimRole)
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

// BuildClaims derives the claim set for u.  The display name defaults to
// the user name; a first name replaces it and a last name is appended
// after a single space.  The role claim is always present, even when the
// user has no roles.
func BuildClaims(u *model.User) (ClaimSet, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: nil user", ErrInvalidIdentity)
	}
	if strings.TrimSpace(u.Email) == "" {
		return nil, fmt.Errorf("%w: missing email", ErrInvalidIdentity)
	}

	name := u.UserName()
	if u.FirstName != "" {
		name = u.FirstName
	}
	if u.LastName != "" {
		name += " " + u.LastName
	}

	return ClaimSet{
		{Type: ClaimNameIdentifier, Value: name},
		{Type: ClaimEmail, Value: u.Email},
		{Type: ClaimName, Value: u.Email},
		{Type: ClaimRole, Value: strings.Join(u.Roles, ",")},
	}, nil
}
