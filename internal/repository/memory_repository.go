package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/identity-api/internal/model"
	"github.com/iliyamo/identity-api/internal/utils"
)

// MemoryUserRepo is an in-process identity store.  It is used when the
// service runs without MySQL and as the store behind the service tests.
// Every method copies users in and out so callers never share state
// with the store.
type MemoryUserRepo struct {
	lock       sync.Mutex
	users      map[string]*model.User // email -> user
	roles      map[string]bool
	nextID     uint64
	bcryptCost int
	now        func() time.Time
}

func NewMemoryUserRepo(bcryptCost int) *MemoryUserRepo {
	return &MemoryUserRepo{
		users:      make(map[string]*model.User),
		roles:      make(map[string]bool),
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

func (r *MemoryUserRepo) Create(_ context.Context, u *model.User, password string) error {
	u.Email = NormalizeEmail(u.Email)
	if errs := validateNewUser(u.Email, password); len(errs) > 0 {
		return errs
	}
	hash, err := utils.HashPassword(password, r.bcryptCost)
	if err != nil {
		return err
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.users[u.Email]; ok {
		return duplicateUserName(u.Email)
	}
	r.nextID++
	now := r.now().UTC()
	u.ID = r.nextID
	u.PasswordHash = hash
	u.CreatedAt, u.UpdatedAt = now, now
	r.users[u.Email] = cloneUser(u)
	return nil
}

func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	u, ok := r.users[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryUserRepo) CheckPassword(_ context.Context, u *model.User, plain string) (bool, error) {
	if u == nil || u.PasswordHash == "" {
		return false, nil
	}
	return utils.VerifyPassword(u.PasswordHash, plain), nil
}

// UpdateSessionCredential has the same compare-and-set semantics as the
// MySQL store: it fails with ErrStaleSession when u.SessionVersion is
// behind the stored version.
func (r *MemoryUserRepo) UpdateSessionCredential(_ context.Context, u *model.User, refreshToken string, exp time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	stored, ok := r.users[u.Email]
	if !ok || stored.ID != u.ID {
		return ErrNotFound
	}
	if stored.SessionVersion != u.SessionVersion {
		return ErrStaleSession
	}

	stored.RefreshToken = refreshToken
	stored.RefreshTokenExpiresAt = time.Time{}
	if refreshToken != "" {
		stored.RefreshTokenExpiresAt = exp.UTC()
	}
	stored.SessionVersion++
	stored.UpdatedAt = r.now().UTC()

	u.RefreshToken = stored.RefreshToken
	u.RefreshTokenExpiresAt = stored.RefreshTokenExpiresAt
	u.SessionVersion = stored.SessionVersion
	return nil
}

func (r *MemoryUserRepo) EnsureRole(_ context.Context, name string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.roles[name] = true
	return nil
}

func (r *MemoryUserRepo) AddToRole(_ context.Context, u *model.User, role string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.roles[role] {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	stored, ok := r.users[u.Email]
	if !ok {
		return ErrNotFound
	}
	if !stored.HasRole(role) {
		stored.Roles = append(stored.Roles, role)
	}
	if !u.HasRole(role) {
		u.Roles = append(u.Roles, role)
	}
	return nil
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	return &c
}
