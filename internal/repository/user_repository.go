package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/identity-api/internal/model"
	"github.com/iliyamo/identity-api/internal/utils"
)

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

const selectUser = `SELECT id, email, first_name, last_name, password_hash,
	refresh_token, refresh_token_expires_at, session_version, created_at, updated_at
	FROM users WHERE email=? LIMIT 1`

const selectRoles = `SELECT r.name FROM roles r
	JOIN user_roles ur ON ur.role_id = r.id
	WHERE ur.user_id=? ORDER BY r.name`

// UserRepo is the MySQL identity store.
type UserRepo struct {
	DB         *sql.DB
	BcryptCost int
}

func NewUserRepo(db *sql.DB, bcryptCost int) *UserRepo {
	return &UserRepo{DB: db, BcryptCost: bcryptCost}
}

// Create validates the input, hashes the password and inserts the user.
// On success u.ID and u.PasswordHash are populated.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string) error {
	u.Email = NormalizeEmail(u.Email)
	if errs := validateNewUser(u.Email, password); len(errs) > 0 {
		return errs
	}
	hash, err := utils.HashPassword(password, r.BcryptCost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, first_name, last_name, password_hash) VALUES (?,?,?,?)",
		u.Email, nullString(u.FirstName), nullString(u.LastName), hash)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return duplicateUserName(u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.PasswordHash = hash
	return nil
}

// FindByEmail fetches a user and its role names by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var (
		u         model.User
		first     sql.NullString
		last      sql.NullString
		refresh   sql.NullString
		refreshAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, selectUser, NormalizeEmail(email)).Scan(
		&u.ID, &u.Email, &first, &last, &u.PasswordHash,
		&refresh, &refreshAt, &u.SessionVersion, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.FirstName = first.String
	u.LastName = last.String
	u.RefreshToken = refresh.String
	if refreshAt.Valid {
		u.RefreshTokenExpiresAt = refreshAt.Time.UTC()
	}

	roles, err := r.rolesOf(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return &u, nil
}

// CheckPassword compares plain against the stored bcrypt hash.
func (r *UserRepo) CheckPassword(_ context.Context, u *model.User, plain string) (bool, error) {
	if u == nil || u.PasswordHash == "" {
		return false, nil
	}
	return utils.VerifyPassword(u.PasswordHash, plain), nil
}

// EnsureRole creates the role if it does not exist yet.
func (r *UserRepo) EnsureRole(ctx context.Context, name string) error {
	_, err := r.DB.ExecContext(ctx, "INSERT IGNORE INTO roles (name) VALUES (?)", name)
	return err
}

// AddToRole assigns an existing role to u.
func (r *UserRepo) AddToRole(ctx context.Context, u *model.User, role string) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO user_roles (user_id, role_id) SELECT ?, id FROM roles WHERE name=?",
		u.ID, role)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 && !u.HasRole(role) {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if !u.HasRole(role) {
		u.Roles = append(u.Roles, role)
	}
	return nil
}

func (r *UserRepo) rolesOf(ctx context.Context, userID uint64) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, selectRoles, userID)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
