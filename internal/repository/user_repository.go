package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/seatd/internal/model"
)

// UserRepo reads and provisions users.  Sign-up and login live in the
// identity service; this service only seeds the operator account.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,email,password_hash,role,created_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureAdmin inserts an ADMIN user with the given email unless a user
// with that email exists.  passwordHash must already be a bcrypt hash.
// It reports whether a row was inserted.
func (r *UserRepo) EnsureAdmin(ctx context.Context, email, name, passwordHash string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := r.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, role) VALUES (?,?,?,?,?)",
		uuid.NewString(), name, email, passwordHash, model.RoleAdmin)
	if err != nil {
		// Another instance seeded it first.
		if errors.Is(mapWriteErr(err), ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
