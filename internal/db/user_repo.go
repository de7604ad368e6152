package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"photoforge/internal/types"
)

// UserRepository reads identity records. Account creation lives in the auth
// subsystem; everything else only resolves users.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a user repository.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID fetches a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	return r.getOne(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE id = $1`, id)
}

// GetByEmail fetches a user by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	return r.getOne(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE LOWER(email) = $1`, strings.ToLower(email))
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*types.User, error) {
	var user types.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch user", err)
	}
	return &user, nil
}
