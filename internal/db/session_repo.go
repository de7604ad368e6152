package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"photoforge/internal/types"
)

// SessionRepository persists server-side sessions. Only token hashes are
// stored; the raw token never touches the database.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a session repository.
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, session *types.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token_hash, ip_address, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`

	_, err := r.db.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.IPAddress,
		session.UserAgent,
		session.ExpiresAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create session", err)
	}

	return nil
}

// GetByTokenHash resolves a session and its owning user's email in one
// round trip. Returns (nil, nil, nil) when no session matches.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, *types.User, error) {
	query := `
		SELECT s.id, s.user_id, s.token_hash, s.ip_address, s.user_agent,
		       s.expires_at, s.created_at,
		       u.id, u.email, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1`

	var session types.Session
	var user types.User
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.IPAddress,
		&session.UserAgent,
		&session.ExpiresAt,
		&session.CreatedAt,
		&user.ID,
		&user.Email,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch session", err)
	}

	return &session, &user, nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete session", err)
	}
	return nil
}

// DeleteExpired prunes sessions that expired before the cutoff. Returns the
// number of rows removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to prune sessions", err)
	}
	return tag.RowsAffected(), nil
}
