// Package auth implements login, session management, and request
// authentication for the PhotoForge platform.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"photoforge/internal/types"
)

// SessionConfig holds configuration for session management.
type SessionConfig struct {
	// SessionDuration is the lifetime of a new session. Default: 7 days.
	SessionDuration time.Duration

	// TokenPrefix is prepended to raw bearer tokens ("pft_").
	TokenPrefix string
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SessionDuration: 7 * 24 * time.Hour,
		TokenPrefix:     "pft_",
	}
}

// UserStore defines the identity lookups needed by the session service.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*types.User, error)
}

// SessionStore defines the data access methods needed by the session
// service. Only token hashes cross this boundary.
type SessionStore interface {
	Create(ctx context.Context, session *types.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, *types.User, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// dummyBcryptHash is compared against when the email does not resolve, so
// that login latency does not reveal account existence.
var dummyBcryptHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// SessionService authenticates users and resolves bearer tokens into
// request actors.
type SessionService struct {
	users    UserStore
	sessions SessionStore
	config   SessionConfig
	clock    types.Clock
	logger   *slog.Logger
}

// NewSessionService creates a session service.
func NewSessionService(users UserStore, sessions SessionStore, config SessionConfig, clock types.Clock, logger *slog.Logger) *SessionService {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		users:    users,
		sessions: sessions,
		config:   config,
		clock:    clock,
		logger:   logger,
	}
}

// Login verifies credentials and creates a session. Returns the session and
// the raw bearer token; the token is never stored or logged, only its hash.
//
// Unknown emails and wrong passwords produce the same error so responses do
// not leak which accounts exist.
func (s *SessionService) Login(ctx context.Context, email, password, ip, userAgent string) (*types.Session, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundUser {
			_ = bcrypt.CompareHashAndPassword(dummyBcryptHash, []byte(password))
			return nil, "", types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.InfoContext(ctx, "login rejected", "user_id", user.ID, "ip", ip)
		return nil, "", types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)
	}

	rawToken, err := s.generateToken()
	if err != nil {
		return nil, "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate session token", err)
	}

	now := s.clock.Now()
	session := &types.Session{
		ID:        "sess_" + uuid.NewString(),
		UserID:    user.ID,
		TokenHash: HashToken(rawToken),
		IPAddress: ip,
		UserAgent: userAgent,
		ExpiresAt: now.Add(s.config.SessionDuration),
		CreatedAt: now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", err
	}

	s.logger.InfoContext(ctx, "session created",
		"session_id", session.ID,
		"user_id", user.ID,
	)

	return session, rawToken, nil
}

// ResolveToken implements the request authenticator contract. It maps a raw
// bearer token onto an actor, rejecting unknown and expired sessions.
func (s *SessionService) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	session, user, err := s.sessions.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid session token", nil)
	}

	if s.clock.Now().After(session.ExpiresAt) {
		// Best effort cleanup; the scheduled prune catches it otherwise.
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to delete expired session",
				"session_id", session.ID, "error", err)
		}
		return nil, types.NewAppError(types.ErrCodeAuthSessionExpired, "session has expired", nil)
	}

	return &types.Actor{UserID: user.ID, Email: user.Email}, nil
}

// Logout invalidates the session identified by the raw token. Unknown
// tokens are a no-op so logout is idempotent.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	session, _, err := s.sessions.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "session invalidated", "session_id", session.ID)
	return nil
}

// PruneExpired removes sessions that expired before now.
func (s *SessionService) PruneExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.clock.Now())
}

func (s *SessionService) generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading entropy: %w", err)
	}
	return s.config.TokenPrefix + hex.EncodeToString(buf), nil
}

// HashToken returns the hex-encoded SHA-256 digest of a raw token. The
// digest is what the session table stores and indexes.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// HashPassword produces a bcrypt hash for account provisioning tooling.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
