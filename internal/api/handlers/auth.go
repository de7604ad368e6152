// This file implements the session endpoints: login and logout. Login is
// public; logout requires the bearer token it revokes.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"photoforge/internal/core"
	"photoforge/internal/types"
)

// SessionManager is the contract the auth handler drives.
type SessionManager interface {
	// Login verifies credentials and creates a session. The returned string
	// is the raw bearer token, shown to the client exactly once.
	Login(ctx context.Context, email, password, ip, userAgent string) (*types.Session, string, error)

	// Logout revokes the session for the given raw token. Unknown tokens
	// are a no-op.
	Logout(ctx context.Context, token string) error
}

// LoginRequest is the request body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the raw session token and its expiry.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *types.User `json:"user"`
}

// AuthHandler handles session lifecycle endpoints.
type AuthHandler struct {
	sessions  SessionManager
	users     UserReader
	validator *core.Validator
	logger    *slog.Logger
}

// UserReader loads the user profile returned alongside a fresh session.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// NewAuthHandler creates a new AuthHandler with the provided dependencies.
func NewAuthHandler(sessions SessionManager, users UserReader, v *core.Validator, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		sessions:  sessions,
		users:     users,
		validator: v,
		logger:    logger,
	}
}

// RegisterRoutes mounts the auth endpoints.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	session, token, err := h.sessions.Login(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var user *types.User
	if h.users != nil {
		user, err = h.users.GetByID(r.Context(), session.UserID)
		if err != nil {
			h.logger.WarnContext(r.Context(), "failed to load user after login",
				"user_id", session.UserID,
				"error", err,
			)
		}
	}

	core.JSON(w, r, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      user,
	})
}

// Logout handles POST /v1/auth/logout. Revokes the bearer token presented
// on this request; an already-revoked token still yields 204.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Bearer token is required",
			nil,
		))
		return
	}

	if err := h.sessions.Logout(r.Context(), token); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// clientIP returns the remote address without the port, preferring the
// X-Forwarded-For value set by the load balancer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}
