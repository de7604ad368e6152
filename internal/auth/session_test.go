package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"photoforge/internal/types"
)

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*types.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionStore struct {
	mock.Mock
}

func (m *mockSessionStore) Create(ctx context.Context, session *types.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *mockSessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, *types.User, error) {
	args := m.Called(ctx, tokenHash)
	var session *types.Session
	var user *types.User
	if s := args.Get(0); s != nil {
		session = s.(*types.Session)
	}
	if u := args.Get(1); u != nil {
		user = u.(*types.User)
	}
	return session, user, args.Error(2)
}

func (m *mockSessionStore) Delete(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockSessionStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newTestService(users *mockUserStore, sessions *mockSessionStore, now time.Time) *SessionService {
	return NewSessionService(users, sessions, DefaultSessionConfig(), fixedClock{now: now}, nil)
}

func hashedUser(t *testing.T, password string) *types.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &types.User{
		ID:           "user_1",
		Email:        "ada@example.com",
		PasswordHash: string(hash),
	}
}

func TestSessionService_Login_Success(t *testing.T) {
	users := new(mockUserStore)
	sessions := new(mockSessionStore)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(users, sessions, now)

	users.On("GetByEmail", mock.Anything, "ada@example.com").
		Return(hashedUser(t, "correct horse"), nil)

	var created *types.Session
	sessions.On("Create", mock.Anything, mock.AnythingOfType("*types.Session")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*types.Session)
		}).
		Return(nil)

	session, rawToken, err := svc.Login(context.Background(), "ada@example.com", "correct horse", "10.0.0.1", "TestBrowser/1.0")
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.True(t, strings.HasPrefix(rawToken, "pft_"))
	assert.Equal(t, HashToken(rawToken), created.TokenHash)
	assert.NotContains(t, created.TokenHash, rawToken)
	assert.Equal(t, now.Add(7*24*time.Hour), session.ExpiresAt)
}

func TestSessionService_Login_WrongPassword(t *testing.T) {
	users := new(mockUserStore)
	sessions := new(mockSessionStore)
	svc := newTestService(users, sessions, time.Now().UTC())

	users.On("GetByEmail", mock.Anything, "ada@example.com").
		Return(hashedUser(t, "correct horse"), nil)

	_, _, err := svc.Login(context.Background(), "ada@example.com", "wrong", "10.0.0.1", "")
	require.Error(t, err)

	appErr := requireAppError(t, err)
	assert.Equal(t, types.ErrCodeAuthInvalidCreds, appErr.Code)
}

func TestSessionService_Login_UnknownEmailSameError(t *testing.T) {
	users := new(mockUserStore)
	sessions := new(mockSessionStore)
	svc := newTestService(users, sessions, time.Now().UTC())

	users.On("GetByEmail", mock.Anything, "ghost@example.com").
		Return(nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil))

	_, _, err := svc.Login(context.Background(), "ghost@example.com", "whatever", "10.0.0.1", "")
	require.Error(t, err)

	appErr := requireAppError(t, err)
	assert.Equal(t, types.ErrCodeAuthInvalidCreds, appErr.Code)
}

func TestSessionService_ResolveToken_Success(t *testing.T) {
	users := new(mockUserStore)
	sessions := new(mockSessionStore)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(users, sessions, now)

	sessions.On("GetByTokenHash", mock.Anything, HashToken("pft_good")).
		Return(
			&types.Session{ID: "sess_1", UserID: "user_1", ExpiresAt: now.Add(time.Hour)},
			&types.User{ID: "user_1", Email: "ada@example.com"},
			nil,
		)

	actor, err := svc.ResolveToken(context.Background(), "pft_good")
	require.NoError(t, err)
	assert.Equal(t, "user_1", actor.UserID)
	assert.Equal(t, "ada@example.com", actor.Email)
}

func TestSessionService_ResolveToken_Unknown(t *testing.T) {
	users := new(mockUserStore)
	sessions := new(mockSessionStore)
	svc := newTestService(users, sessions, time.Now().UTC())

	sessions.On("GetByTokenHash", mock.Anything, mock.AnythingOfType("string")).
		Return(nil, nil, nil)

	_, err := svc.ResolveToken(context.Background(), "pft_bogus")
	require.Error(t, err)

	appErr := requireAppError(t, err)
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, appErr.Code)
}

func TestSessionService_ResolveToken_Expired(t *testing.T) {
	users := new(mockUserStore)
	sessions := new(mockSessionStore)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(users, sessions, now)

	sessions.On("GetByTokenHash", mock.Anything, HashToken("pft_old")).
		Return(
			&types.Session{ID: "sess_old", UserID: "user_1", ExpiresAt: now.Add(-time.Minute)},
			&types.User{ID: "user_1", Email: "ada@example.com"},
			nil,
		)
	sessions.On("Delete", mock.Anything, "sess_old").Return(nil)

	_, err := svc.ResolveToken(context.Background(), "pft_old")
	require.Error(t, err)

	appErr := requireAppError(t, err)
	assert.Equal(t, types.ErrCodeAuthSessionExpired, appErr.Code)
	sessions.AssertCalled(t, "Delete", mock.Anything, "sess_old")
}

func TestSessionService_Logout_UnknownTokenIsNoOp(t *testing.T) {
	users := new(mockUserStore)
	sessions := new(mockSessionStore)
	svc := newTestService(users, sessions, time.Now().UTC())

	sessions.On("GetByTokenHash", mock.Anything, mock.AnythingOfType("string")).
		Return(nil, nil, nil)

	err := svc.Logout(context.Background(), "pft_gone")
	require.NoError(t, err)
}

func requireAppError(t *testing.T, err error) *types.AppError {
	t.Helper()
	appErr, ok := err.(*types.AppError)
	require.True(t, ok, "expected *types.AppError, got %T", err)
	return appErr
}
