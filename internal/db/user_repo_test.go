package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"photoforge/internal/types"
)

// Note: mockDBTX and mockRow are defined in sub_repo_test.go.

func TestUserRepository_GetByEmail_Found(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			// Lookup is case-insensitive: the query argument is lowercased.
			queryArgs := args.Get(2).([]any)
			assert.Equal(t, "ada@example.com", queryArgs[0])
		}).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*string) = "user_1"
				*dest[1].(*string) = "ada@example.com"
				*dest[2].(*string) = "$2a$10$hash"
				*dest[3].(*time.Time) = time.Now().UTC()
				return nil
			},
		})

	user, err := repo.GetByEmail(context.Background(), "Ada@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "user_1", user.ID)
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundUser, appErr.Code)
}

func TestUserRepository_GetByID_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection refused")})

	_, err := repo.GetByID(context.Background(), "user_1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
