package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"photoforge/internal/types"
)

// Note: mockDBTX and mockRow are defined in sub_repo_test.go.

func TestUsageRepository_GetForPeriod_Found(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUsageRepository(db)

	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	periodStart, periodEnd := types.PeriodBounds(now)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			// The query must target the calendar month containing now.
			queryArgs := args.Get(2).([]any)
			assert.Equal(t, periodStart, queryArgs[1])
		}).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*string) = "user_1"
				*dest[1].(*time.Time) = periodStart
				*dest[2].(*time.Time) = periodEnd
				*dest[3].(*int) = 42
				*dest[4].(*time.Time) = now
				return nil
			},
		})

	usage, err := repo.GetForPeriod(context.Background(), "user_1", now)
	require.NoError(t, err)
	require.NotNil(t, usage)
	assert.Equal(t, 42, usage.UploadCount)
	assert.Equal(t, periodStart, usage.PeriodStart)
}

func TestUsageRepository_GetForPeriod_MissingRowIsZeroUsage(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUsageRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	usage, err := repo.GetForPeriod(context.Background(), "user_1", time.Now().UTC())
	require.NoError(t, err)
	assert.Nil(t, usage)
}

func TestUsageRepository_Increment_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUsageRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Increment(context.Background(), "user_1", time.Now().UTC())
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestUsageRepository_Increment_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUsageRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Increment(context.Background(), "user_1", time.Now().UTC())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestUsageRepository_ResetForPeriod_RowReset(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUsageRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	reset, err := repo.ResetForPeriod(context.Background(), "user_1", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, reset)
}

func TestUsageRepository_ResetForPeriod_NoRowIsCleanNoOp(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUsageRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	reset, err := repo.ResetForPeriod(context.Background(), "user_1", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, reset)
}
