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

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- SubscriptionRepository Tests ---

func testSubscription(eventAt time.Time) *types.UserSubscription {
	return &types.UserSubscription{
		ID:               "sub_123",
		UserID:           "user_1",
		PriceID:          "price_pro_monthly",
		StripeCustomerID: "cus_abc",
		Status:           types.SubStatusActive,
		CurrentPeriodEnd: eventAt.AddDate(0, 1, 0),
		LastEventAt:      eventAt,
	}
}

func TestSubscriptionRepository_Upsert_Insert(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Upsert(context.Background(), testSubscription(time.Now().UTC()))
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestSubscriptionRepository_Upsert_StaleEventIsNoOp(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db, nil)

	// The guarded upsert affects 0 rows when the stored event is newer.
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil)

	staleEventAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	err := repo.Upsert(context.Background(), testSubscription(staleEventAt))
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestSubscriptionRepository_Upsert_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Upsert(context.Background(), testSubscription(time.Now().UTC()))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestSubscriptionRepository_MarkCanceled_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.MarkCanceled(context.Background(), "sub_123", time.Now().UTC())
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestSubscriptionRepository_MarkCanceled_UnknownSubscriptionIsNoOp(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.MarkCanceled(context.Background(), "sub_nonexistent", time.Now().UTC())
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestSubscriptionRepository_MarkCanceled_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("timeout"))

	err := repo.MarkCanceled(context.Background(), "sub_123", time.Now().UTC())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestSubscriptionRepository_GetByUserID_Found(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db, nil)

	now := time.Now().UTC()
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*string) = "sub_123"
				*dest[1].(*string) = "user_1"
				*dest[2].(*string) = "price_pro_monthly"
				*dest[3].(*string) = "cus_abc"
				*dest[4].(*types.SubscriptionStatus) = types.SubStatusActive
				*dest[5].(*time.Time) = now.AddDate(0, 1, 0)
				*dest[6].(*time.Time) = now
				*dest[7].(*time.Time) = now
				*dest[8].(*time.Time) = now
				return nil
			},
		})

	sub, err := repo.GetByUserID(context.Background(), "user_1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "sub_123", sub.ID)
	assert.Equal(t, types.SubStatusActive, sub.Status)
}

func TestSubscriptionRepository_GetByUserID_None(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSubscriptionRepository(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	sub, err := repo.GetByUserID(context.Background(), "user_without_sub")
	require.NoError(t, err)
	assert.Nil(t, sub)
}
