package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"boardpulse/internal/types"
)

func TestNotificationSettingRepository_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewNotificationSettingRepository(db)

		db.On("QueryRow", mock.Anything, mock.Anything, []any{"user_1"}).Return(&mockRow{
			scanFn: func(dest ...any) error {
				assignMockValue(dest[0], "user_1")
				assignMockValue(dest[1], true)
				assignMockValue(dest[2], false)
				return nil
			},
		})

		s, err := repo.Get(context.Background(), "user_1")

		require.NoError(t, err)
		require.NotNil(t, s)
		assert.True(t, s.Mentions)
		assert.False(t, s.ProjectActivity)
	})

	t.Run("no row means never opted in", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewNotificationSettingRepository(db)

		db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(&mockRow{scanErr: pgx.ErrNoRows})

		s, err := repo.Get(context.Background(), "user_unknown")

		require.NoError(t, err)
		assert.Nil(t, s)
	})
}

func TestNotificationSettingRepository_Upsert(t *testing.T) {
	db := new(mockDBTX)
	repo := NewNotificationSettingRepository(db)

	db.On("Exec", mock.Anything, mock.Anything, []any{"user_1", true, true}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Upsert(context.Background(), types.NotificationSetting{
		UserID:          "user_1",
		Mentions:        true,
		ProjectActivity: true,
	})

	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestNotificationSettingRepository_UpsertError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewNotificationSettingRepository(db)

	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection reset"))

	err := repo.Upsert(context.Background(), types.NotificationSetting{UserID: "user_1"})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
