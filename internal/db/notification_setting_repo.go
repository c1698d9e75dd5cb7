package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"boardpulse/internal/types"
)

// NotificationSettingRepository provides data access for the
// notification_settings table, keyed by user id. A missing row means the
// user never opted in; callers treat that as all flags off.
//
// Relevant columns:
//
//	notification_settings(user_id PRIMARY KEY, mentions BOOL, project_activity BOOL)
type NotificationSettingRepository struct {
	db DBTX
}

// NewNotificationSettingRepository creates a NotificationSettingRepository
// backed by the given database connection (pool or transaction).
func NewNotificationSettingRepository(db DBTX) *NotificationSettingRepository {
	return &NotificationSettingRepository{db: db}
}

// Get fetches a user's notification settings. Returns (nil, nil) when the
// user has no settings row.
func (r *NotificationSettingRepository) Get(ctx context.Context, userID string) (*types.NotificationSetting, error) {
	var s types.NotificationSetting
	err := r.db.QueryRow(ctx,
		`SELECT user_id, mentions, project_activity
		 FROM notification_settings WHERE user_id = $1`,
		userID,
	).Scan(&s.UserID, &s.Mentions, &s.ProjectActivity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get notification settings", err)
	}
	return &s, nil
}

// Upsert writes a user's notification settings, creating the row on first
// save.
func (r *NotificationSettingRepository) Upsert(ctx context.Context, s types.NotificationSetting) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO notification_settings (user_id, mentions, project_activity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE
		   SET mentions = EXCLUDED.mentions,
		       project_activity = EXCLUDED.project_activity`,
		s.UserID, s.Mentions, s.ProjectActivity,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert notification settings", err)
	}
	return nil
}
