package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Settings reads per-user notification settings.
type Settings struct {
	db     *DB
	logger *zap.Logger
}

// NewSettings creates a settings reader.
func NewSettings(db *DB, logger *zap.Logger) *Settings {
	return &Settings{db: db, logger: logger}
}

// Get returns the settings for a user. Users without a row get the
// all-enabled defaults.
func (r *Settings) Get(ctx context.Context, userID int64) (Setting, error) {
	query := `
		SELECT
			user_id, mobile_comment_notifications,
			mobile_mention_notifications, email_comment_notifications
		FROM notification_settings
		WHERE user_id = $1
	`

	var s Setting
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&s.UserID,
		&s.MobileCommentNotifications,
		&s.MobileMentionNotifications,
		&s.EmailCommentNotifications,
	)

	if err == pgx.ErrNoRows {
		return DefaultSetting(userID), nil
	}

	if err != nil {
		return Setting{}, fmt.Errorf("query notification settings: %w", err)
	}

	return s, nil
}
