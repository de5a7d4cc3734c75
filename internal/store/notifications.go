package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/heraldhq/herald/internal/event"
)

// Notifications handles database operations for notification rows.
type Notifications struct {
	db     *DB
	logger *zap.Logger
}

// NewNotifications creates a notifications repository.
func NewNotifications(db *DB, logger *zap.Logger) *Notifications {
	return &Notifications{db: db, logger: logger}
}

// Create inserts a notification. The unique indexes on
// (user_id|organization_id, notifiable_type, notifiable_id, action) make
// this idempotent under at-least-once dispatch: a duplicate insert is a
// no-op and Create reports created=false so the caller skips external
// delivery.
func (r *Notifications) Create(ctx context.Context, notif *Notification) (bool, error) {
	query := `
		INSERT INTO notifications (
			id, user_id, organization_id, notifiable_type, notifiable_id,
			action, json_data
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		ON CONFLICT DO NOTHING
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		notif.ID,
		notif.UserID,
		notif.OrganizationID,
		notif.NotifiableType,
		notif.NotifiableID,
		notif.Action,
		notif.JSONData,
	).Scan(&notif.CreatedAt)

	if err == pgx.ErrNoRows {
		// Conflict: a notification for this recipient and notifiable exists.
		r.logger.Debug("duplicate notification skipped",
			zap.String("notifiable", notif.Notifiable().String()),
		)
		return false, nil
	}

	if err != nil {
		r.logger.Error("failed to create notification",
			zap.Error(err),
			zap.String("notification_id", notif.ID.String()),
		)
		return false, fmt.Errorf("insert notification: %w", err)
	}

	return true, nil
}

// ListByUser retrieves a user's notifications, newest first.
func (r *Notifications) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Notification, error) {
	query := `
		SELECT
			id, user_id, organization_id, notifiable_type, notifiable_id,
			action, json_data, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		var notif Notification
		err := rows.Scan(
			&notif.ID,
			&notif.UserID,
			&notif.OrganizationID,
			&notif.NotifiableType,
			&notif.NotifiableID,
			&notif.Action,
			&notif.JSONData,
			&notif.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, &notif)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return notifications, nil
}

// DeleteMentions bulk-removes notifications referencing mention rows that an
// edit deleted. The platform removes the mention rows themselves; this is the
// second step of the referential cleanup.
func (r *Notifications) DeleteMentions(ctx context.Context, mentionIDs []int64) (int64, error) {
	if len(mentionIDs) == 0 {
		return 0, nil
	}

	query := `
		DELETE FROM notifications
		WHERE notifiable_type = $1 AND notifiable_id = ANY($2)
	`

	result, err := r.db.Pool().Exec(ctx, query, event.NotifiableMention, mentionIDs)
	if err != nil {
		return 0, fmt.Errorf("delete mention notifications: %w", err)
	}

	removed := result.RowsAffected()
	if removed > 0 {
		r.logger.Info("mention notifications removed",
			zap.Int64("count", removed),
			zap.Int("mention_ids", len(mentionIDs)),
		)
	}

	return removed, nil
}

// DeleteByNotifiable purges all notifications for a notifiable, used when the
// underlying entity is deleted or moderated away.
func (r *Notifications) DeleteByNotifiable(ctx context.Context, ref event.Ref) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE notifiable_type = $1 AND notifiable_id = $2
	`

	result, err := r.db.Pool().Exec(ctx, query, ref.Kind, ref.ID)
	if err != nil {
		return 0, fmt.Errorf("delete notifications for %s: %w", ref, err)
	}

	removed := result.RowsAffected()
	r.logger.Info("notifications purged",
		zap.String("notifiable", ref.String()),
		zap.Int64("count", removed),
	)

	return removed, nil
}
