package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/heraldhq/herald/internal/event"
)

// Notification is a persisted in-app notification. Exactly one of UserID and
// OrganizationID is set; the database enforces both that and uniqueness per
// (recipient, notifiable_type, notifiable_id). Rows are created once and
// never mutated afterward; they go away only when the notifiable is purged.
type Notification struct {
	ID             uuid.UUID            `json:"id"`
	UserID         *int64               `json:"user_id,omitempty"`
	OrganizationID *int64               `json:"organization_id,omitempty"`
	NotifiableType event.NotifiableKind `json:"notifiable_type"`
	NotifiableID   int64                `json:"notifiable_id"`
	Action         *string              `json:"action,omitempty"`
	JSONData       json.RawMessage      `json:"json_data"`
	CreatedAt      time.Time            `json:"created_at"`
}

// Notifiable returns the typed reference this notification points at.
func (n *Notification) Notifiable() event.Ref {
	return event.Ref{Kind: n.NotifiableType, ID: n.NotifiableID}
}

// Setting holds the per-user delivery toggles read by the push dispatcher.
// Read-only from this service's perspective.
type Setting struct {
	UserID                     int64 `json:"user_id"`
	MobileCommentNotifications bool  `json:"mobile_comment_notifications"`
	MobileMentionNotifications bool  `json:"mobile_mention_notifications"`
	EmailCommentNotifications  bool  `json:"email_comment_notifications"`
}

// DefaultSetting is what a user without a settings row gets: everything on.
func DefaultSetting(userID int64) Setting {
	return Setting{
		UserID:                     userID,
		MobileCommentNotifications: true,
		MobileMentionNotifications: true,
		EmailCommentNotifications:  true,
	}
}
