package stream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/heraldhq/herald/internal/event"
	"github.com/heraldhq/herald/internal/store"
)

func int64Ptr(v int64) *int64 { return &v }

func TestMessage_Marshal(t *testing.T) {
	msg := Message{
		NotificationID: "0d1f9c3a-1111-2222-3333-444455556666",
		UserID:         int64Ptr(7),
		NotifiableType: event.NotifiableComment,
		NotifiableID:   42,
		Action:         "new_comment",
		CreatedAt:      time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal message: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}

	if decoded.NotificationID != msg.NotificationID {
		t.Errorf("NotificationID mismatch: got %s, want %s", decoded.NotificationID, msg.NotificationID)
	}
	if decoded.NotifiableType != msg.NotifiableType {
		t.Errorf("NotifiableType mismatch: got %s, want %s", decoded.NotifiableType, msg.NotifiableType)
	}
	if decoded.UserID == nil || *decoded.UserID != 7 {
		t.Errorf("UserID mismatch: got %v", decoded.UserID)
	}
}

func TestMessage_OptionalFields(t *testing.T) {
	msg := Message{
		NotificationID: "0d1f9c3a-1111-2222-3333-444455556666",
		OrganizationID: int64Ptr(12),
		NotifiableType: event.NotifiableArticle,
		NotifiableID:   9,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal message: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if _, ok := decoded["user_id"]; ok {
		t.Error("user_id should be omitted for organization notifications")
	}
	if _, ok := decoded["action"]; ok {
		t.Error("action should be omitted when empty")
	}
	if _, ok := decoded["organization_id"]; !ok {
		t.Error("organization_id missing from wire format")
	}
}

func TestFromNotification(t *testing.T) {
	action := "new_mention"
	n := &store.Notification{
		ID:             uuid.New(),
		UserID:         int64Ptr(7),
		NotifiableType: event.NotifiableMention,
		NotifiableID:   3,
		Action:         &action,
		CreatedAt:      time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
	}

	msg := FromNotification(n)

	if msg.NotificationID != n.ID.String() {
		t.Errorf("NotificationID mismatch: got %s, want %s", msg.NotificationID, n.ID.String())
	}
	if msg.Action != "new_mention" {
		t.Errorf("Action mismatch: got %s", msg.Action)
	}
	if msg.NotifiableID != 3 {
		t.Errorf("NotifiableID mismatch: got %d", msg.NotifiableID)
	}
	if !msg.CreatedAt.Equal(n.CreatedAt) {
		t.Errorf("CreatedAt mismatch: got %v, want %v", msg.CreatedAt, n.CreatedAt)
	}
}
