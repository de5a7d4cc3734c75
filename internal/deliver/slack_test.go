package deliver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSlackNotifierPing(t *testing.T) {
	var got SlackMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewSlackNotifier(SlackConfig{
		WebhookURL: server.URL,
		Channel:    "#ops",
		Username:   "herald",
		IconEmoji:  ":rotating_light:",
	})

	if err := s.Ping(context.Background(), "rate limit tripped for client api-7"); err != nil {
		t.Fatalf("Ping() failed: %v", err)
	}

	if got.Message != "rate limit tripped for client api-7" {
		t.Errorf("unexpected message: %q", got.Message)
	}
	if got.Channel != "#ops" || got.Username != "herald" || got.IconEmoji != ":rotating_light:" {
		t.Errorf("unexpected envelope fields: %+v", got)
	}
}

func TestSlackNotifierPingFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewSlackNotifier(SlackConfig{WebhookURL: server.URL})
	if err := s.Ping(context.Background(), "msg"); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestSlackNotifierDisabled(t *testing.T) {
	s := NewSlackNotifier(SlackConfig{})
	if s.Enabled() {
		t.Error("notifier without webhook URL should be disabled")
	}
	if err := s.Ping(context.Background(), "msg"); err == nil {
		t.Error("expected error when webhook not configured")
	}
}
