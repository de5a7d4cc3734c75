package deliver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SlackConfig holds the ops-alerting webhook settings.
type SlackConfig struct {
	WebhookURL string
	Channel    string
	Username   string
	IconEmoji  string
	Timeout    time.Duration
}

// SlackMessage is the webhook payload shape.
type SlackMessage struct {
	Message   string `json:"message"`
	Channel   string `json:"channel"`
	Username  string `json:"username"`
	IconEmoji string `json:"icon_emoji"`
}

// SlackNotifier posts fire-and-forget ops messages to a Slack-compatible
// webhook. No retry; a failure is the caller's to log and forget.
type SlackNotifier struct {
	config SlackConfig
	client *http.Client
}

// NewSlackNotifier creates a Slack notifier.
func NewSlackNotifier(cfg SlackConfig) *SlackNotifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Username == "" {
		cfg.Username = "herald"
	}
	if cfg.IconEmoji == "" {
		cfg.IconEmoji = ":bell:"
	}

	return &SlackNotifier{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether a webhook URL is configured.
func (s *SlackNotifier) Enabled() bool {
	return s.config.WebhookURL != ""
}

// Ping posts a message to the configured webhook. Channel defaults to the
// configured one when the message leaves it empty.
func (s *SlackNotifier) Ping(ctx context.Context, message string) error {
	if !s.Enabled() {
		return fmt.Errorf("slack webhook not configured")
	}

	body, err := json.Marshal(SlackMessage{
		Message:   message,
		Channel:   s.config.Channel,
		Username:  s.config.Username,
		IconEmoji: s.config.IconEmoji,
	})
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, string(preview))
	}

	return nil
}
