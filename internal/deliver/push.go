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

// PushSecretKeyLength is the expected length of a push service secret key.
// A key of any other length disables push silently rather than erroring.
const PushSecretKeyLength = 64

// PushBodyLimit bounds the alert body pushed to devices.
const PushBodyLimit = 115

// PushConfig holds the mobile push integration settings. Configuration is
// passed in at construction; nothing is read from the environment at call
// time.
type PushConfig struct {
	InstanceID string
	SecretKey  string
	BaseURL    string // defaults to the instance endpoint when empty
	Timeout    time.Duration
}

// Note is the content of one push message.
type Note struct {
	Title string
	Body  string
	URL   string // deep link into the app
}

// PushClient publishes interest-addressed push messages over HTTP. Messages
// for a user are published to the interest "user-notifications-<user_id>".
type PushClient struct {
	config PushConfig
	client *http.Client
}

// NewPushClient creates a push client. The client is always constructed;
// Enabled gates whether Publish does anything.
func NewPushClient(cfg PushConfig) *PushClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BaseURL == "" && cfg.InstanceID != "" {
		cfg.BaseURL = fmt.Sprintf("https://%s.pushnotifications.pusher.com", cfg.InstanceID)
	}

	return &PushClient{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether the integration is configured with a key of the
// expected shape.
func (c *PushClient) Enabled() bool {
	return c.config.InstanceID != "" && len(c.config.SecretKey) == PushSecretKeyLength
}

type pushRequest struct {
	Interests []string  `json:"interests"`
	APNS      apnsBlock `json:"apns"`
	Data      pushData  `json:"data"`
}

type apnsBlock struct {
	APS apsBlock `json:"aps"`
}

type apsBlock struct {
	Alert apsAlert `json:"alert"`
}

type apsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushData struct {
	URL string `json:"url"`
}

// Interest returns the interest string addressing a user's devices.
func Interest(userID int64) string {
	return fmt.Sprintf("user-notifications-%d", userID)
}

// Publish sends a push note to all devices subscribed to the user's
// interest. The caller owns failure handling; Publish only reports it.
func (c *PushClient) Publish(ctx context.Context, userID int64, note Note) error {
	if !c.Enabled() {
		return fmt.Errorf("push integration not configured")
	}

	body, err := json.Marshal(pushRequest{
		Interests: []string{Interest(userID)},
		APNS:      apnsBlock{APS: apsBlock{Alert: apsAlert{Title: note.Title, Body: note.Body}}},
		Data:      pushData{URL: note.URL},
	})
	if err != nil {
		return fmt.Errorf("marshal push request: %w", err)
	}

	url := fmt.Sprintf("%s/publish_api/v1/instances/%s/publishes/interests",
		c.config.BaseURL, c.config.InstanceID)

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push service returned %d: %s", resp.StatusCode, string(preview))
	}

	return nil
}
