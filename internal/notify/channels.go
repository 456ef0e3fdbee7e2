package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"loanforge.org/internal/obs"
)

// LogChannel writes notifications as structured log lines. It is the
// default channel in dev mode and keeps the dispatcher exercised when no
// real delivery backend is configured.
type LogChannel struct{}

func (LogChannel) Type() string { return "log" }

func (LogChannel) Send(_ context.Context, n Notification) error {
	obs.LogRequest(map[string]any{
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"level":   "info",
		"msg":     "notification",
		"user_id": n.UserID,
		"title":   n.Title,
		"body":    n.Body,
	})
	return nil
}

// WebhookChannel POSTs notifications as JSON to an external delivery
// service (the push/email gateway is an external collaborator).
type WebhookChannel struct {
	URL    string
	Client *http.Client
}

// NewWebhookChannel constructs a webhook channel with a bounded client.
func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (*WebhookChannel) Type() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
