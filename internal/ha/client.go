// Package ha talks to the Home Assistant core API through the Supervisor.
// Every call is best-effort: failures are logged and reported as a false
// return, never as an error, so notification trouble cannot unwind a sync
// pass that already wrote secrets.
package ha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/systmms/opsync/internal/metrics"
)

// Sink is the event and notification contract consumed by the sync engine.
type Sink interface {
	// Available reports whether the Supervisor API can be reached at all
	// (i.e. a token was provided).
	Available() bool

	// FireEvent posts a custom event. A timestamp is always injected into
	// the payload.
	FireEvent(ctx context.Context, eventType string, data map[string]interface{}) bool

	// SendNotification creates (or updates, when notificationID is reused)
	// a persistent notification.
	SendNotification(ctx context.Context, title, message, notificationID string) bool

	// DismissNotification removes a persistent notification.
	DismissNotification(ctx context.Context, notificationID string) bool
}

// EventError is fired whenever something goes wrong; other event types are
// derived per occasion, all prefixed with "onepassword_".
const (
	EventError             = "onepassword_error"
	EventSecretWritten     = "onepassword_secret_written"
	EventSecretsSynced     = "onepassword_secrets_synced"
	EventSecretAssigned    = "onepassword_secret_assigned"
	EventSecretUnassigned  = "onepassword_secret_unassigned"
	EventItemRefreshed     = "onepassword_item_refreshed"
	EventSecretSkipToggled = "onepassword_secret_skip_toggled"
)

// SyncNotificationID is reused across sync notifications so Home Assistant
// updates the existing notification instead of stacking new ones.
const SyncNotificationID = "onepassword_sync_notification"

// GroupUpdatedEvent derives the per-group event type.
func GroupUpdatedEvent(groupName string) string {
	return fmt.Sprintf("onepassword_group_%s_updated", groupName)
}

// Client implements Sink against the Supervisor API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.SugaredLogger
}

// NewClient creates a Supervisor API client. An empty token yields a
// client that skips all deliveries.
func NewClient(baseURL, token string, logger *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (c *Client) Available() bool {
	return c.token != ""
}

func (c *Client) FireEvent(ctx context.Context, eventType string, data map[string]interface{}) bool {
	if !c.Available() {
		c.logger.Debugw("supervisor API not available, skipping event", "event", eventType)
		return false
	}

	payload := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["timestamp"] = time.Now().Format(time.RFC3339)

	if err := c.post(ctx, "/events/"+eventType, payload); err != nil {
		c.logger.Errorw("failed to fire event", "event", eventType, "error", err)
		metrics.NotificationFailures.Inc()
		// Report the delivery failure itself, but never recurse.
		if eventType != EventError {
			c.FireEvent(ctx, EventError, map[string]interface{}{
				"errorType":       "event_fire_failed",
				"failedEventType": eventType,
				"error":           err.Error(),
			})
		}
		return false
	}

	c.logger.Debugw("fired event", "event", eventType)
	return true
}

func (c *Client) SendNotification(ctx context.Context, title, message, notificationID string) bool {
	if !c.Available() {
		c.logger.Debugw("supervisor API not available, skipping notification", "title", title)
		return false
	}

	payload := map[string]interface{}{
		"title":   title,
		"message": message,
	}
	if notificationID != "" {
		payload["notification_id"] = notificationID
	}

	if err := c.post(ctx, "/services/persistent_notification/create", payload); err != nil {
		c.logger.Errorw("failed to send notification", "title", title, "error", err)
		metrics.NotificationFailures.Inc()
		c.FireEvent(ctx, EventError, map[string]interface{}{
			"errorType": "notification_failed",
			"title":     title,
			"error":     err.Error(),
		})
		return false
	}

	c.logger.Debugw("sent notification", "title", title)
	return true
}

func (c *Client) DismissNotification(ctx context.Context, notificationID string) bool {
	if !c.Available() {
		return false
	}

	payload := map[string]interface{}{"notification_id": notificationID}
	if err := c.post(ctx, "/services/persistent_notification/dismiss", payload); err != nil {
		c.logger.Errorw("failed to dismiss notification", "id", notificationID, "error", err)
		return false
	}
	return true
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("supervisor returned status %d", resp.StatusCode)
	}
	return nil
}
