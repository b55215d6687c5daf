package ha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/opsync/internal/logging"
)

type recordedCall struct {
	Path    string
	Auth    string
	Payload map[string]interface{}
}

// newTestServer records every Supervisor call and answers with the given
// status.
func newTestServer(t *testing.T, status int) (*httptest.Server, func() []recordedCall) {
	t.Helper()

	var mu sync.Mutex
	var calls []recordedCall

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		mu.Lock()
		calls = append(calls, recordedCall{
			Path:    r.URL.Path,
			Auth:    r.Header.Get("Authorization"),
			Payload: payload,
		})
		mu.Unlock()

		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedCall(nil), calls...)
	}
}

func TestClientAvailable(t *testing.T) {
	t.Parallel()

	logger := logging.NewNop()
	assert.True(t, NewClient("http://x", "token", logger).Available())
	assert.False(t, NewClient("http://x", "", logger).Available())
}

func TestFireEvent(t *testing.T) {
	t.Parallel()

	srv, calls := newTestServer(t, http.StatusOK)
	client := NewClient(srv.URL, "token", logging.NewNop())

	ok := client.FireEvent(context.Background(), EventSecretWritten, map[string]interface{}{
		"secretName": "wifi_password",
	})
	assert.True(t, ok)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/events/"+EventSecretWritten, got[0].Path)
	assert.Equal(t, "Bearer token", got[0].Auth)
	assert.Equal(t, "wifi_password", got[0].Payload["secretName"])
	assert.NotEmpty(t, got[0].Payload["timestamp"], "timestamp is always injected")
}

func TestFireEventWithoutToken(t *testing.T) {
	t.Parallel()

	srv, calls := newTestServer(t, http.StatusOK)
	client := NewClient(srv.URL, "", logging.NewNop())

	ok := client.FireEvent(context.Background(), EventSecretsSynced, nil)
	assert.False(t, ok)
	assert.Empty(t, calls(), "no token means no delivery attempt")
}

func TestFireEventFailureReportsErrorEventOnce(t *testing.T) {
	t.Parallel()

	srv, calls := newTestServer(t, http.StatusBadGateway)
	client := NewClient(srv.URL, "token", logging.NewNop())

	ok := client.FireEvent(context.Background(), EventSecretsSynced, nil)
	assert.False(t, ok)

	got := calls()
	// The failed event plus exactly one error report; the error report's
	// own failure never recurses.
	require.Len(t, got, 2)
	assert.Equal(t, "/events/"+EventSecretsSynced, got[0].Path)
	assert.Equal(t, "/events/"+EventError, got[1].Path)
	assert.Equal(t, "event_fire_failed", got[1].Payload["errorType"])
}

func TestSendNotification(t *testing.T) {
	t.Parallel()

	srv, calls := newTestServer(t, http.StatusOK)
	client := NewClient(srv.URL, "token", logging.NewNop())

	ok := client.SendNotification(context.Background(), "1Password Secrets Updated", "Updated 1 secret: wifi_password", SyncNotificationID)
	assert.True(t, ok)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/services/persistent_notification/create", got[0].Path)
	assert.Equal(t, "1Password Secrets Updated", got[0].Payload["title"])
	assert.Equal(t, SyncNotificationID, got[0].Payload["notification_id"])
}

func TestDismissNotification(t *testing.T) {
	t.Parallel()

	srv, calls := newTestServer(t, http.StatusOK)
	client := NewClient(srv.URL, "token", logging.NewNop())

	ok := client.DismissNotification(context.Background(), SyncNotificationID)
	assert.True(t, ok)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/services/persistent_notification/dismiss", got[0].Path)
	assert.Equal(t, SyncNotificationID, got[0].Payload["notification_id"])
}

func TestGroupUpdatedEventName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "onepassword_group_network_updated", GroupUpdatedEvent("network"))
}
