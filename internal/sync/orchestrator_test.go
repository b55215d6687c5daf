package sync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/opsync/internal/groups"
	"github.com/systmms/opsync/internal/ha"
	"github.com/systmms/opsync/internal/logging"
	"github.com/systmms/opsync/internal/op"
	"github.com/systmms/opsync/internal/ratelimit"
	"github.com/systmms/opsync/internal/store"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	vault        *fakeVault
	files        *fakeFiles
	sink         *fakeSink
	secrets      store.SecretRepo
	settings     store.SettingRepo
	groups       *groups.Service
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()

	db := openTestDB(t)
	vault := &fakeVault{details: map[string]op.Item{}, references: map[string]string{}}
	files := newFakeFiles()
	sink := &fakeSink{}
	logger := logging.NewNop()

	itemRepo := store.NewItemRepo(db)
	secretRepo := store.NewSecretRepo(db)
	settingRepo := store.NewSettingRepo(db)
	groupSvc := groups.NewService(store.NewGroupRepo(db), logger)

	cache := NewItemCache(vault, itemRepo, secretRepo, settingRepo, sink, time.Minute, logger)
	reconciler := NewReconciler(files, secretRepo, groupSvc, sink, logger)
	limits := ratelimit.NewTracker(vault, settingRepo, logger)

	return &orchestratorFixture{
		orchestrator: NewOrchestrator(cache, reconciler, groupSvc, sink, limits, logger),
		vault:        vault,
		files:        files,
		sink:         sink,
		secrets:      secretRepo,
		settings:     settingRepo,
		groups:       groupSvc,
	}
}

func TestSyncNoChanges(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t)

	result, err := f.orchestrator.Sync(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, result.ChangedSecrets)
	assert.Empty(t, result.ChangedGroups)

	assert.Empty(t, f.sink.notifications, "no notification for an empty pass")
	assert.Empty(t, f.sink.eventsOfType(ha.EventSecretsSynced))

	// Rate limits are still refreshed opportunistically.
	_, found, err := f.settings.Get(context.Background(), store.SettingRateLimits)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSyncWritesChangedSecrets(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t)
	ctx := context.Background()

	f.files.referenced = []string{"wifi_password"}
	f.files.existing = []string{"wifi_password"}

	require.NoError(t, f.secrets.CreateIfAbsent(ctx, "wifi_password"))
	require.NoError(t, f.secrets.Assign(ctx, "wifi_password", "i1", "op://Home/Router/password"))

	_, err := f.groups.Create(ctx, "network", nil, []string{"wifi_password"})
	require.NoError(t, err)

	f.vault.items = []op.Item{{
		ID:        "i1",
		Title:     "Router",
		Vault:     op.Vault{ID: "v1", Name: "Home"},
		UpdatedAt: time.Now(),
	}}
	f.vault.references["op://Home/Router/password"] = "hunter2"

	result, err := f.orchestrator.Sync(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"wifi_password"}, result.ChangedSecrets)
	require.Len(t, result.ChangedGroups, 1)
	assert.Equal(t, "network", result.ChangedGroups[0].Name)

	assert.Equal(t, "hunter2", f.files.values["wifi_password"])

	syncedEvents := f.sink.eventsOfType(ha.EventSecretsSynced)
	require.Len(t, syncedEvents, 1)
	assert.Equal(t, 1, syncedEvents[0].Data["changedCount"])

	require.Len(t, f.sink.notifications, 1)
	assert.Contains(t, f.sink.notifications[0], "Updated 1 secret: wifi_password")
	assert.False(t, strings.Contains(f.sink.notifications[0], "secrets"), "singular wording for one change")
}

func TestSyncFailureFiresErrorEvent(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t)
	f.files.scanErr = errors.New("config folder unreadable")

	_, err := f.orchestrator.Sync(context.Background(), true)
	require.Error(t, err)

	errorEvents := f.sink.eventsOfType(ha.EventError)
	require.Len(t, errorEvents, 1)
	assert.Equal(t, "sync_failed", errorEvents[0].Data["errorType"])
	assert.Empty(t, f.files.values, "nothing was written")
}

func TestSyncWriteFailureAborts(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t)
	ctx := context.Background()

	require.NoError(t, f.secrets.CreateIfAbsent(ctx, "wifi_password"))
	require.NoError(t, f.secrets.Assign(ctx, "wifi_password", "i1", "op://Home/Router/password"))
	f.vault.items = []op.Item{{
		ID:        "i1",
		Title:     "Router",
		Vault:     op.Vault{ID: "v1", Name: "Home"},
		UpdatedAt: time.Now(),
	}}
	f.vault.references["op://Home/Router/password"] = "hunter2"
	f.files.applyErr = errors.New("disk full")

	_, err := f.orchestrator.Sync(ctx, true)
	require.Error(t, err)

	assert.Empty(t, f.sink.notifications)
	assert.NotEmpty(t, f.sink.eventsOfType(ha.EventError))
}

func TestSyncNotificationMessagePlural(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Updated 1 secret: a", syncNotificationMessage([]string{"a"}))
	assert.Equal(t, "Updated 2 secrets: a, b", syncNotificationMessage([]string{"a", "b"}))
}
