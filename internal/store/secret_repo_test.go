package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opsyncerrors "github.com/systmms/opsync/internal/errors"
)

func TestSecretRepoCreateIfAbsentKeepsExistingState(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	repo := NewSecretRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateIfAbsent(ctx, "wifi_password"))
	require.NoError(t, repo.Assign(ctx, "wifi_password", "i1", "op://Home/Router/password"))

	// Rediscovery of a known key must not wipe the assignment.
	require.NoError(t, repo.CreateIfAbsent(ctx, "wifi_password"))

	secret, err := repo.Get(ctx, "wifi_password")
	require.NoError(t, err)
	require.NotNil(t, secret)
	require.NotNil(t, secret.Reference)
	assert.Equal(t, "op://Home/Router/password", *secret.Reference)
}

func TestSecretRepoAssignUnassign(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	repo := NewSecretRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateIfAbsent(ctx, "api_key"))
	require.NoError(t, repo.Assign(ctx, "api_key", "i1", "op://Home/Service/credential"))

	secret, err := repo.Get(ctx, "api_key")
	require.NoError(t, err)
	require.NotNil(t, secret.ItemID)
	require.NotNil(t, secret.Reference)

	require.NoError(t, repo.Unassign(ctx, "api_key"))

	secret, err = repo.Get(ctx, "api_key")
	require.NoError(t, err)
	assert.Nil(t, secret.ItemID, "item link and reference clear together")
	assert.Nil(t, secret.Reference)
}

func TestSecretRepoAssignMissingSecret(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	repo := NewSecretRepo(db)

	err := repo.Assign(context.Background(), "ghost", "i1", "op://x/y/z")
	assert.True(t, opsyncerrors.IsNotFound(err))

	err = repo.Unassign(context.Background(), "ghost")
	assert.True(t, opsyncerrors.IsNotFound(err))
}

func TestSecretRepoListOrdering(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	repo := NewSecretRepo(db)
	ctx := context.Background()

	for _, id := range []string{"b_unassigned", "a_assigned", "c_skipped"} {
		require.NoError(t, repo.CreateIfAbsent(ctx, id))
	}
	require.NoError(t, repo.Assign(ctx, "a_assigned", "i1", "op://Home/Item/field"))
	_, _, err := repo.ToggleSkip(ctx, "c_skipped")
	require.NoError(t, err)

	secrets, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, secrets, 3)

	// Visible secrets first, assigned before unassigned, skipped last.
	assert.Equal(t, "a_assigned", secrets[0].ID)
	assert.Equal(t, "b_unassigned", secrets[1].ID)
	assert.Equal(t, "c_skipped", secrets[2].ID)
}

func TestSecretRepoListAssignedExcludesSkipped(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	repo := NewSecretRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateIfAbsent(ctx, "active"))
	require.NoError(t, repo.CreateIfAbsent(ctx, "paused"))
	require.NoError(t, repo.CreateIfAbsent(ctx, "bare"))
	require.NoError(t, repo.Assign(ctx, "active", "i1", "op://a/b/c"))
	require.NoError(t, repo.Assign(ctx, "paused", "i2", "op://a/b/d"))
	_, _, err := repo.ToggleSkip(ctx, "paused")
	require.NoError(t, err)

	assigned, err := repo.ListAssigned(ctx)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "active", assigned[0].ID)
}

func TestSecretRepoToggleSkip(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	repo := NewSecretRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateIfAbsent(ctx, "candle"))

	secret, previous, err := repo.ToggleSkip(ctx, "candle")
	require.NoError(t, err)
	assert.False(t, previous)
	assert.True(t, secret.IsSkipped)

	secret, previous, err = repo.ToggleSkip(ctx, "candle")
	require.NoError(t, err)
	assert.True(t, previous)
	assert.False(t, secret.IsSkipped)

	_, _, err = repo.ToggleSkip(ctx, "ghost")
	assert.True(t, opsyncerrors.IsNotFound(err))
}

func TestSecretRepoUnassignWhereItemNotIn(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	repo := NewSecretRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateIfAbsent(ctx, "kept"))
	require.NoError(t, repo.CreateIfAbsent(ctx, "orphaned"))
	require.NoError(t, repo.CreateIfAbsent(ctx, "never_assigned"))
	require.NoError(t, repo.Assign(ctx, "kept", "i1", "op://a/b/c"))
	require.NoError(t, repo.Assign(ctx, "orphaned", "i2", "op://a/b/d"))

	require.NoError(t, repo.UnassignWhereItemNotIn(ctx, []string{"i1"}))

	kept, err := repo.Get(ctx, "kept")
	require.NoError(t, err)
	assert.NotNil(t, kept.Reference)

	orphaned, err := repo.Get(ctx, "orphaned")
	require.NoError(t, err)
	assert.Nil(t, orphaned.ItemID)
	assert.Nil(t, orphaned.Reference)
}
