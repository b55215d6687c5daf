package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemRepoUpsertWithVault(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	repo := NewItemRepo(db)
	ctx := context.Background()

	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	item := Item{ID: "i1", VaultID: "v1", Title: "Router", Category: "LOGIN", CreatedAt: created, UpdatedAt: updated}
	require.NoError(t, repo.UpsertWithVault(ctx, item, Vault{ID: "v1", Name: "Home"}))

	got, err := repo.Get(ctx, "i1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Router", got.Title)
	assert.Equal(t, updated.Unix(), got.UpdatedAt.Unix(), "upstream timestamp survives the write")

	// A second upsert replaces the row instead of failing.
	item.Title = "Router (renamed)"
	require.NoError(t, repo.UpsertWithVault(ctx, item, Vault{ID: "v1", Name: "Home"}))

	got, err = repo.Get(ctx, "i1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Router (renamed)", got.Title)

	vaults, err := repo.ListVaults(ctx)
	require.NoError(t, err)
	assert.Len(t, vaults, 1)
}

func TestItemRepoPruneBySetDifference(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	repo := NewItemRepo(db)
	ctx := context.Background()

	for _, id := range []string{"i1", "i2", "i3"} {
		require.NoError(t, repo.UpsertWithVault(ctx, Item{ID: id, VaultID: "v1"}, Vault{ID: "v1", Name: "Home"}))
	}
	require.NoError(t, repo.UpsertWithVault(ctx, Item{ID: "i4", VaultID: "v2"}, Vault{ID: "v2", Name: "Work"}))

	require.NoError(t, repo.DeleteItemsNotIn(ctx, []string{"i1", "i3"}))
	require.NoError(t, repo.DeleteVaultsNotIn(ctx, []string{"v1"}))

	items, err := repo.List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	assert.ElementsMatch(t, []string{"i1", "i3"}, ids)

	vault, err := repo.GetVault(ctx, "v2")
	require.NoError(t, err)
	assert.Nil(t, vault)

	// Pruning is idempotent.
	require.NoError(t, repo.DeleteItemsNotIn(ctx, []string{"i1", "i3"}))
	items, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestItemRepoPruneWithEmptyUpstream(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	repo := NewItemRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertWithVault(ctx, Item{ID: "i1", VaultID: "v1"}, Vault{ID: "v1", Name: "Home"}))

	// An empty upstream listing removes everything.
	require.NoError(t, repo.DeleteItemsNotIn(ctx, nil))
	require.NoError(t, repo.DeleteVaultsNotIn(ctx, nil))

	items, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestItemRepoGetMissing(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	repo := NewItemRepo(db)

	item, err := repo.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, item)
}
