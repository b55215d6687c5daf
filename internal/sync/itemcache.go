// Package sync drives the reconciliation between 1Password and the Home
// Assistant secret store.
package sync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"go.uber.org/zap"

	opsyncerrors "github.com/systmms/opsync/internal/errors"
	"github.com/systmms/opsync/internal/ha"
	"github.com/systmms/opsync/internal/op"
	"github.com/systmms/opsync/internal/store"
)

// detailFetchWorkers bounds concurrent per-item detail fetches during a
// full refresh.
const detailFetchWorkers = 4

// ItemCache keeps the persisted vault item mirror consistent with the
// upstream listing, with a TTR cooldown to avoid hammering the API.
type ItemCache struct {
	client   op.Client
	items    store.ItemRepo
	secrets  store.SecretRepo
	settings store.SettingRepo
	sink     ha.Sink
	ttr      time.Duration
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewItemCache creates an item cache with the given time-to-refresh.
func NewItemCache(
	client op.Client,
	items store.ItemRepo,
	secrets store.SecretRepo,
	settings store.SettingRepo,
	sink ha.Sink,
	ttr time.Duration,
	logger *zap.SugaredLogger,
) *ItemCache {
	return &ItemCache{
		client:   client,
		items:    items,
		secrets:  secrets,
		settings: settings,
		sink:     sink,
		ttr:      ttr,
		logger:   logger,
		now:      time.Now,
	}
}

// IsSyncDue reports whether the cooldown has expired. It has no side
// effects.
func (c *ItemCache) IsSyncDue(ctx context.Context) (bool, error) {
	value, found, err := c.settings.Get(ctx, store.SettingNextUpdate)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}

	next, err := time.Parse(time.RFC3339, value)
	if err != nil {
		// A garbled timestamp must not wedge syncing forever.
		c.logger.Warnw("unparseable nextUpdate value, forcing refresh", "value", value)
		return true, nil
	}
	return c.now().After(next), nil
}

// RefreshAll mirrors the upstream listing into storage. Items that an
// active assignment relies on get a full detail fetch (listings omit
// fields); everything else is stored from the cheap summary. Items and
// vaults that vanished upstream are pruned by set difference, and
// assignments pointing at pruned items are cleared. Upstream failures are
// logged and swallowed; the next scheduled pass retries.
func (c *ItemCache) RefreshAll(ctx context.Context, force bool) {
	if !force {
		due, err := c.IsSyncDue(ctx)
		if err != nil {
			c.logger.Errorw("failed to check sync cooldown", "error", err)
			return
		}
		if !due {
			c.logger.Debug("cache refresh not due yet")
			return
		}
	}

	if err := c.refreshAll(ctx); err != nil {
		c.logger.Errorw("cache refresh failed", "error", err)
	}
}

func (c *ItemCache) refreshAll(ctx context.Context) error {
	listing, err := c.client.ListItems(ctx)
	if err != nil {
		return err
	}

	assigned, err := c.secrets.ListAssigned(ctx)
	if err != nil {
		return err
	}
	inUse := make(map[string]struct{}, len(assigned))
	for _, secret := range assigned {
		if secret.ItemID != nil {
			inUse[*secret.ItemID] = struct{}{}
		}
	}

	itemIDs := make([]string, 0, len(listing))
	vaultIDs := make([]string, 0, len(listing))
	vaultSeen := map[string]struct{}{}
	for _, item := range listing {
		itemIDs = append(itemIDs, item.ID)
		if _, ok := vaultSeen[item.Vault.ID]; !ok {
			vaultSeen[item.Vault.ID] = struct{}{}
			vaultIDs = append(vaultIDs, item.Vault.ID)
		}
	}

	// Detail fetches are expensive; only items an assignment relies on
	// pay that cost. The fetches run concurrently but are all joined
	// before any write happens.
	detailed := c.fetchDetails(ctx, listing, inUse)

	for _, item := range listing {
		if full, ok := detailed[item.ID]; ok {
			item = full
		}
		if err := c.upsert(ctx, item); err != nil {
			return err
		}
	}

	if err := c.items.DeleteItemsNotIn(ctx, itemIDs); err != nil {
		return err
	}
	if err := c.items.DeleteVaultsNotIn(ctx, vaultIDs); err != nil {
		return err
	}
	// Assignments whose item vanished upstream lose both link and
	// reference together.
	if err := c.secrets.UnassignWhereItemNotIn(ctx, itemIDs); err != nil {
		return err
	}

	return c.advanceNextUpdate(ctx)
}

// fetchDetails concurrently fetches full detail for the items in use.
// Individual failures are logged; the summary row is used instead.
func (c *ItemCache) fetchDetails(ctx context.Context, listing []op.Item, inUse map[string]struct{}) map[string]op.Item {
	detailed := make(map[string]op.Item, len(inUse))

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, detailFetchWorkers)

	for _, item := range listing {
		if _, ok := inUse[item.ID]; !ok {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(summary op.Item) {
			defer wg.Done()
			defer func() { <-sem }()

			full, err := c.client.GetItem(ctx, summary.ID, summary.Vault.ID)
			if err != nil {
				c.logger.Warnw("failed to fetch item detail", "item", summary.ID, "error", err)
				return
			}
			if full == nil {
				return
			}
			mu.Lock()
			detailed[summary.ID] = *full
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	return detailed
}

// RefreshOne fetches and stores a single item with full detail, without
// touching the prune set or the TTR clock. Used when a user explicitly
// asks for fresh fields.
func (c *ItemCache) RefreshOne(ctx context.Context, itemID, vaultID string) error {
	item, err := c.client.GetItem(ctx, itemID, vaultID)
	if err != nil {
		return err
	}
	if item == nil {
		return opsyncerrors.NotFoundError{Entity: "item", ID: itemID}
	}

	if err := c.upsert(ctx, *item); err != nil {
		return err
	}

	affected, err := c.secrets.ListByItem(ctx, itemID)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(affected))
	for _, secret := range affected {
		names = append(names, secret.ID)
	}
	ha.FireItemRefreshedEvent(ctx, c.sink, itemID, vaultID, names)

	return nil
}

// RecentlyChangedAssignedSecrets returns the live values for every active
// assignment whose secret or linked item changed within the TTR window.
// This is the only place raw secret values are materialized; they stay in
// memguard enclaves until the moment of the file write and are never
// persisted.
func (c *ItemCache) RecentlyChangedAssignedSecrets(ctx context.Context) (map[string]*memguard.Enclave, error) {
	assigned, err := c.secrets.ListAssigned(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := c.now().Add(-c.ttr)
	values := make(map[string]*memguard.Enclave)

	for _, secret := range assigned {
		if secret.Reference == nil {
			continue
		}

		changed := secret.UpdatedAt.After(cutoff)
		if !changed && secret.Item != nil {
			changed = secret.Item.UpdatedAt.After(cutoff)
		}
		if !changed {
			continue
		}

		value, err := c.client.ResolveReference(ctx, *secret.Reference)
		if err != nil {
			// One broken reference should not starve the rest of the
			// pass; the secret is retried next cycle.
			c.logger.Errorw("failed to resolve secret reference", "secret", secret.ID, "error", err)
			continue
		}
		values[secret.ID] = memguard.NewEnclave([]byte(value))
	}

	return values, nil
}

func (c *ItemCache) upsert(ctx context.Context, item op.Item) error {
	masked := op.MaskItem(item)

	urls, err := json.Marshal(masked.URLs)
	if err != nil {
		return err
	}
	fields, err := json.Marshal(masked.Fields)
	if err != nil {
		return err
	}

	return c.items.UpsertWithVault(ctx, store.Item{
		ID:             masked.ID,
		Title:          masked.Title,
		Category:       masked.Category,
		AdditionalInfo: masked.AdditionalInfo,
		URLs:           string(urls),
		Fields:         string(fields),
		CreatedAt:      masked.CreatedAt,
		UpdatedAt:      masked.UpdatedAt,
	}, store.Vault{ID: masked.Vault.ID, Name: masked.Vault.Name})
}

func (c *ItemCache) advanceNextUpdate(ctx context.Context) error {
	next := c.now().Add(c.ttr).Format(time.RFC3339)
	return c.settings.Upsert(ctx, store.SettingNextUpdate, next)
}
