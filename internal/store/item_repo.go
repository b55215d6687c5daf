package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemRepo is the narrow access contract for the vault item mirror.
type ItemRepo interface {
	// UpsertWithVault writes an item and creates its vault if absent,
	// atomically.
	UpsertWithVault(ctx context.Context, item Item, vault Vault) error

	// DeleteItemsNotIn removes every item whose id is not in ids.
	// An empty set removes all items.
	DeleteItemsNotIn(ctx context.Context, ids []string) error

	// DeleteVaultsNotIn removes every vault whose id is not in ids.
	DeleteVaultsNotIn(ctx context.Context, ids []string) error

	// List returns all items, most recently updated first, vault included.
	List(ctx context.Context) ([]Item, error)

	// Get returns one item or nil when absent.
	Get(ctx context.Context, id string) (*Item, error)

	// ListVaults returns all known vaults.
	ListVaults(ctx context.Context) ([]Vault, error)

	// GetVault returns one vault or nil when absent.
	GetVault(ctx context.Context, id string) (*Vault, error)
}

type itemRepo struct {
	db *gorm.DB
}

// NewItemRepo creates the gorm-backed item repository.
func NewItemRepo(db *gorm.DB) ItemRepo {
	return &itemRepo{db: db}
}

func (r *itemRepo) UpsertWithVault(ctx context.Context, item Item, vault Vault) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&vault).Error; err != nil {
			return err
		}

		item.VaultID = vault.ID
		item.Vault = Vault{}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&item).Error
	})
}

func (r *itemRepo) DeleteItemsNotIn(ctx context.Context, ids []string) error {
	tx := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	if len(ids) == 0 {
		return tx.Delete(&Item{}).Error
	}
	return tx.Where("id NOT IN ?", ids).Delete(&Item{}).Error
}

func (r *itemRepo) DeleteVaultsNotIn(ctx context.Context, ids []string) error {
	tx := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	if len(ids) == 0 {
		return tx.Delete(&Vault{}).Error
	}
	return tx.Where("id NOT IN ?", ids).Delete(&Vault{}).Error
}

func (r *itemRepo) List(ctx context.Context) ([]Item, error) {
	var items []Item
	err := r.db.WithContext(ctx).
		Preload("Vault").
		Order("updated_at desc").
		Find(&items).Error
	return items, err
}

func (r *itemRepo) Get(ctx context.Context, id string) (*Item, error) {
	var item Item
	err := r.db.WithContext(ctx).Preload("Vault").First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepo) ListVaults(ctx context.Context) ([]Vault, error) {
	var vaults []Vault
	err := r.db.WithContext(ctx).Order("name asc").Find(&vaults).Error
	return vaults, err
}

func (r *itemRepo) GetVault(ctx context.Context, id string) (*Vault, error) {
	var vault Vault
	err := r.db.WithContext(ctx).First(&vault, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vault, nil
}
