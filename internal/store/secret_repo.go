package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	opsyncerrors "github.com/systmms/opsync/internal/errors"
)

// SecretRepo is the narrow access contract for Home Assistant secret slots.
type SecretRepo interface {
	// CreateIfAbsent registers a secret key with defaults. Existing rows
	// are left untouched, assignment state included.
	CreateIfAbsent(ctx context.Context, id string) error

	// Get returns one secret or nil when absent.
	Get(ctx context.Context, id string) (*Secret, error)

	// List returns all secrets in display order: visible first, then
	// assigned before unassigned, then by id.
	List(ctx context.Context) ([]Secret, error)

	// ListAssigned returns secrets with a reference that are not skipped,
	// with their linked item preloaded.
	ListAssigned(ctx context.Context) ([]Secret, error)

	// ListByItem returns secrets assigned to the given item.
	ListByItem(ctx context.Context, itemID string) ([]Secret, error)

	// Assign sets both the item link and the reference in one write.
	Assign(ctx context.Context, id, itemID, reference string) error

	// Unassign clears both the item link and the reference in one write.
	Unassign(ctx context.Context, id string) error

	// UnassignWhereItemNotIn clears assignments pointing at items that
	// are no longer present upstream.
	UnassignWhereItemNotIn(ctx context.Context, itemIDs []string) error

	// ToggleSkip flips the skip flag and returns the updated secret plus
	// the previous flag value.
	ToggleSkip(ctx context.Context, id string) (*Secret, bool, error)
}

type secretRepo struct {
	db *gorm.DB
}

// NewSecretRepo creates the gorm-backed secret repository.
func NewSecretRepo(db *gorm.DB) SecretRepo {
	return &secretRepo{db: db}
}

func (r *secretRepo) CreateIfAbsent(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&Secret{ID: id}).Error
}

func (r *secretRepo) Get(ctx context.Context, id string) (*Secret, error) {
	var secret Secret
	err := r.db.WithContext(ctx).Preload("Item").First(&secret, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &secret, nil
}

func (r *secretRepo) List(ctx context.Context) ([]Secret, error) {
	var secrets []Secret
	err := r.db.WithContext(ctx).
		Preload("Item").
		Order("is_skipped asc").
		Order("item_id desc").
		Order("id asc").
		Find(&secrets).Error
	return secrets, err
}

func (r *secretRepo) ListAssigned(ctx context.Context) ([]Secret, error) {
	var secrets []Secret
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("reference IS NOT NULL AND is_skipped = ?", false).
		Find(&secrets).Error
	return secrets, err
}

func (r *secretRepo) ListByItem(ctx context.Context, itemID string) ([]Secret, error) {
	var secrets []Secret
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Find(&secrets).Error
	return secrets, err
}

func (r *secretRepo) Assign(ctx context.Context, id, itemID, reference string) error {
	tx := r.db.WithContext(ctx).Model(&Secret{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"item_id": itemID, "reference": reference})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return opsyncerrors.NotFoundError{Entity: "secret", ID: id}
	}
	return nil
}

func (r *secretRepo) Unassign(ctx context.Context, id string) error {
	tx := r.db.WithContext(ctx).Model(&Secret{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"item_id": nil, "reference": nil})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return opsyncerrors.NotFoundError{Entity: "secret", ID: id}
	}
	return nil
}

func (r *secretRepo) UnassignWhereItemNotIn(ctx context.Context, itemIDs []string) error {
	tx := r.db.WithContext(ctx).Model(&Secret{}).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Where("item_id IS NOT NULL")
	if len(itemIDs) > 0 {
		tx = tx.Where("item_id NOT IN ?", itemIDs)
	}
	return tx.Updates(map[string]interface{}{"item_id": nil, "reference": nil}).Error
}

func (r *secretRepo) ToggleSkip(ctx context.Context, id string) (*Secret, bool, error) {
	var secret Secret
	var previous bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&secret, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return opsyncerrors.NotFoundError{Entity: "secret", ID: id}
			}
			return err
		}

		previous = secret.IsSkipped
		secret.IsSkipped = !previous
		return tx.Model(&Secret{}).
			Where("id = ?", id).
			Update("is_skipped", secret.IsSkipped).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &secret, previous, nil
}
