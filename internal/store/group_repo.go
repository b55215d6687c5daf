package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	opsyncerrors "github.com/systmms/opsync/internal/errors"
)

// GroupRepo is the narrow access contract for groups and their memberships.
type GroupRepo interface {
	Create(ctx context.Context, group Group, secretIDs []string) (*Group, error)
	Update(ctx context.Context, id string, name *string, description *string) (*Group, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Group, error)
	GetByName(ctx context.Context, name string) (*Group, error)
	List(ctx context.Context) ([]Group, error)

	// AddSecrets adds membership rows, silently skipping duplicates.
	AddSecrets(ctx context.Context, groupID string, secretIDs []string) error

	// RemoveSecrets removes the given membership rows.
	RemoveSecrets(ctx context.Context, groupID string, secretIDs []string) error

	// ReplaceSecrets swaps the full membership in a single transaction;
	// no partial state is observable.
	ReplaceSecrets(ctx context.Context, groupID string, secretIDs []string) error

	// FindContainingSecrets returns groups holding at least one of the
	// given secrets, memberships included.
	FindContainingSecrets(ctx context.Context, secretIDs []string) ([]Group, error)
}

type groupRepo struct {
	db *gorm.DB
}

// NewGroupRepo creates the gorm-backed group repository.
func NewGroupRepo(db *gorm.DB) GroupRepo {
	return &groupRepo{db: db}
}

func (r *groupRepo) Create(ctx context.Context, group Group, secretIDs []string) (*Group, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		if len(secretIDs) == 0 {
			return nil
		}
		members := make([]SecretGroup, 0, len(secretIDs))
		for _, secretID := range secretIDs {
			members = append(members, SecretGroup{GroupID: group.ID, SecretID: secretID})
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, group.ID)
}

func (r *groupRepo) Update(ctx context.Context, id string, name *string, description *string) (*Group, error) {
	updates := map[string]interface{}{}
	if name != nil {
		updates["name"] = *name
	}
	if description != nil {
		updates["description"] = *description
	}

	if len(updates) > 0 {
		tx := r.db.WithContext(ctx).Model(&Group{}).Where("id = ?", id).Updates(updates)
		if tx.Error != nil {
			return nil, tx.Error
		}
		if tx.RowsAffected == 0 {
			return nil, opsyncerrors.NotFoundError{Entity: "group", ID: id}
		}
	}
	return r.Get(ctx, id)
}

func (r *groupRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&SecretGroup{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Group{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return opsyncerrors.NotFoundError{Entity: "group", ID: id}
		}
		return nil
	})
}

func (r *groupRepo) Get(ctx context.Context, id string) (*Group, error) {
	var group Group
	err := r.db.WithContext(ctx).Preload("Secrets").First(&group, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepo) GetByName(ctx context.Context, name string) (*Group, error) {
	var group Group
	err := r.db.WithContext(ctx).Preload("Secrets").First(&group, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepo) List(ctx context.Context) ([]Group, error) {
	var groups []Group
	err := r.db.WithContext(ctx).Preload("Secrets").Order("name asc").Find(&groups).Error
	return groups, err
}

func (r *groupRepo) AddSecrets(ctx context.Context, groupID string, secretIDs []string) error {
	if len(secretIDs) == 0 {
		return nil
	}
	members := make([]SecretGroup, 0, len(secretIDs))
	for _, secretID := range secretIDs {
		members = append(members, SecretGroup{GroupID: groupID, SecretID: secretID})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&members).Error
}

func (r *groupRepo) RemoveSecrets(ctx context.Context, groupID string, secretIDs []string) error {
	if len(secretIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("group_id = ? AND secret_id IN ?", groupID, secretIDs).
		Delete(&SecretGroup{}).Error
}

func (r *groupRepo) ReplaceSecrets(ctx context.Context, groupID string, secretIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", groupID).Delete(&SecretGroup{}).Error; err != nil {
			return err
		}
		if len(secretIDs) == 0 {
			return nil
		}
		members := make([]SecretGroup, 0, len(secretIDs))
		for _, secretID := range secretIDs {
			members = append(members, SecretGroup{GroupID: groupID, SecretID: secretID})
		}
		return tx.Create(&members).Error
	})
}

func (r *groupRepo) FindContainingSecrets(ctx context.Context, secretIDs []string) ([]Group, error) {
	if len(secretIDs) == 0 {
		return nil, nil
	}

	memberOf := r.db.Model(&SecretGroup{}).
		Select("group_id").
		Where("secret_id IN ?", secretIDs)

	var groups []Group
	err := r.db.WithContext(ctx).
		Preload("Secrets").
		Where("id IN (?)", memberOf).
		Find(&groups).Error
	return groups, err
}
