package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting keys used by the sync engine.
const (
	// SettingNextUpdate holds the ISO timestamp before which scheduled
	// refreshes are skipped.
	SettingNextUpdate = "nextUpdate"

	// SettingRateLimits holds the JSON rate-limit snapshot.
	SettingRateLimits = "rateLimits"
)

// SettingRepo is the narrow access contract for scalar settings.
type SettingRepo interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Upsert writes the value, creating the row if needed.
	Upsert(ctx context.Context, key, value string) error
}

type settingRepo struct {
	db *gorm.DB
}

// NewSettingRepo creates the gorm-backed setting repository.
func NewSettingRepo(db *gorm.DB) SettingRepo {
	return &settingRepo{db: db}
}

func (r *settingRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var setting Setting
	err := r.db.WithContext(ctx).First(&setting, "id = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

func (r *settingRepo) Upsert(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&Setting{ID: key, Value: value}).Error
}
