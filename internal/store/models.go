// Package store holds the persistent mirror of vault and secret state.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vault mirrors one upstream 1Password vault. Rows exist only while at
// least one item referenced them during the last completed sync pass.
type Vault struct {
	ID   string `gorm:"primaryKey"`
	Name string `gorm:"not null"`
}

// Item mirrors one upstream vault item. URLs and Fields are stored as
// JSON-encoded text; CONCEALED field values are masked before they reach
// this struct. CreatedAt/UpdatedAt carry the upstream timestamps, not
// local write times.
type Item struct {
	ID             string `gorm:"primaryKey"`
	VaultID        string `gorm:"index;not null"`
	Vault          Vault
	Title          string
	Category       string
	AdditionalInfo string
	URLs           string
	Fields         string
	CreatedAt      time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
}

// Secret is a Home Assistant secret slot. ItemID and Reference are set and
// cleared together; a row with exactly one of the two populated is a bug.
type Secret struct {
	ID        string  `gorm:"primaryKey"`
	ItemID    *string `gorm:"index"`
	Item      *Item
	Reference *string
	IsSkipped bool `gorm:"not null;default:false"`
	UpdatedAt time.Time
}

// Group is a named set of secrets sharing one aggregated change event.
type Group struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Secrets     []SecretGroup `gorm:"constraint:OnDelete:CASCADE"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (g *Group) BeforeCreate(*gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// SecretGroup is the group membership join row.
type SecretGroup struct {
	GroupID  string    `gorm:"primaryKey"`
	SecretID string    `gorm:"primaryKey"`
	AddedAt  time.Time `gorm:"autoCreateTime"`
}

// Setting is a scalar key-value row (nextUpdate timestamp, rate-limit snapshot).
type Setting struct {
	ID    string `gorm:"primaryKey"`
	Value string
}
