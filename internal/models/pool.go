package models

import (
	"time"

	"gorm.io/gorm"
)

// VMPool groups pre-provisioned capacity by (location, tier, project type).
// ItemCount is fixed at creation; capacity grows by adding items, not by
// resizing pools.
type VMPool struct {
	gorm.Model
	LocationID  uint       `gorm:"column:location_id;not null;index:idx_pool_criteria" json:"location_id"`
	Location    Location   `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	TierID      uint       `gorm:"column:tier_id;not null;index:idx_pool_criteria" json:"tier_id"`
	Tier        ServerTier `gorm:"foreignKey:TierID" json:"tier,omitempty"`
	ProjectType string     `gorm:"column:project_type;not null;index:idx_pool_criteria" json:"project_type"`
	ItemCount   int        `gorm:"column:item_count;not null" json:"item_count"`
}

// VMPoolItem is one compute slot of a pool. Both delegation columns are
// null exactly when the item is available; they are always written together.
type VMPoolItem struct {
	gorm.Model
	PoolID             uint       `gorm:"column:pool_id;not null;index" json:"pool_id"`
	Pool               VMPool     `gorm:"foreignKey:PoolID" json:"pool,omitempty"`
	ServerID           uint       `gorm:"column:server_id;not null" json:"server_id"`
	Server             Server     `gorm:"foreignKey:ServerID" json:"server,omitempty"`
	DelegatedAt        *time.Time `gorm:"column:delegated_at" json:"delegated_at"`
	DelegatedProjectID *uint      `gorm:"column:delegated_project_id;index" json:"delegated_project_id"`
}

// Available reports whether the item can be claimed.
func (i VMPoolItem) Available() bool {
	return i.DelegatedProjectID == nil
}
